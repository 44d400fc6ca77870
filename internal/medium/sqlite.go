package medium

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Iron-Ham/pagebook/internal/page"
)

// DefaultSQLiteFile is the database file name used when none is configured.
const DefaultSQLiteFile = "pagebook.db"

// SQLite stores pages in a single table.
type SQLite struct {
	conn *sql.DB
	path string
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal=WAL&_busy_timeout=5000", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// Writes are serialized by the page store; one connection avoids
	// SQLITE_BUSY between pooled connections.
	conn.SetMaxOpenConns(1)

	s := &SQLite{conn: conn, path: path}
	if err := s.initialize(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file.
func (s *SQLite) Path() string { return s.path }

func (s *SQLite) initialize(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS pages (
				title      TEXT PRIMARY KEY,
				content    TEXT NOT NULL DEFAULT '',
				version    TEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			  );`

	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create pages table: %w", err)
	}
	return nil
}

// LoadAll returns every row in title order. Rows whose version cannot be
// parsed are returned without one so the store issues a fresh lineage.
func (s *SQLite) LoadAll(ctx context.Context) ([]page.Record, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT title, content, version FROM pages ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	var records []page.Record
	for rows.Next() {
		var rec page.Record
		var version string
		if err := rows.Scan(&rec.Title, &rec.Content, &version); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		if v, err := page.ParseVersionTag(version); err == nil {
			rec.Version = v
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return records, nil
}

const upsertPage = `INSERT INTO pages (title, content, version, updated_at)
					VALUES (?, ?, ?, CURRENT_TIMESTAMP)
					ON CONFLICT(title) DO UPDATE SET
						content = excluded.content,
						version = excluded.version,
						updated_at = excluded.updated_at`

func (s *SQLite) Put(ctx context.Context, rec page.Record) error {
	if _, err := s.conn.ExecContext(ctx, upsertPage, rec.Title, rec.Content, rec.Version.String()); err != nil {
		return fmt.Errorf("upsert page: %w", err)
	}
	return nil
}

// Move deletes oldTitle and writes rec in one transaction.
func (s *SQLite) Move(ctx context.Context, oldTitle string, rec page.Record) (err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin move: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM pages WHERE title = ?`, oldTitle); err != nil {
		return fmt.Errorf("delete old page: %w", err)
	}
	if _, err = tx.ExecContext(ctx, upsertPage, rec.Title, rec.Content, rec.Version.String()); err != nil {
		return fmt.Errorf("insert moved page: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit move: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, title string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM pages WHERE title = ?`, title); err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}

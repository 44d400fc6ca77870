package medium

import (
	"fmt"
	"path/filepath"

	"github.com/Iron-Ham/pagebook/internal/logging"
	"github.com/Iron-Ham/pagebook/internal/page"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Backends returns the valid backend names.
func Backends() []string {
	return []string{BackendMemory, BackendFile, BackendSQLite}
}

// Medium is a durable page backend that can also seed a store.
type Medium interface {
	page.Medium
	page.Loader
	Close() error
}

// Options selects and locates a backend.
type Options struct {
	Backend    string
	DataDir    string
	SQLiteFile string // relative paths are resolved against DataDir
	Logger     *logging.Logger
}

// Open returns the backend named by opts.Backend.
func Open(opts Options) (Medium, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendFile:
		return NewDir(opts.DataDir, WithDirLogger(opts.Logger))
	case BackendSQLite:
		path := opts.SQLiteFile
		if path == "" {
			path = DefaultSQLiteFile
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(opts.DataDir, path)
		}
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q (valid: %v)", opts.Backend, Backends())
	}
}

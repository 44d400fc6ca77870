// Package testutil provides testing utilities for Pagebook tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/Iron-Ham/pagebook/internal/event"
	"github.com/Iron-Ham/pagebook/internal/medium"
	"github.com/Iron-Ham/pagebook/internal/page"
)

// Env is a page store opened on a temporary data directory. Everything it
// opened is closed when the test completes.
type Env struct {
	Dir    string
	Medium medium.Medium
	Bus    *event.Bus
	Store  *page.Store
}

// OpenStore opens a store on backend ("memory", "file" or "sqlite") in a
// fresh temporary directory.
func OpenStore(t *testing.T, backend string) *Env {
	t.Helper()
	return OpenStoreIn(t, t.TempDir(), backend)
}

// OpenStoreIn opens a store on backend in dir, loading whatever pages the
// backend already holds there.
func OpenStoreIn(t *testing.T, dir, backend string) *Env {
	t.Helper()

	m, err := medium.Open(medium.Options{Backend: backend, DataDir: dir})
	if err != nil {
		t.Fatalf("failed to open %s medium: %v", backend, err)
	}
	t.Cleanup(func() { _ = m.Close() })

	bus := event.NewBus(nil)
	s, err := page.Open(context.Background(), m, page.WithMedium(m), page.WithPublisher(bus))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return &Env{Dir: dir, Medium: m, Bus: bus, Store: s}
}

// WriteFiles creates files under dir. The files map holds paths relative
// to dir and their contents.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for path, content := range files {
		fullPath := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write file %s: %v", path, err)
		}
	}
}

// ReadFile returns the contents of dir/path.
func ReadFile(t *testing.T, dir, path string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, path))
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// CommitMessages returns the messages of the commits reachable from HEAD
// of the git repository in repoDir, newest first.
func CommitMessages(t *testing.T, repoDir string) []string {
	t.Helper()

	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatalf("failed to resolve HEAD: %v", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}

	var messages []string
	err = iter.ForEach(func(c *object.Commit) error {
		messages = append(messages, c.Message)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to walk log: %v", err)
	}
	return messages
}

// Package journal records every page mutation as a git commit of the data
// directory. It is driven by page events and only makes sense with the file
// backend, whose pages are plain files in that directory.
package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/Iron-Ham/pagebook/internal/event"
	"github.com/Iron-Ham/pagebook/internal/logging"
)

// DefaultBranch is the branch a new journal repository starts on.
const DefaultBranch = "main"

// ignored lists files in the data directory that are never committed.
const ignored = `pagebook.lock
pagebook.log*
*.tmp
*.db
*.db-*
`

// Author signs journal commits.
type Author struct {
	Name  string
	Email string
}

// DefaultAuthor is used when no author is configured.
var DefaultAuthor = Author{Name: "Pagebook", Email: "pagebook@local"}

// Entry is one journal commit.
type Entry struct {
	Hash    string
	Message string
	Author  string
	When    time.Time
}

// Journal commits the data directory on each page mutation.
type Journal struct {
	mu     sync.Mutex
	dir    string
	repo   *git.Repository
	author Author
	logger *logging.Logger

	bus  *event.Bus
	subs []string
}

// Open opens the git repository at dir, initializing one on DefaultBranch
// if none exists.
func Open(dir string, author Author, logger *logging.Logger) (*Journal, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if author.Name == "" {
		author.Name = DefaultAuthor.Name
	}
	if author.Email == "" {
		author.Email = DefaultAuthor.Email
	}

	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = initRepo(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("open journal repository: %w", err)
	}

	return &Journal{
		dir:    dir,
		repo:   repo,
		author: author,
		logger: logger.WithComponent("journal"),
	}, nil
}

func initRepo(dir string) (*git.Repository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(DefaultBranch),
		},
	})
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(ignored), 0644); err != nil {
		return nil, fmt.Errorf("write .gitignore: %w", err)
	}
	return repo, nil
}

// Commit stages every change in the data directory, including deletions,
// and commits it. It returns the zero hash when there was nothing to
// commit.
func (j *Journal) Commit(message string) (plumbing.Hash, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	wt, err := j.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("worktree status: %w", err)
	}
	for path, st := range status {
		if st.Worktree == git.Deleted {
			if _, err := wt.Remove(path); err != nil {
				return plumbing.ZeroHash, fmt.Errorf("stage removal of %s: %w", path, err)
			}
		}
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("stage changes: %w", err)
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: j.author.Name, Email: j.author.Email, When: time.Now()},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		return plumbing.ZeroHash, nil
	}
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit: %w", err)
	}
	return hash, nil
}

// Attach subscribes the journal to the mutation events on bus.
func (j *Journal) Attach(bus *event.Bus) {
	j.Detach()
	j.bus = bus
	j.subs = bus.SubscribeMany(j.handle, event.MutationTypes()...)
}

// Detach removes the journal's subscriptions.
func (j *Journal) Detach() {
	if j.bus == nil {
		return
	}
	for _, id := range j.subs {
		j.bus.Unsubscribe(id)
	}
	j.bus, j.subs = nil, nil
}

func (j *Journal) handle(e event.Event) {
	message := MessageFor(e)
	if message == "" {
		return
	}
	hash, err := j.Commit(message)
	if err != nil {
		j.logger.Error("journal commit failed", "message", message, "error", err)
		return
	}
	if !hash.IsZero() {
		j.logger.Debug("journal commit", "message", message, "hash", hash.String())
	}
}

// MessageFor returns the commit message for a mutation event, or "" for
// events that are not journaled.
func MessageFor(e event.Event) string {
	switch ev := e.(type) {
	case event.PageCreatedEvent:
		return "create: " + ev.Title
	case event.PageSavedEvent:
		if ev.Renamed() {
			return fmt.Sprintf("save: %s -> %s", ev.PreviousTitle, ev.Title)
		}
		return "save: " + ev.Title
	case event.PageRenamedEvent:
		return fmt.Sprintf("rename: %s -> %s", ev.OldTitle, ev.NewTitle)
	case event.PageDeletedEvent:
		return "delete: " + ev.Title
	case event.PageRefreshedEvent:
		return "refresh: " + ev.Title
	default:
		return ""
	}
}

// Log returns up to limit commits, newest first. A limit of zero or less
// returns all of them.
func (j *Journal) Log(limit int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	head, err := j.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	iter, err := j.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var entries []Entry
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(entries) >= limit {
			return storer.ErrStop
		}
		entries = append(entries, Entry{
			Hash:    c.Hash.String(),
			Message: c.Message,
			Author:  c.Author.Name,
			When:    c.Author.When,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk log: %w", err)
	}
	return entries, nil
}

package page

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Iron-Ham/pagebook/internal/errors"
	"github.com/Iron-Ham/pagebook/internal/event"
	"github.com/Iron-Ham/pagebook/internal/logging"
)

// Medium is the durable side of a Store. Each method must either apply its
// change completely or leave the medium untouched.
type Medium interface {
	Put(ctx context.Context, rec Record) error
	// Move stores rec under rec.Title and removes oldTitle in one step.
	Move(ctx context.Context, oldTitle string, rec Record) error
	Delete(ctx context.Context, title string) error
}

// Loader supplies the initial contents of a Store.
type Loader interface {
	LoadAll(ctx context.Context) ([]Record, error)
}

// Publisher receives page events. *event.Bus satisfies it.
type Publisher interface {
	Publish(event.Event)
}

type entry struct {
	content string
	version VersionTag
}

// Store is the authoritative mapping from page title to content and
// version. All methods are safe for concurrent use; every operation runs
// under a single critical section, so checks on a target title are atomic
// with the mutation that claims it.
//
// Mutations are written to the Medium (if any) while the lock is held and
// applied to memory only after the medium accepts them. Events are
// published after the lock is released.
type Store struct {
	mu     sync.RWMutex
	pages  map[string]entry
	medium Medium
	bus    Publisher
	logger *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMedium makes every mutation durable on m.
func WithMedium(m Medium) Option {
	return func(s *Store) { s.medium = m }
}

// WithPublisher sets the destination of page events.
func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.bus = p }
}

// WithLogger sets the store's logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.WithComponent("store")
		}
	}
}

// NewStore returns an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		pages:  make(map[string]entry),
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open returns a Store populated from loader. Records without a version
// start a new lineage and drifted records advance their tag; both are
// written back to the configured medium.
func Open(ctx context.Context, loader Loader, opts ...Option) (*Store, error) {
	s := NewStore(opts...)

	records, err := loader.LoadAll(ctx)
	if err != nil {
		return nil, errors.NewStorageError("load pages", "", err)
	}

	for _, rec := range records {
		if err := ValidateTitle(rec.Title); err != nil {
			return nil, fmt.Errorf("load page %q: %w", rec.Title, err)
		}
		if _, dup := s.pages[rec.Title]; dup {
			return nil, errors.NewAlreadyExistsError("page", rec.Title)
		}

		version := rec.Version
		rewrite := false
		switch {
		case version.IsZero():
			version = newVersionTag()
			rewrite = true
		case rec.Drifted:
			version = version.next()
			rewrite = true
		}

		if rewrite && s.medium != nil {
			out := Record{Title: rec.Title, Content: rec.Content, Version: version}
			if err := s.medium.Put(ctx, out); err != nil {
				return nil, errors.NewStorageError("put page", rec.Title, err)
			}
		}
		s.pages[rec.Title] = entry{content: rec.Content, version: version}
	}

	s.logger.Info("store opened", "pages", len(s.pages))
	return s, nil
}

// List returns all titles in lexical order.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	titles := make([]string, 0, len(s.pages))
	for title := range s.pages {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	return titles
}

// Len returns the number of pages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

// Load returns the content and current version of title.
func (s *Store) Load(title string) (string, VersionTag, error) {
	s.mu.RLock()
	e, ok := s.pages[title]
	s.mu.RUnlock()

	if !ok {
		return "", VersionTag{}, errors.NewNotFoundError("page", title)
	}
	s.logger.Debug("page loaded", "page", title, "version", e.version.String())
	return e.content, e.version, nil
}

// Get is Load returning a Page.
func (s *Store) Get(title string) (Page, error) {
	content, version, err := s.Load(title)
	if err != nil {
		return Page{}, err
	}
	return Page{Title: title, Content: content, Version: version}, nil
}

// Snapshot returns copies of every page in lexical title order.
func (s *Store) Snapshot() []Page {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pages := make([]Page, 0, len(s.pages))
	for title, e := range s.pages {
		pages = append(pages, Page{Title: title, Content: e.content, Version: e.version})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Title < pages[j].Title })
	return pages
}

// Create adds an empty page and returns its first version.
func (s *Store) Create(ctx context.Context, title string) (VersionTag, error) {
	if err := ValidateTitle(title); err != nil {
		return VersionTag{}, err
	}

	s.mu.Lock()
	version, err := s.createLocked(ctx, title)
	s.mu.Unlock()

	if err != nil {
		return VersionTag{}, err
	}
	s.logger.Info("page created", "page", title, "version", version.String())
	s.publish(event.NewPageCreatedEvent(title, version.String()))
	return version, nil
}

func (s *Store) createLocked(ctx context.Context, title string) (VersionTag, error) {
	if err := canceled(ctx); err != nil {
		return VersionTag{}, err
	}
	if _, ok := s.pages[title]; ok {
		s.logger.Warn("create rejected: title taken", "page", title)
		return VersionTag{}, errors.NewAlreadyExistsError("page", title)
	}

	version := newVersionTag()
	if err := s.put(ctx, Record{Title: title, Version: version}); err != nil {
		return VersionTag{}, err
	}
	s.pages[title] = entry{version: version}
	return version, nil
}

// Rename moves a page to newTitle, keeping its content and lineage, and
// returns the advanced version. Renaming a page to its own title still
// issues a fresh version.
func (s *Store) Rename(ctx context.Context, oldTitle, newTitle string) (VersionTag, error) {
	if err := ValidateTitle(newTitle); err != nil {
		return VersionTag{}, err
	}

	s.mu.Lock()
	version, err := s.renameLocked(ctx, oldTitle, newTitle)
	s.mu.Unlock()

	if err != nil {
		return VersionTag{}, err
	}
	s.logger.Info("page renamed", "page", newTitle, "previous", oldTitle, "version", version.String())
	s.publish(event.NewPageRenamedEvent(oldTitle, newTitle, version.String()))
	return version, nil
}

func (s *Store) renameLocked(ctx context.Context, oldTitle, newTitle string) (VersionTag, error) {
	if err := canceled(ctx); err != nil {
		return VersionTag{}, err
	}
	cur, err := s.resolveLocked(oldTitle)
	if err != nil {
		return VersionTag{}, err
	}
	if err := s.checkTargetLocked(oldTitle, newTitle); err != nil {
		return VersionTag{}, err
	}

	next := entry{content: cur.content, version: cur.version.next()}
	if err := s.commitLocked(ctx, oldTitle, newTitle, next); err != nil {
		return VersionTag{}, err
	}
	return next.version, nil
}

// SaveIfMatch replaces the content of oldTitle, optionally moving it to
// newTitle in the same step, provided expected is the page's current
// version. It returns the new version. A stale expected version fails with
// a *errors.ConflictError and changes nothing.
func (s *Store) SaveIfMatch(ctx context.Context, oldTitle, newTitle, content string, expected VersionTag) (VersionTag, error) {
	if err := ValidateTitle(newTitle); err != nil {
		return VersionTag{}, err
	}

	s.mu.Lock()
	version, err := s.saveLocked(ctx, oldTitle, newTitle, content, expected)
	s.mu.Unlock()

	if err != nil {
		s.reportConflict(err)
		return VersionTag{}, err
	}
	s.logger.Info("page saved",
		"page", newTitle,
		"previous", oldTitle,
		"version", version.String(),
		"bytes", len(content))
	s.publish(event.NewPageSavedEvent(oldTitle, newTitle, version.String(), len(content)))
	return version, nil
}

func (s *Store) saveLocked(ctx context.Context, oldTitle, newTitle, content string, expected VersionTag) (VersionTag, error) {
	if err := canceled(ctx); err != nil {
		return VersionTag{}, err
	}
	cur, err := s.admitWriteLocked(oldTitle, expected)
	if err != nil {
		return VersionTag{}, err
	}
	if err := s.checkTargetLocked(oldTitle, newTitle); err != nil {
		return VersionTag{}, err
	}

	next := entry{content: content, version: cur.version.next()}
	if err := s.commitLocked(ctx, oldTitle, newTitle, next); err != nil {
		return VersionTag{}, err
	}
	return next.version, nil
}

// Delete removes title provided expected is its current version.
func (s *Store) Delete(ctx context.Context, title string, expected VersionTag) error {
	s.mu.Lock()
	err := s.deleteLocked(ctx, title, expected)
	s.mu.Unlock()

	if err != nil {
		s.reportConflict(err)
		return err
	}
	s.logger.Info("page deleted", "page", title)
	s.publish(event.NewPageDeletedEvent(title))
	return nil
}

func (s *Store) deleteLocked(ctx context.Context, title string, expected VersionTag) error {
	if err := canceled(ctx); err != nil {
		return err
	}
	if _, err := s.admitWriteLocked(title, expected); err != nil {
		return err
	}
	if s.medium != nil {
		if err := s.medium.Delete(ctx, title); err != nil {
			s.logger.Error("medium delete failed", "page", title, "error", err)
			return errors.NewStorageError("delete page", title, err)
		}
	}
	delete(s.pages, title)
	return nil
}

// Refresh adopts content that was written to the medium by someone other
// than this store. If the content differs from what the store holds, the
// page's version advances so that callers holding the old version conflict;
// a missing page is created. It reports whether anything changed.
func (s *Store) Refresh(ctx context.Context, title, content string) (VersionTag, bool, error) {
	if err := ValidateTitle(title); err != nil {
		return VersionTag{}, false, err
	}

	s.mu.Lock()
	version, created, changed, err := s.refreshLocked(ctx, title, content)
	s.mu.Unlock()

	if err != nil || !changed {
		return version, false, err
	}
	s.logger.Info("page refreshed from medium", "page", title, "version", version.String(), "created", created)
	s.publish(event.NewPageRefreshedEvent(title, version.String(), created))
	return version, true, nil
}

func (s *Store) refreshLocked(ctx context.Context, title, content string) (VersionTag, bool, bool, error) {
	if err := canceled(ctx); err != nil {
		return VersionTag{}, false, false, err
	}

	cur, exists := s.pages[title]
	if exists && cur.content == content {
		return cur.version, false, false, nil
	}

	next := entry{content: content}
	if exists {
		next.version = cur.version.next()
	} else {
		next.version = newVersionTag()
	}
	if err := s.put(ctx, Record{Title: title, Content: content, Version: next.version}); err != nil {
		return VersionTag{}, false, false, err
	}
	s.pages[title] = next
	return next.version, !exists, true, nil
}

// commitLocked writes next under newTitle, removing oldTitle when the two
// differ, first to the medium and then to memory.
func (s *Store) commitLocked(ctx context.Context, oldTitle, newTitle string, next entry) error {
	rec := Record{Title: newTitle, Content: next.content, Version: next.version}

	if oldTitle == newTitle {
		if err := s.put(ctx, rec); err != nil {
			return err
		}
		s.pages[newTitle] = next
		return nil
	}

	if s.medium != nil {
		if err := s.medium.Move(ctx, oldTitle, rec); err != nil {
			s.logger.Error("medium move failed", "page", newTitle, "previous", oldTitle, "error", err)
			return errors.NewStorageError("move page", oldTitle, err)
		}
	}
	delete(s.pages, oldTitle)
	s.pages[newTitle] = next
	return nil
}

func (s *Store) put(ctx context.Context, rec Record) error {
	if s.medium == nil {
		return nil
	}
	if err := s.medium.Put(ctx, rec); err != nil {
		s.logger.Error("medium put failed", "page", rec.Title, "error", err)
		return errors.NewStorageError("put page", rec.Title, err)
	}
	return nil
}

func (s *Store) publish(e event.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

func (s *Store) reportConflict(err error) {
	var conflict *errors.ConflictError
	if !errors.As(err, &conflict) {
		return
	}
	s.logger.Warn("conditional write rejected",
		"page", conflict.Title,
		"expected", conflict.Expected,
		"current", conflict.Current)
	s.publish(event.NewPageConflictEvent(conflict.Title, conflict.Expected, conflict.Current))
}

func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrCanceled, err)
	}
	return nil
}

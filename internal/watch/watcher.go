// Package watch adopts page files that are edited outside Pagebook.
//
// A Watcher follows the pages directory of a file backend. When a page file
// is written by another program, the new content is handed to the store's
// Refresh, which advances the page's version so that anyone still holding
// the old version gets a conflict instead of overwriting the edit.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/pagebook/internal/logging"
	"github.com/Iron-Ham/pagebook/internal/medium"
	"github.com/Iron-Ham/pagebook/internal/page"
)

// DefaultDebounce coalesces the burst of events editors emit for one save.
const DefaultDebounce = 50 * time.Millisecond

// Refresher adopts externally written content. *page.Store satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, title, content string) (page.VersionTag, bool, error)
}

// Watcher feeds external edits of a Dir into a Refresher.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dir      *medium.Dir
	store    Refresher
	debounce time.Duration
	logger   *logging.Logger

	mu        sync.Mutex
	onRefresh func(title string)

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long to wait for a burst of events to settle.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher's logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l.WithComponent("watch")
		}
	}
}

// New creates a Watcher on dir's pages directory. Call Start to begin.
func New(dir *medium.Dir, store Refresher, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir.PagesDir()); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		dir:      dir,
		store:    store,
		debounce: DefaultDebounce,
		logger:   logging.NopLogger(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// SetRefreshCallback registers cb to run after a page was refreshed.
func (w *Watcher) SetRefreshCallback(cb func(title string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onRefresh = cb
}

// Start begins processing events until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	if w.started.CompareAndSwap(false, true) {
		go w.watchLoop(ctx)
	}
}

// Stop ends the watch loop and releases the underlying watcher. It waits
// for an in-flight batch to finish.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
	if w.started.Load() {
		<-w.doneCh
	}
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.doneCh)

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer

	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// Removals are ignored: a page only disappears through Delete.
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if _, ok := w.dir.TitleOf(ev.Name); !ok {
				continue
			}
			pending[ev.Name] = struct{}{}
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			batch := pending
			pending = make(map[string]struct{})
			for path := range batch {
				w.handleFile(ctx, path)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleFile(ctx context.Context, path string) {
	title, ok := w.dir.TitleOf(path)
	if !ok {
		return
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		w.logger.Warn("read changed page file", "page", title, "error", err)
		return
	}

	content := string(data)
	if w.dir.Indexed(title, content) {
		return
	}

	version, changed, err := w.store.Refresh(ctx, title, content)
	if err != nil {
		w.logger.Error("refresh from external edit failed", "page", title, "error", err)
		return
	}
	if !changed {
		return
	}
	w.logger.Info("external edit adopted", "page", title, "version", version.String())

	w.mu.Lock()
	cb := w.onRefresh
	w.mu.Unlock()
	if cb != nil {
		cb(title)
	}
}

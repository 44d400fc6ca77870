package medium

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Iron-Ham/pagebook/internal/logging"
	"github.com/Iron-Ham/pagebook/internal/page"
)

const (
	pagesDirName  = "pages"
	indexFileName = "index.json"
	pageExt       = ".md"
	tmpExt        = ".tmp"

	// maxNameBytes keeps a page file name, and its temporary sibling,
	// within the 255-byte limit of common file systems.
	maxNameBytes = 255 - len(pageExt) - len(tmpExt)

	// hashMarker separates a shortened name from its hash. PathEscape
	// always escapes '%', so the marker never occurs in a reversible name.
	hashMarker = "%~"
)

// indexEntry records what the store last wrote for one page.
type indexEntry struct {
	File    string          `json:"file"`
	Version page.VersionTag `json:"version"`
	SHA256  string          `json:"sha256"`
}

type persistedIndex struct {
	Pages map[string]indexEntry `json:"pages"`

	// Orphans are page files the index stopped referencing but that could
	// not be removed. They are never adopted as pages.
	Orphans []string `json:"orphans,omitempty"`
}

// Dir stores each page as <root>/pages/<escaped title>.md and keeps
// versions in <root>/index.json.
type Dir struct {
	mu      sync.Mutex
	root    string
	index   map[string]indexEntry // title -> entry
	orphans map[string]bool
	logger  *logging.Logger
	remove  func(path string) error
}

// DirOption configures a Dir.
type DirOption func(*Dir)

// WithDirLogger sets the logger used for cleanup failures.
func WithDirLogger(l *logging.Logger) DirOption {
	return func(d *Dir) {
		if l != nil {
			d.logger = l.WithComponent("medium")
		}
	}
}

// NewDir opens (creating if needed) a page directory rooted at root.
func NewDir(root string, opts ...DirOption) (*Dir, error) {
	if root == "" {
		return nil, fmt.Errorf("file backend requires a data directory")
	}
	if err := os.MkdirAll(filepath.Join(root, pagesDirName), 0755); err != nil {
		return nil, fmt.Errorf("create pages directory: %w", err)
	}

	d := &Dir{root: root, logger: logging.NopLogger(), remove: os.Remove}
	for _, opt := range opts {
		opt(d)
	}
	idx, orphans, err := d.readIndex()
	if err != nil {
		return nil, err
	}
	d.index, d.orphans = idx, orphans
	return d, nil
}

// Root returns the data directory.
func (d *Dir) Root() string { return d.root }

// PagesDir returns the directory holding page files.
func (d *Dir) PagesDir() string { return filepath.Join(d.root, pagesDirName) }

// PagePath returns the file a page with title is stored in.
func (d *Dir) PagePath(title string) string {
	return filepath.Join(d.PagesDir(), FileName(title))
}

// TitleOf returns the title stored in the page file at path. Indexed files
// are looked up in the index, which also covers shortened names; other
// files must decode with TitleFromFile.
func (d *Dir) TitleOf(path string) (string, bool) {
	name := filepath.Base(path)
	d.mu.Lock()
	for title, e := range d.index {
		if e.File == name {
			d.mu.Unlock()
			return title, true
		}
	}
	orphan := d.orphans[name]
	d.mu.Unlock()
	if orphan {
		return "", false
	}
	return TitleFromFile(name)
}

// FileName returns the base file name for title. A leading dot is escaped
// so page files are never hidden. Names too long for the file system are
// shortened and end in a hash of the title; such names only resolve
// through the index.
func FileName(title string) string {
	name := url.PathEscape(title)
	if strings.HasPrefix(name, ".") {
		name = "%2E" + name[1:]
	}
	if len(name) > maxNameBytes {
		name = shortName(title, name)
	}
	return name + pageExt
}

func shortName(title, escaped string) string {
	sum := sha256.Sum256([]byte(title))
	suffix := hashMarker + hex.EncodeToString(sum[:8])
	cut := maxNameBytes - len(suffix)
	// Never split a %XX escape.
	if i := strings.LastIndexByte(escaped[:cut], '%'); i > cut-3 {
		cut = i
	}
	return escaped[:cut] + suffix
}

// TitleFromFile reverses FileName. It reports false for names that are not
// page files, including shortened names.
func TitleFromFile(name string) (string, bool) {
	name = filepath.Base(name)
	if !strings.HasSuffix(name, pageExt) || strings.HasPrefix(name, ".") {
		return "", false
	}
	title, err := url.PathUnescape(strings.TrimSuffix(name, pageExt))
	if err != nil || title == "" {
		return "", false
	}
	return title, true
}

// LoadAll reads every indexed page plus any page file that is not yet in
// the index. A page whose file no longer hashes to the indexed value is
// returned with Drifted set; unindexed files are returned without a version.
// Orphaned files are removed again and never returned.
func (d *Dir) LoadAll(ctx context.Context) ([]page.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx, orphans, err := d.readIndex()
	if err != nil {
		return nil, err
	}
	d.index, d.orphans = idx, orphans
	d.sweepOrphans()

	var records []page.Record
	for title, e := range idx {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := d.readPage(e.File)
		if err != nil {
			return nil, err
		}
		records = append(records, page.Record{
			Title:   title,
			Content: content,
			Version: e.Version,
			Drifted: hashContent(content) != e.SHA256,
		})
	}

	indexed := make(map[string]bool, len(idx))
	for _, e := range idx {
		indexed[e.File] = true
	}
	entries, err := os.ReadDir(d.PagesDir())
	if err != nil {
		return nil, fmt.Errorf("read pages directory: %w", err)
	}
	for _, de := range entries {
		if de.IsDir() || indexed[de.Name()] || d.orphans[de.Name()] {
			continue
		}
		title, ok := TitleFromFile(de.Name())
		if !ok {
			continue
		}
		if _, dup := idx[title]; dup {
			continue
		}
		content, err := d.readPage(de.Name())
		if err != nil {
			return nil, err
		}
		records = append(records, page.Record{Title: title, Content: content})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Title < records[j].Title })
	return records, nil
}

// Put writes rec's content and index entry.
func (d *Dir) Put(_ context.Context, rec page.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	file := FileName(rec.Title)
	restore := d.snapshotFile(file)

	if err := writeFileAtomic(filepath.Join(d.PagesDir(), file), []byte(rec.Content)); err != nil {
		return err
	}

	next := d.cloneIndex()
	next[rec.Title] = indexEntry{File: file, Version: rec.Version, SHA256: hashContent(rec.Content)}
	orphans := d.cloneOrphans(file)
	if err := d.writeIndex(next, orphans); err != nil {
		restore()
		return err
	}
	d.index, d.orphans = next, orphans
	return nil
}

// Move writes rec under its title and removes oldTitle. The index switch is
// the commit point; once it is written the move has happened, and an old
// file that cannot be removed is recorded as an orphan instead.
func (d *Dir) Move(_ context.Context, oldTitle string, rec page.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	file := FileName(rec.Title)
	restore := d.snapshotFile(file)

	if err := writeFileAtomic(filepath.Join(d.PagesDir(), file), []byte(rec.Content)); err != nil {
		return err
	}

	next := d.cloneIndex()
	old, hadOld := next[oldTitle]
	delete(next, oldTitle)
	next[rec.Title] = indexEntry{File: file, Version: rec.Version, SHA256: hashContent(rec.Content)}
	orphans := d.cloneOrphans(file)
	if err := d.writeIndex(next, orphans); err != nil {
		restore()
		return err
	}
	d.index, d.orphans = next, orphans

	oldFile := FileName(oldTitle)
	if hadOld {
		oldFile = old.File
	}
	if oldFile != file {
		d.discard(oldFile, oldTitle)
	}
	return nil
}

// Delete removes title from the index and deletes its file. The index write
// is the commit point, as for Move.
func (d *Dir) Delete(_ context.Context, title string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := d.cloneIndex()
	e, ok := next[title]
	if !ok {
		e = indexEntry{File: FileName(title)}
	}
	delete(next, title)
	if err := d.writeIndex(next, d.orphans); err != nil {
		return err
	}
	d.index = next

	d.discard(e.File, title)
	return nil
}

// discard removes a page file the index no longer references. When that
// fails the file is recorded as an orphan so it is not adopted back as a
// page on the next load. Callers hold d.mu.
func (d *Dir) discard(file, title string) {
	err := d.remove(filepath.Join(d.PagesDir(), file))
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return
	}
	d.logger.Warn("failed to remove old page file", "page", title, "file", file, "error", err)

	orphans := d.cloneOrphans("")
	orphans[file] = true
	if err := d.writeIndex(d.index, orphans); err != nil {
		d.logger.Error("failed to record orphaned page file", "file", file, "error", err)
		return
	}
	d.orphans = orphans
}

// sweepOrphans retries removing orphaned files. Callers hold d.mu.
func (d *Dir) sweepOrphans() {
	if len(d.orphans) == 0 {
		return
	}
	left := make(map[string]bool, len(d.orphans))
	for file := range d.orphans {
		err := d.remove(filepath.Join(d.PagesDir(), file))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			left[file] = true
		}
	}
	if len(left) == len(d.orphans) {
		return
	}
	if err := d.writeIndex(d.index, left); err != nil {
		d.logger.Warn("failed to update orphaned page files", "error", err)
		return
	}
	d.orphans = left
}

// Indexed reports whether the file currently holds exactly the content the
// store last wrote for title.
func (d *Dir) Indexed(title, content string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.index[title]
	return ok && e.SHA256 == hashContent(content)
}

func (d *Dir) Close() error { return nil }

func (d *Dir) readIndex() (map[string]indexEntry, map[string]bool, error) {
	orphans := make(map[string]bool)
	data, err := os.ReadFile(filepath.Join(d.root, indexFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]indexEntry), orphans, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read index: %w", err)
	}

	var idx persistedIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, nil, fmt.Errorf("unmarshal index: %w", err)
	}
	if idx.Pages == nil {
		idx.Pages = make(map[string]indexEntry)
	}
	for title, e := range idx.Pages {
		if e.File == "" {
			e.File = FileName(title)
			idx.Pages[title] = e
		}
	}
	for _, file := range idx.Orphans {
		orphans[file] = true
	}
	return idx.Pages, orphans, nil
}

func (d *Dir) writeIndex(idx map[string]indexEntry, orphans map[string]bool) error {
	persisted := persistedIndex{Pages: idx}
	for file := range orphans {
		persisted.Orphans = append(persisted.Orphans, file)
	}
	sort.Strings(persisted.Orphans)

	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	return writeFileAtomic(filepath.Join(d.root, indexFileName), data)
}

func (d *Dir) cloneIndex() map[string]indexEntry {
	next := make(map[string]indexEntry, len(d.index)+1)
	for k, v := range d.index {
		next[k] = v
	}
	return next
}

// cloneOrphans copies the orphan set without reused, a file that is about
// to hold a page again.
func (d *Dir) cloneOrphans(reused string) map[string]bool {
	next := make(map[string]bool, len(d.orphans)+1)
	for file := range d.orphans {
		if file != reused {
			next[file] = true
		}
	}
	return next
}

func (d *Dir) readPage(file string) (string, error) {
	data, err := os.ReadFile(filepath.Join(d.PagesDir(), file))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read page file: %w", err)
	}
	return string(data), nil
}

// snapshotFile captures file's current state and returns a function that
// puts it back.
func (d *Dir) snapshotFile(file string) func() {
	path := filepath.Join(d.PagesDir(), file)
	prev, err := os.ReadFile(path)
	if err != nil {
		return func() { _ = os.Remove(path) }
	}
	return func() { _ = writeFileAtomic(path, prev) }
}

// writeFileAtomic writes data to a temporary file and renames it into place.
func writeFileAtomic(target string, data []byte) error {
	tmp := target + tmpExt
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

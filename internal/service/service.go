// Package service is the caller-facing surface of Pagebook. It pairs a
// page store with one session's admission gate and speaks in serialized
// version strings, so the CLI and the HTTP API share the same rules.
package service

import (
	"context"

	"github.com/Iron-Ham/pagebook/internal/logging"
	"github.com/Iron-Ham/pagebook/internal/page"
)

// Gate is the admission check a Service consults before every store call.
// *auth.Gate satisfies it.
type Gate interface {
	Authenticate(credential string) (bool, error)
	Require() error
	SessionID() string
}

// Document is a page as seen by a client: the version is the opaque string
// to hand back on the next conditional write.
type Document struct {
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
	Version string `json:"version" yaml:"version"`
}

// Service exposes page operations for one session.
type Service struct {
	store  *page.Store
	gate   Gate
	logger *logging.Logger
}

// New returns a Service for the session behind gate.
func New(store *page.Store, gate Gate, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Service{
		store:  store,
		gate:   gate,
		logger: logger.WithComponent("service").WithSession(gate.SessionID()),
	}
}

// Authenticate presents credential to the session's gate.
func (s *Service) Authenticate(credential string) (bool, error) {
	return s.gate.Authenticate(credential)
}

// ListPages returns all titles in lexical order.
func (s *Service) ListPages() ([]string, error) {
	if err := s.gate.Require(); err != nil {
		return nil, err
	}
	return s.store.List(), nil
}

// LoadPage returns a page and its current version.
func (s *Service) LoadPage(title string) (Document, error) {
	if err := s.gate.Require(); err != nil {
		return Document{}, err
	}
	p, err := s.store.Get(title)
	if err != nil {
		return Document{}, err
	}
	return toDocument(p), nil
}

// Pages returns every page with its version, in title order.
func (s *Service) Pages() ([]Document, error) {
	if err := s.gate.Require(); err != nil {
		return nil, err
	}
	snapshot := s.store.Snapshot()
	docs := make([]Document, len(snapshot))
	for i, p := range snapshot {
		docs[i] = toDocument(p)
	}
	return docs, nil
}

// NewPage creates an empty page and returns it.
func (s *Service) NewPage(ctx context.Context, title string) (Document, error) {
	if err := s.gate.Require(); err != nil {
		return Document{}, err
	}
	v, err := s.store.Create(ctx, title)
	if err != nil {
		return Document{}, err
	}
	return Document{Title: title, Version: v.String()}, nil
}

// RenamePage moves a page to newTitle and returns its new version.
func (s *Service) RenamePage(ctx context.Context, oldTitle, newTitle string) (string, error) {
	if err := s.gate.Require(); err != nil {
		return "", err
	}
	v, err := s.store.Rename(ctx, oldTitle, newTitle)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// SavePageIfMatch writes content (and optionally a new title) if version is
// still current, returning the new version. An empty or unrecognized
// version never matches, so callers must load before they save.
func (s *Service) SavePageIfMatch(ctx context.Context, oldTitle, newTitle, content, version string) (string, error) {
	if err := s.gate.Require(); err != nil {
		return "", err
	}
	if newTitle == "" {
		newTitle = oldTitle
	}
	v, err := s.store.SaveIfMatch(ctx, oldTitle, newTitle, content, s.parseVersion(version))
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// DeletePage removes a page if version is still current.
func (s *Service) DeletePage(ctx context.Context, title, version string) error {
	if err := s.gate.Require(); err != nil {
		return err
	}
	return s.store.Delete(ctx, title, s.parseVersion(version))
}

func (s *Service) parseVersion(version string) page.VersionTag {
	v, err := page.ParseVersionTag(version)
	if err != nil {
		s.logger.Debug("unrecognized version treated as stale", "version", version, "error", err)
		return page.VersionTag{}
	}
	return v
}

func toDocument(p page.Page) Document {
	return Document{Title: p.Title, Content: p.Content, Version: p.Version.String()}
}

package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Iron-Ham/pagebook/internal/errors"
	"github.com/Iron-Ham/pagebook/internal/notebook"
	"github.com/Iron-Ham/pagebook/internal/service"
)

// LoginRequest is the body of POST /api/v1/auth.
type LoginRequest struct {
	Token string `json:"token"`
}

// LoginResponse carries the bearer token for later requests.
type LoginResponse struct {
	Session string `json:"session"`
}

// ListResponse is the body of GET /api/v1/pages. Pages is only filled
// when the request asks for ?full=true.
type ListResponse struct {
	Titles []string           `json:"titles"`
	Pages  []service.Document `json:"pages,omitempty"`
}

// CreateRequest is the body of POST /api/v1/pages.
type CreateRequest struct {
	Title string `json:"title"`
}

// SaveRequest is the body of PUT /api/v1/pages/{title}. A non-empty Title
// renames the page in the same step. Version is consulted only when the
// If-Match header is absent.
type SaveRequest struct {
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	Version string `json:"version,omitempty"`
}

// RenameRequest is the body of POST /api/v1/pages/{title}/rename.
type RenameRequest struct {
	Title string `json:"title"`
}

// VersionResponse reports the version issued by a mutation.
type VersionResponse struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

// sessionHandler is a handler that runs on behalf of an admitted session.
type sessionHandler func(w http.ResponseWriter, r *http.Request, svc *service.Service)

// authed resolves the bearer session and hands the handler a Service bound
// to it. Unknown or closed sessions get 401.
func (s *Server) authed(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="pagebook"`)
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer session")
			return
		}
		gate, err := s.sessions.Lookup(id)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="pagebook"`)
			s.writeStoreError(w, r, err)
			return
		}
		noteSession(w, id)
		h(w, r, service.New(s.store, gate, s.logger))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"pages":  s.store.Len(),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}
	gate, err := s.sessions.Login(req.Token)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	noteSession(w, gate.SessionID())
	writeJSON(w, http.StatusCreated, LoginResponse{Session: gate.SessionID()})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ *service.Service) {
	id, _ := bearerToken(r)
	s.sessions.Logout(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, svc *service.Service) {
	full, _ := strconv.ParseBool(r.URL.Query().Get("full"))
	if !full {
		titles, err := svc.ListPages()
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ListResponse{Titles: titles})
		return
	}

	docs, err := svc.Pages()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	titles := make([]string, len(docs))
	for i, d := range docs {
		titles[i] = d.Title
	}
	writeJSON(w, http.StatusOK, ListResponse{Titles: titles, Pages: docs})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, svc *service.Service) {
	var req CreateRequest
	if !decode(w, r, &req) {
		return
	}
	doc, err := svc.NewPage(r.Context(), req.Title)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.Header().Set("ETag", etag(doc.Version))
	w.Header().Set("Location", pagePath(doc.Title))
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, svc *service.Service) {
	doc, err := svc.LoadPage(r.PathValue("title"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.Header().Set("ETag", etag(doc.Version))
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag(doc.Version) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, svc *service.Service) {
	var req SaveRequest
	if !decode(w, r, &req) {
		return
	}
	oldTitle := r.PathValue("title")
	version := r.Header.Get("If-Match")
	if version == "" {
		version = req.Version
	}

	v, err := svc.SavePageIfMatch(r.Context(), oldTitle, req.Title, req.Content, version)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	title := req.Title
	if title == "" {
		title = oldTitle
	}
	w.Header().Set("ETag", etag(v))
	if title != oldTitle {
		w.Header().Set("Location", pagePath(title))
	}
	writeJSON(w, http.StatusOK, VersionResponse{Title: title, Version: v})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, svc *service.Service) {
	if err := svc.DeletePage(r.Context(), r.PathValue("title"), r.Header.Get("If-Match")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request, svc *service.Service) {
	var req RenameRequest
	if !decode(w, r, &req) {
		return
	}
	v, err := svc.RenamePage(r.Context(), r.PathValue("title"), req.Title)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.Header().Set("ETag", etag(v))
	w.Header().Set("Location", pagePath(req.Title))
	writeJSON(w, http.StatusOK, VersionResponse{Title: req.Title, Version: v})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, svc *service.Service) {
	nb, err := svc.Export(r.URL.Query().Get("title"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := notebook.Render(w, nb); err != nil {
		s.logger.Error("failed to render notebook", "error", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, svc *service.Service) {
	overwrite, _ := strconv.ParseBool(r.URL.Query().Get("overwrite"))
	nb, err := notebook.Parse(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
			return
		}
		s.writeStoreError(w, r, err)
		return
	}
	result, err := svc.Import(r.Context(), nb, overwrite)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// decode reads a JSON body into v, answering 400 (or 413) itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

// etag quotes a version for the ETag header. page.ParseVersionTag strips
// the quotes again on the way back in.
func etag(version string) string {
	return `"` + strings.Trim(version, `"`) + `"`
}

func pagePath(title string) string {
	return "/api/v1/pages/" + url.PathEscape(title)
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Iron-Ham/pagebook/internal/auth"
	perrors "github.com/Iron-Ham/pagebook/internal/errors"
	"github.com/Iron-Ham/pagebook/internal/logging"
	"github.com/Iron-Ham/pagebook/internal/page"
)

const testToken = "s3cret"

type testClient struct {
	t       *testing.T
	base    string
	session string
}

func newTestServer(t *testing.T, cfg Config) (*testClient, *page.Store) {
	t.Helper()
	sessions, err := auth.NewSessions(testToken, nil)
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	store := page.NewStore()
	srv := New(cfg, store, sessions, logging.NopLogger())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testClient{t: t, base: ts.URL}, store
}

// login returns a client holding an admitted session.
func login(t *testing.T) (*testClient, *page.Store) {
	t.Helper()
	c, store := newTestServer(t, DefaultConfig())
	resp := c.do(http.MethodPost, "/api/v1/auth", LoginRequest{Token: testToken}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("login status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var lr LoginResponse
	decodeBody(t, resp, &lr)
	if lr.Session == "" {
		t.Fatal("login returned empty session")
	}
	c.session = lr.Session
	return c, store
}

func (c *testClient) do(method, path string, body any, header map[string]string) *http.Response {
	c.t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			c.t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, r)
	if err != nil {
		c.t.Fatalf("NewRequest: %v", err)
	}
	if c.session != "" {
		req.Header.Set("Authorization", "Bearer "+c.session)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	c.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func pageURL(title string) string {
	return "/api/v1/pages/" + url.PathEscape(title)
}

func wantStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s status = %d, want %d (body: %s)",
			resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, body)
	}
}

func TestHealth_NoSessionNeeded(t *testing.T) {
	c, _ := newTestServer(t, DefaultConfig())
	resp := c.do(http.MethodGet, "/api/v1/health", nil, nil)
	wantStatus(t, resp, http.StatusOK)
}

func TestLogin(t *testing.T) {
	t.Run("wrong token", func(t *testing.T) {
		c, _ := newTestServer(t, DefaultConfig())
		resp := c.do(http.MethodPost, "/api/v1/auth", LoginRequest{Token: "nope"}, nil)
		wantStatus(t, resp, http.StatusUnauthorized)

		var er ErrorResponse
		decodeBody(t, resp, &er)
		if er.Error != "unauthorized" {
			t.Errorf("error code = %q, want unauthorized", er.Error)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		c, _ := newTestServer(t, DefaultConfig())
		resp := c.do(http.MethodPost, "/api/v1/auth", "{not json", nil)
		wantStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("sessions are independent", func(t *testing.T) {
		a, _ := login(t)
		b, _ := login(t)
		if a.session == b.session {
			t.Error("two logins should issue different sessions")
		}
	})
}

func TestPages_RequireSession(t *testing.T) {
	c, _ := newTestServer(t, DefaultConfig())

	resp := c.do(http.MethodGet, "/api/v1/pages", nil, nil)
	wantStatus(t, resp, http.StatusUnauthorized)
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("401 should carry WWW-Authenticate")
	}

	c.session = "not-a-session"
	resp = c.do(http.MethodGet, "/api/v1/pages", nil, nil)
	wantStatus(t, resp, http.StatusUnauthorized)
}

func TestLogout(t *testing.T) {
	c, _ := login(t)

	resp := c.do(http.MethodDelete, "/api/v1/auth", nil, nil)
	wantStatus(t, resp, http.StatusNoContent)

	resp = c.do(http.MethodGet, "/api/v1/pages", nil, nil)
	wantStatus(t, resp, http.StatusUnauthorized)
}

func TestPageLifecycle(t *testing.T) {
	c, store := login(t)

	// Create
	resp := c.do(http.MethodPost, "/api/v1/pages", CreateRequest{Title: "Intro"}, nil)
	wantStatus(t, resp, http.StatusCreated)
	created := resp.Header.Get("ETag")
	if created == "" {
		t.Fatal("create response has no ETag")
	}
	if loc := resp.Header.Get("Location"); loc != "/api/v1/pages/Intro" {
		t.Errorf("Location = %q", loc)
	}

	// Duplicate create
	resp = c.do(http.MethodPost, "/api/v1/pages", CreateRequest{Title: "Intro"}, nil)
	wantStatus(t, resp, http.StatusConflict)

	// Get matches the created version
	resp = c.do(http.MethodGet, pageURL("Intro"), nil, nil)
	wantStatus(t, resp, http.StatusOK)
	if got := resp.Header.Get("ETag"); got != created {
		t.Errorf("GET ETag = %q, want %q", got, created)
	}

	// Conditional save
	resp = c.do(http.MethodPut, pageURL("Intro"), SaveRequest{Content: "hello"}, map[string]string{"If-Match": created})
	wantStatus(t, resp, http.StatusOK)
	saved := resp.Header.Get("ETag")
	if saved == created {
		t.Error("save should issue a new ETag")
	}

	// Stale save loses
	resp = c.do(http.MethodPut, pageURL("Intro"), SaveRequest{Content: "stale"}, map[string]string{"If-Match": created})
	wantStatus(t, resp, http.StatusPreconditionFailed)

	// No version at all loses too
	resp = c.do(http.MethodPut, pageURL("Intro"), SaveRequest{Content: "blind"}, nil)
	wantStatus(t, resp, http.StatusPreconditionFailed)

	content, _, err := store.Load("Intro")
	if err != nil || content != "hello" {
		t.Fatalf("store content = %q, %v; want hello", content, err)
	}

	// Version in the body is accepted when If-Match is absent
	resp = c.do(http.MethodPut, pageURL("Intro"), SaveRequest{Content: "hello again", Version: strings.Trim(saved, `"`)}, nil)
	wantStatus(t, resp, http.StatusOK)
	saved = resp.Header.Get("ETag")

	// Delete with stale version loses, with current wins
	resp = c.do(http.MethodDelete, pageURL("Intro"), nil, map[string]string{"If-Match": created})
	wantStatus(t, resp, http.StatusPreconditionFailed)
	resp = c.do(http.MethodDelete, pageURL("Intro"), nil, map[string]string{"If-Match": saved})
	wantStatus(t, resp, http.StatusNoContent)

	resp = c.do(http.MethodGet, pageURL("Intro"), nil, nil)
	wantStatus(t, resp, http.StatusNotFound)
}

func TestSave_WithRename(t *testing.T) {
	c, store := login(t)

	resp := c.do(http.MethodPost, "/api/v1/pages", CreateRequest{Title: "Draft"}, nil)
	wantStatus(t, resp, http.StatusCreated)
	v := resp.Header.Get("ETag")
	resp = c.do(http.MethodPost, "/api/v1/pages", CreateRequest{Title: "Taken"}, nil)
	wantStatus(t, resp, http.StatusCreated)

	// Target already exists
	resp = c.do(http.MethodPut, pageURL("Draft"), SaveRequest{Title: "Taken", Content: "x"}, map[string]string{"If-Match": v})
	wantStatus(t, resp, http.StatusConflict)

	resp = c.do(http.MethodPut, pageURL("Draft"), SaveRequest{Title: "Final", Content: "done"}, map[string]string{"If-Match": v})
	wantStatus(t, resp, http.StatusOK)
	var vr VersionResponse
	decodeBody(t, resp, &vr)
	if vr.Title != "Final" {
		t.Errorf("response title = %q, want Final", vr.Title)
	}
	if loc := resp.Header.Get("Location"); loc != "/api/v1/pages/Final" {
		t.Errorf("Location = %q", loc)
	}

	if got := store.List(); strings.Join(got, ",") != "Final,Taken" {
		t.Errorf("List() = %v, want [Final Taken]", got)
	}
}

func TestRename(t *testing.T) {
	c, _ := login(t)

	resp := c.do(http.MethodPost, "/api/v1/pages", CreateRequest{Title: "a/b c"}, nil)
	wantStatus(t, resp, http.StatusCreated)

	resp = c.do(http.MethodPost, pageURL("a/b c")+"/rename", RenameRequest{Title: "moved"}, nil)
	wantStatus(t, resp, http.StatusOK)

	resp = c.do(http.MethodGet, pageURL("moved"), nil, nil)
	wantStatus(t, resp, http.StatusOK)

	resp = c.do(http.MethodPost, pageURL("missing")+"/rename", RenameRequest{Title: "x"}, nil)
	wantStatus(t, resp, http.StatusNotFound)
}

func TestGet_IfNoneMatch(t *testing.T) {
	c, _ := login(t)

	resp := c.do(http.MethodPost, "/api/v1/pages", CreateRequest{Title: "Cached"}, nil)
	wantStatus(t, resp, http.StatusCreated)
	v := resp.Header.Get("ETag")

	resp = c.do(http.MethodGet, pageURL("Cached"), nil, map[string]string{"If-None-Match": v})
	wantStatus(t, resp, http.StatusNotModified)
}

func TestList(t *testing.T) {
	c, _ := login(t)

	for _, title := range []string{"b", "a", "c"} {
		resp := c.do(http.MethodPost, "/api/v1/pages", CreateRequest{Title: title}, nil)
		wantStatus(t, resp, http.StatusCreated)
	}

	resp := c.do(http.MethodGet, "/api/v1/pages", nil, nil)
	wantStatus(t, resp, http.StatusOK)
	var lr ListResponse
	decodeBody(t, resp, &lr)
	if strings.Join(lr.Titles, ",") != "a,b,c" {
		t.Errorf("Titles = %v, want [a b c]", lr.Titles)
	}
	if lr.Pages != nil {
		t.Error("Pages should be omitted without ?full")
	}

	resp = c.do(http.MethodGet, "/api/v1/pages?full=true", nil, nil)
	wantStatus(t, resp, http.StatusOK)
	lr = ListResponse{}
	decodeBody(t, resp, &lr)
	if len(lr.Pages) != 3 || lr.Pages[0].Version == "" {
		t.Errorf("Pages = %+v, want three versioned documents", lr.Pages)
	}
}

func TestCreate_InvalidTitle(t *testing.T) {
	c, _ := login(t)
	resp := c.do(http.MethodPost, "/api/v1/pages", CreateRequest{Title: "  "}, nil)
	wantStatus(t, resp, http.StatusBadRequest)
}

func TestBodyLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 64
	c, _ := newTestServer(t, cfg)

	resp := c.do(http.MethodPost, "/api/v1/auth", LoginRequest{Token: strings.Repeat("x", 200)}, nil)
	wantStatus(t, resp, http.StatusRequestEntityTooLarge)
}

func TestNotebookRoundTrip(t *testing.T) {
	c, store := login(t)

	md := "# Imported\n\n## Alpha\n\nfirst\n\n## Beta\n\nsecond\n"
	resp := c.do(http.MethodPost, "/api/v1/notebook", md, nil)
	wantStatus(t, resp, http.StatusOK)

	var result map[string]string
	decodeBody(t, resp, &result)
	if result["Alpha"] != "created" || result["Beta"] != "created" {
		t.Errorf("import result = %v", result)
	}
	if store.Len() != 2 {
		t.Fatalf("store.Len() = %d, want 2", store.Len())
	}

	resp = c.do(http.MethodGet, "/api/v1/notebook?title=Export", nil, nil)
	wantStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"# Export", "## Alpha", "first", "## Beta", "second"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("export missing %q:\n%s", want, body)
		}
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), RecoveryMiddleware(logging.NopLogger()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain", io.EOF, http.StatusInternalServerError},
		{"not found", perrors.NewNotFoundError("page", "x"), http.StatusNotFound},
		{"exists", perrors.NewAlreadyExistsError("page", "x"), http.StatusConflict},
		{"conflict", perrors.Wrap(perrors.NewConflictError("x", "1-a", "2-a"), "save"), http.StatusPreconditionFailed},
		{"invalid", perrors.NewValidationError("bad title"), http.StatusBadRequest},
		{"closed", perrors.NewAuthError("closed", perrors.ErrSessionClosed), http.StatusUnauthorized},
		{"canceled", perrors.Wrap(perrors.ErrCanceled, "save"), http.StatusServiceUnavailable},
		{"storage", perrors.NewStorageError("put page", "x", io.ErrShortWrite), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	sessions, err := auth.NewSessions(testToken, nil)
	if err != nil {
		t.Fatalf("NewSessions: %v", err)
	}
	if _, err := sessions.Login(testToken); err != nil {
		t.Fatalf("Login: %v", err)
	}
	srv := New(DefaultConfig(), page.NewStore(), sessions, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	_ = resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if sessions.Count() != 0 {
		t.Errorf("sessions.Count() = %d after shutdown, want 0", sessions.Count())
	}
}

// Package internal contains integration tests that verify the packages work
// together: the store over a real backend, the event bus feeding the
// journal, the watcher adopting external edits and the HTTP API on top.
package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega" //nolint:revive

	"github.com/Iron-Ham/pagebook/internal/auth"
	"github.com/Iron-Ham/pagebook/internal/errors"
	"github.com/Iron-Ham/pagebook/internal/event"
	"github.com/Iron-Ham/pagebook/internal/journal"
	"github.com/Iron-Ham/pagebook/internal/medium"
	"github.com/Iron-Ham/pagebook/internal/server"
	"github.com/Iron-Ham/pagebook/internal/testutil"
	"github.com/Iron-Ham/pagebook/internal/watch"
)

// TestBackendsAgree runs the same edit sequence on every backend and
// expects the same observable result, including after a reopen.
func TestBackendsAgree(t *testing.T) {
	ctx := context.Background()

	for _, backend := range []string{medium.BackendFile, medium.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			env := testutil.OpenStore(t, backend)
			s := env.Store

			v, err := s.Create(ctx, "Intro")
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			v, err = s.SaveIfMatch(ctx, "Intro", "Intro", "# Hello\n", v)
			if err != nil {
				t.Fatalf("SaveIfMatch: %v", err)
			}
			if _, err := s.Create(ctx, "Notes"); err != nil {
				t.Fatalf("Create(Notes): %v", err)
			}
			v, err = s.Rename(ctx, "Intro", "Welcome")
			if err != nil {
				t.Fatalf("Rename: %v", err)
			}

			if err := env.Medium.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			reopened := testutil.OpenStoreIn(t, env.Dir, backend).Store

			if got := strings.Join(reopened.List(), ","); got != "Notes,Welcome" {
				t.Errorf("List() after reopen = %q, want %q", got, "Notes,Welcome")
			}
			content, tag, err := reopened.Load("Welcome")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if content != "# Hello\n" {
				t.Errorf("content = %q", content)
			}
			if tag != v {
				t.Errorf("version after reopen = %s, want %s", tag, v)
			}
		})
	}
}

// TestEventBusFeedsJournal checks that every successful mutation reaches
// the journal and that a refused save is reported on the bus instead.
func TestEventBusFeedsJournal(t *testing.T) {
	ctx := context.Background()
	env := testutil.OpenStore(t, medium.BackendFile)

	j, err := journal.Open(env.Dir, journal.Author{}, nil)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	j.Attach(env.Bus)
	defer j.Detach()

	var (
		mu        sync.Mutex
		conflicts []event.PageConflictEvent
	)
	env.Bus.Subscribe(event.TypePageConflict, func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		conflicts = append(conflicts, e.(event.PageConflictEvent))
	})

	s := env.Store
	v, _ := s.Create(ctx, "Plan")
	stale := v
	if _, err := s.SaveIfMatch(ctx, "Plan", "Plan", "first draft", v); err != nil {
		t.Fatalf("SaveIfMatch: %v", err)
	}
	_, err = s.SaveIfMatch(ctx, "Plan", "Plan", "lost update", stale)
	if !errors.IsConflict(err) {
		t.Fatalf("stale save error = %v, want conflict", err)
	}

	mu.Lock()
	if len(conflicts) != 1 || conflicts[0].Title != "Plan" {
		t.Errorf("conflict events = %+v, want one for Plan", conflicts)
	}
	mu.Unlock()

	var messages []string
	for _, m := range testutil.CommitMessages(t, env.Dir) {
		messages = append(messages, strings.TrimSpace(m))
	}
	if got := strings.Join(messages, "|"); got != "save: Plan|create: Plan" {
		t.Errorf("journal = %q", got)
	}
	if got := testutil.ReadFile(t, env.Dir, "pages/"+medium.FileName("Plan")); got != "first draft" {
		t.Errorf("page file = %q, want the accepted save", got)
	}
}

// TestExternalEditInvalidatesHTTPClient follows a client that loaded a page
// over HTTP while another program rewrote the page file: the watcher adopts
// the edit and the client's save is refused.
func TestExternalEditInvalidatesHTTPClient(t *testing.T) {
	g := NewWithT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := testutil.OpenStore(t, medium.BackendFile)
	dir := env.Medium.(*medium.Dir)

	w, err := watch.New(dir, env.Store, watch.WithDebounce(10*time.Millisecond))
	g.Expect(err).NotTo(HaveOccurred())
	w.Start(ctx)
	defer w.Stop()

	sessions, err := auth.NewSessions("secret", nil)
	g.Expect(err).NotTo(HaveOccurred())
	ts := httptest.NewServer(server.New(server.DefaultConfig(), env.Store, sessions, nil).Handler())
	defer ts.Close()

	session := login(t, ts.URL, "secret")

	resp := do(t, http.MethodPost, ts.URL+"/api/v1/pages", session, `{"title":"Shared"}`, nil)
	g.Expect(resp.StatusCode).To(Equal(http.StatusCreated))

	resp = do(t, http.MethodGet, ts.URL+"/api/v1/pages/Shared", session, "", nil)
	g.Expect(resp.StatusCode).To(Equal(http.StatusOK))
	etag := resp.Header.Get("ETag")
	g.Expect(etag).NotTo(BeEmpty())

	g.Expect(os.WriteFile(dir.PagePath("Shared"), []byte("edited elsewhere"), 0644)).To(Succeed())
	g.Eventually(func() string {
		content, _, _ := env.Store.Load("Shared")
		return content
	}).WithTimeout(3 * time.Second).Should(Equal("edited elsewhere"))

	resp = do(t, http.MethodPut, ts.URL+"/api/v1/pages/Shared", session, `{"content":"mine"}`,
		map[string]string{"If-Match": etag})
	g.Expect(resp.StatusCode).To(Equal(http.StatusPreconditionFailed))

	content, tag, err := env.Store.Load("Shared")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(content).To(Equal("edited elsewhere"))

	resp = do(t, http.MethodPut, ts.URL+"/api/v1/pages/Shared", session, `{"content":"mine"}`,
		map[string]string{"If-Match": `"` + tag.String() + `"`})
	g.Expect(resp.StatusCode).To(Equal(http.StatusOK))
}

// TestConcurrentSaversOneWins races many saves based on the same version;
// exactly one may succeed and the stored content must be the winner's.
func TestConcurrentSaversOneWins(t *testing.T) {
	ctx := context.Background()
	env := testutil.OpenStore(t, medium.BackendSQLite)
	s := env.Store

	base, err := s.Create(ctx, "Race")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const savers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := range savers {
		wg.Add(1)
		go func(content string) {
			defer wg.Done()
			if _, err := s.SaveIfMatch(ctx, "Race", "Race", content, base); err == nil {
				mu.Lock()
				winners = append(winners, content)
				mu.Unlock()
			} else if !errors.IsConflict(err) {
				t.Errorf("unexpected error: %v", err)
			}
		}(strings.Repeat("x", i+1))
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("winners = %d, want exactly 1", len(winners))
	}
	content, _, _ := s.Load("Race")
	if content != winners[0] {
		t.Errorf("stored content = %q, want winner %q", content, winners[0])
	}

	// The durable copy agrees with memory.
	_ = env.Medium.Close()
	reopened := testutil.OpenStoreIn(t, env.Dir, medium.BackendSQLite).Store
	if got, _, _ := reopened.Load("Race"); got != winners[0] {
		t.Errorf("persisted content = %q, want %q", got, winners[0])
	}
}

func login(t *testing.T, baseURL, token string) string {
	t.Helper()

	resp := do(t, http.MethodPost, baseURL+"/api/v1/auth", "", `{"token":"`+token+`"}`, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var body server.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return body.Session
}

func do(t *testing.T, method, url, session, body string, headers map[string]string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.Header.Set("Authorization", "Bearer "+session)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Iron-Ham/pagebook/internal/auth"
	perrors "github.com/Iron-Ham/pagebook/internal/errors"
	"github.com/Iron-Ham/pagebook/internal/page"
)

func newService(t *testing.T) (*Service, *auth.Gate) {
	t.Helper()
	g, err := auth.NewGate("changeme", nil)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	return New(page.NewStore(), g, nil), g
}

func admitted(t *testing.T) *Service {
	t.Helper()
	svc, _ := newService(t)
	if ok, err := svc.Authenticate("changeme"); !ok {
		t.Fatalf("Authenticate: %v", err)
	}
	return svc
}

func TestService_RequiresAdmission(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	checks := map[string]func() error{
		"ListPages": func() error { _, err := svc.ListPages(); return err },
		"LoadPage":  func() error { _, err := svc.LoadPage("a"); return err },
		"Pages":     func() error { _, err := svc.Pages(); return err },
		"NewPage":   func() error { _, err := svc.NewPage(ctx, "a"); return err },
		"RenamePage": func() error {
			_, err := svc.RenamePage(ctx, "a", "b")
			return err
		},
		"SavePageIfMatch": func() error {
			_, err := svc.SavePageIfMatch(ctx, "a", "a", "x", "")
			return err
		},
		"DeletePage": func() error { return svc.DeletePage(ctx, "a", "") },
	}

	for name, call := range checks {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, perrors.ErrNotAdmitted) {
				t.Errorf("%s before admission error = %v, want ErrNotAdmitted", name, err)
			}
		})
	}
}

func TestService_AuthenticateWrongToken(t *testing.T) {
	svc, _ := newService(t)
	ok, err := svc.Authenticate("guess")
	if ok || !errors.Is(err, perrors.ErrAuthFailed) {
		t.Errorf("Authenticate(guess) = (%v, %v), want (false, ErrAuthFailed)", ok, err)
	}
}

func TestService_EditFlow(t *testing.T) {
	svc := admitted(t)
	ctx := context.Background()

	doc, err := svc.NewPage(ctx, "Intro")
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if doc.Version == "" {
		t.Fatal("NewPage should return a version")
	}

	loaded, err := svc.LoadPage("Intro")
	if err != nil || loaded.Version != doc.Version || loaded.Content != "" {
		t.Fatalf("LoadPage = (%+v, %v)", loaded, err)
	}

	v2, err := svc.SavePageIfMatch(ctx, "Intro", "", "hello", loaded.Version)
	if err != nil {
		t.Fatalf("SavePageIfMatch: %v", err)
	}

	if _, err := svc.SavePageIfMatch(ctx, "Intro", "Intro", "lost", loaded.Version); !perrors.IsConflict(err) {
		t.Errorf("stale save error = %v, want conflict", err)
	}

	v3, err := svc.SavePageIfMatch(ctx, "Intro", "Welcome", "hello again", v2)
	if err != nil {
		t.Fatalf("SavePageIfMatch(rename): %v", err)
	}

	titles, _ := svc.ListPages()
	if len(titles) != 1 || titles[0] != "Welcome" {
		t.Errorf("ListPages() = %v, want [Welcome]", titles)
	}

	v4, err := svc.RenamePage(ctx, "Welcome", "Home")
	if err != nil || v4 == v3 {
		t.Fatalf("RenamePage = (%q, %v)", v4, err)
	}

	docs, _ := svc.Pages()
	if len(docs) != 1 || docs[0].Title != "Home" || docs[0].Content != "hello again" || docs[0].Version != v4 {
		t.Errorf("Pages() = %+v", docs)
	}

	if err := svc.DeletePage(ctx, "Home", v3); !perrors.IsConflict(err) {
		t.Errorf("DeletePage with stale version = %v, want conflict", err)
	}
	if err := svc.DeletePage(ctx, "Home", v4); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}
}

func TestService_UnusableVersionsConflict(t *testing.T) {
	svc := admitted(t)
	ctx := context.Background()
	_, _ = svc.NewPage(ctx, "a")

	for _, version := range []string{"", "garbage", "1-not-a-uuid"} {
		t.Run(version, func(t *testing.T) {
			_, err := svc.SavePageIfMatch(ctx, "a", "a", "x", version)
			if !errors.Is(err, perrors.ErrVersionConflict) {
				t.Errorf("save with version %q error = %v, want ErrVersionConflict", version, err)
			}
		})
	}
}

func TestService_ClosedSession(t *testing.T) {
	svc, g := newService(t)
	_, _ = svc.Authenticate("changeme")
	g.Close()

	if _, err := svc.ListPages(); !errors.Is(err, perrors.ErrSessionClosed) {
		t.Errorf("ListPages after close error = %v, want ErrSessionClosed", err)
	}
}

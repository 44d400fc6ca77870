package page

import (
	"context"
	"errors"
	"sort"
	"testing"

	perrors "github.com/Iron-Ham/pagebook/internal/errors"
	"pgregory.net/rapid"
)

type modelPage struct {
	content string
	version VersionTag
}

// storeModel is the reference the store is checked against.
type storeModel struct {
	store *Store
	pages map[string]modelPage
	seen  map[VersionTag]bool
	stale []VersionTag
}

var titlePool = []string{"A", "B", "C", "Notes", "Überblick"}

func (m *storeModel) expectedTag(t *rapid.T, title string) VersionTag {
	cur, ok := m.pages[title]
	if ok && rapid.Bool().Draw(t, "useCurrent") {
		return cur.version
	}
	if len(m.stale) > 0 && rapid.Bool().Draw(t, "useStale") {
		return rapid.SampledFrom(m.stale).Draw(t, "stale")
	}
	return VersionTag{}
}

func (m *storeModel) issued(t *rapid.T, v VersionTag) {
	if v.IsZero() {
		t.Fatal("store issued the zero tag")
	}
	if m.seen[v] {
		t.Fatalf("store reissued tag %v", v)
	}
	m.seen[v] = true
}

func (m *storeModel) retire(v VersionTag) {
	m.stale = append(m.stale, v)
}

// want returns the error the policy should produce for a conditional write
// from old to new with expected, or nil.
func (m *storeModel) want(old, new string, expected VersionTag) error {
	cur, ok := m.pages[old]
	if !ok {
		return perrors.ErrPageNotFound
	}
	if !expected.Matches(cur.version) {
		return perrors.ErrVersionConflict
	}
	if old != new {
		if _, taken := m.pages[new]; taken {
			return perrors.ErrPageExists
		}
	}
	return nil
}

func checkErr(t *rapid.T, op string, got, want error) {
	if want == nil {
		if got != nil {
			t.Fatalf("%s: unexpected error %v", op, got)
		}
		return
	}
	if !errors.Is(got, want) {
		t.Fatalf("%s: error = %v, want %v", op, got, want)
	}
}

func TestStore_MatchesModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		m := &storeModel{
			store: NewStore(),
			pages: make(map[string]modelPage),
			seen:  make(map[VersionTag]bool),
		}

		t.Repeat(map[string]func(*rapid.T){
			"create": func(t *rapid.T) {
				title := rapid.SampledFrom(titlePool).Draw(t, "title")
				v, err := m.store.Create(ctx, title)
				if _, exists := m.pages[title]; exists {
					checkErr(t, "create", err, perrors.ErrPageExists)
					return
				}
				checkErr(t, "create", err, nil)
				m.issued(t, v)
				m.pages[title] = modelPage{version: v}
			},
			"save": func(t *rapid.T) {
				old := rapid.SampledFrom(titlePool).Draw(t, "old")
				newTitle := old
				if rapid.Bool().Draw(t, "rename") {
					newTitle = rapid.SampledFrom(titlePool).Draw(t, "new")
				}
				content := rapid.StringN(0, 16, -1).Draw(t, "content")
				expected := m.expectedTag(t, old)

				want := m.want(old, newTitle, expected)
				v, err := m.store.SaveIfMatch(ctx, old, newTitle, content, expected)
				checkErr(t, "save", err, want)
				if want != nil {
					return
				}
				m.issued(t, v)
				if v.lineage != m.pages[old].version.lineage {
					t.Fatal("save changed the page lineage")
				}
				m.retire(m.pages[old].version)
				delete(m.pages, old)
				m.pages[newTitle] = modelPage{content: content, version: v}
			},
			"rename": func(t *rapid.T) {
				old := rapid.SampledFrom(titlePool).Draw(t, "old")
				newTitle := rapid.SampledFrom(titlePool).Draw(t, "new")

				var want error
				cur, ok := m.pages[old]
				switch {
				case !ok:
					want = perrors.ErrPageNotFound
				case old != newTitle:
					if _, taken := m.pages[newTitle]; taken {
						want = perrors.ErrPageExists
					}
				}

				v, err := m.store.Rename(ctx, old, newTitle)
				checkErr(t, "rename", err, want)
				if want != nil {
					return
				}
				m.issued(t, v)
				m.retire(cur.version)
				delete(m.pages, old)
				m.pages[newTitle] = modelPage{content: cur.content, version: v}
			},
			"delete": func(t *rapid.T) {
				title := rapid.SampledFrom(titlePool).Draw(t, "title")
				expected := m.expectedTag(t, title)

				want := m.want(title, title, expected)
				err := m.store.Delete(ctx, title, expected)
				checkErr(t, "delete", err, want)
				if want != nil {
					return
				}
				m.retire(m.pages[title].version)
				delete(m.pages, title)
			},
			"": func(t *rapid.T) {
				want := make([]string, 0, len(m.pages))
				for title := range m.pages {
					want = append(want, title)
				}
				sort.Strings(want)

				got := m.store.List()
				if len(got) != len(want) {
					t.Fatalf("List() = %v, want %v", got, want)
				}
				for i := range want {
					if got[i] != want[i] {
						t.Fatalf("List() = %v, want %v", got, want)
					}
					content, v, err := m.store.Load(want[i])
					if err != nil {
						t.Fatalf("Load(%q) error = %v", want[i], err)
					}
					if p := m.pages[want[i]]; content != p.content || v != p.version {
						t.Fatalf("Load(%q) = (%q, %v), want (%q, %v)", want[i], content, v, p.content, p.version)
					}
				}
			},
		})
	})
}

func TestParseVersionTag_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := newVersionTag()
		for range rapid.IntRange(0, 50).Draw(t, "advances") {
			v = v.next()
		}
		parsed, err := ParseVersionTag(v.String())
		if err != nil {
			t.Fatalf("ParseVersionTag(%q) error = %v", v.String(), err)
		}
		if parsed != v {
			t.Fatalf("round trip changed %v to %v", v, parsed)
		}
	})
}

func TestParseVersionTag_NeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "input")
		v, err := ParseVersionTag(s)
		if err == nil && !v.IsZero() && v.String() == "" {
			t.Fatalf("parsed non-zero tag from %q with empty String()", s)
		}
	})
}

package page

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// VersionTag identifies a page's content and title as of one mutation.
//
// Tags are comparable with == and are opaque to callers: the only supported
// operations are equality, serialization through String/MarshalText, and
// parsing a string previously produced by the store. The zero VersionTag is
// never issued and never matches a live page.
type VersionTag struct {
	lineage uuid.UUID
	gen     uint64
}

// newVersionTag starts a new lineage at generation 1.
func newVersionTag() VersionTag {
	return VersionTag{lineage: uuid.New(), gen: 1}
}

// next returns the tag that follows v within the same lineage.
func (v VersionTag) next() VersionTag {
	return VersionTag{lineage: v.lineage, gen: v.gen + 1}
}

// IsZero reports whether v is the zero tag.
func (v VersionTag) IsZero() bool {
	return v.gen == 0 && v.lineage == uuid.Nil
}

// Matches reports whether v equals current. The zero tag matches nothing.
func (v VersionTag) Matches(current VersionTag) bool {
	return !v.IsZero() && v == current
}

// String returns the serialized form of v, or "" for the zero tag.
func (v VersionTag) String() string {
	if v.IsZero() {
		return ""
	}
	return strconv.FormatUint(v.gen, 10) + "-" + v.lineage.String()
}

// ParseVersionTag parses a tag previously produced by String. The empty
// string parses to the zero tag.
func ParseVersionTag(s string) (VersionTag, error) {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	if s == "" {
		return VersionTag{}, nil
	}

	genPart, lineagePart, ok := strings.Cut(s, "-")
	if !ok {
		return VersionTag{}, fmt.Errorf("malformed version tag %q", s)
	}
	gen, err := strconv.ParseUint(genPart, 10, 64)
	if err != nil || gen == 0 {
		return VersionTag{}, fmt.Errorf("malformed version tag %q: bad generation", s)
	}
	lineage, err := uuid.Parse(lineagePart)
	if err != nil || lineage == uuid.Nil {
		return VersionTag{}, fmt.Errorf("malformed version tag %q: bad lineage", s)
	}
	return VersionTag{lineage: lineage, gen: gen}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (v VersionTag) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *VersionTag) UnmarshalText(text []byte) error {
	parsed, err := ParseVersionTag(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

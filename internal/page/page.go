package page

import (
	"strings"

	"github.com/Iron-Ham/pagebook/internal/errors"
	"github.com/Iron-Ham/pagebook/internal/util"
)

// Page is a copy of a stored page. Mutating it has no effect on the store.
type Page struct {
	Title   string
	Content string
	Version VersionTag
}

// Record is the durable form of a page exchanged with a Medium.
type Record struct {
	Title   string
	Content string
	Version VersionTag

	// Drifted is set by a medium when the stored content no longer matches
	// what Version was issued for (the page was edited outside the store).
	// The store advances the tag of drifted records when it opens.
	Drifted bool
}

// MaxTitleLength bounds page titles in bytes.
const MaxTitleLength = 512

// ValidateTitle rejects titles that cannot be used as a page key.
func ValidateTitle(title string) error {
	switch {
	case strings.TrimSpace(title) == "":
		return errors.NewValidationError("title cannot be empty").WithField("title").WithValue(title)
	case strings.ContainsAny(title, "\r\n"):
		return errors.NewValidationError("title cannot contain line breaks").WithField("title").WithValue(title)
	case len(title) > MaxTitleLength:
		return errors.NewValidationError("title is too long").WithField("title").WithValue(util.Truncate(title, 35))
	}
	return nil
}

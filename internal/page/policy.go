package page

import "github.com/Iron-Ham/pagebook/internal/errors"

// The conflict policy shared by SaveIfMatch, Rename and Delete. Checks run
// in a fixed order so that callers see the same failure for the same state:
// a missing source is NotFound, then a stale version is a Conflict, then a
// taken target is AlreadyExists.

// resolveLocked returns the entry stored under title.
func (s *Store) resolveLocked(title string) (entry, error) {
	e, ok := s.pages[title]
	if !ok {
		return entry{}, errors.NewNotFoundError("page", title)
	}
	return e, nil
}

// admitWriteLocked resolves title and verifies that expected is its current
// version.
func (s *Store) admitWriteLocked(title string, expected VersionTag) (entry, error) {
	cur, err := s.resolveLocked(title)
	if err != nil {
		return entry{}, err
	}
	if !expected.Matches(cur.version) {
		return entry{}, errors.NewConflictError(title, expected.String(), cur.version.String())
	}
	return cur, nil
}

// checkTargetLocked verifies that newTitle is free or already belongs to the
// page being moved.
func (s *Store) checkTargetLocked(oldTitle, newTitle string) error {
	if newTitle == oldTitle {
		return nil
	}
	if _, taken := s.pages[newTitle]; taken {
		s.logger.Warn("move rejected: target title taken", "page", oldTitle, "target", newTitle)
		return errors.NewAlreadyExistsError("page", newTitle)
	}
	return nil
}

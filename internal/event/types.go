package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier.
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypePageCreated   = "page.created"
	TypePageSaved     = "page.saved"
	TypePageRenamed   = "page.renamed"
	TypePageDeleted   = "page.deleted"
	TypePageRefreshed = "page.refreshed"
	TypePageConflict  = "page.conflict"
)

// MutationTypes returns the event types that correspond to a change of
// durable state.
func MutationTypes() []string {
	return []string{TypePageCreated, TypePageSaved, TypePageRenamed, TypePageDeleted, TypePageRefreshed}
}

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// PageCreatedEvent is emitted when a new page is created.
type PageCreatedEvent struct {
	baseEvent
	Title   string
	Version string // serialized VersionTag
}

// NewPageCreatedEvent creates a PageCreatedEvent.
func NewPageCreatedEvent(title, version string) PageCreatedEvent {
	return PageCreatedEvent{
		baseEvent: newBaseEvent(TypePageCreated),
		Title:     title,
		Version:   version,
	}
}

// PageSavedEvent is emitted when a conditional save succeeds. PreviousTitle
// differs from Title when the save also renamed the page.
type PageSavedEvent struct {
	baseEvent
	Title         string
	PreviousTitle string
	Version       string
	Bytes         int
}

// NewPageSavedEvent creates a PageSavedEvent.
func NewPageSavedEvent(previousTitle, title, version string, bytes int) PageSavedEvent {
	return PageSavedEvent{
		baseEvent:     newBaseEvent(TypePageSaved),
		Title:         title,
		PreviousTitle: previousTitle,
		Version:       version,
		Bytes:         bytes,
	}
}

// Renamed reports whether the save moved the page to a new title.
func (e PageSavedEvent) Renamed() bool {
	return e.PreviousTitle != e.Title
}

// PageRenamedEvent is emitted when a page's title changes without a
// content write.
type PageRenamedEvent struct {
	baseEvent
	OldTitle string
	NewTitle string
	Version  string
}

// NewPageRenamedEvent creates a PageRenamedEvent.
func NewPageRenamedEvent(oldTitle, newTitle, version string) PageRenamedEvent {
	return PageRenamedEvent{
		baseEvent: newBaseEvent(TypePageRenamed),
		OldTitle:  oldTitle,
		NewTitle:  newTitle,
		Version:   version,
	}
}

// PageDeletedEvent is emitted when a page is removed.
type PageDeletedEvent struct {
	baseEvent
	Title string
}

// NewPageDeletedEvent creates a PageDeletedEvent.
func NewPageDeletedEvent(title string) PageDeletedEvent {
	return PageDeletedEvent{
		baseEvent: newBaseEvent(TypePageDeleted),
		Title:     title,
	}
}

// PageRefreshedEvent is emitted when content edited outside the store was
// adopted and the page's version advanced.
type PageRefreshedEvent struct {
	baseEvent
	Title   string
	Version string
	Created bool // the page did not exist before the refresh
}

// NewPageRefreshedEvent creates a PageRefreshedEvent.
func NewPageRefreshedEvent(title, version string, created bool) PageRefreshedEvent {
	return PageRefreshedEvent{
		baseEvent: newBaseEvent(TypePageRefreshed),
		Title:     title,
		Version:   version,
		Created:   created,
	}
}

// PageConflictEvent is emitted when a conditional write is rejected
// because the caller's version is stale.
type PageConflictEvent struct {
	baseEvent
	Title    string
	Expected string
	Current  string
}

// NewPageConflictEvent creates a PageConflictEvent.
func NewPageConflictEvent(title, expected, current string) PageConflictEvent {
	return PageConflictEvent{
		baseEvent: newBaseEvent(TypePageConflict),
		Title:     title,
		Expected:  expected,
		Current:   current,
	}
}

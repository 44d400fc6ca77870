// Package event provides a pub-sub event bus for page lifecycle
// notifications in Pagebook.
//
// The page store publishes an event after every successful mutation and
// after every rejected conditional write. Events are always published
// outside the store's lock, so handlers may call back into the store.
//
// # Event Types
//
//   - page.created   [PageCreatedEvent]
//   - page.saved     [PageSavedEvent] (content write, possibly combined with a rename)
//   - page.renamed   [PageRenamedEvent]
//   - page.deleted   [PageDeletedEvent]
//   - page.refreshed [PageRefreshedEvent] (external edit adopted)
//   - page.conflict  [PageConflictEvent] (optimistic-lock rejection)
//
// [MutationTypes] lists the types that change durable state; the git
// journal subscribes to exactly those.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypePageSaved, func(e event.Event) {
//	    saved := e.(event.PageSavedEvent)
//	    fmt.Println(saved.Title, saved.Version)
//	})
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publishing goroutine and are protected against panics.
package event

// Package page implements Pagebook's page store: a set of titled text pages
// guarded by optimistic concurrency control.
//
// Every page carries a [VersionTag]. Callers read a page with
// [Store.Load], edit the content elsewhere, and write it back with
// [Store.SaveIfMatch], passing the tag they read. If anyone else changed the
// page in between, the write fails with a conflict and the caller reloads.
// Renames keep the page's version lineage, and a save may rename the page in
// the same atomic step.
//
// # Durability
//
// A Store may be backed by a [Medium]. Each mutation is written to the
// medium while the store lock is held and applied in memory only after the
// medium succeeds, so a failed write leaves both sides unchanged.
//
// # Events
//
// When configured with a [Publisher], the store emits page events from the
// event package after every mutation and every rejected conditional write.
// Events are published after the lock is released.
package page

// Package medium provides the durable backends behind a page.Store.
//
// Three backends are available:
//
//   - [Memory]: keeps records in process memory; nothing survives a restart.
//   - [Dir]: one markdown file per page under <data_dir>/pages plus an
//     index.json that maps each title to its version and the SHA-256 of the
//     content that version was issued for. Files edited by other programs
//     are detected by hash when the directory is loaded.
//   - [SQLite]: a single pages table in a SQLite database.
//
// Every backend applies each Put, Move and Delete completely or not at all.
// [FileLock] provides cross-process exclusion for CLI commands that open a
// data directory while a server may be using it.
package medium

// Package picklist maps controlled-vocabulary display text to stable
// reference entities.
//
// A picklist entry is an (id, name) pair scoped to a vocabulary such as
// "formatPhysical" or "formatColors". Records hold a [Ref] to an entry and
// never own it: many records may share one entry and deleting a record never
// deletes the entries it points at.
//
// # Resolve and Render
//
// [Registry.Resolve] looks an entry up by exact display text and creates it on
// a miss. Repeated calls with the same text return the same [Ref]. Concurrent
// callers in one process are coalesced per (vocabulary, text) key; callers in
// different processes rely on the [Backend] rejecting duplicate names with
// [ErrConflict], after which the registry repeats the lookup.
//
// [Registry.Render] returns the display text for a reference and fails with
// [ErrDanglingReference] when the entry no longer exists.
//
// # Backends
//
//   - [MemoryBackend] - process-local, used by tests and one-shot CLI runs
//   - sqlitedb.Backend - SQLite table with a UNIQUE(vocabulary, name) index
//   - archive.PicklistBackend - DynamoDB with the store's unique-constraint table
package picklist

// Package engine implements the racelog state container.
//
// An Engine owns the whole application state: timing entries with their
// undo/redo stacks, faults, device settings and the transient UI fields.
// It is constructed once at process start and handed to every consumer.
//
// ARCHITECTURE:
//
// Snapshot Cell:
// The current AppState lives behind an atomic pointer. Readers call State()
// and always get a complete, consistent value. State is never mutated in
// place; every mutation builds a new AppState from the old one using the
// pure functions of the entries, faults and merge packages, then swaps the
// pointer.
//
// Mutation Flow:
//  1. Take the write lock and copy the current snapshot
//  2. Apply the operation to the copy
//  3. Stamp the next revision and swap the pointer
//  4. Queue a notification carrying that exact snapshot
//  5. Release the lock, mark changed slices dirty for the Persister
//  6. Drain the notification queue
//
// Re-entrancy:
// Listeners may call mutations. A nested mutation queues its notification
// behind the one being delivered instead of recursing, so listeners see
// changes strictly in order and every notification caused by a root
// mutation is delivered before that root call returns.
//
// Operations that reference an unknown id, or that a fault's deletion state
// forbids, report failure through a false or nil return. They never panic
// and never return errors.
package engine

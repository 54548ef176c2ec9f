// Package store provides SQLite-backed durable storage for racelog state slices.
//
// The store is a small key-value table: one row per persisted slice
// ("timing-entries", "settings", ...), holding the slice's JSON encoding.
// Writing one slice never rewrites another, which keeps each flush as small
// as the set of slices that actually changed.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - max_page_count: derived from the configured byte quota, if any
//
// When a write would grow the database past its quota SQLite reports
// SQLITE_FULL; the store surfaces that as ErrQuotaExceeded so callers can
// tell a full device from a broken one.
package store

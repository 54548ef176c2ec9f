// Package merge reconciles record batches produced by other devices into
// local state.
//
// Incoming records are untrusted JSON. Each one is validated against a CUE
// schema, decoded, sanitised (trimmed, NFC normalised, length capped) and
// then run through the same pipeline for entries and faults:
//
//  1. Invalid records are logged and skipped; the batch continues.
//  2. Records whose deviceId is the local device are echoes and are skipped.
//  3. Records matching a tombstone are skipped. Tombstones match either the
//     per-device form "{id}:{deviceId}" or a bare "{id}".
//  4. A record whose composite key "{id}-{deviceId}" is unknown is new.
//  5. A record whose key is known is an update candidate. Entries are
//     immutable once created, so duplicates are dropped. A fault replaces
//     the local copy only if its currentVersion is greater or its
//     markedForDeletion flag differs.
//
// Updates are applied, new records appended, and the result sorted by
// timestamp. When nothing changed the input slice itself is returned so
// callers can skip persistence and notification.
//
// Equal versions with equal deletion flags keep the local copy. Two
// conflicting records with the same version inside one batch resolve by
// batch order: the first one staged wins. There is no timestamp or device
// tie-break.
package merge

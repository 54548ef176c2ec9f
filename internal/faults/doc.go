// Package faults implements gate fault records with per-record version
// history and a two-phase deletion workflow.
//
// Like package entries, every function takes the current slice and returns a
// new one without writing to its input.
//
// Versioning: CurrentVersion starts at 1 and strictly increases with every
// edit, restore and rejected deletion. Each of those appends one FaultVersion
// holding a full content snapshot; history keeps the newest
// model.MaxVersionHistory items.
//
// Deletion: MarkForDeletion moves a fault to PendingDeletion without a
// version bump. A second party then approves (the fault is removed locally and
// an approved copy is returned for the caller to forward) or rejects (the fault
// returns to Active with a new version). While pending, edits and restores are
// refused.
package faults

package model

// Version constants for persisted and exported data.
const (
	// SchemaVersion is the current layout of persisted slices and exports.
	// 1 - entries only, no run field
	// 2 - runs, faults with version history, sync queue
	SchemaVersion = 2

	// MaxVersionHistory caps Fault.VersionHistory.
	MaxVersionHistory = 50

	// MaxUndo caps the undo stack.
	MaxUndo = 50
)

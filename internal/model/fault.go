package model

import "time"

// FaultType is the rule violation code recorded by a gate judge.
type FaultType string

const (
	FaultMissedGate     FaultType = "MG"
	FaultStraddling     FaultType = "STR"
	FaultBindingRelease FaultType = "BR"
)

// Valid reports whether t is a known fault code.
func (t FaultType) Valid() bool {
	switch t {
	case FaultMissedGate, FaultStraddling, FaultBindingRelease:
		return true
	}
	return false
}

// NoteSource records how a fault note was captured.
type NoteSource string

const (
	NoteSourceManual NoteSource = "manual"
	NoteSourceVoice  NoteSource = "voice"
)

// ChangeType classifies a fault version history item.
type ChangeType string

const (
	ChangeCreate  ChangeType = "create"
	ChangeEdit    ChangeType = "edit"
	ChangeRestore ChangeType = "restore"
)

// Fault is a recorded rule violation tied to a bib, run and gate.
//
// Lifecycle: Active -> (edit) Active -> (mark) PendingDeletion ->
// (approve) removed | (reject) Active. A fault in PendingDeletion cannot be
// edited or restored.
type Fault struct {
	ID         string    `json:"id"`
	Bib        string    `json:"bib"`
	Run        int       `json:"run"`
	GateNumber int       `json:"gateNumber"`
	FaultType  FaultType `json:"faultType"`
	Timestamp  time.Time `json:"timestamp"`
	DeviceID   string    `json:"deviceId"`
	DeviceName string    `json:"deviceName"`
	GateRange  [2]int    `json:"gateRange"`

	CurrentVersion int            `json:"currentVersion"`
	VersionHistory []FaultVersion `json:"versionHistory"`

	MarkedForDeletion           bool       `json:"markedForDeletion"`
	MarkedForDeletionAt         *time.Time `json:"markedForDeletionAt,omitempty"`
	MarkedForDeletionBy         string     `json:"markedForDeletionBy,omitempty"`
	MarkedForDeletionByDeviceID string     `json:"markedForDeletionByDeviceId,omitempty"`
	DeletionApprovedAt          *time.Time `json:"deletionApprovedAt,omitempty"`
	DeletionApprovedBy          string     `json:"deletionApprovedBy,omitempty"`

	Notes          string     `json:"notes,omitempty"`
	NotesSource    NoteSource `json:"notesSource,omitempty"`
	NotesTimestamp *time.Time `json:"notesTimestamp,omitempty"`
}

// Key returns the composite identity used across devices: "{id}-{deviceId}".
func (f Fault) Key() string {
	return RecordKey(f.ID, f.DeviceID)
}

// WithDefaults fills fields that older records may lack: run 1, version 1
// and, when the history is empty, a "create" item snapshotting f.
func (f Fault) WithDefaults() Fault {
	if f.Run == 0 {
		f.Run = 1
	}
	if f.CurrentVersion < 1 {
		f.CurrentVersion = 1
	}
	if len(f.VersionHistory) == 0 {
		f.VersionHistory = []FaultVersion{{
			Version:          f.CurrentVersion,
			Timestamp:        f.Timestamp,
			EditedBy:         f.DeviceName,
			EditedByDeviceID: f.DeviceID,
			ChangeType:       ChangeCreate,
			Data:             f.Content(),
		}}
	}
	return f
}

// PendingDeletion reports whether the fault awaits deletion approval.
func (f Fault) PendingDeletion() bool {
	return f.MarkedForDeletion
}

// FaultContent is the content of a fault captured in a history snapshot.
// Versioning, deletion and history fields are excluded.
type FaultContent struct {
	ID             string     `json:"id"`
	Bib            string     `json:"bib"`
	Run            int        `json:"run"`
	GateNumber     int        `json:"gateNumber"`
	FaultType      FaultType  `json:"faultType"`
	Timestamp      time.Time  `json:"timestamp"`
	DeviceID       string     `json:"deviceId"`
	DeviceName     string     `json:"deviceName"`
	GateRange      [2]int     `json:"gateRange"`
	Notes          string     `json:"notes,omitempty"`
	NotesSource    NoteSource `json:"notesSource,omitempty"`
	NotesTimestamp *time.Time `json:"notesTimestamp,omitempty"`
}

// Content returns the snapshot form of the fault.
func (f Fault) Content() FaultContent {
	return FaultContent{
		ID:             f.ID,
		Bib:            f.Bib,
		Run:            f.Run,
		GateNumber:     f.GateNumber,
		FaultType:      f.FaultType,
		Timestamp:      f.Timestamp,
		DeviceID:       f.DeviceID,
		DeviceName:     f.DeviceName,
		GateRange:      f.GateRange,
		Notes:          f.Notes,
		NotesSource:    f.NotesSource,
		NotesTimestamp: f.NotesTimestamp,
	}
}

// FaultVersion is one immutable item of a fault's version history.
type FaultVersion struct {
	Version           int          `json:"version"`
	Timestamp         time.Time    `json:"timestamp"`
	EditedBy          string       `json:"editedBy"`
	EditedByDeviceID  string       `json:"editedByDeviceId"`
	ChangeType        ChangeType   `json:"changeType"`
	Data              FaultContent `json:"data"`
	ChangeDescription string       `json:"changeDescription,omitempty"`
}

// Editor identifies who performed a change and from which device.
type Editor struct {
	Name     string
	DeviceID string
}

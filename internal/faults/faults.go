package faults

import (
	"fmt"
	"slices"
	"time"

	"github.com/roach88/racelog/internal/model"
)

// Input holds the fields supplied when a fault is first recorded.
type Input struct {
	ID             string
	Bib            string
	Run            int
	GateNumber     int
	FaultType      model.FaultType
	Timestamp      time.Time
	GateRange      [2]int
	Notes          string
	NotesSource    model.NoteSource
	NotesTimestamp *time.Time
}

// Patch lists the editable fault fields. Nil fields are kept.
type Patch struct {
	Bib            *string
	Run            *int
	GateNumber     *int
	FaultType      *model.FaultType
	Notes          *string
	NotesSource    *model.NoteSource
	NotesTimestamp *time.Time
}

// Apply returns f with the non-nil patch fields applied.
func (p Patch) Apply(f model.Fault) model.Fault {
	if p.Bib != nil {
		f.Bib = *p.Bib
	}
	if p.Run != nil {
		f.Run = *p.Run
	}
	if p.GateNumber != nil {
		f.GateNumber = *p.GateNumber
	}
	if p.FaultType != nil {
		f.FaultType = *p.FaultType
	}
	if p.Notes != nil {
		f.Notes = *p.Notes
	}
	if p.NotesSource != nil {
		f.NotesSource = *p.NotesSource
	}
	if p.NotesTimestamp != nil {
		t := *p.NotesTimestamp
		f.NotesTimestamp = &t
	}
	return f
}

// Add records a new fault at version 1 with a single "create" history item.
func Add(faults []model.Fault, in Input, editor model.Editor, now time.Time) ([]model.Fault, model.Fault) {
	run := in.Run
	if run == 0 {
		run = 1
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = now
	}
	f := model.Fault{
		ID:             in.ID,
		Bib:            in.Bib,
		Run:            run,
		GateNumber:     in.GateNumber,
		FaultType:      in.FaultType,
		Timestamp:      ts,
		DeviceID:       editor.DeviceID,
		DeviceName:     editor.Name,
		GateRange:      in.GateRange,
		CurrentVersion: 1,
		Notes:          in.Notes,
		NotesSource:    in.NotesSource,
		NotesTimestamp: in.NotesTimestamp,
	}
	f.VersionHistory = []model.FaultVersion{{
		Version:          1,
		Timestamp:        now,
		EditedBy:         editor.Name,
		EditedByDeviceID: editor.DeviceID,
		ChangeType:       model.ChangeCreate,
		Data:             f.Content(),
	}}
	return append(slices.Clip(faults), f), f
}

// Update applies p without touching version or history. It is meant for
// trusted internal corrections only. Returns false if the id is unknown.
func Update(faults []model.Fault, id string, p Patch) ([]model.Fault, bool) {
	i := index(faults, id)
	if i < 0 {
		return faults, false
	}
	return with(faults, i, p.Apply(faults[i])), true
}

// UpdateWithHistory applies p as a versioned edit. Returns false if the id is
// unknown or the fault is pending deletion.
func UpdateWithHistory(faults []model.Fault, id string, p Patch, editor model.Editor, description string, now time.Time) ([]model.Fault, bool) {
	i := index(faults, id)
	if i < 0 || faults[i].MarkedForDeletion {
		return faults, false
	}
	f := commit(p.Apply(faults[i]), model.ChangeEdit, editor, description, now)
	return with(faults, i, f), true
}

// RestoreVersion overwrites the fault content with the snapshot stored for
// version, then records a "restore" item under a new version number.
// Returns false if the id is unknown, the fault is pending deletion, or the
// version is not in its history.
func RestoreVersion(faults []model.Fault, id string, version int, editor model.Editor, now time.Time) ([]model.Fault, bool) {
	i := index(faults, id)
	if i < 0 || faults[i].MarkedForDeletion {
		return faults, false
	}
	j := slices.IndexFunc(faults[i].VersionHistory, func(v model.FaultVersion) bool {
		return v.Version == version
	})
	if j < 0 {
		return faults, false
	}

	f := restore(faults[i], faults[i].VersionHistory[j].Data)
	f = commit(f, model.ChangeRestore, editor, fmt.Sprintf("Restored to version %d", version), now)
	return with(faults, i, f), true
}

// MarkForDeletion moves the fault to PendingDeletion. The version is not
// bumped. Returns false if the id is unknown or the fault is already pending.
func MarkForDeletion(faults []model.Fault, id string, actor model.Editor, now time.Time) ([]model.Fault, bool) {
	i := index(faults, id)
	if i < 0 || faults[i].MarkedForDeletion {
		return faults, false
	}
	f := faults[i]
	at := now
	f.MarkedForDeletion = true
	f.MarkedForDeletionAt = &at
	f.MarkedForDeletionBy = actor.Name
	f.MarkedForDeletionByDeviceID = actor.DeviceID
	return with(faults, i, f), true
}

// ApproveDeletion removes a pending fault and returns a copy stamped with the
// approval, for the caller to forward to other devices. Returns nil if the id
// is unknown or the fault is not pending.
func ApproveDeletion(faults []model.Fault, id string, approver string, now time.Time) ([]model.Fault, *model.Fault) {
	i := index(faults, id)
	if i < 0 || !faults[i].MarkedForDeletion {
		return faults, nil
	}
	approved := faults[i]
	approved.VersionHistory = slices.Clone(approved.VersionHistory)
	at := now
	approved.DeletionApprovedAt = &at
	approved.DeletionApprovedBy = approver
	return slices.Delete(slices.Clone(faults), i, i+1), &approved
}

// RejectDeletion returns a pending fault to Active under a new version.
// Returns false if the id is unknown or the fault is not pending.
func RejectDeletion(faults []model.Fault, id string, actor model.Editor, now time.Time) ([]model.Fault, bool) {
	i := index(faults, id)
	if i < 0 || !faults[i].MarkedForDeletion {
		return faults, false
	}
	f := faults[i]
	f.MarkedForDeletion = false
	f.MarkedForDeletionAt = nil
	f.MarkedForDeletionBy = ""
	f.MarkedForDeletionByDeviceID = ""
	f = commit(f, model.ChangeEdit, actor, fmt.Sprintf("Deletion rejected by %s", actor.Name), now)
	return with(faults, i, f), true
}

// Remove deletes a fault outright, bypassing the approval workflow.
// Returns false if the id is unknown.
func Remove(faults []model.Fault, id string) ([]model.Fault, bool) {
	i := index(faults, id)
	if i < 0 {
		return faults, false
	}
	return slices.Delete(slices.Clone(faults), i, i+1), true
}

// PendingDeletions returns the faults awaiting deletion approval.
func PendingDeletions(faults []model.Fault) []model.Fault {
	var out []model.Fault
	for _, f := range faults {
		if f.MarkedForDeletion {
			out = append(out, f)
		}
	}
	return out
}

// ForBib returns the faults recorded for a bib in a run.
func ForBib(faults []model.Fault, bib string, run int) []model.Fault {
	var out []model.Fault
	for _, f := range faults {
		if f.Bib == bib && f.Run == run {
			out = append(out, f)
		}
	}
	return out
}

// Find returns the fault with the given id.
func Find(faults []model.Fault, id string) (model.Fault, bool) {
	i := index(faults, id)
	if i < 0 {
		return model.Fault{}, false
	}
	return faults[i], true
}

func index(faults []model.Fault, id string) int {
	return slices.IndexFunc(faults, func(f model.Fault) bool { return f.ID == id })
}

// with returns a copy of faults with position i replaced by f.
func with(faults []model.Fault, i int, f model.Fault) []model.Fault {
	out := slices.Clone(faults)
	out[i] = f
	return out
}

// commit bumps the version and appends a history item snapshotting f.
func commit(f model.Fault, change model.ChangeType, editor model.Editor, description string, now time.Time) model.Fault {
	f.CurrentVersion++
	f.VersionHistory = appendVersion(f.VersionHistory, model.FaultVersion{
		Version:           f.CurrentVersion,
		Timestamp:         now,
		EditedBy:          editor.Name,
		EditedByDeviceID:  editor.DeviceID,
		ChangeType:        change,
		Data:              f.Content(),
		ChangeDescription: description,
	})
	return f
}

// appendVersion returns a new history with v appended, keeping the newest
// model.MaxVersionHistory items.
func appendVersion(history []model.FaultVersion, v model.FaultVersion) []model.FaultVersion {
	if over := len(history) + 1 - model.MaxVersionHistory; over > 0 {
		history = history[over:]
	}
	out := make([]model.FaultVersion, 0, len(history)+1)
	out = append(out, history...)
	return append(out, v)
}

// restore copies every content field of c except the record identity
// (ID, DeviceID) onto f, so f.Content() equals c afterwards.
func restore(f model.Fault, c model.FaultContent) model.Fault {
	f.Bib = c.Bib
	f.Run = c.Run
	f.GateNumber = c.GateNumber
	f.FaultType = c.FaultType
	f.Timestamp = c.Timestamp
	f.DeviceName = c.DeviceName
	f.GateRange = c.GateRange
	f.Notes = c.Notes
	f.NotesSource = c.NotesSource
	f.NotesTimestamp = c.NotesTimestamp
	return f
}

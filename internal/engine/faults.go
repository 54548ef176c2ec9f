package engine

import (
	"strings"

	"github.com/roach88/racelog/internal/faults"
	"github.com/roach88/racelog/internal/model"
	"github.com/roach88/racelog/internal/persistence"
)

var faultSlices = []persistence.Slice{persistence.SliceFaults}

// AddFault records a fault at version 1 on behalf of this device. An empty
// Input.ID is replaced with a fresh one and a zero Run with the selected
// run. Returns false, and leaves state unchanged, if the fault is invalid or
// its id is taken.
func (e *Engine) AddFault(in faults.Input) (model.Fault, bool) {
	var added model.Fault
	ok := e.apply("add_fault", func(s *AppState) ([]persistence.Slice, bool) {
		if in.ID == "" {
			in.ID = e.ids.Generate()
		}
		if in.Run == 0 {
			in.Run = s.SelectedRun
		}
		in.Bib = strings.TrimSpace(in.Bib)
		if _, taken := faults.Find(s.Faults, in.ID); taken {
			e.logger.Debug("rejected fault", "id", in.ID, "error", "duplicate id")
			return nil, false
		}
		next, f := faults.Add(s.Faults, in, s.editor(), e.now())
		if err := f.Validate(); err != nil {
			e.logger.Debug("rejected fault", "id", in.ID, "error", err)
			return nil, false
		}
		s.Faults, added = next, f
		return faultSlices, true
	})
	if !ok {
		return model.Fault{}, false
	}
	return added, true
}

// UpdateFault applies p without versioning. Returns false if the id is
// unknown or the patched fault would be invalid.
func (e *Engine) UpdateFault(id string, p faults.Patch) bool {
	return e.modifyFaults("update_fault", func(s *AppState) ([]model.Fault, bool) {
		if !e.validFaultPatch(s.Faults, id, p) {
			return nil, false
		}
		return faults.Update(s.Faults, id, p)
	})
}

// UpdateFaultWithHistory applies p as a new version edited by this device.
// Returns false if the id is unknown, the fault is pending deletion, or the
// patched fault would be invalid.
func (e *Engine) UpdateFaultWithHistory(id string, p faults.Patch, description string) bool {
	return e.modifyFaults("update_fault_versioned", func(s *AppState) ([]model.Fault, bool) {
		if !e.validFaultPatch(s.Faults, id, p) {
			return nil, false
		}
		return faults.UpdateWithHistory(s.Faults, id, p, s.editor(), description, e.now())
	})
}

// validFaultPatch reports whether p leaves the fault with the given id
// valid. Unknown ids pass; the faults package reports those.
func (e *Engine) validFaultPatch(list []model.Fault, id string, p faults.Patch) bool {
	f, ok := faults.Find(list, id)
	if !ok {
		return true
	}
	if err := p.Apply(f).Validate(); err != nil {
		e.logger.Debug("rejected fault update", "id", id, "error", err)
		return false
	}
	return true
}

// RestoreFaultVersion brings back the content of an earlier version under a
// new version number. Returns false if the id or version is unknown, or the
// fault is pending deletion.
func (e *Engine) RestoreFaultVersion(id string, version int) bool {
	return e.modifyFaults("restore_fault", func(s *AppState) ([]model.Fault, bool) {
		return faults.RestoreVersion(s.Faults, id, version, s.editor(), e.now())
	})
}

// MarkFaultForDeletion asks for a fault to be deleted; another party must
// approve. Returns false if the id is unknown or already pending.
func (e *Engine) MarkFaultForDeletion(id string) bool {
	return e.modifyFaults("mark_fault_deletion", func(s *AppState) ([]model.Fault, bool) {
		return faults.MarkForDeletion(s.Faults, id, s.editor(), e.now())
	})
}

// ApproveFaultDeletion removes a pending fault and returns the approved
// copy for forwarding, or nil if the fault is unknown or not pending.
func (e *Engine) ApproveFaultDeletion(id string) *model.Fault {
	var approved *model.Fault
	e.apply("approve_fault_deletion", func(s *AppState) ([]persistence.Slice, bool) {
		s.Faults, approved = faults.ApproveDeletion(s.Faults, id, s.DeviceName, e.now())
		return faultSlices, approved != nil
	})
	return approved
}

// RejectFaultDeletion returns a pending fault to active under a new
// version. Returns false if the id is unknown or the fault is not pending.
func (e *Engine) RejectFaultDeletion(id string) bool {
	return e.modifyFaults("reject_fault_deletion", func(s *AppState) ([]model.Fault, bool) {
		return faults.RejectDeletion(s.Faults, id, s.editor(), e.now())
	})
}

// RemoveFault deletes a fault without the approval workflow. Returns false
// if the id is unknown.
func (e *Engine) RemoveFault(id string) bool {
	return e.modifyFaults("remove_fault", func(s *AppState) ([]model.Fault, bool) {
		return faults.Remove(s.Faults, id)
	})
}

// PendingDeletions returns the faults awaiting deletion approval.
func (e *Engine) PendingDeletions() []model.Fault {
	return faults.PendingDeletions(e.State().Faults)
}

// FaultsForBib returns the faults recorded against a bib in a run.
func (e *Engine) FaultsForBib(bib string, run int) []model.Fault {
	return FaultsForBib(e.State(), bib, run)
}

func (e *Engine) modifyFaults(op string, fn func(s *AppState) ([]model.Fault, bool)) bool {
	return e.apply(op, func(s *AppState) ([]persistence.Slice, bool) {
		next, ok := fn(s)
		if !ok {
			return nil, false
		}
		s.Faults = next
		return faultSlices, true
	})
}

package engine

import (
	"github.com/roach88/racelog/internal/merge"
	"github.com/roach88/racelog/internal/model"
	"github.com/roach88/racelog/internal/persistence"
)

// MergeCloudEntries merges entries from other devices. Records produced by
// this device and tombstoned records are skipped. Nothing is published when
// the merge changes nothing.
func (e *Engine) MergeCloudEntries(b merge.Batch) merge.Result {
	var res merge.Result
	e.apply("merge_cloud_entries", func(s *AppState) ([]persistence.Slice, bool) {
		var out []model.Entry
		out, res = e.merger.Entries(s.Entries, b, s.DeviceID)
		if res.Changed() == 0 {
			return nil, false
		}
		return e.setMergedEntries(s, out), true
	})
	e.recordMerge("entry", res)
	return res
}

// MergeFaultsFromCloud merges faults from other devices. A known fault is
// replaced only by a newer version or a changed deletion flag.
func (e *Engine) MergeFaultsFromCloud(b merge.Batch) merge.Result {
	var res merge.Result
	e.apply("merge_cloud_faults", func(s *AppState) ([]persistence.Slice, bool) {
		var out []model.Fault
		out, res = e.merger.Faults(s.Faults, b, s.DeviceID)
		if res.Changed() == 0 {
			return nil, false
		}
		s.Faults = out
		return faultSlices, true
	})
	e.recordMerge("fault", res)
	return res
}

// RemoveDeletedCloudEntries drops local entries matching the tombstones,
// given as "{id}:{deviceId}" or a bare id. Returns the number removed.
func (e *Engine) RemoveDeletedCloudEntries(tombstones []string) int {
	var removed int
	e.apply("remove_cloud_entries", func(s *AppState) ([]persistence.Slice, bool) {
		var out []model.Entry
		out, removed = merge.RemoveEntries(s.Entries, tombstones)
		if removed == 0 {
			return nil, false
		}
		return e.setMergedEntries(s, out), true
	})
	return removed
}

// RemoveDeletedCloudFaults drops local faults matching the tombstones.
// Returns the number removed.
func (e *Engine) RemoveDeletedCloudFaults(tombstones []string) int {
	var removed int
	e.apply("remove_cloud_faults", func(s *AppState) ([]persistence.Slice, bool) {
		var out []model.Fault
		out, removed = merge.RemoveFaults(s.Faults, tombstones)
		if removed == 0 {
			return nil, false
		}
		s.Faults = out
		return faultSlices, true
	})
	return removed
}

// setMergedEntries installs entries changed by a merge or tombstone pass.
// Undo history is left alone: remote changes are not undoable.
func (e *Engine) setMergedEntries(s *AppState, out []model.Entry) []persistence.Slice {
	prev := s.Entries
	s.Entries = out
	dirty := []persistence.Slice{persistence.SliceEntries}
	if q, changed := syncQueueFor(prev, out, s.SyncQueue, false, s.DeviceID); changed {
		s.SyncQueue = q
		dirty = append(dirty, persistence.SliceSyncQueue)
	}
	return dirty
}

func (e *Engine) recordMerge(kind string, res merge.Result) {
	e.metrics.Merged(kind, "added", res.Added)
	e.metrics.Merged(kind, "updated", res.Updated)
	e.metrics.Merged(kind, "unchanged", res.Unchanged)
	e.metrics.Merged(kind, "echo", res.Echoes)
	e.metrics.Merged(kind, "tombstoned", res.Tombstoned)
	e.metrics.Merged(kind, "invalid", res.Invalid)
}

package engine

import (
	"slices"
	"strings"
	"time"

	"github.com/roach88/racelog/internal/entries"
	"github.com/roach88/racelog/internal/model"
	"github.com/roach88/racelog/internal/persistence"
)

// EntryInput is what a caller supplies to record a timing entry. Empty
// fields are filled in: a fresh ID, the current time, the selected point
// and run, status ok, and this device's identity.
type EntryInput struct {
	ID        string
	Bib       string
	Point     model.Point
	Run       int
	Timestamp time.Time
	Status    model.Status
	Photo     string
}

// AddEntry records a new timing entry and returns it. With sync enabled,
// the entry is also queued for upload. Returns false, and leaves state
// unchanged, if the filled-in entry is invalid or its id is taken.
func (e *Engine) AddEntry(in EntryInput) (model.Entry, bool) {
	var added model.Entry
	ok := e.apply("add_entry", func(s *AppState) ([]persistence.Slice, bool) {
		now := e.now()
		added = model.Entry{
			ID:         in.ID,
			Bib:        strings.TrimSpace(in.Bib),
			Point:      in.Point,
			Run:        in.Run,
			Timestamp:  in.Timestamp,
			Status:     in.Status,
			DeviceID:   s.DeviceID,
			DeviceName: s.DeviceName,
			Photo:      in.Photo,
		}
		if added.Point == "" {
			added.Point = s.SelectedPoint
		}
		if added.Run == 0 {
			added.Run = s.SelectedRun
		}
		added = added.WithDefaults()
		if added.ID == "" {
			added.ID = e.ids.Generate()
		}
		if added.Timestamp.IsZero() {
			added.Timestamp = now
		}
		if err := added.Validate(); err != nil {
			e.logger.Debug("rejected entry", "id", added.ID, "error", err)
			return nil, false
		}
		if _, taken := entries.Find(s.Entries, added.ID); taken {
			e.logger.Debug("rejected entry", "id", added.ID, "error", "duplicate id")
			return nil, false
		}
		return e.applyEntries(s, entries.Add(s.entryState(), added, now)), true
	})
	if !ok {
		return model.Entry{}, false
	}
	return added, true
}

// DeleteEntry removes one entry. Returns false if no entry has that id.
func (e *Engine) DeleteEntry(id string) bool {
	return e.apply("delete_entry", func(s *AppState) ([]persistence.Slice, bool) {
		next, ok := entries.Delete(s.entryState(), id, e.now())
		if !ok {
			return nil, false
		}
		return e.applyEntries(s, next), true
	})
}

// DeleteMultiple removes every entry whose id is listed. Unknown ids are
// ignored; returns false if none matched.
func (e *Engine) DeleteMultiple(ids []string) bool {
	return e.apply("delete_multiple", func(s *AppState) ([]persistence.Slice, bool) {
		next, ok := entries.DeleteMultiple(s.entryState(), ids, e.now())
		if !ok {
			return nil, false
		}
		return e.applyEntries(s, next), true
	})
}

// ClearAll removes every entry. Returns false if there were none.
func (e *Engine) ClearAll() bool {
	return e.apply("clear_all", func(s *AppState) ([]persistence.Slice, bool) {
		next, ok := entries.ClearAll(s.entryState(), e.now())
		if !ok {
			return nil, false
		}
		return e.applyEntries(s, next), true
	})
}

// UpdateEntry applies p to an entry. Returns false if no entry has that id
// or the patched entry would be invalid.
func (e *Engine) UpdateEntry(id string, p entries.Patch) bool {
	return e.apply("update_entry", func(s *AppState) ([]persistence.Slice, bool) {
		if old, found := entries.Find(s.Entries, id); found {
			if err := p.Apply(old).Validate(); err != nil {
				e.logger.Debug("rejected entry update", "id", id, "error", err)
				return nil, false
			}
		}
		next, ok := entries.Update(s.entryState(), id, p, e.now())
		if !ok {
			return nil, false
		}
		return e.applyEntries(s, next), true
	})
}

// Undo reverts the latest entry action and returns it, or nil if there was
// nothing to undo.
func (e *Engine) Undo() entries.Action {
	var a entries.Action
	e.apply("undo", func(s *AppState) ([]persistence.Slice, bool) {
		var next entries.State
		next, a = entries.Undo(s.entryState())
		if a == nil {
			return nil, false
		}
		return e.applyEntries(s, next), true
	})
	return a
}

// Redo re-applies the latest undone action and returns it, or nil.
func (e *Engine) Redo() entries.Action {
	var a entries.Action
	e.apply("redo", func(s *AppState) ([]persistence.Slice, bool) {
		var next entries.State
		next, a = entries.Redo(s.entryState())
		if a == nil {
			return nil, false
		}
		return e.applyEntries(s, next), true
	})
	return a
}

// CanUndo reports whether Undo would do anything.
func (e *Engine) CanUndo() bool { return CanUndo(e.State()) }

// CanRedo reports whether Redo would do anything.
func (e *Engine) CanRedo() bool { return CanRedo(e.State()) }

// PeekUndo returns the action Undo would revert, or nil.
func (e *Engine) PeekUndo() entries.Action {
	s := e.State()
	return entries.Peek(s.entryState())
}

// applyEntries installs next into s and brings the sync queue in line
// with the new entry list.
func (e *Engine) applyEntries(s *AppState, next entries.State) []persistence.Slice {
	prev := s.Entries
	s.setEntryState(next)
	dirty := []persistence.Slice{persistence.SliceEntries}
	if q, changed := syncQueueFor(prev, s.Entries, s.SyncQueue, s.Settings.Sync, s.DeviceID); changed {
		s.SyncQueue = q
		dirty = append(dirty, persistence.SliceSyncQueue)
	}
	return dirty
}

// syncQueueFor returns the queue after the entry list changed from prev to
// next. Items for entries that are gone are dropped; items for edited
// entries carry the new content. With enqueue set, local entries that
// appeared and have not been synced are queued.
func syncQueueFor(prev, next []model.Entry, queue []model.SyncQueueItem, enqueue bool, deviceID string) ([]model.SyncQueueItem, bool) {
	byID := make(map[string]model.Entry, len(next))
	for _, en := range next {
		byID[en.ID] = en
	}

	changed := false
	out := make([]model.SyncQueueItem, 0, len(queue))
	queued := make(map[string]struct{}, len(queue))
	for _, item := range queue {
		cur, ok := byID[item.Entry.ID]
		if !ok {
			changed = true
			continue
		}
		if cur != item.Entry {
			item.Entry = cur
			changed = true
		}
		queued[cur.ID] = struct{}{}
		out = append(out, item)
	}

	if enqueue {
		had := make(map[string]struct{}, len(prev))
		for _, en := range prev {
			had[en.ID] = struct{}{}
		}
		for _, en := range next {
			if _, ok := had[en.ID]; ok {
				continue
			}
			if _, ok := queued[en.ID]; ok {
				continue
			}
			if en.DeviceID != deviceID || en.SyncedAt != nil {
				continue
			}
			out = append(out, model.SyncQueueItem{Entry: en})
			queued[en.ID] = struct{}{}
			changed = true
		}
	}

	if !changed {
		return queue, false
	}
	return out, true
}

// AddToSyncQueue queues e for upload, replacing any item for the same id.
func (e *Engine) AddToSyncQueue(en model.Entry) {
	e.apply("sync_enqueue", func(s *AppState) ([]persistence.Slice, bool) {
		q := slices.DeleteFunc(slices.Clone(s.SyncQueue), func(it model.SyncQueueItem) bool {
			return it.Entry.ID == en.ID
		})
		s.SyncQueue = append(q, model.SyncQueueItem{Entry: en})
		return []persistence.Slice{persistence.SliceSyncQueue}, true
	})
}

// RemoveFromSyncQueue drops the item for an entry id. Returns false if the
// id was not queued.
func (e *Engine) RemoveFromSyncQueue(id string) bool {
	return e.apply("sync_dequeue", func(s *AppState) ([]persistence.Slice, bool) {
		q := slices.DeleteFunc(slices.Clone(s.SyncQueue), func(it model.SyncQueueItem) bool {
			return it.Entry.ID == id
		})
		if len(q) == len(s.SyncQueue) {
			return nil, false
		}
		s.SyncQueue = q
		return []persistence.Slice{persistence.SliceSyncQueue}, true
	})
}

// UpdateSyncQueueItem records an upload attempt for a queued entry.
// Returns false if the id is not queued.
func (e *Engine) UpdateSyncQueueItem(id string, retryCount int, lastAttempt time.Time, errMsg string) bool {
	return e.apply("sync_update", func(s *AppState) ([]persistence.Slice, bool) {
		i := slices.IndexFunc(s.SyncQueue, func(it model.SyncQueueItem) bool { return it.Entry.ID == id })
		if i < 0 {
			return nil, false
		}
		q := slices.Clone(s.SyncQueue)
		q[i].RetryCount = retryCount
		q[i].LastAttempt = &lastAttempt
		q[i].Error = errMsg
		s.SyncQueue = q
		return []persistence.Slice{persistence.SliceSyncQueue}, true
	})
}

// MarkEntrySynced stamps an entry as acknowledged by the backend and drops
// it from the queue. Returns false if no entry has that id.
func (e *Engine) MarkEntrySynced(id string, at time.Time) bool {
	return e.apply("sync_ack", func(s *AppState) ([]persistence.Slice, bool) {
		i := slices.IndexFunc(s.Entries, func(en model.Entry) bool { return en.ID == id })
		if i < 0 {
			return nil, false
		}
		ents := slices.Clone(s.Entries)
		ents[i].SyncedAt = &at
		s.Entries = ents
		dirty := []persistence.Slice{persistence.SliceEntries}
		q := slices.DeleteFunc(slices.Clone(s.SyncQueue), func(it model.SyncQueueItem) bool {
			return it.Entry.ID == id
		})
		if len(q) != len(s.SyncQueue) {
			s.SyncQueue = q
			dirty = append(dirty, persistence.SliceSyncQueue)
		}
		return dirty, true
	})
}

// ClearSyncQueue drops every queued item. Returns false if it was empty.
func (e *Engine) ClearSyncQueue() bool {
	return e.apply("sync_clear", func(s *AppState) ([]persistence.Slice, bool) {
		if len(s.SyncQueue) == 0 {
			return nil, false
		}
		s.SyncQueue = []model.SyncQueueItem{}
		return []persistence.Slice{persistence.SliceSyncQueue}, true
	})
}

// SyncQueue returns the queued items.
func (e *Engine) SyncQueue() []model.SyncQueueItem {
	return e.State().SyncQueue
}

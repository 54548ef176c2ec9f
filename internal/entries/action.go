package entries

import (
	"time"

	"github.com/roach88/racelog/internal/model"
)

// Kind discriminates undo actions.
type Kind string

const (
	KindAdd            Kind = "ADD_ENTRY"
	KindDelete         Kind = "DELETE_ENTRY"
	KindDeleteMultiple Kind = "DELETE_MULTIPLE"
	KindClearAll       Kind = "CLEAR_ALL"
	KindUpdate         Kind = "UPDATE_ENTRY"
)

// Action is a reversible entry operation recorded on the undo stack.
// Only the types in this package implement it.
type Action interface {
	Kind() Kind
	// At is when the action was performed.
	At() time.Time

	revert(entries []model.Entry) []model.Entry
	reapply(entries []model.Entry) []model.Entry
}

// AddAction records an appended entry.
type AddAction struct {
	Entry     model.Entry
	Timestamp time.Time
}

func (a AddAction) Kind() Kind    { return KindAdd }
func (a AddAction) At() time.Time { return a.Timestamp }

func (a AddAction) revert(entries []model.Entry) []model.Entry {
	return without(entries, idSet(a.Entry))
}

func (a AddAction) reapply(entries []model.Entry) []model.Entry {
	return reinsert(entries, a.Entry)
}

// DeleteAction records a single removed entry.
type DeleteAction struct {
	Entry     model.Entry
	Timestamp time.Time
}

func (a DeleteAction) Kind() Kind    { return KindDelete }
func (a DeleteAction) At() time.Time { return a.Timestamp }

func (a DeleteAction) revert(entries []model.Entry) []model.Entry {
	return reinsert(entries, a.Entry)
}

func (a DeleteAction) reapply(entries []model.Entry) []model.Entry {
	return without(entries, idSet(a.Entry))
}

// DeleteMultipleAction records the entries actually removed by a bulk delete.
type DeleteMultipleAction struct {
	Entries   []model.Entry
	Timestamp time.Time
}

func (a DeleteMultipleAction) Kind() Kind    { return KindDeleteMultiple }
func (a DeleteMultipleAction) At() time.Time { return a.Timestamp }

func (a DeleteMultipleAction) revert(entries []model.Entry) []model.Entry {
	return reinsert(entries, a.Entries...)
}

func (a DeleteMultipleAction) reapply(entries []model.Entry) []model.Entry {
	return without(entries, idSet(a.Entries...))
}

// ClearAllAction records the full list that was cleared.
type ClearAllAction struct {
	Entries   []model.Entry
	Timestamp time.Time
}

func (a ClearAllAction) Kind() Kind    { return KindClearAll }
func (a ClearAllAction) At() time.Time { return a.Timestamp }

func (a ClearAllAction) revert(entries []model.Entry) []model.Entry {
	return reinsert(entries, a.Entries...)
}

func (a ClearAllAction) reapply(entries []model.Entry) []model.Entry {
	return without(entries, idSet(a.Entries...))
}

// UpdateAction records both sides of an edit so it can be undone and redone.
type UpdateAction struct {
	Old       model.Entry
	New       model.Entry
	Timestamp time.Time
}

func (a UpdateAction) Kind() Kind    { return KindUpdate }
func (a UpdateAction) At() time.Time { return a.Timestamp }

func (a UpdateAction) revert(entries []model.Entry) []model.Entry {
	return replace(entries, a.Old)
}

func (a UpdateAction) reapply(entries []model.Entry) []model.Entry {
	return replace(entries, a.New)
}

// Restored returns the entries an undo of a brings back, if any.
func Restored(a Action) []model.Entry {
	switch a := a.(type) {
	case DeleteAction:
		return []model.Entry{a.Entry}
	case DeleteMultipleAction:
		return a.Entries
	case ClearAllAction:
		return a.Entries
	}
	return nil
}

// Removed returns the entries a forward application of a takes away, if any.
func Removed(a Action) []model.Entry {
	switch a := a.(type) {
	case DeleteAction:
		return []model.Entry{a.Entry}
	case DeleteMultipleAction:
		return a.Entries
	case ClearAllAction:
		return a.Entries
	}
	return nil
}

func idSet(entries ...model.Entry) map[string]struct{} {
	ids := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		ids[e.ID] = struct{}{}
	}
	return ids
}

// without returns a new slice holding the entries whose id is not in ids.
func without(entries []model.Entry, ids map[string]struct{}) []model.Entry {
	out := make([]model.Entry, 0, len(entries))
	for _, e := range entries {
		if _, drop := ids[e.ID]; !drop {
			out = append(out, e)
		}
	}
	return out
}

// reinsert returns a new slice with add appended, sorted by timestamp.
func reinsert(entries []model.Entry, add ...model.Entry) []model.Entry {
	out := make([]model.Entry, 0, len(entries)+len(add))
	out = append(out, entries...)
	out = append(out, add...)
	model.SortEntries(out)
	return out
}

// replace returns a new slice with the entry sharing e's id swapped for e.
func replace(entries []model.Entry, e model.Entry) []model.Entry {
	out := make([]model.Entry, len(entries))
	copy(out, entries)
	for i := range out {
		if out[i].ID == e.ID {
			out[i] = e
		}
	}
	return out
}

package entries

import (
	"slices"
	"time"

	"github.com/roach88/racelog/internal/model"
)

// State is the triple every entry operation reads and produces.
type State struct {
	Entries []model.Entry
	Undo    []Action
	Redo    []Action
}

// Patch lists the entry fields an update may change. Nil fields are kept.
type Patch struct {
	Bib       *string
	Point     *model.Point
	Run       *int
	Timestamp *time.Time
	Status    *model.Status
	Photo     *string
}

// Apply returns e with the non-nil patch fields applied.
func (p Patch) Apply(e model.Entry) model.Entry {
	if p.Bib != nil {
		e.Bib = *p.Bib
	}
	if p.Point != nil {
		e.Point = *p.Point
	}
	if p.Run != nil {
		e.Run = *p.Run
	}
	if p.Timestamp != nil {
		e.Timestamp = *p.Timestamp
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Photo != nil {
		e.Photo = *p.Photo
	}
	return e
}

// Add appends e and records an AddEntry action.
func Add(s State, e model.Entry, now time.Time) State {
	return State{
		Entries: append(slices.Clip(s.Entries), e),
		Undo:    push(s.Undo, AddAction{Entry: e, Timestamp: now}),
	}
}

// Delete removes the entry with the given id.
// Returns false, and s unchanged, if no entry has that id.
func Delete(s State, id string, now time.Time) (State, bool) {
	e, ok := Find(s.Entries, id)
	if !ok {
		return s, false
	}
	return State{
		Entries: without(s.Entries, idSet(e)),
		Undo:    push(s.Undo, DeleteAction{Entry: e, Timestamp: now}),
	}, true
}

// DeleteMultiple removes every entry whose id is listed. Unknown ids are
// ignored; the recorded action holds only the entries actually removed.
// Returns false if none matched.
func DeleteMultiple(s State, ids []string, now time.Time) (State, bool) {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var removed []model.Entry
	for _, e := range s.Entries {
		if _, ok := wanted[e.ID]; ok {
			removed = append(removed, e)
		}
	}
	if len(removed) == 0 {
		return s, false
	}

	return State{
		Entries: without(s.Entries, wanted),
		Undo:    push(s.Undo, DeleteMultipleAction{Entries: removed, Timestamp: now}),
	}, true
}

// ClearAll removes every entry. Returns false if there was nothing to clear.
func ClearAll(s State, now time.Time) (State, bool) {
	if len(s.Entries) == 0 {
		return s, false
	}
	return State{
		Entries: []model.Entry{},
		Undo:    push(s.Undo, ClearAllAction{Entries: slices.Clone(s.Entries), Timestamp: now}),
	}, true
}

// Update applies p to the entry with the given id.
// Returns false, and s unchanged, if no entry has that id.
func Update(s State, id string, p Patch, now time.Time) (State, bool) {
	old, ok := Find(s.Entries, id)
	if !ok {
		return s, false
	}
	updated := p.Apply(old)
	return State{
		Entries: replace(s.Entries, updated),
		Undo:    push(s.Undo, UpdateAction{Old: old, New: updated, Timestamp: now}),
	}, true
}

// Undo reverts the most recent action and moves it onto the redo stack.
// Returns s unchanged and a nil Action if there is nothing to undo.
func Undo(s State) (State, Action) {
	if len(s.Undo) == 0 {
		return s, nil
	}
	a := s.Undo[len(s.Undo)-1]
	return State{
		Entries: a.revert(s.Entries),
		Undo:    slices.Clip(s.Undo[:len(s.Undo)-1]),
		Redo:    push(s.Redo, a),
	}, a
}

// Redo re-applies the most recently undone action.
// Returns s unchanged and a nil Action if there is nothing to redo.
func Redo(s State) (State, Action) {
	if len(s.Redo) == 0 {
		return s, nil
	}
	a := s.Redo[len(s.Redo)-1]
	return State{
		Entries: a.reapply(s.Entries),
		Undo:    push(s.Undo, a),
		Redo:    slices.Clip(s.Redo[:len(s.Redo)-1]),
	}, a
}

// Peek returns the action Undo would revert, or nil.
func Peek(s State) Action {
	if len(s.Undo) == 0 {
		return nil
	}
	return s.Undo[len(s.Undo)-1]
}

// Find returns the entry with the given id.
func Find(entries []model.Entry, id string) (model.Entry, bool) {
	i := slices.IndexFunc(entries, func(e model.Entry) bool { return e.ID == id })
	if i < 0 {
		return model.Entry{}, false
	}
	return entries[i], true
}

// push appends a to stack in a new slice, dropping the oldest actions
// beyond model.MaxUndo.
func push(stack []Action, a Action) []Action {
	out := make([]Action, 0, min(len(stack)+1, model.MaxUndo))
	if over := len(stack) + 1 - model.MaxUndo; over > 0 {
		stack = stack[over:]
	}
	out = append(out, stack...)
	return append(out, a)
}

package entries

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/racelog/internal/model"
)

var base = time.Date(2026, 1, 17, 10, 0, 0, 0, time.UTC)

func entry(id, bib string, minute int) model.Entry {
	return model.Entry{
		ID:         id,
		Bib:        bib,
		Point:      model.PointFinish,
		Run:        1,
		Timestamp:  base.Add(time.Duration(minute) * time.Minute),
		Status:     model.StatusOK,
		DeviceID:   "dev-a",
		DeviceName: "Finish",
	}
}

func ids(entries []model.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func seeded(t *testing.T, n int) State {
	t.Helper()
	var s State
	for i := 1; i <= n; i++ {
		s = Add(s, entry(fmt.Sprintf("e%d", i), fmt.Sprintf("%03d", i), i), base)
	}
	return s
}

func TestAdd_PushesUndoAndClearsRedo(t *testing.T) {
	s := seeded(t, 2)
	s, _ = Undo(s)
	require.Len(t, s.Redo, 1)

	s = Add(s, entry("e3", "003", 3), base)

	assert.Equal(t, []string{"e1", "e3"}, ids(s.Entries))
	assert.Empty(t, s.Redo, "new forward action must clear redo")
	require.Len(t, s.Undo, 2)
	assert.Equal(t, KindAdd, s.Undo[1].Kind())
}

func TestDelete_Scenario(t *testing.T) {
	s := Add(State{}, model.Entry{ID: "e1", Bib: "042", Run: 1, Timestamp: base}, base)
	s = State{Entries: s.Entries}

	s, ok := Delete(s, "e1", base)
	require.True(t, ok)
	assert.Empty(t, s.Entries)
	require.Len(t, s.Undo, 1)
	assert.Equal(t, KindDelete, s.Undo[0].Kind())

	s, a := Undo(s)
	require.NotNil(t, a)
	assert.Equal(t, []string{"e1"}, ids(s.Entries))
	assert.Len(t, s.Redo, 1)

	s, a = Redo(s)
	require.NotNil(t, a)
	assert.Empty(t, s.Entries)
	assert.Len(t, s.Undo, 1)
	assert.Empty(t, s.Redo)
}

func TestDelete_NotFound(t *testing.T) {
	s := seeded(t, 1)

	got, ok := Delete(s, "missing", base)

	assert.False(t, ok)
	assert.Equal(t, s, got)
}

func TestDelete_DoesNotMutateInput(t *testing.T) {
	s := seeded(t, 3)
	before := ids(s.Entries)

	_, ok := Delete(s, "e2", base)
	require.True(t, ok)

	assert.Equal(t, before, ids(s.Entries))
}

func TestDeleteMultiple_RecordsOnlyRemoved(t *testing.T) {
	s := seeded(t, 3)

	s, ok := DeleteMultiple(s, []string{"e1", "nope", "e3"}, base)
	require.True(t, ok)

	assert.Equal(t, []string{"e2"}, ids(s.Entries))
	a, isBulk := Peek(s).(DeleteMultipleAction)
	require.True(t, isBulk)
	assert.Equal(t, []string{"e1", "e3"}, ids(a.Entries))
}

func TestDeleteMultiple_NoneMatched(t *testing.T) {
	s := seeded(t, 2)

	got, ok := DeleteMultiple(s, []string{"x", "y"}, base)

	assert.False(t, ok)
	assert.Equal(t, s, got)
}

func TestClearAll(t *testing.T) {
	_, ok := ClearAll(State{}, base)
	assert.False(t, ok, "clearing an empty list reports not found")

	s := seeded(t, 3)
	s, ok = ClearAll(s, base)
	require.True(t, ok)
	assert.Empty(t, s.Entries)

	s, _ = Undo(s)
	assert.Equal(t, []string{"e1", "e2", "e3"}, ids(s.Entries))
}

func TestUpdate_UndoAndRedo(t *testing.T) {
	s := seeded(t, 2)
	bib := "099"
	dnf := model.StatusDNF

	s, ok := Update(s, "e2", Patch{Bib: &bib, Status: &dnf}, base)
	require.True(t, ok)
	e, _ := Find(s.Entries, "e2")
	assert.Equal(t, "099", e.Bib)
	assert.Equal(t, model.StatusDNF, e.Status)

	s, _ = Undo(s)
	e, _ = Find(s.Entries, "e2")
	assert.Equal(t, "002", e.Bib)
	assert.Equal(t, model.StatusOK, e.Status)

	s, _ = Redo(s)
	e, _ = Find(s.Entries, "e2")
	assert.Equal(t, "099", e.Bib)
}

func TestUpdate_NotFound(t *testing.T) {
	s := seeded(t, 1)
	bib := "1"

	_, ok := Update(s, "nope", Patch{Bib: &bib}, base)

	assert.False(t, ok)
}

func TestUndoRedo_EmptyStacksAreNoOps(t *testing.T) {
	s := seeded(t, 1)
	s = State{Entries: s.Entries}

	got, a := Undo(s)
	assert.Nil(t, a)
	assert.Equal(t, s, got)

	got, a = Redo(s)
	assert.Nil(t, a)
	assert.Equal(t, s, got)
}

func TestUndoStack_DropsOldestBeyondCap(t *testing.T) {
	s := seeded(t, 60)

	require.Len(t, s.Undo, model.MaxUndo)
	first, ok := s.Undo[0].(AddAction)
	require.True(t, ok)
	assert.Equal(t, "e11", first.Entry.ID)
	last := s.Undo[len(s.Undo)-1].(AddAction)
	assert.Equal(t, "e60", last.Entry.ID)
}

func TestRoundTrip_AllKinds(t *testing.T) {
	bib := "777"
	tests := []struct {
		name string
		op   func(State) (State, bool)
	}{
		{"add", func(s State) (State, bool) { return Add(s, entry("e9", "009", 9), base), true }},
		{"delete", func(s State) (State, bool) { return Delete(s, "e2", base) }},
		{"delete multiple", func(s State) (State, bool) { return DeleteMultiple(s, []string{"e1", "e3"}, base) }},
		{"clear all", func(s State) (State, bool) { return ClearAll(s, base) }},
		{"update", func(s State) (State, bool) { return Update(s, "e1", Patch{Bib: &bib}, base) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, ok := tt.op(seeded(t, 3))
			require.True(t, ok)

			undone, a := Undo(x)
			require.NotNil(t, a)
			redone, a := Redo(undone)
			require.NotNil(t, a)

			assert.Equal(t, x.Entries, redone.Entries, "redo(undo(x)) == x")
			assert.Equal(t, x.Undo, redone.Undo)
			assert.Empty(t, redone.Redo)

			again, _ := Undo(redone)
			assert.Equal(t, undone.Entries, again.Entries, "undo(redo(y)) == y")
		})
	}
}

func TestRestoredAndRemoved(t *testing.T) {
	s := seeded(t, 2)
	s, _ = DeleteMultiple(s, []string{"e1", "e2"}, base)

	a := Peek(s)
	assert.Equal(t, []string{"e1", "e2"}, ids(Restored(a)))
	assert.Equal(t, []string{"e1", "e2"}, ids(Removed(a)))
	assert.Nil(t, Restored(AddAction{}))
}

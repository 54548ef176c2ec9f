package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/racelog/internal/entries"
	"github.com/roach88/racelog/internal/model"
	"github.com/roach88/racelog/internal/persistence"
)

func TestAddEntry_FillsDefaults(t *testing.T) {
	e := newTestEngine(t, persistence.NewMemory(0))

	got, ok := e.AddEntry(EntryInput{Bib: "042", Point: model.PointFinish})
	require.True(t, ok)

	assert.Equal(t, "id-2", got.ID)
	assert.Equal(t, 1, got.Run)
	assert.Equal(t, model.StatusOK, got.Status)
	assert.Equal(t, "id-1", got.DeviceID)
	assert.Equal(t, "Start", got.DeviceName)
	assert.Equal(t, t0, got.Timestamp)
	assert.Equal(t, []model.Entry{got}, e.State().Entries)
}

func TestAddEntry_UsesSelection(t *testing.T) {
	e := newTestEngine(t, persistence.NewMemory(0))
	require.True(t, e.SetSelectedPoint(model.PointFinish))
	require.True(t, e.SetSelectedRun(2))

	got, ok := e.AddEntry(EntryInput{Bib: " 42 "})

	require.True(t, ok)
	assert.Equal(t, "42", got.Bib)
	assert.Equal(t, model.PointFinish, got.Point)
	assert.Equal(t, 2, got.Run)
}

func TestAddEntry_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   EntryInput
	}{
		{"letters in bib", EntryInput{Bib: "abc"}},
		{"long bib", EntryInput{Bib: "1234"}},
		{"empty bib", EntryInput{}},
		{"run 3", EntryInput{Bib: "1", Run: 3}},
		{"unknown point", EntryInput{Bib: "1", Point: "X"}},
		{"unknown status", EntryInput{Bib: "1", Status: "late"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, persistence.NewMemory(0))
			rev := e.State().Revision

			got, ok := e.AddEntry(tt.in)

			assert.False(t, ok)
			assert.Equal(t, model.Entry{}, got)
			assert.Empty(t, e.State().Entries)
			assert.Equal(t, rev, e.State().Revision)
			assert.False(t, e.CanUndo())
		})
	}
}

func TestAddEntry_RejectsDuplicateID(t *testing.T) {
	e := newTestEngine(t, persistence.NewMemory(0))
	_, ok := e.AddEntry(EntryInput{ID: "e1", Bib: "1", Point: model.PointStart})
	require.True(t, ok)

	_, ok = e.AddEntry(EntryInput{ID: "e1", Bib: "2", Point: model.PointFinish})
	assert.False(t, ok)
	require.Len(t, e.State().Entries, 1)

	require.True(t, e.DeleteEntry("e1"))
	e.Undo()
	require.Len(t, e.State().Entries, 1)
	assert.Equal(t, "1", e.State().Entries[0].Bib)
}

func TestUpdateEntry_RejectsInvalid(t *testing.T) {
	e := newTestEngine(t, persistence.NewMemory(0))
	_, ok := e.AddEntry(EntryInput{ID: "e1", Bib: "1", Point: model.PointStart})
	require.True(t, ok)
	before := e.State()

	run, bib, point := 3, "x1", model.Point("M")
	assert.False(t, e.UpdateEntry("e1", entries.Patch{Run: &run}))
	assert.False(t, e.UpdateEntry("e1", entries.Patch{Bib: &bib}))
	assert.False(t, e.UpdateEntry("e1", entries.Patch{Point: &point}))

	after := e.State()
	assert.Equal(t, before.Entries, after.Entries)
	assert.Equal(t, before.Revision, after.Revision)
	assert.Len(t, after.Undo, 1)
}

func TestDeleteUndoRedo_Scenario(t *testing.T) {
	e := newTestEngine(t, persistence.NewMemory(0))
	e.AddEntry(EntryInput{ID: "e1", Bib: "042", Point: model.PointStart, Run: 1})

	require.True(t, e.DeleteEntry("e1"))
	s := e.State()
	assert.Empty(t, s.Entries)
	require.Len(t, s.Undo, 2)
	assert.Equal(t, entries.KindDelete, e.PeekUndo().Kind())

	a := e.Undo()
	require.NotNil(t, a)
	assert.Equal(t, entries.KindDelete, a.Kind())
	s = e.State()
	require.Len(t, s.Entries, 1)
	assert.Equal(t, "e1", s.Entries[0].ID)
	assert.Len(t, s.Redo, 1)
	assert.True(t, e.CanRedo())

	require.NotNil(t, e.Redo())
	assert.Empty(t, e.State().Entries)
	assert.False(t, e.CanRedo())
}

func TestUndoRedo_EmptyStacks(t *testing.T) {
	e := newTestEngine(t, persistence.NewMemory(0))

	assert.False(t, e.CanUndo())
	assert.Nil(t, e.PeekUndo())
	assert.Nil(t, e.Undo())
	assert.Nil(t, e.Redo())
}

func TestMutations_UnknownIDs(t *testing.T) {
	e := newTestEngine(t, persistence.NewMemory(0))
	bib := "9"

	assert.False(t, e.DeleteEntry("nope"))
	assert.False(t, e.DeleteMultiple([]string{"a", "b"}))
	assert.False(t, e.ClearAll())
	assert.False(t, e.UpdateEntry("nope", entries.Patch{Bib: &bib}))
	assert.False(t, e.CanUndo())
}

func TestDeleteMultipleAndClearAll(t *testing.T) {
	e := newTestEngine(t, persistence.NewMemory(0))
	for _, id := range []string{"a", "b", "c"} {
		e.AddEntry(EntryInput{ID: id, Bib: "1", Point: model.PointStart})
	}

	require.True(t, e.DeleteMultiple([]string{"a", "c", "zz"}))
	require.Len(t, e.State().Entries, 1)

	require.True(t, e.ClearAll())
	assert.Empty(t, e.State().Entries)

	e.Undo()
	assert.Len(t, e.State().Entries, 1)
	e.Undo()
	assert.Len(t, e.State().Entries, 3)
}

func TestUpdateEntry_Undoable(t *testing.T) {
	e := newTestEngine(t, persistence.NewMemory(0))
	e.AddEntry(EntryInput{ID: "e1", Bib: "1", Point: model.PointStart})

	status := model.StatusDNF
	require.True(t, e.UpdateEntry("e1", entries.Patch{Status: &status}))
	assert.Equal(t, model.StatusDNF, e.State().Entries[0].Status)

	e.Undo()
	assert.Equal(t, model.StatusOK, e.State().Entries[0].Status)
}

func TestSyncQueue_FollowsEntries(t *testing.T) {
	e := newTestEngine(t, persistence.NewMemory(0))
	settings := e.State().Settings
	settings.Sync = true
	e.SetSettings(settings)

	e.AddEntry(EntryInput{ID: "e1", Bib: "1", Point: model.PointStart})
	e.AddEntry(EntryInput{ID: "e2", Bib: "2", Point: model.PointStart})
	require.Len(t, e.SyncQueue(), 2)

	// Deleting drops the queued upload.
	require.True(t, e.DeleteEntry("e1"))
	require.Len(t, e.SyncQueue(), 1)
	assert.Equal(t, "e2", e.SyncQueue()[0].Entry.ID)

	// Undoing the delete queues the unsynced entry again.
	e.Undo()
	assert.Len(t, e.SyncQueue(), 2)

	// Edits carry through to the queued copy.
	bib := "11"
	require.True(t, e.UpdateEntry("e2", entries.Patch{Bib: &bib}))
	for _, it := range e.SyncQueue() {
		if it.Entry.ID == "e2" {
			assert.Equal(t, "11", it.Entry.Bib)
		}
	}

	// Acknowledged entries leave the queue and are not re-queued on undo.
	require.True(t, e.MarkEntrySynced("e2", t0))
	assert.Len(t, e.SyncQueue(), 1)
	require.True(t, e.DeleteEntry("e2"))
	e.Undo()
	assert.Len(t, e.SyncQueue(), 1)
}

func TestSyncQueue_DisabledDoesNotEnqueue(t *testing.T) {
	e := newTestEngine(t, persistence.NewMemory(0))

	e.AddEntry(EntryInput{ID: "e1", Bib: "1", Point: model.PointStart})
	assert.Empty(t, e.SyncQueue())
}

func TestSyncQueue_Operations(t *testing.T) {
	e := newTestEngine(t, persistence.NewMemory(0))
	en, ok := e.AddEntry(EntryInput{ID: "e1", Bib: "1", Point: model.PointStart})
	require.True(t, ok)

	e.AddToSyncQueue(en)
	e.AddToSyncQueue(en)
	require.Len(t, e.SyncQueue(), 1, "re-adding supersedes the item")

	at := t0.Add(time.Minute)
	require.True(t, e.UpdateSyncQueueItem("e1", 2, at, "timeout"))
	it := e.SyncQueue()[0]
	assert.Equal(t, 2, it.RetryCount)
	assert.Equal(t, "timeout", it.Error)
	require.NotNil(t, it.LastAttempt)
	assert.Equal(t, at, *it.LastAttempt)
	assert.False(t, e.UpdateSyncQueueItem("nope", 1, at, ""))

	require.True(t, e.RemoveFromSyncQueue("e1"))
	assert.False(t, e.RemoveFromSyncQueue("e1"))

	e.AddToSyncQueue(en)
	require.True(t, e.ClearSyncQueue())
	assert.False(t, e.ClearSyncQueue())
	assert.Empty(t, e.SyncQueue())
}

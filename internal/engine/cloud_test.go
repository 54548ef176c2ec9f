package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/racelog/internal/merge"
	"github.com/roach88/racelog/internal/model"
	"github.com/roach88/racelog/internal/persistence"
)

func remoteEntry(id, device string) map[string]any {
	return map[string]any{
		"id":         id,
		"bib":        "042",
		"point":      "F",
		"run":        1,
		"timestamp":  "2026-01-10T09:05:00Z",
		"status":     "ok",
		"deviceId":   device,
		"deviceName": "Finish",
	}
}

func remoteFault(id, device string, version int, marked bool) map[string]any {
	return map[string]any{
		"id":                id,
		"bib":               "042",
		"run":               1,
		"gateNumber":        6,
		"faultType":         "STR",
		"timestamp":         "2026-01-10T09:06:00Z",
		"deviceId":          device,
		"deviceName":        "Gate 6",
		"currentVersion":    version,
		"markedForDeletion": marked,
	}
}

func TestMergeCloudEntries_Properties(t *testing.T) {
	e := newTestEngine(t, persistence.NewMemory(0))
	local := e.State().DeviceID

	tests := []struct {
		name      string
		batch     func(t *testing.T) merge.Batch
		wantAdded int
	}{
		{"echo of own device", func(t *testing.T) merge.Batch {
			return merge.Batch{Records: []json.RawMessage{cloudRecord(t, remoteEntry("x1", local))}}
		}, 0},
		{"same record twice", func(t *testing.T) merge.Batch {
			r := cloudRecord(t, remoteEntry("x2", "dev_b"))
			return merge.Batch{Records: []json.RawMessage{r, r}}
		}, 1},
		{"tombstoned", func(t *testing.T) merge.Batch {
			return merge.Batch{
				Records:    []json.RawMessage{cloudRecord(t, remoteEntry("x3", "dev_b"))},
				Tombstones: []string{"x3"},
			}
		}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.MergeCloudEntries(tt.batch(t))
			assert.Equal(t, tt.wantAdded, res.Added)
		})
	}
}

func TestMergeCloudEntries_UnchangedPublishesNothing(t *testing.T) {
	e := newTestEngine(t, persistence.NewMemory(0))
	batch := merge.Batch{Records: []json.RawMessage{cloudRecord(t, remoteEntry("x1", "dev_b"))}}
	require.Equal(t, 1, e.MergeCloudEntries(batch).Added)

	var rec recorder
	e.Subscribe(rec.listen)
	before := e.State()

	res := e.MergeCloudEntries(batch)
	assert.Equal(t, 0, res.Changed())
	assert.Equal(t, 1, res.Unchanged)
	assert.Empty(t, rec.ops)
	assert.Equal(t, before.Revision, e.State().Revision)
}

func TestMergeCloudEntries_NotQueuedOrUndoable(t *testing.T) {
	e := newTestEngine(t, persistence.NewMemory(0))
	settings := e.State().Settings
	settings.Sync = true
	e.SetSettings(settings)

	e.MergeCloudEntries(merge.Batch{Records: []json.RawMessage{cloudRecord(t, remoteEntry("x1", "dev_b"))}})

	assert.Empty(t, e.SyncQueue())
	assert.False(t, e.CanUndo())
}

func TestMergeFaultsFromCloud_VersionRules(t *testing.T) {
	e := newTestEngine(t, persistence.NewMemory(0))
	batch := func(version int, marked bool) merge.Batch {
		return merge.Batch{Records: []json.RawMessage{cloudRecord(t, remoteFault("g1", "dev_c", version, marked))}}
	}

	require.Equal(t, 1, e.MergeFaultsFromCloud(batch(2, false)).Added)

	res := e.MergeFaultsFromCloud(batch(2, false))
	assert.Equal(t, 0, res.Changed(), "same version, same flag")
	res = e.MergeFaultsFromCloud(batch(1, false))
	assert.Equal(t, 0, res.Changed(), "older version")

	res = e.MergeFaultsFromCloud(batch(3, false))
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 3, e.State().Faults[0].CurrentVersion)

	res = e.MergeFaultsFromCloud(batch(3, true))
	assert.Equal(t, 1, res.Updated, "deletion flag differs")
	assert.True(t, e.State().Faults[0].MarkedForDeletion)
}

func TestRemoveDeletedCloud(t *testing.T) {
	e := newTestEngine(t, persistence.NewMemory(0))
	e.MergeCloudEntries(merge.Batch{Records: []json.RawMessage{
		cloudRecord(t, remoteEntry("x1", "dev_b")),
		cloudRecord(t, remoteEntry("x2", "dev_b")),
	}})
	e.MergeFaultsFromCloud(merge.Batch{Records: []json.RawMessage{
		cloudRecord(t, remoteFault("g1", "dev_c", 1, false)),
	}})

	assert.Equal(t, 1, e.RemoveDeletedCloudEntries([]string{model.TombstoneKey("x1", "dev_b")}))
	assert.Equal(t, 0, e.RemoveDeletedCloudEntries([]string{"x1:dev_other"}))
	assert.Equal(t, 1, e.RemoveDeletedCloudEntries([]string{"x2"}))
	assert.Empty(t, e.State().Entries)

	assert.Equal(t, 1, e.RemoveDeletedCloudFaults([]string{"g1"}))
	assert.Equal(t, 0, e.RemoveDeletedCloudFaults([]string{"g1"}))
}

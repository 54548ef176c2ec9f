package faults

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/racelog/internal/model"
)

var (
	base  = time.Date(2026, 1, 17, 10, 0, 0, 0, time.UTC)
	judge = model.Editor{Name: "Gate 4-8", DeviceID: "dev-judge"}
	chief = model.Editor{Name: "Chief", DeviceID: "dev-chief"}
)

func ptr[T any](v T) *T { return &v }

func seed(t *testing.T) []model.Fault {
	t.Helper()
	faults, f := Add(nil, Input{
		ID:         "f1",
		Bib:        "042",
		Run:        1,
		GateNumber: 5,
		FaultType:  model.FaultMissedGate,
		Timestamp:  base,
		GateRange:  [2]int{4, 8},
		Notes:      "skied past",
	}, judge, base)
	require.Equal(t, 1, f.CurrentVersion)
	return faults
}

func mustFind(t *testing.T, faults []model.Fault, id string) model.Fault {
	t.Helper()
	f, ok := Find(faults, id)
	require.True(t, ok, "fault %s not found", id)
	return f
}

func TestAdd_CreatesVersionOne(t *testing.T) {
	f := mustFind(t, seed(t), "f1")

	assert.Equal(t, 1, f.CurrentVersion)
	assert.False(t, f.MarkedForDeletion)
	assert.Equal(t, "dev-judge", f.DeviceID)
	require.Len(t, f.VersionHistory, 1)
	v := f.VersionHistory[0]
	assert.Equal(t, model.ChangeCreate, v.ChangeType)
	assert.Equal(t, 1, v.Version)
	assert.Equal(t, "skied past", v.Data.Notes)
	assert.Equal(t, f.Content(), v.Data)
}

func TestAdd_DefaultsRun(t *testing.T) {
	_, f := Add(nil, Input{ID: "f2", Bib: "7", FaultType: model.FaultStraddling}, judge, base)
	assert.Equal(t, 1, f.Run)
	assert.Equal(t, base, f.Timestamp)
}

func TestUpdate_NoVersionBump(t *testing.T) {
	faults, ok := Update(seed(t), "f1", Patch{GateNumber: ptr(6)})
	require.True(t, ok)

	f := mustFind(t, faults, "f1")
	assert.Equal(t, 6, f.GateNumber)
	assert.Equal(t, 1, f.CurrentVersion)
	assert.Len(t, f.VersionHistory, 1)

	_, ok = Update(faults, "nope", Patch{})
	assert.False(t, ok)
}

func TestUpdateThenRestore_Scenario(t *testing.T) {
	faults := seed(t)

	faults, ok := UpdateWithHistory(faults, "f1", Patch{GateNumber: ptr(8)}, chief, "", base.Add(time.Minute))
	require.True(t, ok)
	f := mustFind(t, faults, "f1")
	assert.Equal(t, 2, f.CurrentVersion)
	assert.Len(t, f.VersionHistory, 2)
	assert.Equal(t, 8, f.GateNumber)

	faults, ok = RestoreVersion(faults, "f1", 1, chief, base.Add(2*time.Minute))
	require.True(t, ok)
	f = mustFind(t, faults, "f1")
	assert.Equal(t, 5, f.GateNumber)
	assert.Equal(t, 3, f.CurrentVersion)
	require.Len(t, f.VersionHistory, 3)
	assert.Equal(t, f.VersionHistory[0].Data, f.Content(), "content equals the restored snapshot")

	last := f.VersionHistory[2]
	assert.Equal(t, model.ChangeRestore, last.ChangeType)
	assert.Equal(t, "Restored to version 1", last.ChangeDescription)
	assert.Equal(t, 3, last.Version)
}

func TestRestoreVersion_RestoresAllContent(t *testing.T) {
	faults := seed(t)

	// A newer version from another device moved the judge's gate range
	// and re-stamped the fault.
	newer := mustFind(t, faults, "f1")
	newer.GateRange = [2]int{11, 20}
	newer.Timestamp = base.Add(time.Hour)
	newer.DeviceName = "Gate 11-20"
	newer = commit(newer, model.ChangeEdit, chief, "", base.Add(time.Hour))
	faults = with(faults, 0, newer)

	faults, ok := RestoreVersion(faults, "f1", 1, chief, base.Add(2*time.Hour))
	require.True(t, ok)

	f := mustFind(t, faults, "f1")
	v1 := f.VersionHistory[0].Data
	assert.Equal(t, v1, f.Content())
	assert.Equal(t, [2]int{4, 8}, f.GateRange)
	assert.Equal(t, base, f.Timestamp)
	assert.Equal(t, 3, f.CurrentVersion)
}

func TestRestoreVersion_UnknownVersion(t *testing.T) {
	faults := seed(t)

	got, ok := RestoreVersion(faults, "f1", 9, chief, base)

	assert.False(t, ok)
	assert.Equal(t, faults, got)
}

func TestHistory_CappedAtFifty(t *testing.T) {
	faults := seed(t)
	for i := 0; i < 60; i++ {
		var ok bool
		faults, ok = UpdateWithHistory(faults, "f1", Patch{GateNumber: ptr(i)}, chief, fmt.Sprint(i), base)
		require.True(t, ok)
	}

	f := mustFind(t, faults, "f1")
	assert.Equal(t, 61, f.CurrentVersion)
	require.Len(t, f.VersionHistory, model.MaxVersionHistory)
	assert.Equal(t, 12, f.VersionHistory[0].Version, "oldest versions dropped first")
	assert.Equal(t, 61, f.VersionHistory[len(f.VersionHistory)-1].Version)
}

func TestVersion_StrictlyIncreasing(t *testing.T) {
	faults := seed(t)
	versions := []int{mustFind(t, faults, "f1").CurrentVersion}

	faults, _ = UpdateWithHistory(faults, "f1", Patch{Notes: ptr("a")}, chief, "", base)
	versions = append(versions, mustFind(t, faults, "f1").CurrentVersion)
	faults, _ = RestoreVersion(faults, "f1", 1, chief, base)
	versions = append(versions, mustFind(t, faults, "f1").CurrentVersion)
	faults, _ = MarkForDeletion(faults, "f1", judge, base)
	faults, _ = RejectDeletion(faults, "f1", chief, base)
	versions = append(versions, mustFind(t, faults, "f1").CurrentVersion)

	assert.Equal(t, []int{1, 2, 3, 4}, versions)
}

func TestPendingDeletion_BlocksEditAndRestore(t *testing.T) {
	faults, ok := MarkForDeletion(seed(t), "f1", judge, base)
	require.True(t, ok)
	f := mustFind(t, faults, "f1")
	assert.True(t, f.MarkedForDeletion)
	assert.Equal(t, 1, f.CurrentVersion, "marking is not a content edit")
	assert.Equal(t, "Gate 4-8", f.MarkedForDeletionBy)
	assert.Equal(t, "dev-judge", f.MarkedForDeletionByDeviceID)

	_, ok = UpdateWithHistory(faults, "f1", Patch{GateNumber: ptr(9)}, chief, "", base)
	assert.False(t, ok)
	_, ok = RestoreVersion(faults, "f1", 1, chief, base)
	assert.False(t, ok)
	_, ok = MarkForDeletion(faults, "f1", chief, base)
	assert.False(t, ok, "already pending")

	assert.Len(t, PendingDeletions(faults), 1)
}

func TestApproveDeletion(t *testing.T) {
	faults, _ := MarkForDeletion(seed(t), "f1", judge, base)

	after, approved := ApproveDeletion(faults, "f1", "Chief", base.Add(time.Minute))

	require.NotNil(t, approved)
	assert.Equal(t, "Chief", approved.DeletionApprovedBy)
	require.NotNil(t, approved.DeletionApprovedAt)
	assert.Equal(t, base.Add(time.Minute), *approved.DeletionApprovedAt)
	assert.Empty(t, after)
	assert.Len(t, faults, 1, "input not mutated")
}

func TestApproveDeletion_RequiresPending(t *testing.T) {
	faults := seed(t)

	_, approved := ApproveDeletion(faults, "f1", "Chief", base)
	assert.Nil(t, approved)

	_, approved = ApproveDeletion(faults, "missing", "Chief", base)
	assert.Nil(t, approved)
}

func TestRejectDeletion(t *testing.T) {
	faults, _ := MarkForDeletion(seed(t), "f1", judge, base)

	faults, ok := RejectDeletion(faults, "f1", chief, base)
	require.True(t, ok)

	f := mustFind(t, faults, "f1")
	assert.False(t, f.MarkedForDeletion)
	assert.Nil(t, f.MarkedForDeletionAt)
	assert.Empty(t, f.MarkedForDeletionBy)
	assert.Equal(t, 2, f.CurrentVersion)
	last := f.VersionHistory[len(f.VersionHistory)-1]
	assert.Equal(t, model.ChangeEdit, last.ChangeType)
	assert.Equal(t, "Deletion rejected by Chief", last.ChangeDescription)

	_, ok = RejectDeletion(faults, "f1", chief, base)
	assert.False(t, ok, "no longer pending")

	_, ok = UpdateWithHistory(faults, "f1", Patch{GateNumber: ptr(7)}, chief, "", base)
	assert.True(t, ok, "editable again after rejection")
}

func TestRemoveAndFilters(t *testing.T) {
	faults := seed(t)
	faults, _ = Add(faults, Input{ID: "f2", Bib: "042", Run: 2, FaultType: model.FaultStraddling}, judge, base)
	faults, _ = Add(faults, Input{ID: "f3", Bib: "013", Run: 1, FaultType: model.FaultBindingRelease}, judge, base)

	assert.Len(t, ForBib(faults, "042", 1), 1)
	assert.Len(t, ForBib(faults, "042", 2), 1)
	assert.Empty(t, ForBib(faults, "999", 1))

	faults, ok := Remove(faults, "f2")
	require.True(t, ok)
	assert.Len(t, faults, 2)
	_, ok = Remove(faults, "f2")
	assert.False(t, ok)
}

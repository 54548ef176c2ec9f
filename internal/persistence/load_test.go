package persistence

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/racelog/internal/model"
)

type failingReader struct{}

func (failingReader) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk on fire")
}

func TestLoad_Fresh(t *testing.T) {
	p, rep := Load(context.Background(), NewMemory(0), nil)

	assert.Equal(t, model.DefaultPersisted(), p)
	assert.True(t, rep.Fresh())
	assert.False(t, rep.Migrated)
	assert.Equal(t, model.SchemaVersion, rep.StoredVersion)
	assert.Equal(t, []Slice{SliceSchemaVersion}, rep.Rewrite())
}

func TestLoad_CorruptSliceIsIsolated(t *testing.T) {
	mem := NewMemory(0)
	mem.Set("schema-version", []byte(`2`))
	mem.Set("timing-entries", []byte(`{not json`))
	mem.Set("settings", []byte(`{"sync":true}`))
	mem.Set("penalty-seconds", []byte(`99`))
	mem.Set("first-gate-color", []byte(`"green"`))
	mem.Set("race-id", []byte(`"RACE-7"`))

	p, rep := Load(context.Background(), mem, nil)

	assert.ElementsMatch(t, []Slice{SliceEntries, SlicePenaltySeconds, SliceFirstGateColor}, rep.Corrupt)
	assert.Empty(t, p.Entries)
	assert.NotNil(t, p.Entries)
	assert.Equal(t, model.DefaultPenaltySeconds, p.PenaltySeconds)
	assert.Equal(t, model.GateRed, p.FirstGateColor)

	// Other slices still load.
	assert.Equal(t, "RACE-7", p.RaceID)
	assert.True(t, p.Settings.Sync)
	// Keys absent from the stored settings keep their defaults.
	assert.True(t, p.Settings.Auto)
}

func TestLoad_ReadErrorsFallBack(t *testing.T) {
	p, rep := Load(context.Background(), failingReader{}, nil)

	assert.Len(t, rep.Corrupt, len(AllSlices))
	assert.Equal(t, model.DefaultPersisted(), p)
}

func TestLoad_DropsUndecodableRecords(t *testing.T) {
	mem := NewMemory(0)
	mem.Set("schema-version", []byte(`2`))
	mem.Set("timing-entries", []byte(`[
		{"id":"e1","bib":"042","point":"S","run":1,"timestamp":"2026-01-10T09:00:00Z","status":"ok","deviceId":"dev_a","deviceName":"Start"},
		{"id":"e2","run":"two"},
		{"bib":"7","point":"F"},
		"not an object"
	]`))

	p, rep := Load(context.Background(), mem, nil)

	require.Len(t, p.Entries, 1)
	assert.Equal(t, "e1", p.Entries[0].ID)
	assert.Equal(t, 3, rep.DroppedRecords)
	assert.Empty(t, rep.Corrupt)
	assert.Empty(t, rep.Rewrite(), "dropped records alone are not written back")
}

func TestLoad_KeepsLocalRecordsAsWritten(t *testing.T) {
	notes := strings.Repeat("n", 1207)
	mem := NewMemory(0)
	mem.Set("schema-version", []byte(`2`))
	// A cloud merge would reject both of these; locally they are kept.
	mem.Set("timing-entries", []byte(`[
		{"id":"e1","bib":"abc","point":"","run":3,"timestamp":"2026-01-10T09:00:00Z","deviceId":"dev_a"}
	]`))
	mem.Set("fault-entries", []byte(`[
		{"id":"f1","bib":"5","gateNumber":3,"faultType":"MG","timestamp":"2026-01-10T09:00:00Z","deviceId":"dev_a","notes":"  `+notes+`  "}
	]`))

	p, rep := Load(context.Background(), mem, nil)

	assert.Zero(t, rep.DroppedRecords)
	require.Len(t, p.Entries, 1)
	assert.Equal(t, "abc", p.Entries[0].Bib)
	assert.Equal(t, 3, p.Entries[0].Run)
	assert.Equal(t, model.StatusOK, p.Entries[0].Status)
	require.Len(t, p.Faults, 1)
	assert.Equal(t, "  "+notes+"  ", p.Faults[0].Notes)
	assert.Equal(t, 1, p.Faults[0].CurrentVersion)
	require.Len(t, p.Faults[0].VersionHistory, 1)
}

func TestLoad_MigratesVersionOne(t *testing.T) {
	mem := NewMemory(0)
	// Version 1 wrote no schema-version slice and entries had no run.
	mem.Set("timing-entries", []byte(`[
		{"id":"e1","bib":"5","point":"F","timestamp":"2026-01-10T09:00:00Z","deviceId":"dev_a"}
	]`))
	mem.Set("fault-entries", []byte(`[
		{"id":"f1","bib":"5","gateNumber":3,"faultType":"MG","timestamp":"2026-01-10T09:00:00Z","deviceId":"dev_a","deviceName":"Gate"}
	]`))

	p, rep := Load(context.Background(), mem, nil)

	assert.Equal(t, 1, rep.StoredVersion)
	assert.True(t, rep.Migrated)
	assert.Equal(t, model.SchemaVersion, p.SchemaVersion)
	assert.Contains(t, rep.Rewrite(), SliceSchemaVersion)

	require.Len(t, p.Entries, 1)
	assert.Equal(t, 1, p.Entries[0].Run)
	assert.Equal(t, model.StatusOK, p.Entries[0].Status)

	require.Len(t, p.Faults, 1)
	f := p.Faults[0]
	assert.Equal(t, 1, f.Run)
	assert.Equal(t, 1, f.CurrentVersion)
	require.Len(t, f.VersionHistory, 1)
	assert.Equal(t, model.ChangeCreate, f.VersionHistory[0].ChangeType)
	assert.Equal(t, f.Content(), f.VersionHistory[0].Data)
}

func TestLoad_NewerVersionKept(t *testing.T) {
	mem := NewMemory(0)
	mem.Set("schema-version", []byte(`3`))

	p, rep := Load(context.Background(), mem, nil)

	assert.Equal(t, 3, rep.StoredVersion)
	assert.Equal(t, 3, p.SchemaVersion)
	assert.False(t, rep.Migrated)
	assert.Empty(t, rep.Rewrite())
}

func TestLoad_GateAssignment(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *[2]int
		corrupt bool
	}{
		{"valid", `[2,9]`, &[2]int{2, 9}, false},
		{"reversed", `[9,2]`, nil, true},
		{"negative", `[-1,4]`, nil, true},
		{"wrong type", `"1-4"`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := NewMemory(0)
			mem.Set("gate-assignment", []byte(tt.raw))

			p, rep := Load(context.Background(), mem, nil)
			assert.Equal(t, tt.want, p.GateAssignment)
			assert.Equal(t, tt.corrupt, len(rep.Corrupt) == 1)
		})
	}
}

package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		s, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(s.Name, func(t *testing.T) {
			r, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, r.Pass, "errors: %v", r.Errors)
		})
	}
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: mismatch
description: expects the wrong outcome
steps:
  - op: delete_entry
    args: {id: nope}
    expect: {ok: true}
assertions:
  - type: trace_count
    op: delete_entry
    count: 1
`))
	require.NoError(t, err)

	r, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, r.Pass)
	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0], `expected {"ok":true}, got {"ok":false}`)
}

func TestRun_AssertionFailures(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: failing
description: every assertion is wrong
steps:
  - op: add_entry
    args: {bib: "5", point: S}
assertions:
  - type: trace_count
    op: add_entry
    count: 2
  - type: trace_order
    ops: [add_entry, undo]
  - type: trace_contains
    op: add_entry
    args: {bib: "6"}
  - type: final_state
    path: entries.3.bib
    equals: "5"
  - type: final_state
    path: entries
    length: 4
`))
	require.NoError(t, err)

	r, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, r.Pass)
	assert.Len(t, r.Errors, 5)
}

func TestRun_GeneratedIDsAreDeterministic(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: ids
description: generated ids follow the device id
steps:
  - op: add_entry
    args: {bib: "5", point: S}
  - op: add_fault
    args: {bib: "5", gate: 2, type: BR}
assertions:
  - type: final_state
    path: device_id
    equals: id-1
  - type: final_state
    path: entries.0.id
    equals: id-2
  - type: final_state
    path: faults.0.id
    equals: id-3
  - type: final_state
    path: entries.0.timestamp
    equals: "2026-01-10T09:00:00Z"
`))
	require.NoError(t, err)

	r, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, r.Pass, "errors: %v", r.Errors)
}

func TestRun_RejectedRecords(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: rejected
description: invalid records are refused without a change event
steps:
  - op: add_entry
    args: {bib: "abcd", point: S}
    expect: {ok: false}
  - op: add_entry
    args: {id: e1, bib: "5"}
  - op: add_entry
    args: {id: e1, bib: "6"}
    expect: {ok: false}
  - op: add_fault
    args: {bib: "5", gate: 2, type: XX}
    expect: {ok: false}
assertions:
  - type: final_state
    path: entries
    length: 1
  - type: final_state
    path: entries.0.point
    equals: S
  - type: final_state
    path: faults
    length: 0
  - type: trace_count
    op: add_entry
    count: 3
`))
	require.NoError(t, err)

	r, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, r.Pass, "errors: %v", r.Errors)

	var changes int
	for _, ev := range r.Trace {
		if ev.Type == EventChange && (ev.Op == "add_entry" || ev.Op == "add_fault") {
			changes++
		}
	}
	assert.Equal(t, 1, changes, "only the accepted entry publishes a change")
}

func TestRun_BadArgument(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: bad
description: run is not a number
steps:
  - op: add_entry
    args: {bib: "5", point: S, run: first}
assertions:
  - type: trace_count
    op: add_entry
    count: 1
`))
	require.NoError(t, err)

	_, err = Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `arg "run": want integer`)
}

func TestRun_SyncQueueAndSettings(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: queue
description: entries are queued while sync is on and leave the queue once acknowledged
setup:
  - op: set_sync
    args: {enabled: true}
steps:
  - op: add_entry
    args: {id: a, bib: "1", point: S}
  - op: add_entry
    args: {id: b, bib: "2", point: S}
  - op: mark_entry_synced
    args: {id: a, at: "2026-01-10T09:30:00Z"}
    expect: {ok: true}
  - op: set_penalty_seconds
    args: {seconds: 120}
    expect: {seconds: 60}
  - op: set_gate_assignment
    args: {range: [9, 3]}
    expect: {ok: false}
  - op: finalize_racer
    args: {bib: "1", run: 1}
  - op: flush
    expect: {ok: true}
assertions:
  - type: final_state
    path: sync_queue
    length: 1
  - type: final_state
    path: sync_queue.0.entry.id
    equals: b
  - type: final_state
    path: finalized_racers
    equals: ["1-1"]
  - type: final_state
    path: entries.0.syncedAt
    equals: "2026-01-10T09:30:00Z"
`))
	require.NoError(t, err)

	r, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, r.Pass, "errors: %v", r.Errors)
}

package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/racelog/internal/persistence"
	"github.com/roach88/racelog/internal/testutil"
)

var t0 = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func testPersistence() persistence.Config {
	cfg := persistence.DefaultConfig()
	cfg.Debounce = 5 * time.Millisecond
	cfg.RetryDelay = time.Millisecond
	cfg.ProbeSchedule = ""
	return cfg
}

// newTestEngine opens an engine over mem with deterministic ids and time.
// The device id is "id-1"; later ids count up from "id-2".
func newTestEngine(t *testing.T, mem *persistence.Memory, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithIDGenerator(testutil.NewSequenceGenerator("id")),
		WithNow(testutil.NewFakeClock(t0, time.Second).Now),
		WithPersistence(testPersistence()),
		WithDeviceName("Start"),
	}
	e, err := New(context.Background(), mem, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

// cloudRecord renders v as a raw batch record.
func cloudRecord(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// recorder collects the ops a listener sees.
type recorder struct {
	ops    []string
	states []AppState
}

func (r *recorder) listen(s AppState, c Change) {
	r.ops = append(r.ops, c.Op)
	r.states = append(r.states, s)
}

package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/racelog/internal/engine"
	"github.com/roach88/racelog/internal/persistence"
	"github.com/roach88/racelog/internal/store"
	"github.com/roach88/racelog/internal/testutil"
)

// DefaultStart is the fake clock's first reading when a scenario sets none.
var DefaultStart = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

// Run executes a scenario and returns its result. Each run gets a fresh
// in-memory store. The returned error covers setup and argument problems;
// failed expectations and assertions are reported in Result.Errors.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	return RunWithLogger(ctx, s, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with engine logs sent to logger.
func RunWithLogger(ctx context.Context, s *Scenario, logger *slog.Logger) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	defer st.Close()

	start := s.Start
	if start.IsZero() {
		start = DefaultStart
	}
	name := s.DeviceName
	if name == "" {
		name = "Start"
	}
	cfg := persistence.DefaultConfig()
	cfg.ProbeSchedule = ""

	eng, err := engine.New(ctx, st,
		engine.WithLogger(logger),
		engine.WithIDGenerator(testutil.NewSequenceGenerator("id")),
		engine.WithNow(testutil.NewFakeClock(start, time.Second).Now),
		engine.WithPersistence(cfg),
		engine.WithDeviceName(name),
	)
	if err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	defer eng.Close(ctx)

	for i, step := range s.Setup {
		if _, err := ops[step.Op](ctx, eng, newArgs(fmt.Sprintf("setup[%d]", i), step.Args)); err != nil {
			return nil, err
		}
	}

	result := NewResult()
	recording := false
	unsubscribe := eng.Subscribe(func(_ engine.AppState, c engine.Change) {
		if !recording {
			return
		}
		ev := TraceEvent{Type: EventChange, Op: c.Op, Revision: c.Revision}
		for _, sl := range c.Slices {
			ev.Slices = append(ev.Slices, string(sl))
		}
		result.add(ev)
	})
	defer unsubscribe()

	recording = true
	for i, step := range s.Steps {
		label := fmt.Sprintf("steps[%d] %s", i, step.Op)
		result.add(TraceEvent{Type: EventInvocation, Op: step.Op, Args: step.Args})

		out, err := ops[step.Op](ctx, eng, newArgs(label, step.Args))
		if err != nil {
			return nil, err
		}
		result.add(TraceEvent{Type: EventCompletion, Op: step.Op, Result: out})

		if step.Expect != nil {
			if ok, want, got := subset(step.Expect, out); !ok {
				result.AddError(fmt.Sprintf("%s: expected %s, got %s", label, want, got))
			}
		}
		logger.Debug("step completed", "step", i, "op", step.Op, "result", out)
	}
	recording = false

	doc, err := stateDoc(eng.State())
	if err != nil {
		return nil, err
	}
	result.State = doc

	for _, msg := range EvaluateAssertions(result, s.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// stateDoc renders a snapshot as the generic document that final_state
// paths resolve against.
func stateDoc(s engine.AppState) (map[string]any, error) {
	doc := map[string]any{
		"entries":          s.Entries,
		"faults":           s.Faults,
		"settings":         s.Settings,
		"language":         s.Language,
		"device_id":        s.DeviceID,
		"device_name":      s.DeviceName,
		"race_id":          s.RaceID,
		"sync_queue":       s.SyncQueue,
		"gate_assignment":  s.GateAssignment,
		"first_gate_color": s.FirstGateColor,
		"penalty_seconds":  s.PenaltySeconds,
		"use_penalty_mode": s.UsePenaltyMode,
		"finalized_racers": s.FinalizedRacers,
		"undo_depth":       len(s.Undo),
		"redo_depth":       len(s.Redo),
		"revision":         s.Revision,
	}
	out, err := normalize(doc)
	if err != nil {
		return nil, fmt.Errorf("render final state: %w", err)
	}
	return out.(map[string]any), nil
}

// normalize round-trips v through JSON so values from YAML and from the
// engine compare alike.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

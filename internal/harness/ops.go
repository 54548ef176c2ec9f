package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/racelog/internal/engine"
	"github.com/roach88/racelog/internal/entries"
	"github.com/roach88/racelog/internal/faults"
	"github.com/roach88/racelog/internal/merge"
	"github.com/roach88/racelog/internal/model"
)

// opFunc runs one operation and returns its result for the trace.
type opFunc func(ctx context.Context, e *engine.Engine, a args) (map[string]any, error)

var ops = map[string]opFunc{
	"add_entry": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		in := engine.EntryInput{
			ID:     a.str("id"),
			Bib:    a.str("bib"),
			Point:  model.Point(a.str("point")),
			Run:    a.num("run"),
			Status: model.Status(a.str("status")),
		}
		if err := a.err(); err != nil {
			return nil, err
		}
		added, ok := e.AddEntry(in)
		return addedResult(added.ID, ok), nil
	},
	"update_entry": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		var p entries.Patch
		p.Bib = a.optStr("bib")
		if v := a.optStr("point"); v != nil {
			pt := model.Point(*v)
			p.Point = &pt
		}
		p.Run = a.optNum("run")
		if v := a.optStr("status"); v != nil {
			st := model.Status(*v)
			p.Status = &st
		}
		return okResult(a, func() bool { return e.UpdateEntry(a.str("id"), p) })
	},
	"delete_entry": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		return okResult(a, func() bool { return e.DeleteEntry(a.str("id")) })
	},
	"delete_multiple": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		return okResult(a, func() bool { return e.DeleteMultiple(a.strs("ids")) })
	},
	"clear_all": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		return okResult(a, e.ClearAll)
	},
	"undo": func(_ context.Context, e *engine.Engine, _ args) (map[string]any, error) {
		return actionResult(e.Undo()), nil
	},
	"redo": func(_ context.Context, e *engine.Engine, _ args) (map[string]any, error) {
		return actionResult(e.Redo()), nil
	},
	"set_sync": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		s := e.State().Settings
		s.Sync = a.flag("enabled")
		return okResult(a, func() bool { e.SetSettings(s); return true })
	},
	"mark_entry_synced": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		at := a.stamp("at")
		return okResult(a, func() bool { return e.MarkEntrySynced(a.str("id"), at) })
	},

	"add_fault": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		in := faults.Input{
			ID:         a.str("id"),
			Bib:        a.str("bib"),
			Run:        a.num("run"),
			GateNumber: a.num("gate"),
			FaultType:  model.FaultType(a.str("type")),
		}
		if g := a.nums("gate_range"); len(g) == 2 {
			in.GateRange = [2]int{g[0], g[1]}
		}
		if err := a.err(); err != nil {
			return nil, err
		}
		added, ok := e.AddFault(in)
		return addedResult(added.ID, ok), nil
	},
	"update_fault": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		p := a.faultPatch()
		return okResult(a, func() bool { return e.UpdateFault(a.str("id"), p) })
	},
	"edit_fault": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		p := a.faultPatch()
		return okResult(a, func() bool { return e.UpdateFaultWithHistory(a.str("id"), p, a.str("description")) })
	},
	"restore_fault_version": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		return okResult(a, func() bool { return e.RestoreFaultVersion(a.str("id"), a.num("version")) })
	},
	"mark_fault_for_deletion": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		return okResult(a, func() bool { return e.MarkFaultForDeletion(a.str("id")) })
	},
	"approve_fault_deletion": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		return okResult(a, func() bool { return e.ApproveFaultDeletion(a.str("id")) != nil })
	},
	"reject_fault_deletion": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		return okResult(a, func() bool { return e.RejectFaultDeletion(a.str("id")) })
	},
	"remove_fault": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		return okResult(a, func() bool { return e.RemoveFault(a.str("id")) })
	},

	"merge_cloud_entries": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		b, err := a.batch()
		if err != nil {
			return nil, err
		}
		return mergeResult(e.MergeCloudEntries(b)), nil
	},
	"merge_cloud_faults": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		b, err := a.batch()
		if err != nil {
			return nil, err
		}
		return mergeResult(e.MergeFaultsFromCloud(b)), nil
	},
	"remove_deleted_cloud_entries": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		n := e.RemoveDeletedCloudEntries(a.strs("ids"))
		return map[string]any{"removed": n}, a.err()
	},
	"remove_deleted_cloud_faults": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		n := e.RemoveDeletedCloudFaults(a.strs("ids"))
		return map[string]any{"removed": n}, a.err()
	},

	"set_penalty_seconds": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		e.SetPenaltySeconds(a.num("seconds"))
		return map[string]any{"seconds": e.State().PenaltySeconds}, a.err()
	},
	"set_gate_assignment": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		var r *[2]int
		if g := a.nums("range"); len(g) == 2 {
			r = &[2]int{g[0], g[1]}
		}
		return okResult(a, func() bool { return e.SetGateAssignment(r) })
	},
	"finalize_racer": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		return okResult(a, func() bool { return e.FinalizeRacer(a.str("bib"), a.num("run")) })
	},
	"unfinalize_racer": func(_ context.Context, e *engine.Engine, a args) (map[string]any, error) {
		return okResult(a, func() bool { return e.UnfinalizeRacer(a.str("bib"), a.num("run")) })
	},
	"flush": func(ctx context.Context, e *engine.Engine, _ args) (map[string]any, error) {
		if err := e.Flush(ctx); err != nil {
			return map[string]any{"ok": false, "error": err.Error()}, nil
		}
		return map[string]any{"ok": true}, nil
	},
}

func okResult(a args, fn func() bool) (map[string]any, error) {
	ok := fn()
	if err := a.err(); err != nil {
		return nil, err
	}
	return map[string]any{"ok": ok}, nil
}

// addedResult reports the id of a created record, or ok false when the
// engine rejected it.
func addedResult(id string, ok bool) map[string]any {
	if !ok {
		return map[string]any{"ok": false}
	}
	return map[string]any{"id": id}
}

func actionResult(act entries.Action) map[string]any {
	if act == nil {
		return map[string]any{"ok": false}
	}
	return map[string]any{"ok": true, "action": string(act.Kind())}
}

func mergeResult(r merge.Result) map[string]any {
	return map[string]any{
		"added":      r.Added,
		"updated":    r.Updated,
		"unchanged":  r.Unchanged,
		"echoes":     r.Echoes,
		"tombstoned": r.Tombstoned,
		"invalid":    r.Invalid,
	}
}

// args reads typed values out of a YAML argument map. The first type
// mismatch is kept and reported by err.
type args struct {
	m    map[string]any
	bad  *error
	step string
}

func newArgs(step string, m map[string]any) args {
	var bad error
	return args{m: m, bad: &bad, step: step}
}

func (a args) fail(key, want string, v any) {
	if *a.bad == nil {
		*a.bad = fmt.Errorf("%s: arg %q: want %s, got %T", a.step, key, want, v)
	}
}

func (a args) err() error { return *a.bad }

func (a args) str(key string) string {
	if p := a.optStr(key); p != nil {
		return *p
	}
	return ""
}

func (a args) optStr(key string) *string {
	v, ok := a.m[key]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		a.fail(key, "string", v)
		return nil
	}
	return &s
}

func (a args) num(key string) int {
	if p := a.optNum(key); p != nil {
		return *p
	}
	return 0
}

func (a args) optNum(key string) *int {
	v, ok := a.m[key]
	if !ok {
		return nil
	}
	n, ok := toInt(v)
	if !ok {
		a.fail(key, "integer", v)
		return nil
	}
	return &n
}

func (a args) flag(key string) bool {
	v, ok := a.m[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		a.fail(key, "bool", v)
	}
	return b
}

func (a args) stamp(key string) time.Time {
	v, ok := a.m[key]
	if !ok {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err == nil {
			return parsed
		}
	}
	a.fail(key, "RFC 3339 timestamp", v)
	return time.Time{}
}

func (a args) list(key string) []any {
	v, ok := a.m[key]
	if !ok {
		return nil
	}
	l, ok := v.([]any)
	if !ok {
		a.fail(key, "list", v)
	}
	return l
}

func (a args) strs(key string) []string {
	var out []string
	for _, v := range a.list(key) {
		s, ok := v.(string)
		if !ok {
			a.fail(key, "list of strings", v)
			return nil
		}
		out = append(out, s)
	}
	return out
}

func (a args) nums(key string) []int {
	var out []int
	for _, v := range a.list(key) {
		n, ok := toInt(v)
		if !ok {
			a.fail(key, "list of integers", v)
			return nil
		}
		out = append(out, n)
	}
	return out
}

func (a args) faultPatch() faults.Patch {
	var p faults.Patch
	p.Bib = a.optStr("bib")
	p.Run = a.optNum("run")
	p.GateNumber = a.optNum("gate")
	if v := a.optStr("type"); v != nil {
		ft := model.FaultType(*v)
		p.FaultType = &ft
	}
	p.Notes = a.optStr("notes")
	return p
}

// batch renders the records and deleted_ids args as a merge batch.
func (a args) batch() (merge.Batch, error) {
	var b merge.Batch
	for i, rec := range a.list("records") {
		raw, err := json.Marshal(rec)
		if err != nil {
			return merge.Batch{}, fmt.Errorf("%s: records[%d]: %w", a.step, i, err)
		}
		b.Records = append(b.Records, raw)
	}
	b.Tombstones = a.strs("deleted_ids")
	return b, a.err()
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == float64(int64(n)) {
			return int(n), true
		}
	}
	return 0, false
}

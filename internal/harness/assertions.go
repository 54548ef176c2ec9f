package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// AssertionError is returned when an assertion fails. It carries the
// invocations seen so a failure can be read without the golden file.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nInvocations:\n")
		for _, ev := range e.Trace {
			if ev.Type == EventInvocation {
				fmt.Fprintf(&buf, "  [%d] %s %s\n", ev.Seq, ev.Op, render(ev.Args))
			}
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns one message per
// failure, in order.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(r, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(r.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(r.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(r.Trace, a)
	case AssertFinalState:
		return assertFinalState(r.State, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertTraceContains checks that some invocation of the op carries args
// that include the asserted ones.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Type != EventInvocation || ev.Op != a.Op {
			continue
		}
		if ok, _, _ := subset(a.Args, ev.Args); ok {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s with args %s", a.Op, render(a.Args)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first invocation of each op comes after
// the first invocation of the op before it. Other invocations may sit in
// between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	first := make(map[string]int64)
	for _, ev := range trace {
		if ev.Type != EventInvocation {
			continue
		}
		if _, seen := first[ev.Op]; !seen {
			first[ev.Op] = ev.Seq
		}
	}

	for _, op := range a.Ops {
		if _, ok := first[op]; !ok {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Ops); i++ {
		prev, cur := a.Ops[i-1], a.Ops[i]
		if first[prev] >= first[cur] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (seq %d) should be before %s (seq %d)",
					prev, first[prev], cur, first[cur]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if ev.Type == EventInvocation && ev.Op == a.Op {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d invocations of %s", a.Count, a.Op),
			Actual:   fmt.Sprintf("%d invocations", n),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState resolves the dotted path in the final state and checks
// its value or length.
func assertFinalState(state map[string]any, a Assertion) error {
	got, err := lookup(state, a.Path)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("value at %s", a.Path),
			Actual:   err.Error(),
		}
	}

	if a.Length != nil {
		n, ok := length(got)
		if !ok || n != *a.Length {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s has length %d", a.Path, *a.Length),
				Actual:   render(got),
			}
		}
		return nil
	}

	want, err := normalize(a.Equals)
	if err != nil {
		return fmt.Errorf("final_state %s: %w", a.Path, err)
	}
	if !reflect.DeepEqual(want, got) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", a.Path, render(want)),
			Actual:   render(got),
		}
	}
	return nil
}

// lookup walks a dotted path through maps and lists.
func lookup(doc any, path string) (any, error) {
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("no key %q", seg)
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range (len %d)", seg, len(node))
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %T at %q", cur, seg)
		}
	}
	return cur, nil
}

func length(v any) (int, bool) {
	switch n := v.(type) {
	case []any:
		return len(n), true
	case map[string]any:
		return len(n), true
	case nil:
		return 0, true
	}
	return 0, false
}

// subset reports whether every key in want is present in got with an
// equal value after JSON normalisation. It also returns both sides
// rendered for messages.
func subset(want, got map[string]any) (bool, string, string) {
	w, err1 := normalize(want)
	g, err2 := normalize(got)
	if err1 != nil || err2 != nil {
		return false, render(want), render(got)
	}
	wm, _ := w.(map[string]any)
	gm, _ := g.(map[string]any)
	keys := make([]string, 0, len(wm))
	for k := range wm {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !reflect.DeepEqual(wm[k], gm[k]) {
			return false, render(want), render(got)
		}
	}
	return true, render(want), render(got)
}

func render(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is what a golden file holds.
type TraceSnapshot struct {
	Scenario string       `json:"scenario"`
	Trace    []TraceEvent `json:"trace"`
}

// MarshalSnapshot renders a scenario trace as indented JSON with a
// trailing newline. Map keys are sorted, so the output is stable.
func MarshalSnapshot(name string, r *Result) ([]byte, error) {
	b, err := json.MarshalIndent(TraceSnapshot{Scenario: name, Trace: r.Trace}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// RunWithGolden runs a scenario and compares its trace against
// testdata/golden/{name}.golden. Regenerate with -update.
func RunWithGolden(t *testing.T, s *Scenario) (*Result, error) {
	t.Helper()
	r, err := Run(context.Background(), s)
	if err != nil {
		return nil, err
	}
	return r, AssertGolden(t, s.Name, r)
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, name string, r *Result) error {
	t.Helper()
	b, err := MarshalSnapshot(name, r)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, b)
	return nil
}

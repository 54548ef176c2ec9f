package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run of engine operations.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// DeviceName is the name this device starts with. Default "Start".
	DeviceName string `yaml:"device_name,omitempty"`

	// Start is the fake clock's first reading. Default 2026-01-10T09:00:00Z.
	Start time.Time `yaml:"start,omitempty"`

	// Setup steps run first and are left out of the trace.
	Setup []Step `yaml:"setup,omitempty"`

	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions"`
}

// Step invokes one engine operation.
type Step struct {
	Op   string         `yaml:"op"`
	Args map[string]any `yaml:"args,omitempty"`

	// Expect is matched as a subset of the operation's result.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion checks the trace or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Op is used by trace_contains and trace_count.
	Op   string         `yaml:"op,omitempty"`
	Args map[string]any `yaml:"args,omitempty"`

	// Count is used by trace_count.
	Count int `yaml:"count,omitempty"`

	// Ops is used by trace_order.
	Ops []string `yaml:"ops,omitempty"`

	// Path, Equals and Length are used by final_state. Path is dotted;
	// numeric segments index lists.
	Path   string `yaml:"path,omitempty"`
	Equals any    `yaml:"equals,omitempty"`
	Length *int   `yaml:"length,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so a typo cannot silently disable an assertion.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// Validate checks required fields and that every op is known.
func (s *Scenario) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if s.Description == "" {
		errs = append(errs, errors.New("description is required"))
	}
	if len(s.Steps) == 0 {
		errs = append(errs, errors.New("steps list is required and must be non-empty"))
	}
	if len(s.Assertions) == 0 {
		errs = append(errs, errors.New("assertions list is required and must be non-empty"))
	}
	for i, st := range s.Setup {
		if _, ok := ops[st.Op]; !ok {
			errs = append(errs, fmt.Errorf("setup[%d]: unknown op %q", i, st.Op))
		}
	}
	for i, st := range s.Steps {
		if _, ok := ops[st.Op]; !ok {
			errs = append(errs, fmt.Errorf("steps[%d]: unknown op %q", i, st.Op))
		}
	}
	for i, a := range s.Assertions {
		if err := a.validate(); err != nil {
			errs = append(errs, fmt.Errorf("assertions[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (a Assertion) validate() error {
	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return errors.New("op is required for trace_contains")
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return errors.New("ops list is required for trace_order")
		}
	case AssertTraceCount:
		if a.Op == "" {
			return errors.New("op is required for trace_count")
		}
		if a.Count < 0 {
			return errors.New("count must be non-negative for trace_count")
		}
	case AssertFinalState:
		if a.Path == "" {
			return errors.New("path is required for final_state")
		}
		if (a.Equals == nil) == (a.Length == nil) {
			return errors.New("final_state needs exactly one of equals or length")
		}
	case "":
		return errors.New("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

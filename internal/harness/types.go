package harness

// Trace event types.
const (
	EventInvocation = "invocation"
	EventChange     = "change"
	EventCompletion = "completion"
)

// TraceEvent is one line of a scenario trace.
type TraceEvent struct {
	Seq      int64          `json:"seq"`
	Type     string         `json:"type"`
	Op       string         `json:"op"`
	Args     map[string]any `json:"args,omitempty"`
	Slices   []string       `json:"slices,omitempty"`
	Revision int64          `json:"revision,omitempty"`
	Result   map[string]any `json:"result,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// State is the final state document that final_state paths resolve
	// against.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}

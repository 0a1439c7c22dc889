package harness

import "github.com/roach88/xpbd/internal/ir"

// TraceEvent is one recorded engine event.
type TraceEvent struct {
	Seq    int64  `json:"seq"`
	Step   int64  `json:"step"`
	Kind   string `json:"kind"`
	Actor  string `json:"actor,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	RunID string `json:"run_id"`

	// Steps is the number of fixed steps completed.
	Steps int `json:"steps"`

	// Trace contains the recorded events in sequence order.
	Trace []TraceEvent `json:"trace"`

	// Frames holds one recorded frame per completed step.
	Frames []ir.Frame `json:"frames"`

	// Positions maps each attached actor to its final simulated positions.
	Positions map[string][]ir.Vec3 `json:"positions"`

	// Failure is the error of the step that failed, if any.
	Failure string `json:"failure,omitempty"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Positions: make(map[string][]ir.Vec3),
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends a recorded event to the trace.
func (r *Result) AddEvent(ev ir.Event) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:    ev.Seq,
		Step:   ev.Step,
		Kind:   ev.Kind,
		Actor:  ev.Actor,
		Detail: ev.Detail,
	})
}

// LastFrame returns the frame of the last completed step.
func (r *Result) LastFrame() (ir.Frame, bool) {
	if len(r.Frames) == 0 {
		return ir.Frame{}, false
	}
	return r.Frames[len(r.Frames)-1], true
}

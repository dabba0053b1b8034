package harness

import "github.com/roach88/nianio/internal/ir"

// Trace event types.
const (
	EventEnqueue = "enqueue"
	EventStep    = "step"
	EventEffect  = "effect"
	EventFatal   = "fatal"
)

// TraceEvent is one engine event observed while running a scenario.
// Payload is untagged: Worker carries the tag.
type TraceEvent struct {
	Type    string   `json:"type"`
	Seq     int64    `json:"seq"`
	Worker  string   `json:"worker,omitempty"`
	Index   int      `json:"index,omitempty"`
	Payload ir.Value `json:"payload,omitempty"`
	Code    string   `json:"code,omitempty"`
}

// Value renders the event as a Value for canonical serialization.
func (e TraceEvent) Value() ir.Object {
	obj := ir.Object{
		"type": ir.String(e.Type),
		"seq":  ir.Int(e.Seq),
	}
	if e.Worker != "" {
		obj["worker"] = ir.String(e.Worker)
	}
	if e.Type == EventEffect {
		obj["index"] = ir.Int(int64(e.Index))
	}
	if e.Payload != nil {
		obj["payload"] = e.Payload
	}
	if e.Code != "" {
		obj["code"] = ir.String(e.Code)
	}
	return obj
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step expectation and assertion matched.
	Pass bool `json:"pass"`

	// Trace holds every engine event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the engine state after the last step.
	State ir.Value `json:"state"`

	// Fatal is the error code the engine halted with, empty if it didn't.
	Fatal string `json:"fatal,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

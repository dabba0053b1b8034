package engine

import (
	"time"

	"github.com/roach88/nianio/internal/ir"
)

// StartEvent is emitted once the engine has validated its initial state.
type StartEvent struct {
	RunID   string
	State   ir.Value
	Workers []string
}

// EnqueueEvent is emitted after a command is accepted into the backlog.
type EnqueueEvent struct {
	RunID   string
	Worker  string
	Command ir.Value
	Backlog int
}

// StepEvent is emitted after a command has been applied: the new state is
// in place and its effects are about to be dispatched.
type StepEvent struct {
	RunID     string
	Seq       int64
	Worker    string
	Command   ir.Value
	State     ir.Value
	StateHash string
	Effects   []ir.Value
	Duration  time.Duration
}

// DispatchEvent is emitted after an effect handler returns.
type DispatchEvent struct {
	RunID    string
	Seq      int64
	Index    int
	Worker   string
	Payload  ir.Value
	Duration time.Duration
}

// FatalEvent is emitted when the engine halts.
type FatalEvent struct {
	RunID string
	Seq   int64
	Err   error
}

// Hooks are optional observability callbacks.
//
// They run synchronously on the goroutine that triggered them, so a slow
// hook slows the engine. Values in events are copies; hooks may keep them.
// A nil field is skipped.
type Hooks struct {
	OnStart    func(*StartEvent)
	OnEnqueue  func(*EnqueueEvent)
	OnStep     func(*StepEvent)
	OnDispatch func(*DispatchEvent)
	OnFatal    func(*FatalEvent)
}

// hookSet fans events out to every registered Hooks value.
type hookSet []Hooks

func (hs hookSet) start(e *StartEvent) {
	for _, h := range hs {
		if h.OnStart != nil {
			h.OnStart(e)
		}
	}
}

func (hs hookSet) enqueue(e *EnqueueEvent) {
	for _, h := range hs {
		if h.OnEnqueue != nil {
			h.OnEnqueue(e)
		}
	}
}

func (hs hookSet) step(e *StepEvent) {
	for _, h := range hs {
		if h.OnStep != nil {
			h.OnStep(e)
		}
	}
}

func (hs hookSet) dispatch(e *DispatchEvent) {
	for _, h := range hs {
		if h.OnDispatch != nil {
			h.OnDispatch(e)
		}
	}
}

func (hs hookSet) fatal(e *FatalEvent) {
	for _, h := range hs {
		if h.OnFatal != nil {
			h.OnFatal(e)
		}
	}
}

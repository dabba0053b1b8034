package harness

import (
	"fmt"
	"log/slog"

	"github.com/roach88/nianio/internal/compiler"
	"github.com/roach88/nianio/internal/engine"
	"github.com/roach88/nianio/internal/ir"
	"github.com/roach88/nianio/internal/logging"
	"github.com/roach88/nianio/internal/schema"
	"github.com/roach88/nianio/internal/testutil"
)

// DefaultRunID is the run id used when a scenario doesn't set one.
const DefaultRunID = "test-run"

// Harness runs one scenario against a real engine.
//
// Drains are run by a testutil.ManualHost, so a scenario decides exactly
// when the backlog is consumed. Workers are stubs: their effect handlers
// do nothing and effects are observed through engine hooks.
type Harness struct {
	engine *engine.Engine
	host   *testutil.ManualHost
	result *Result
	logger *slog.Logger
}

// Run executes a scenario and returns its result.
//
// An error means the scenario could not be run at all (unknown app,
// unreadable schema, invalid engine configuration). Engine faults are not
// errors: they are part of the result and checked by assertions.
func Run(scenario *Scenario) (*Result, error) {
	app, err := LookupApp(scenario.App)
	if err != nil {
		return nil, err
	}

	reg, err := loadSchema(app, scenario.Schema)
	if err != nil {
		return nil, err
	}

	initial := app.InitialState()
	if scenario.InitialState != nil {
		if initial, err = ir.FromNative(scenario.InitialState); err != nil {
			return nil, fmt.Errorf("initial_state: %w", err)
		}
	}

	workers, err := WorkerNames(reg)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		host:   testutil.NewManualHost(),
		result: NewResult(),
		logger: logging.NewNop(),
	}

	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}

	factories := make(map[string]engine.WorkerFactory, len(workers))
	for _, name := range workers {
		factories[name] = func(engine.PushFunc) engine.EffectHandler {
			return func(ir.Value) {}
		}
	}

	h.engine, err = engine.Start(engine.Config{
		Schema:       reg,
		InitialState: initial,
		Transition:   app.Transition,
		Workers:      factories,
		Host:         h.host,
	},
		engine.WithLogger(h.logger),
		engine.WithHooks(h.hooks()),
		engine.WithRunIDGenerator(testutil.NewFixedRunID(runID)),
	)
	if err != nil && engine.CodeOf(err) == engine.ErrCodeInvalidConfig {
		return nil, fmt.Errorf("start engine: %w", err)
	}

	if err == nil {
		h.host.RunPending()
		for i, step := range scenario.Steps {
			if err := h.executeStep(i, step); err != nil {
				return nil, err
			}
		}
		h.host.RunPending()
		h.result.State = h.engine.State()
	} else {
		// Start itself was fatal: no engine to push into.
		h.result.State = initial
		h.result.Fatal = string(engine.CodeOf(err))
	}
	if h.engine != nil && h.engine.Halted() {
		h.result.Fatal = string(engine.CodeOf(h.engine.Err()))
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func loadSchema(app App, path string) (schema.Registry, error) {
	if path != "" {
		reg, err := compiler.LoadSchemaFile(path)
		if err != nil {
			return nil, fmt.Errorf("load schema: %w", err)
		}
		return reg, nil
	}
	reg, err := app.Schema()
	if err != nil {
		return nil, fmt.Errorf("app %s schema: %w", app.Name, err)
	}
	return reg, nil
}

// hooks turns engine events into trace events.
func (h *Harness) hooks() engine.Hooks {
	return engine.Hooks{
		OnEnqueue: func(e *engine.EnqueueEvent) {
			_, payload, _ := ir.Untag(e.Command)
			h.result.Trace = append(h.result.Trace, TraceEvent{Type: EventEnqueue, Worker: e.Worker, Payload: payload})
		},
		OnStep: func(e *engine.StepEvent) {
			_, payload, _ := ir.Untag(e.Command)
			h.result.Trace = append(h.result.Trace, TraceEvent{Type: EventStep, Seq: e.Seq, Worker: e.Worker, Payload: payload})
		},
		OnDispatch: func(e *engine.DispatchEvent) {
			h.result.Trace = append(h.result.Trace, TraceEvent{
				Type:    EventEffect,
				Seq:     e.Seq,
				Index:   e.Index,
				Worker:  e.Worker,
				Payload: e.Payload,
			})
		},
		OnFatal: func(e *engine.FatalEvent) {
			h.result.Trace = append(h.result.Trace, TraceEvent{Type: EventFatal, Seq: e.Seq, Code: string(engine.CodeOf(e.Err))})
		},
	}
}

// executeStep pushes one command and, unless held, drains.
// Failures of the step's expectation are recorded on the result; the
// returned error is reserved for scenarios that can't be executed.
func (h *Harness) executeStep(i int, step Step) error {
	payload, err := ir.FromNative(step.Payload)
	if err != nil {
		return fmt.Errorf("steps[%d].payload: %w", i, err)
	}

	mark := len(h.result.Trace)
	// Push errors are engine faults and show up in the trace.
	_ = h.engine.Enqueue(step.Push, payload)

	if step.Hold {
		return nil
	}
	h.host.RunPending()

	if step.Expect == nil {
		return nil
	}
	return h.checkExpect(i, step.Expect, h.result.Trace[mark:])
}

func (h *Harness) checkExpect(i int, want *Expect, events []TraceEvent) error {
	var got []ir.Value
	fatal := ""
	for _, e := range events {
		switch e.Type {
		case EventEffect:
			got = append(got, ir.Tag(e.Worker, e.Payload))
		case EventFatal:
			fatal = e.Code
		}
	}

	wantEffects := make([]ir.Value, len(want.Effects))
	for j, raw := range want.Effects {
		v, err := ir.FromNative(raw)
		if err != nil {
			return fmt.Errorf("steps[%d].expect.effects[%d]: %w", i, j, err)
		}
		wantEffects[j] = v
	}

	if len(got) != len(wantEffects) {
		h.result.AddError(fmt.Sprintf("steps[%d]: expected %d effects, got %d: %s",
			i, len(wantEffects), len(got), describeValues(got)))
	} else {
		for j := range got {
			if !ir.Equal(got[j], wantEffects[j]) {
				h.result.AddError(fmt.Sprintf("steps[%d]: effect %d: expected %s, got %s",
					i, j, ir.MustMarshalString(wantEffects[j]), ir.MustMarshalString(got[j])))
			}
		}
	}

	if fatal != want.Fatal {
		h.result.AddError(fmt.Sprintf("steps[%d]: expected fatal %q, got %q", i, want.Fatal, fatal))
	}
	return nil
}

func describeValues(vs []ir.Value) string {
	return ir.MustMarshalString(ir.Array(vs))
}

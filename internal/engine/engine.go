package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/nianio/internal/ir"
	"github.com/roach88/nianio/internal/schema"
)

// TransitionFunc is the application: a pure function from the current state
// and one command to the next state and the effect commands to dispatch.
//
// It receives private copies and may mutate them freely. A returned error
// or a panic halts the engine with ErrCodeTransitionFault.
type TransitionFunc func(state, cmd ir.Value) (next ir.Value, effects []ir.Value, err error)

// Config holds the parameters of Start. Every field is required.
type Config struct {
	// Schema declares the "state", "cmd" and "extCmd" roots.
	Schema schema.Registry

	// InitialState must validate against "state".
	InitialState ir.Value

	// Transition is applied to each command popped from the backlog.
	Transition TransitionFunc

	// Workers maps worker names to factories. Names double as command and
	// effect tags.
	Workers map[string]WorkerFactory

	// Host schedules drains and receives the fatal error.
	Host Host
}

// Option configures optional engine parameters.
type Option func(*Engine)

// WithLogger sets the engine's logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHooks adds observability callbacks. It may be given more than once;
// hooks run in the order they were added.
func WithHooks(h Hooks) Option {
	return func(e *Engine) {
		e.hooks = append(e.hooks, h)
	}
}

// WithRunIDGenerator sets how the run ID is produced. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.runIDs = g
		}
	}
}

// Engine owns the application state and applies commands to it one at a time.
//
// Thread-safety model:
//   - Enqueue (and every PushFunc): safe from any goroutine
//   - drain: only ever runs from Host.ScheduleDeferred, one at a time
//   - accessors: safe from any goroutine
//
// INVARIANTS:
//   - state always validates against the "state" root
//   - at most one drain is scheduled or running at any time
//   - after a fatal error nothing changes state and no drain does work
type Engine struct {
	schema     schema.Registry
	transition TransitionFunc
	host       Host
	logger     *slog.Logger
	hooks      hookSet
	runIDs     RunIDGenerator
	runID      string

	workers *registry
	backlog *backlog
	seq     atomic.Int64

	mu    sync.RWMutex
	state ir.Value
	err   error

	halted   atomic.Bool
	haltOnce sync.Once
}

// Start validates cfg, installs a copy of the initial state and constructs
// every worker in name order.
//
// A configuration problem returns an ErrCodeInvalidConfig error without
// touching the host. An initial state that fails the "state" schema, or a
// worker factory that panics, is fatal: it is reported through
// cfg.Host.TerminateOnFatal and returned.
//
// Commands pushed by factories during construction are kept; the drain they
// need is scheduled once every worker exists.
func Start(cfg Config, opts ...Option) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	e := &Engine{
		schema:     cfg.Schema,
		transition: cfg.Transition,
		host:       cfg.Host,
		logger:     slog.Default(),
		runIDs:     UUIDv7Generator{},
		workers:    newRegistry(cfg.Workers),
		backlog:    newBacklog(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.runID = e.runIDs.Generate()
	e.logger = e.logger.With("run_id", e.runID)

	initial := ir.Clone(cfg.InitialState)
	if err := schema.Verify(initial, schema.StateType, e.schema); err != nil {
		return nil, e.fatal(newSchemaViolation(schema.StateType, "", 0, "initial state", err))
	}
	e.state = initial

	for _, name := range e.workers.Names() {
		handler, err := e.construct(name, cfg.Workers[name])
		if err != nil {
			return nil, e.fatal(err)
		}
		if handler == nil {
			return nil, newInvalidConfig("worker %q factory returned a nil handler", name)
		}
		e.workers.bind(name, handler)

		// A rejected factory push halts the engine.
		if e.halted.Load() {
			return nil, e.Err()
		}
	}

	e.logger.Info("engine started", "workers", e.workers.Names())
	if len(e.hooks) > 0 {
		e.hooks.start(&StartEvent{
			RunID:   e.runID,
			State:   ir.Clone(initial),
			Workers: e.workers.Names(),
		})
	}

	if e.backlog.open() {
		e.host.ScheduleDeferred(e.drain)
	}
	return e, nil
}

func validateConfig(cfg Config) error {
	if cfg.Schema == nil {
		return newInvalidConfig("schema == nil")
	}
	if err := cfg.Schema.Validate(); err != nil {
		return &RuntimeError{Code: ErrCodeInvalidConfig, Message: "invalid schema", Err: err}
	}
	if cfg.Transition == nil {
		return newInvalidConfig("transition == nil")
	}
	if cfg.InitialState == nil {
		return newInvalidConfig("initial state == nil")
	}
	if cfg.Workers == nil {
		return newInvalidConfig("workers == nil")
	}
	for name, f := range cfg.Workers {
		if name == "" {
			return newInvalidConfig("worker name is empty")
		}
		if f == nil {
			return newInvalidConfig("worker %q has a nil factory", name)
		}
	}
	if cfg.Host == nil {
		return newInvalidConfig("host == nil")
	}
	return nil
}

// construct calls one factory with a push scoped to name.
func (e *Engine) construct(name string, factory WorkerFactory) (handler EffectHandler, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &RuntimeError{
				Code:    ErrCodeWorkerFault,
				Message: "worker factory panicked",
				Worker:  name,
				Err:     panicError(r),
			}
		}
	}()

	push := func(payload ir.Value) error {
		return e.Enqueue(name, payload)
	}
	return factory(push), nil
}

// Enqueue submits payload as a command from worker.
//
// The payload is copied, wrapped as {worker: payload} and validated against
// the "cmd" root before it reaches the backlog. An unknown worker or a schema
// violation is fatal. After the engine halts every call returns an
// ErrCodeHalted error and changes nothing.
//
// Enqueue never applies the command itself; it asks the host for a deferred
// drain when none is pending.
func (e *Engine) Enqueue(worker string, payload ir.Value) error {
	if e.halted.Load() {
		return e.haltedError()
	}

	if !e.workers.has(worker) {
		return e.fatal(newUnknownWorker(worker, 0))
	}

	cmd := ir.Tag(worker, ir.Clone(payload))
	if err := schema.Verify(cmd, schema.CommandType, e.schema); err != nil {
		return e.fatal(newSchemaViolation(schema.CommandType, worker, 0, "command", err))
	}

	schedule := e.backlog.push(cmd)

	e.logger.Debug("command enqueued", "worker", worker)
	if len(e.hooks) > 0 {
		e.hooks.enqueue(&EnqueueEvent{
			RunID:   e.runID,
			Worker:  worker,
			Command: ir.Clone(cmd),
			Backlog: e.backlog.Len(),
		})
	}

	if schedule {
		e.host.ScheduleDeferred(e.drain)
	}
	return nil
}

// drain applies backlog commands until the backlog is empty or the engine
// halts. Commands pushed while it runs, including by effect handlers, are
// picked up by this same drain.
func (e *Engine) drain() {
	for {
		if e.halted.Load() {
			return
		}
		cmd, ok := e.backlog.pop()
		if !ok {
			return
		}
		if err := e.step(cmd); err != nil {
			e.fatal(err)
			return
		}
	}
}

// step applies one command. Every check happens before the state is
// replaced; only effect dispatch can fail after it.
func (e *Engine) step(cmd ir.Value) error {
	seq := e.seq.Add(1)
	worker, _, _ := ir.Untag(cmd)
	started := time.Now()

	next, effects, err := e.apply(e.State(), ir.Clone(cmd))
	if err != nil {
		return &RuntimeError{
			Code:    ErrCodeTransitionFault,
			Message: "transition failed",
			Worker:  worker,
			Seq:     seq,
			Err:     err,
		}
	}

	next = ir.Clone(next)
	if err := schema.Verify(next, schema.StateType, e.schema); err != nil {
		return newSchemaViolation(schema.StateType, worker, seq, "new state", err)
	}

	type target struct {
		worker  string
		payload ir.Value
		handler EffectHandler
	}
	targets := make([]target, len(effects))
	for i, eff := range effects {
		eff = ir.Clone(eff)
		if err := schema.Verify(eff, schema.EffectType, e.schema); err != nil {
			return newSchemaViolation(schema.EffectType, worker, seq, fmt.Sprintf("effect %d", i), err)
		}
		name, payload, err := ir.Untag(eff)
		if err != nil {
			return newSchemaViolation(schema.EffectType, worker, seq, fmt.Sprintf("effect %d", i), err)
		}
		h, ok := e.workers.handler(name)
		if !ok {
			return newUnknownWorker(name, seq)
		}
		targets[i] = target{worker: name, payload: payload, handler: h}
	}

	e.mu.Lock()
	e.state = next
	e.mu.Unlock()

	e.logger.Debug("command applied",
		"seq", seq,
		"worker", worker,
		"effects", len(targets),
		"duration", time.Since(started),
	)
	if len(e.hooks) > 0 {
		hash, _ := ir.StateHash(next)
		effCopies := make([]ir.Value, len(targets))
		for i, t := range targets {
			effCopies[i] = ir.Tag(t.worker, ir.Clone(t.payload))
		}
		e.hooks.step(&StepEvent{
			RunID:     e.runID,
			Seq:       seq,
			Worker:    worker,
			Command:   cmd,
			State:     ir.Clone(next),
			StateHash: hash,
			Effects:   effCopies,
			Duration:  time.Since(started),
		})
	}

	for i, t := range targets {
		if err := e.dispatch(seq, i, t.worker, t.payload, t.handler); err != nil {
			return err
		}
	}
	return nil
}

// apply calls the transition function, turning a panic into an error.
func (e *Engine) apply(state, cmd ir.Value) (next ir.Value, effects []ir.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	next, effects, err = e.transition(state, cmd)
	if err == nil && next == nil {
		err = fmt.Errorf("transition returned no state")
	}
	return next, effects, err
}

// dispatch hands one effect payload to its worker.
func (e *Engine) dispatch(seq int64, index int, worker string, payload ir.Value, h EffectHandler) (err error) {
	if e.halted.Load() {
		return e.haltedError()
	}

	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &RuntimeError{
				Code:    ErrCodeWorkerFault,
				Message: "effect handler panicked",
				Worker:  worker,
				Seq:     seq,
				Err:     panicError(r),
			}
		}
	}()

	var hookPayload ir.Value
	if len(e.hooks) > 0 {
		hookPayload = ir.Clone(payload)
	}

	h(payload)

	if len(e.hooks) > 0 {
		e.hooks.dispatch(&DispatchEvent{
			RunID:    e.runID,
			Seq:      seq,
			Index:    index,
			Worker:   worker,
			Payload:  hookPayload,
			Duration: time.Since(started),
		})
	}
	return nil
}

// fatal halts the engine and reports err to the host. Only the first call
// has any effect; every call returns err.
func (e *Engine) fatal(err error) error {
	e.haltOnce.Do(func() {
		e.mu.Lock()
		e.err = err
		e.mu.Unlock()
		e.halted.Store(true)

		e.logger.Error("engine halted", "err", err, "code", CodeOf(err))
		if len(e.hooks) > 0 {
			e.hooks.fatal(&FatalEvent{RunID: e.runID, Seq: e.seq.Load(), Err: err})
		}
		e.host.TerminateOnFatal(err)
	})
	return err
}

func (e *Engine) haltedError() error {
	return &RuntimeError{
		Code:    ErrCodeHalted,
		Message: "engine halted after a fatal error",
		Err:     e.Err(),
	}
}

// State returns a copy of the current state.
func (e *Engine) State() ir.Value {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ir.Clone(e.state)
}

// Backlog returns the number of commands waiting to be applied.
func (e *Engine) Backlog() int {
	return e.backlog.Len()
}

// Pending reports whether a drain is scheduled or running.
func (e *Engine) Pending() bool {
	return e.backlog.Pending()
}

// Seq returns the sequence number of the last applied command, 0 if none.
func (e *Engine) Seq() int64 {
	return e.seq.Load()
}

// RunID identifies this engine run.
func (e *Engine) RunID() string {
	return e.runID
}

// Workers returns the registered worker names in sorted order.
func (e *Engine) Workers() []string {
	return e.workers.Names()
}

// Halted reports whether a fatal error has stopped the engine.
func (e *Engine) Halted() bool {
	return e.halted.Load()
}

// Err returns the fatal error that halted the engine, or nil.
func (e *Engine) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

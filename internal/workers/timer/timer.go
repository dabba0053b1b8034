// Package timer implements the timer worker.
//
// Every effect {"Start": X} arms a one-shot timer. When it fires the worker
// pushes {"TimeOut": X} back to the engine, carrying X unchanged. Timers are
// never cancelled by the worker; callers that need cancellation put an id in
// X and ignore stale timeouts.
package timer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/nianio/internal/engine"
	"github.com/roach88/nianio/internal/ir"
	"github.com/roach88/nianio/internal/schema"
)

// Name is the worker name the game schema expects.
const Name = "TimerWorker"

// DefaultDelay is the move timeout of the game.
const DefaultDelay = 10 * time.Second

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithAfterFunc replaces time.AfterFunc. Tests use it to fire timers by hand.
func WithAfterFunc(fn func(time.Duration, func()) Stopper) Option {
	return func(w *Worker) {
		w.afterFunc = fn
	}
}

// Stopper is the part of *time.Timer the worker uses.
type Stopper interface {
	Stop() bool
}

// Worker owns the pending timers.
type Worker struct {
	delay     time.Duration
	logger    *slog.Logger
	afterFunc func(time.Duration, func()) Stopper

	mu      sync.Mutex
	push    engine.PushFunc
	timers  map[uint64]Stopper
	nextID  uint64
	stopped bool
}

// New creates a timer worker with the given delay.
func New(delay time.Duration, opts ...Option) *Worker {
	w := &Worker{
		delay:  delay,
		logger: slog.Default(),
		afterFunc: func(d time.Duration, fn func()) Stopper {
			return time.AfterFunc(d, fn)
		},
		timers: make(map[uint64]Stopper),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("worker", Name)
	return w
}

// Factory binds the worker to an engine.
func (w *Worker) Factory() engine.WorkerFactory {
	return func(push engine.PushFunc) engine.EffectHandler {
		w.mu.Lock()
		w.push = push
		w.mu.Unlock()
		return w.Handle
	}
}

// Handle arms a timer for a Start effect. Any other payload panics, which
// the engine reports as a worker fault.
func (w *Worker) Handle(payload ir.Value) {
	tag, arg, err := ir.Untag(payload)
	if err != nil {
		panic(fmt.Sprintf("timer: %v", err))
	}
	if tag != "Start" {
		panic(fmt.Sprintf("timer: unknown command %q", tag))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	id := w.nextID
	w.nextID++
	arg = ir.Clone(arg)
	w.timers[id] = w.afterFunc(w.delay, func() { w.fire(id, arg) })
	w.logger.Debug("timer started", "id", id, "delay", w.delay)
}

func (w *Worker) fire(id uint64, arg ir.Value) {
	w.mu.Lock()
	if _, ok := w.timers[id]; !ok || w.stopped {
		w.mu.Unlock()
		return
	}
	delete(w.timers, id)
	push := w.push
	w.mu.Unlock()

	if err := push(ir.Tag("TimeOut", arg)); err != nil {
		w.logger.Warn("timeout rejected", "id", id, "error", err)
	}
}

// Pending returns the number of timers that have not fired.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.timers)
}

// Stop cancels every pending timer. Later Start effects are ignored.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}

// CommandSchema is the command type of a timer worker whose Start payload
// has type arg.
func CommandSchema(arg schema.Type) schema.Type {
	return schema.Variant(map[string]schema.Case{"TimeOut": schema.WithParam(arg)})
}

// EffectSchema is the effect type matching CommandSchema.
func EffectSchema(arg schema.Type) schema.Type {
	return schema.Variant(map[string]schema.Case{"Start": schema.WithParam(arg)})
}

package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/roach88/nianio/internal/schema"
)

// Host binds the engine to its execution environment.
//
// ScheduleDeferred must run fn later, never synchronously inside the call.
// TerminateOnFatal is called at most once per engine, with the error that
// halted it; the host decides how to tear the process down.
type Host interface {
	TerminateOnFatal(err error)
	ScheduleDeferred(fn func())
}

// HostFuncs adapts a pair of functions to the Host interface.
type HostFuncs struct {
	Terminate func(err error)
	Schedule  func(fn func())
}

// TerminateOnFatal implements Host.
func (h HostFuncs) TerminateOnFatal(err error) {
	if h.Terminate != nil {
		h.Terminate(err)
	}
}

// ScheduleDeferred implements Host.
func (h HostFuncs) ScheduleDeferred(fn func()) {
	h.Schedule(fn)
}

// ErrLoopStopped is returned by LoopHost.Run after Stop.
var ErrLoopStopped = errors.New("loop host stopped")

// LoopHost is a single-goroutine event loop for deferred callbacks.
//
// Callbacks run one at a time in the order they were scheduled, on the
// goroutine that called Run. Scheduling is safe from any goroutine.
//
// A fatal error stops the loop: callbacks still queued are dropped and Run
// returns the error. Tearing down the process is left to Run's caller.
type LoopHost struct {
	logger *slog.Logger

	mu      sync.Mutex
	tasks   []func()
	fatal   error
	stopped bool
	signal  chan struct{} // buffered, size 1
	done    chan struct{} // closed on fatal or Stop
}

// NewLoopHost creates a loop host. A nil logger uses slog.Default().
func NewLoopHost(logger *slog.Logger) *LoopHost {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoopHost{
		logger: logger,
		tasks:  make([]func(), 0, 16),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// ScheduleDeferred implements Host.
func (h *LoopHost) ScheduleDeferred(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return
	}
	h.tasks = append(h.tasks, fn)

	// Non-blocking: the buffer of 1 coalesces wakeups.
	select {
	case h.signal <- struct{}{}:
	default:
	}
}

// TerminateOnFatal implements Host. It logs err, records it and stops the loop.
func (h *LoopHost) TerminateOnFatal(err error) {
	attrs := []any{"err", err}
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		attrs = append(attrs, "detail", ve.Detail())
	}
	h.logger.Error("fatal engine error, terminating", attrs...)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fatal == nil {
		h.fatal = err
	}
	h.stopLocked()
}

// Stop ends the loop without an error. Queued callbacks are dropped.
func (h *LoopHost) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
}

func (h *LoopHost) stopLocked() {
	if h.stopped {
		return
	}
	h.stopped = true
	h.tasks = nil
	close(h.done)
}

// Err returns the fatal error reported to the host, if any.
func (h *LoopHost) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fatal
}

// Done is closed once the loop has been stopped by a fatal error or Stop.
func (h *LoopHost) Done() <-chan struct{} {
	return h.done
}

// Run executes callbacks until ctx is cancelled or the loop stops.
// It returns ctx.Err() on cancellation, the fatal error after
// TerminateOnFatal, or ErrLoopStopped after Stop.
//
// Must be called from exactly one goroutine.
func (h *LoopHost) Run(ctx context.Context) error {
	for {
		if err := h.exitErr(); err != nil {
			return err
		}

		if fn, ok := h.next(); ok {
			fn()
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.done:
			// Loop back; exitErr reports why.
		case <-h.signal:
		}
	}
}

func (h *LoopHost) next() (func(), bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.tasks) == 0 {
		return nil, false
	}
	fn := h.tasks[0]
	h.tasks[0] = nil
	h.tasks = h.tasks[1:]
	return fn, true
}

func (h *LoopHost) exitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.stopped {
		return nil
	}
	if h.fatal != nil {
		return h.fatal
	}
	return ErrLoopStopped
}

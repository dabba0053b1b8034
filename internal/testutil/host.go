package testutil

import "sync"

// ManualHost is a deterministic engine.Host for tests.
//
// Deferred callbacks are recorded and only run when the test calls RunOne
// or RunPending, so a test can observe the engine between "drain requested"
// and "drain ran". Fatal reports are recorded instead of tearing anything down.
//
// Thread-safety: all methods are safe for concurrent use. Callbacks run on
// the goroutine that calls RunOne/RunPending.
type ManualHost struct {
	mu       sync.Mutex
	deferred []func()
	fatals   []error
	ran      int
}

// NewManualHost creates an empty manual host.
func NewManualHost() *ManualHost {
	return &ManualHost{}
}

// ScheduleDeferred records fn for a later RunOne/RunPending.
func (h *ManualHost) ScheduleDeferred(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deferred = append(h.deferred, fn)
}

// TerminateOnFatal records err.
func (h *ManualHost) TerminateOnFatal(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fatals = append(h.fatals, err)
}

// Scheduled returns how many callbacks are waiting.
func (h *ManualHost) Scheduled() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.deferred)
}

// Ran returns how many callbacks have been run so far.
func (h *ManualHost) Ran() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ran
}

// RunOne runs the oldest waiting callback. It reports false if none was waiting.
func (h *ManualHost) RunOne() bool {
	h.mu.Lock()
	if len(h.deferred) == 0 {
		h.mu.Unlock()
		return false
	}
	fn := h.deferred[0]
	h.deferred = h.deferred[1:]
	h.ran++
	h.mu.Unlock()

	fn()
	return true
}

// RunPending runs callbacks in FIFO order until none are waiting, including
// callbacks scheduled by the ones it runs. It returns how many ran.
func (h *ManualHost) RunPending() int {
	n := 0
	for h.RunOne() {
		n++
	}
	return n
}

// Fatals returns every error reported through TerminateOnFatal.
func (h *ManualHost) Fatals() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]error, len(h.fatals))
	copy(out, h.fatals)
	return out
}

// Fatal returns the first reported error, or nil.
func (h *ManualHost) Fatal() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.fatals) == 0 {
		return nil
	}
	return h.fatals[0]
}

package engine

import (
	"sync"

	"github.com/roach88/nianio/internal/ir"
)

// backlog is the thread-safe command stack drained by the engine.
//
// Commands are popped last-in first-out. The pending flag records that a
// drain has been requested and not yet finished; it shares the backlog's
// lock so that "backlog empty" and "no drain pending" flip together.
//
// Until open is called, pushes accumulate without requesting a drain. This
// covers commands pushed by worker factories while the engine is starting.
type backlog struct {
	mu       sync.Mutex
	commands []ir.Value
	pending  bool
	opened   bool
}

func newBacklog() *backlog {
	return &backlog{
		commands: make([]ir.Value, 0, 16),
	}
}

// push appends cmd and reports whether the caller must schedule a drain.
// At most one push returns true per drain cycle.
func (b *backlog) push(cmd ir.Value) (schedule bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.commands = append(b.commands, cmd)
	if b.opened && !b.pending {
		b.pending = true
		return true
	}
	return false
}

// open starts accepting drain requests. It reports whether commands pushed
// before opening need a drain scheduled now.
func (b *backlog) open() (schedule bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.opened = true
	if len(b.commands) > 0 && !b.pending {
		b.pending = true
		return true
	}
	return false
}

// pop removes the most recently pushed command.
// When the backlog is empty it clears the pending flag and returns false;
// the next push will then request a new drain.
func (b *backlog) pop() (ir.Value, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.commands)
	if n == 0 {
		b.pending = false
		return nil, false
	}

	cmd := b.commands[n-1]
	// Release the reference so the slot does not pin the command.
	b.commands[n-1] = nil
	b.commands = b.commands[:n-1]
	return cmd, true
}

// Len returns the number of commands waiting.
func (b *backlog) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.commands)
}

// Pending reports whether a drain has been requested and not finished.
func (b *backlog) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

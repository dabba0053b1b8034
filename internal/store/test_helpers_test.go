package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/nianio/internal/ir"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with a counter state.
func createTestRun(id string, started time.Time) Run {
	state := ir.Object{"n": ir.Int(0)}
	hash, _ := ir.StateHash(state)
	return Run{
		ID:           id,
		StartedAt:    started,
		Workers:      []string{"A", "B"},
		InitialState: state,
		StateHash:    hash,
	}
}

// createTestStep creates the step that sets the counter to n.
func createTestStep(runID string, seq, n int64) Step {
	state := ir.Object{"n": ir.Int(n)}
	hash, _ := ir.StateHash(state)
	return Step{
		RunID:     runID,
		Seq:       seq,
		Worker:    "A",
		Command:   ir.Tag("A", ir.Int(n)),
		State:     state,
		StateHash: hash,
		Effects:   1,
		Duration:  time.Millisecond,
	}
}

package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/nianio/internal/engine"
	"github.com/roach88/nianio/internal/ir"
)

// Journal writes engine events to a Store.
//
// Hooks cannot fail the engine, so write errors are logged and the first
// one is kept for Err. The journal is an audit trace; nothing reads it back
// into a running engine.
type Journal struct {
	store  *Store
	logger *slog.Logger
	now    func() time.Time

	mu  sync.Mutex
	err error
}

// NewJournal creates a journal over s.
func NewJournal(s *Store, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{store: s, logger: logger, now: time.Now}
}

// Hooks returns the engine hooks that feed the journal.
func (j *Journal) Hooks() engine.Hooks {
	return engine.Hooks{
		OnStart:    j.onStart,
		OnStep:     j.onStep,
		OnDispatch: j.onDispatch,
		OnFatal:    j.onFatal,
	}
}

// Err returns the first write error, if any.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Journal) record(what string, err error) {
	if err == nil {
		return
	}
	j.logger.Error("journal write failed", "what", what, "error", err)
	j.mu.Lock()
	if j.err == nil {
		j.err = err
	}
	j.mu.Unlock()
}

func (j *Journal) onStart(e *engine.StartEvent) {
	hash, err := ir.StateHash(e.State)
	if err != nil {
		j.record("run", err)
		return
	}
	j.record("run", j.store.WriteRun(context.Background(), Run{
		ID:           e.RunID,
		StartedAt:    j.now(),
		Workers:      e.Workers,
		InitialState: e.State,
		StateHash:    hash,
	}))
}

func (j *Journal) onStep(e *engine.StepEvent) {
	j.record("step", j.store.WriteStep(context.Background(), Step{
		RunID:     e.RunID,
		Seq:       e.Seq,
		Worker:    e.Worker,
		Command:   e.Command,
		State:     e.State,
		StateHash: e.StateHash,
		Effects:   len(e.Effects),
		Duration:  e.Duration,
	}))
}

func (j *Journal) onDispatch(e *engine.DispatchEvent) {
	j.record("effect", j.store.WriteEffect(context.Background(), Effect{
		RunID:    e.RunID,
		Seq:      e.Seq,
		Index:    e.Index,
		Worker:   e.Worker,
		Payload:  e.Payload,
		Duration: e.Duration,
	}))
}

func (j *Journal) onFatal(e *engine.FatalEvent) {
	j.record("fault", j.store.WriteFault(context.Background(), Fault{
		RunID:   e.RunID,
		Seq:     e.Seq,
		Code:    string(engine.CodeOf(e.Err)),
		Message: e.Err.Error(),
	}))
}

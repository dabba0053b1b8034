package store

import (
	"context"
	"fmt"
)

// WriteRun records the start of a run.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	state, err := marshalValue("initial state", run.InitialState)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, workers, initial_state, state_hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.StartedAt.UTC().Format(timeFormat),
		joinNames(run.Workers),
		state,
		run.StateHash,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteStep records an applied command. The run must exist.
func (s *Store) WriteStep(ctx context.Context, step Step) error {
	cmd, err := marshalValue("command", step.Command)
	if err != nil {
		return fmt.Errorf("write step: %w", err)
	}
	state, err := marshalValue("state", step.State)
	if err != nil {
		return fmt.Errorf("write step: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO steps (run_id, seq, worker, command, state, state_hash, effects, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		step.RunID,
		step.Seq,
		step.Worker,
		cmd,
		state,
		step.StateHash,
		step.Effects,
		step.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("write step: %w", err)
	}
	return nil
}

// WriteEffect records a dispatched effect. Its step must exist.
func (s *Store) WriteEffect(ctx context.Context, eff Effect) error {
	payload, err := marshalValue("payload", eff.Payload)
	if err != nil {
		return fmt.Errorf("write effect: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO effects (run_id, seq, idx, worker, payload, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		eff.RunID,
		eff.Seq,
		eff.Index,
		eff.Worker,
		payload,
		eff.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("write effect: %w", err)
	}
	return nil
}

// WriteFault records the error that halted a run. Only the first fault of
// a run is kept.
func (s *Store) WriteFault(ctx context.Context, f Fault) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO faults (run_id, seq, code, message)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, f.RunID, f.Seq, f.Code, f.Message)
	if err != nil {
		return fmt.Errorf("write fault: %w", err)
	}
	return nil
}

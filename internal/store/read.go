package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when a run id is not in the journal.
var ErrRunNotFound = errors.New("run not found")

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ListRuns returns every run, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, workers, initial_state, state_hash
		FROM runs
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns one run. Returns ErrRunNotFound if it doesn't exist.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, workers, initial_state, state_hash
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, workers, initial_state, state_hash
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT 1
	`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run       Run
		startedAt string
		workers   string
		state     string
	)
	if err := row.Scan(&run.ID, &startedAt, &workers, &state, &run.StateHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	t, err := time.Parse(timeFormat, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: started_at: %w", run.ID, err)
	}
	run.StartedAt = t
	run.Workers = splitNames(workers)

	if run.InitialState, err = unmarshalValue("initial state", state); err != nil {
		return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	return run, nil
}

// ReadSteps returns the steps of a run ordered by seq.
// Returns an empty slice (not nil) if the run has no steps.
func (s *Store) ReadSteps(ctx context.Context, runID string) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, worker, command, state, state_hash, effects, duration_ns
		FROM steps
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []Step{}
	for rows.Next() {
		var (
			st         Step
			cmd, state string
			durationNs int64
		)
		if err := rows.Scan(&st.RunID, &st.Seq, &st.Worker, &cmd, &state, &st.StateHash, &st.Effects, &durationNs); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if st.Command, err = unmarshalValue("command", cmd); err != nil {
			return nil, fmt.Errorf("step %d: %w", st.Seq, err)
		}
		if st.State, err = unmarshalValue("state", state); err != nil {
			return nil, fmt.Errorf("step %d: %w", st.Seq, err)
		}
		st.Duration = time.Duration(durationNs)
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

// ReadEffects returns the dispatched effects of a run ordered by (seq, idx).
func (s *Store) ReadEffects(ctx context.Context, runID string) ([]Effect, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, idx, worker, payload, duration_ns
		FROM effects
		WHERE run_id = ?
		ORDER BY seq ASC, idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query effects: %w", err)
	}
	defer rows.Close()

	effects := []Effect{}
	for rows.Next() {
		var (
			eff        Effect
			payload    string
			durationNs int64
		)
		if err := rows.Scan(&eff.RunID, &eff.Seq, &eff.Index, &eff.Worker, &payload, &durationNs); err != nil {
			return nil, fmt.Errorf("scan effect: %w", err)
		}
		if eff.Payload, err = unmarshalValue("payload", payload); err != nil {
			return nil, fmt.Errorf("effect %d/%d: %w", eff.Seq, eff.Index, err)
		}
		eff.Duration = time.Duration(durationNs)
		effects = append(effects, eff)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate effects: %w", err)
	}
	return effects, nil
}

// ReadFault returns the fault that halted a run, or nil if it didn't halt.
func (s *Store) ReadFault(ctx context.Context, runID string) (*Fault, error) {
	var f Fault
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, seq, code, message FROM faults WHERE run_id = ?
	`, runID).Scan(&f.RunID, &f.Seq, &f.Code, &f.Message)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fault: %w", err)
	}
	return &f, nil
}

package store

import (
	"context"
	"fmt"

	"github.com/roach88/nianio/internal/engine"
	"github.com/roach88/nianio/internal/ir"
)

// Mismatch is a step whose recomputed result differs from the journal.
type Mismatch struct {
	Seq    int64  `json:"seq"`
	Reason string `json:"reason"`
}

// ReplayResult summarises a replay check.
type ReplayResult struct {
	RunID      string
	Steps      int
	Mismatches []Mismatch
}

// OK reports whether every step reproduced.
func (r *ReplayResult) OK() bool {
	return len(r.Mismatches) == 0
}

// Replay re-applies the recorded commands of a run, in seq order, to its
// recorded initial state with fn, and compares each resulting state hash
// and effect list with the journal.
//
// This checks that fn is deterministic over the recorded history. It does
// not restore anything into a running engine.
func (s *Store) Replay(ctx context.Context, runID string, fn engine.TransitionFunc) (*ReplayResult, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	steps, err := s.ReadSteps(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	effects, err := s.ReadEffects(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	dispatched := make(map[int64][]Effect)
	for _, eff := range effects {
		dispatched[eff.Seq] = append(dispatched[eff.Seq], eff)
	}

	result := &ReplayResult{RunID: runID}
	state := ir.Clone(run.InitialState)
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Steps++

		next, out, err := fn(ir.Clone(state), ir.Clone(st.Command))
		if err != nil {
			result.Mismatches = append(result.Mismatches, Mismatch{Seq: st.Seq, Reason: fmt.Sprintf("transition failed: %v", err)})
			// Later steps are measured against the journal, not our failure.
			state = st.State
			continue
		}

		hash, err := ir.StateHash(next)
		if err != nil {
			return result, fmt.Errorf("replay step %d: %w", st.Seq, err)
		}
		if hash != st.StateHash {
			result.Mismatches = append(result.Mismatches, Mismatch{Seq: st.Seq, Reason: "state hash differs"})
		}
		if len(out) != st.Effects {
			result.Mismatches = append(result.Mismatches, Mismatch{
				Seq:    st.Seq,
				Reason: fmt.Sprintf("produced %d effects, journal has %d", len(out), st.Effects),
			})
		} else {
			for _, eff := range dispatched[st.Seq] {
				want := ir.Tag(eff.Worker, eff.Payload)
				if !ir.Equal(out[eff.Index], want) {
					result.Mismatches = append(result.Mismatches, Mismatch{
						Seq:    st.Seq,
						Reason: fmt.Sprintf("effect %d differs", eff.Index),
					})
				}
			}
		}
		state = st.State
	}
	return result, nil
}

package store

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nianio/internal/engine"
	"github.com/roach88/nianio/internal/ir"
	"github.com/roach88/nianio/internal/schema"
	"github.com/roach88/nianio/internal/testutil"
)

// counterSchema: the state is an int; worker "C" sends ints and receives
// the running total back.
func counterSchema() schema.Registry {
	c := schema.Variant(map[string]schema.Case{"C": schema.WithParam(schema.Int())})
	return schema.Registry{
		schema.StateType:   schema.Int(),
		schema.CommandType: c,
		schema.EffectType:  c,
	}
}

func addTransition(state, cmd ir.Value) (ir.Value, []ir.Value, error) {
	_, n, err := ir.Untag(cmd)
	if err != nil {
		return nil, nil, err
	}
	total := state.(ir.Int) + n.(ir.Int)
	if total < 0 {
		return nil, nil, errors.New("negative total")
	}
	return total, []ir.Value{ir.Tag("C", total)}, nil
}

func runCounter(t *testing.T, s *Store, pushes ...int64) (*engine.Engine, *Journal) {
	t.Helper()
	host := testutil.NewManualHost()
	j := NewJournal(s, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	j.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	var push engine.PushFunc
	e, err := engine.Start(engine.Config{
		Schema:       counterSchema(),
		InitialState: ir.Int(0),
		Transition:   addTransition,
		Workers: map[string]engine.WorkerFactory{
			"C": func(p engine.PushFunc) engine.EffectHandler {
				push = p
				return func(ir.Value) {}
			},
		},
		Host: host,
	}, engine.WithHooks(j.Hooks()), engine.WithRunIDGenerator(testutil.NewFixedRunID("run-1")))
	require.NoError(t, err)

	for _, n := range pushes {
		_ = push(ir.Int(n))
		host.RunPending()
	}
	return e, j
}

func TestJournal_RecordsRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, j := runCounter(t, s, 1, 2)
	require.NoError(t, j.Err())

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, ir.Int(0), run.InitialState)
	assert.Equal(t, []string{"C"}, run.Workers)

	steps, err := s.ReadSteps(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, ir.Tag("C", ir.Int(1)), steps[0].Command)
	assert.Equal(t, ir.Int(3), steps[1].State)
	assert.Equal(t, 1, steps[1].Effects)

	effects, err := s.ReadEffects(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, effects, 2)
	assert.Equal(t, ir.Int(1), effects[0].Payload)
	assert.Equal(t, ir.Int(3), effects[1].Payload)
	assert.Equal(t, "C", effects[1].Worker)

	f, err := s.ReadFault(ctx, "run-1")
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestJournal_RecordsFault(t *testing.T) {
	s := createTestStore(t)
	e, j := runCounter(t, s, 1, -5)
	require.True(t, e.Halted())
	require.NoError(t, j.Err())

	f, err := s.ReadFault(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, int64(2), f.Seq)
	assert.Equal(t, "TRANSITION_FAULT", f.Code)
	assert.Contains(t, f.Message, "negative total")
}

func TestJournal_KeepsFirstWriteError(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.Close())

	var logs bytes.Buffer
	j := NewJournal(s, slog.New(slog.NewTextHandler(&logs, nil)))
	j.Hooks().OnFatal(&engine.FatalEvent{RunID: "r", Err: errors.New("x")})

	assert.Error(t, j.Err())
	assert.Contains(t, logs.String(), "journal write failed")
}

func TestReplay(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	runCounter(t, s, 1, 2, 3)

	res, err := s.Replay(ctx, "run-1", addTransition)
	require.NoError(t, err)
	assert.True(t, res.OK(), "%v", res.Mismatches)
	assert.Equal(t, 3, res.Steps)

	// A transition that doubles instead of adding no longer reproduces.
	double := func(state, cmd ir.Value) (ir.Value, []ir.Value, error) {
		_, n, _ := ir.Untag(cmd)
		total := state.(ir.Int) + 2*n.(ir.Int)
		return total, []ir.Value{ir.Tag("C", total)}, nil
	}
	res, err = s.Replay(ctx, "run-1", double)
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, int64(1), res.Mismatches[0].Seq)
	assert.Equal(t, "state hash differs", res.Mismatches[0].Reason)

	silent := func(state, cmd ir.Value) (ir.Value, []ir.Value, error) {
		next, _, err := addTransition(state, cmd)
		return next, nil, err
	}
	res, err = s.Replay(ctx, "run-1", silent)
	require.NoError(t, err)
	require.Len(t, res.Mismatches, 3)
	assert.Equal(t, "produced 0 effects, journal has 1", res.Mismatches[0].Reason)

	_, err = s.Replay(ctx, "nope", addTransition)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nianio/internal/ir"
)

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.WriteRun(ctx, createTestRun("r1", time.Now())))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	runs, err := s2.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].ID)
}

func TestOpen_NewerSchemaRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.DB().Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	assert.ErrorContains(t, err, "newer than supported")
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, (&Store{}).Close())
}

func TestRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)
	run := createTestRun("r1", started)

	require.NoError(t, s.WriteRun(ctx, run))
	require.NoError(t, s.WriteRun(ctx, run), "duplicate runs are ignored")

	got, err := s.ReadRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, []string{"A", "B"}, got.Workers)
	assert.Equal(t, run.InitialState, got.InitialState)
	assert.Equal(t, run.StateHash, got.StateHash)

	_, err = s.ReadRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns_OrderAndLatest(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrRunNotFound)

	// Sub-second differences must still sort correctly.
	require.NoError(t, s.WriteRun(ctx, createTestRun("late", base.Add(120*time.Millisecond))))
	require.NoError(t, s.WriteRun(ctx, createTestRun("early", base.Add(100*time.Millisecond))))
	require.NoError(t, s.WriteRun(ctx, createTestRun("first", base)))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"first", "early", "late"}, ids)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "late", latest.ID)
}

func TestSteps_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, createTestRun("r1", time.Now())))

	// Written out of order, read back by seq.
	require.NoError(t, s.WriteStep(ctx, createTestStep("r1", 2, 20)))
	require.NoError(t, s.WriteStep(ctx, createTestStep("r1", 1, 10)))
	require.NoError(t, s.WriteStep(ctx, createTestStep("r1", 1, 99)), "duplicate seq is ignored")

	steps, err := s.ReadSteps(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, createTestStep("r1", 1, 10), steps[0])
	assert.Equal(t, createTestStep("r1", 2, 20), steps[1])

	empty, err := s.ReadSteps(ctx, "other")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestWriteStep_RequiresRun(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteStep(context.Background(), createTestStep("ghost", 1, 1))
	assert.ErrorContains(t, err, "FOREIGN KEY")
}

func TestEffects_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, createTestRun("r1", time.Now())))
	require.NoError(t, s.WriteStep(ctx, createTestStep("r1", 1, 1)))

	eff := Effect{RunID: "r1", Seq: 1, Index: 1, Worker: "B", Payload: ir.String("x"), Duration: time.Microsecond}
	first := Effect{RunID: "r1", Seq: 1, Index: 0, Worker: "A", Payload: ir.Null{}, Duration: time.Microsecond}
	require.NoError(t, s.WriteEffect(ctx, eff))
	require.NoError(t, s.WriteEffect(ctx, first))

	got, err := s.ReadEffects(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []Effect{first, eff}, got)

	err = s.WriteEffect(ctx, Effect{RunID: "r1", Seq: 7, Payload: ir.Null{}})
	assert.Error(t, err, "effect without its step")
}

func TestFault_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	f, err := s.ReadFault(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, f)

	// Faults don't need a run row.
	require.NoError(t, s.WriteFault(ctx, Fault{RunID: "r1", Seq: 0, Code: "SCHEMA_VIOLATION", Message: "bad"}))
	require.NoError(t, s.WriteFault(ctx, Fault{RunID: "r1", Seq: 3, Code: "OTHER", Message: "later"}))

	f, err = s.ReadFault(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, &Fault{RunID: "r1", Seq: 0, Code: "SCHEMA_VIOLATION", Message: "bad"}, f)
}

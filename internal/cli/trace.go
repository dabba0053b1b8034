package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/nianio/internal/game"
	"github.com/roach88/nianio/internal/ir"
	"github.com/roach88/nianio/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal string
	RunID   string // run to show; "latest" for the newest
	Verify  bool   // replay the run through the game transition
}

// RunSummary is one line of the run listing.
type RunSummary struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Workers   []string  `json:"workers"`
}

// TraceStep is one applied command with the effects it dispatched.
type TraceStep struct {
	Seq       int64      `json:"seq"`
	Worker    string     `json:"worker"`
	Command   ir.Value   `json:"command"`
	StateHash string     `json:"state_hash"`
	Effects   []ir.Value `json:"effects"`
}

// TraceResult holds the complete trace of one run.
type TraceResult struct {
	RunID        string         `json:"run_id"`
	StartedAt    time.Time      `json:"started_at"`
	Workers      []string       `json:"workers"`
	InitialState ir.Value       `json:"initial_state"`
	Steps        []TraceStep    `json:"steps"`
	Fault        *store.Fault   `json:"fault,omitempty"`
	Replay       *ReplayOutcome `json:"replay,omitempty"`
}

// ReplayOutcome reports --verify.
type ReplayOutcome struct {
	Steps      int              `json:"steps"`
	Mismatches []store.Mismatch `json:"mismatches"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect a journal",
		Long: `Read the journal written by "nianio run --journal".

Without --run, lists the recorded runs. With --run, prints each applied
command of that run with the effects it dispatched, and the fault that
halted it if any.

--verify re-applies the run's commands to its initial state with the game's
transition function and reports every step whose state hash or effects
differ from the journal. The journal is never loaded back into an engine.

Examples:
  nianio trace --journal ./nianio.db
  nianio trace --journal ./nianio.db --run latest
  nianio trace --journal ./nianio.db --run 0192... --verify --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().StringVar(&opts.RunID, "run", "", `run id to show, or "latest"`)
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "replay the run and compare with the journal")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	// store.Open would create a missing file.
	if _, err := os.Stat(opts.Journal); err != nil {
		if opts.Format == "json" {
			_ = formatter.Error(ErrCodeNotFound, "journal not found", opts.Journal)
		}
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	st, err := store.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		if opts.Verify {
			return NewExitError(ExitCommandError, "--verify needs --run")
		}
		return listRuns(ctx, st, formatter)
	}

	var run store.Run
	if opts.RunID == "latest" {
		run, err = st.LatestRun(ctx)
	} else {
		run, err = st.ReadRun(ctx, opts.RunID)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		if opts.Format == "json" {
			_ = formatter.Error(ErrCodeNoRuns, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "no such run", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	result, err := buildTrace(ctx, st, run)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	if opts.Verify {
		rr, err := st.Replay(ctx, run.ID, game.Transition)
		if err != nil {
			return WrapExitError(ExitCommandError, "replay failed", err)
		}
		result.Replay = &ReplayOutcome{Steps: rr.Steps, Mismatches: rr.Mismatches}
		if result.Replay.Mismatches == nil {
			result.Replay.Mismatches = []store.Mismatch{}
		}
	}

	diverged := result.Replay != nil && len(result.Replay.Mismatches) > 0
	if opts.Format == "json" {
		var failed *CLIError
		if diverged {
			failed = &CLIError{
				Code:    ErrCodeNondeterminism,
				Message: fmt.Sprintf("%d step(s) did not reproduce", len(result.Replay.Mismatches)),
			}
		}
		if err := formatter.Result(result, failed); err != nil {
			return err
		}
	} else {
		printTrace(formatter, result)
	}

	if diverged {
		return NewExitError(ExitFailure, "replay diverged from journal")
	}
	return nil
}

func listRuns(ctx context.Context, st *store.Store, f *OutputFormatter) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	summaries := make([]RunSummary, len(runs))
	for i, r := range runs {
		summaries[i] = RunSummary{ID: r.ID, StartedAt: r.StartedAt, Workers: r.Workers}
	}
	if f.Format == "json" {
		return f.Success(summaries)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(f.Writer, "No runs recorded.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(f.Writer, "%s  %s  %v\n", s.ID, s.StartedAt.Format(time.RFC3339), s.Workers)
	}
	return nil
}

func buildTrace(ctx context.Context, st *store.Store, run store.Run) (*TraceResult, error) {
	steps, err := st.ReadSteps(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	effects, err := st.ReadEffects(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	fault, err := st.ReadFault(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	bySeq := make(map[int64][]ir.Value)
	for _, e := range effects {
		bySeq[e.Seq] = append(bySeq[e.Seq], ir.Tag(e.Worker, e.Payload))
	}

	result := &TraceResult{
		RunID:        run.ID,
		StartedAt:    run.StartedAt,
		Workers:      run.Workers,
		InitialState: run.InitialState,
		Steps:        make([]TraceStep, len(steps)),
		Fault:        fault,
	}
	for i, s := range steps {
		dispatched := bySeq[s.Seq]
		if dispatched == nil {
			dispatched = []ir.Value{}
		}
		result.Steps[i] = TraceStep{
			Seq:       s.Seq,
			Worker:    s.Worker,
			Command:   s.Command,
			StateHash: s.StateHash,
			Effects:   dispatched,
		}
	}
	return result, nil
}

func printTrace(f *OutputFormatter, t *TraceResult) {
	w := f.Writer
	fmt.Fprintf(w, "Run %s (started %s, workers %v)\n", t.RunID, t.StartedAt.Format(time.RFC3339), t.Workers)
	fmt.Fprintf(w, "Initial state: %s\n\n", ir.MustMarshalString(t.InitialState))

	for _, s := range t.Steps {
		fmt.Fprintf(w, "[%d] %s\n", s.Seq, ir.MustMarshalString(s.Command))
		for _, e := range s.Effects {
			fmt.Fprintf(w, "    → %s\n", ir.MustMarshalString(e))
		}
		if f.Verbose {
			fmt.Fprintf(w, "    state %s\n", s.StateHash)
		}
	}

	if t.Fault != nil {
		fmt.Fprintf(w, "\nHalted at seq %d: [%s] %s\n", t.Fault.Seq, t.Fault.Code, t.Fault.Message)
	}

	if r := t.Replay; r != nil {
		fmt.Fprintln(w)
		if len(r.Mismatches) == 0 {
			fmt.Fprintf(w, "✓ Replay reproduced %d step(s)\n", r.Steps)
			return
		}
		fmt.Fprintf(w, "✗ Replay diverged at %d of %d step(s)\n", len(r.Mismatches), r.Steps)
		for _, m := range r.Mismatches {
			fmt.Fprintf(w, "  seq %d: %s\n", m.Seq, m.Reason)
		}
	}
}

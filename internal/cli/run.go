package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/nianio/internal/config"
	"github.com/roach88/nianio/internal/engine"
	"github.com/roach88/nianio/internal/game"
	"github.com/roach88/nianio/internal/logging"
	"github.com/roach88/nianio/internal/metrics"
	"github.com/roach88/nianio/internal/store"
	"github.com/roach88/nianio/internal/workers/httpworker"
	"github.com/roach88/nianio/internal/workers/timer"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config config.Config

	// Listener replaces Config.HTTPAddr (for testing).
	Listener net.Listener

	// RunIDs overrides the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}
	var flags config.Config

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Serve the tic-tac-toe game",
		Long: `Start the engine with the game's schema and transition function, an HTTP
worker and a timer worker, and serve the game until interrupted.

Play with:
  curl 'localhost:8000/?id=g&action=start'
  curl 'localhost:8000/?id=g&action=move&move=4'
  curl 'localhost:8000/?id=g&action=end'

Settings come from NIANIO_* environment variables; flags override them.

Example:
  nianio run --addr :9000 --timer-delay 30s
  nianio run --journal ./nianio.db --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			applyRunFlags(cmd, &cfg, flags)
			if err := cfg.Validate(); err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			opts.Config = cfg
			return runServer(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&flags.HTTPAddr, "addr", ":8000", "game HTTP listen address")
	cmd.Flags().DurationVar(&flags.TimerDelay, "timer-delay", 10*time.Second, "time allowed per move")
	cmd.Flags().StringVar(&flags.Journal, "journal", "", "path to SQLite journal (disabled if empty)")
	cmd.Flags().StringVar(&flags.MetricsAddr, "metrics-addr", "", "metrics listen address (disabled if empty)")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&flags.LogFormat, "log-format", "text", "log format (text|json)")

	return cmd
}

// applyRunFlags copies the flags the user set over cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, flags config.Config) {
	set := cmd.Flags().Changed
	if set("addr") {
		cfg.HTTPAddr = flags.HTTPAddr
	}
	if set("timer-delay") {
		cfg.TimerDelay = flags.TimerDelay
	}
	if set("journal") {
		cfg.Journal = flags.Journal
	}
	if set("metrics-addr") {
		cfg.MetricsAddr = flags.MetricsAddr
	}
	if set("log-level") {
		cfg.LogLevel = flags.LogLevel
	}
	if set("log-format") {
		cfg.LogFormat = flags.LogFormat
	}
}

func runServer(parent context.Context, opts *RunOptions, cmd *cobra.Command) error {
	cfg := opts.Config

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := logging.New(level, cfg.LogFormat, cmd.ErrOrStderr())

	reg, err := game.Schema()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile game schema", err)
	}

	web := httpworker.NewGameWorker(httpworker.WithLogger(logger))
	timers := timer.New(cfg.TimerDelay, timer.WithLogger(logger))
	defer timers.Stop()

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}

	var journal *store.Journal
	if cfg.Journal != "" {
		st, err := store.Open(cfg.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		journal = store.NewJournal(st, logger)
		engineOpts = append(engineOpts, engine.WithHooks(journal.Hooks()))
		logger.Info("journal ready", "path", cfg.Journal)
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
		engineOpts = append(engineOpts, engine.WithHooks(m.Hooks()))
	}

	host := engine.NewLoopHost(logger)
	eng, err := engine.Start(engine.Config{
		Schema:       reg,
		InitialState: game.InitialState(),
		Transition:   game.Transition,
		Workers: map[string]engine.WorkerFactory{
			game.HttpWorker:  web.Factory(),
			game.TimerWorker: timers.Factory(),
		},
		Host: host,
	}, engineOpts...)
	if err != nil {
		return WrapExitError(ExitFailure, "engine failed to start", err)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := host.Run(gctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, engine.ErrLoopStopped) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		if opts.Listener != nil {
			return httpworker.ServeListener(gctx, opts.Listener, web.Handler(), logger)
		}
		return httpworker.Serve(gctx, cfg.HTTPAddr, web.Handler(), logger)
	})
	if m != nil {
		g.Go(func() error {
			return httpworker.Serve(gctx, cfg.MetricsAddr, m.Handler(), logger)
		})
	}
	g.Go(func() error {
		// Waiting requests would otherwise hold up the HTTP shutdown.
		<-gctx.Done()
		web.Close()
		timers.Stop()
		return nil
	})

	logger.Info("game running", "run_id", eng.RunID(), "addr", cfg.HTTPAddr, "timer_delay", cfg.TimerDelay)
	fmt.Fprintln(cmd.OutOrStdout(), "Engine started. Press Ctrl-C to stop.")

	err = g.Wait()
	if journal != nil && journal.Err() != nil {
		logger.Warn("journal is incomplete", "error", journal.Err())
	}
	if err != nil {
		if engine.CodeOf(err) != "" {
			return WrapExitError(ExitFailure, "engine halted", err)
		}
		return WrapExitError(ExitCommandError, "server error", err)
	}

	logger.Info("stopped", "run_id", eng.RunID(), "steps", eng.Seq())
	return nil
}

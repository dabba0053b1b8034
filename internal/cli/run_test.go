package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nianio/internal/config"
	"github.com/roach88/nianio/internal/testutil"
)

func get(t *testing.T, addr, query string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + addr + "/?" + query)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// serveGame runs the run command's server until the returned stop is called.
func serveGame(t *testing.T, journal string) (addr string, stop func() error) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Config: config.Config{
			HTTPAddr:   ln.Addr().String(),
			TimerDelay: time.Minute,
			LogLevel:   "info",
			LogFormat:  "text",
			Journal:    journal,
		},
		Listener: ln,
		RunIDs:   testutil.NewFixedRunID("run-1"),
	}
	cmd := &cobra.Command{}
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, opts, cmd) }()

	stopped := false
	stop = func() error {
		if stopped {
			return nil
		}
		stopped = true
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("server did not stop")
			return nil
		}
	}
	t.Cleanup(func() { _ = stop() })
	return ln.Addr().String(), stop
}

func TestRun_ServesGame(t *testing.T) {
	addr, stop := serveGame(t, "")

	code, body := get(t, addr, "id=g&action=start")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"Message":"Game started"}`, body)

	code, body = get(t, addr, "id=g&action=move&move=4")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"Board":["O"," "," "," ","X"," "," "," "," "],"State":{"Playing":null}}`, body)

	code, _ = get(t, addr, "id=g")
	assert.Equal(t, http.StatusBadRequest, code)

	require.NoError(t, stop())
}

func TestRun_JournalThenTrace(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "nianio.db")
	addr, stop := serveGame(t, journal)

	get(t, addr, "id=g&action=start")
	get(t, addr, "id=g&action=move&move=4")
	get(t, addr, "id=g&action=end")
	require.NoError(t, stop())

	t.Run("list", func(t *testing.T) {
		out, err := execute(t, "trace", "--journal", journal)
		require.NoError(t, err)
		assert.Contains(t, out, "run-1")
		assert.Contains(t, out, "[HttpWorker TimerWorker]")
	})

	t.Run("show and verify", func(t *testing.T) {
		out, err := execute(t, "trace", "--journal", journal, "--run", "latest", "--verify")
		require.NoError(t, err)
		assert.Contains(t, out, "Run run-1")
		assert.Contains(t, out, `[3] {"HttpWorker":{"Command":{"EndGame":null},"ConnectionId":`)
		assert.Contains(t, out, "Replay reproduced 3 step(s)")
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "--format", "json", "trace", "--journal", journal, "--run", "run-1", "--verify")
		require.NoError(t, err)

		var resp struct {
			Status string
			Data   struct {
				RunID string `json:"run_id"`
				Steps []struct {
					Seq     int64             `json:"seq"`
					Effects []json.RawMessage `json:"effects"`
				} `json:"steps"`
				Replay struct {
					Steps      int   `json:"steps"`
					Mismatches []any `json:"mismatches"`
				} `json:"replay"`
			}
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "run-1", resp.Data.RunID)
		require.Len(t, resp.Data.Steps, 3)
		assert.Len(t, resp.Data.Steps[0].Effects, 2)
		assert.Len(t, resp.Data.Steps[2].Effects, 1)
		assert.Equal(t, 3, resp.Data.Replay.Steps)
		assert.Empty(t, resp.Data.Replay.Mismatches)
	})
}

func TestRun_InvalidConfiguration(t *testing.T) {
	t.Run("env", func(t *testing.T) {
		t.Setenv("NIANIO_LOG_FORMAT", "xml")
		_, err := execute(t, "run")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("flag", func(t *testing.T) {
		_, err := execute(t, "run", "--timer-delay", "0s")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timer delay must be positive")
	})

	t.Run("log level", func(t *testing.T) {
		_, err := execute(t, "run", "--log-level", "loud")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

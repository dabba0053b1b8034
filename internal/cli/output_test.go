package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResponse(t *testing.T, buf *bytes.Buffer) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp), buf.String())
	return resp
}

func TestOutputFormatter_JSON(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, f.Success(RunSummary{ID: "run-1"}))

		resp := decodeResponse(t, buf)
		assert.Equal(t, "ok", resp.Status)
		assert.Nil(t, resp.Error)
		assert.Equal(t, "run-1", resp.Data.(map[string]any)["id"])
	})

	t.Run("error", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, f.Error(ErrCodeNotFound, "journal not found", "/tmp/j.db"))

		resp := decodeResponse(t, buf)
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
		assert.Equal(t, "journal not found", resp.Error.Message)
		assert.Equal(t, "/tmp/j.db", resp.Error.Details)
	})

	t.Run("result with failure keeps data", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		failed := &CLIError{Code: ErrCodeTestFailed, Message: "1 scenario(s) failed"}
		require.NoError(t, f.Result(TestResult{Failed: 1, Total: 1}, failed))

		resp := decodeResponse(t, buf)
		assert.Equal(t, "error", resp.Status)
		assert.EqualValues(t, 1, resp.Data.(map[string]any)["failed"])
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	})

	t.Run("result without failure", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, f.Result(ValidationResult{Valid: true}, nil))
		assert.Equal(t, "ok", decodeResponse(t, buf).Status)
	})
}

func TestOutputFormatter_Text(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		want    []string
		notWant []string
	}{
		{
			name:    "quiet",
			want:    []string{"Error [E100]: validation failed"},
			notWant: []string{"Details:"},
		},
		{
			name:    "verbose",
			verbose: true,
			want:    []string{"Error [E100]: validation failed", "Details: schema.cue"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}
			require.NoError(t, f.Error(ErrCodeSchema, "validation failed", "schema.cue"))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, buf.String(), w)
			}
		})
	}

	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, f.Success("No runs recorded."))
	assert.Equal(t, "No runs recorded.\n", buf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}

	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}
	f.VerboseLog("Running %s", "game_win.yaml")
	assert.Empty(t, out.String(), "diagnostics must not corrupt JSON output")
	assert.Equal(t, "Running game_win.yaml\n", diag.String())

	diag.Reset()
	f.Verbose = false
	f.VerboseLog("Running %s", "game_win.yaml")
	assert.Empty(t, diag.String())

	f = &OutputFormatter{Format: "text", Writer: out, Verbose: true}
	assert.Same(t, out, f.GetErrWriter())
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"failure", NewExitError(ExitFailure, "boom"), ExitFailure},
		{"wrapped command error", fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "bad flag")), ExitCommandError},
		{"plain error", errors.New("unknown flag"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestWrapExitError(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapExitError(ExitFailure, "write failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "write failed: disk full", err.Error())
	assert.Equal(t, "bad flag", NewExitError(ExitCommandError, "bad flag").Error())
}

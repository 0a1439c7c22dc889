package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pendulumKick = "{at: 10, kind: impulse, actor: rope, particles: [6], vector: [0, 0, 2]}"

func TestReplayMissingDBFlag(t *testing.T) {
	_, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayNonExistentDatabase(t *testing.T) {
	_, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}),
		"--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestReplayDeterministic(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	recordRun(t, dbPath, "pendulum.cue", "run-replay", 30, pendulumKick)

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Replay of run run-replay (pendulum, native backend)")
	assert.Contains(t, out, "Steps replayed: 30 of 30")
	assert.Contains(t, out, "✓ All steps verified deterministic")
}

func TestReplayJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	recordRun(t, dbPath, "pendulum.cue", "run-json", 15)

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--run", "run-json")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayReport `json:"data"`
	}
	decodeJSON(t, []byte(out), &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Deterministic)
	assert.Equal(t, 15, resp.Data.Steps)
	assert.Equal(t, "run-json", resp.Data.RunID)
}

func TestReplayOnNullBackendMismatches(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	recordRun(t, dbPath, "pendulum.cue", "run-null", 10)

	// The null backend never moves particles, so the falling rope diverges
	// on the first step.
	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "--backend", "null")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayReport `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	decodeJSON(t, []byte(out), &resp)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_DETERMINISM", resp.Error.Code)
	assert.False(t, resp.Data.Deterministic)
	assert.Equal(t, "null", resp.Data.Backend)
	assert.Equal(t, int64(1), resp.Data.FirstMismatch)
	assert.NotEqual(t, resp.Data.Expected, resp.Data.Actual)
}

func TestReplayUnknownRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	recordRun(t, dbPath, "pendulum.cue", "run-known", 2)

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--run", "zzz")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	decodeJSON(t, []byte(out), &resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnknownRun, resp.Error.Code)
}

func TestReplayRunPrefix(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	recordRun(t, dbPath, "pendulum.cue", "alpha-run", 5)
	recordRun(t, dbPath, "two_ropes.cue", "beta-run", 5)

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", "alpha")
	require.NoError(t, err)
	assert.Contains(t, out, "alpha-run (pendulum")
}

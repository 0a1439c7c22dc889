package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xpbd/internal/engine"
	"github.com/roach88/xpbd/internal/ir"
	"github.com/roach88/xpbd/internal/store"
)

func TestRunMissingDatabaseFlag(t *testing.T) {
	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), scenePath("pendulum.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestRunInvalidScene(t *testing.T) {
	dir := t.TempDir()
	path := writeScene(t, dir, "broken.cue", brokenScene)

	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}),
		"--db", filepath.Join(dir, "trace.db"), "--steps", "10", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scene")
}

func TestRunNonExistentScene(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}),
		"--db", filepath.Join(dir, "trace.db"), "/nonexistent/scene.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scene path not found")
}

func TestRunUnknownBackend(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}),
		"--db", filepath.Join(dir, "trace.db"), "--steps", "1", "--backend", "gpu", scenePath("pendulum.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var rerr *engine.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, engine.ErrCodeBackendUnavailable, rerr.Code)
}

func TestRunInvalidCommandFlag(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}),
		"--db", filepath.Join(dir, "trace.db"), "--steps", "5",
		"--cmd", "{at: 1, kind: explode, actor: rope}", scenePath("pendulum.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown command "explode"`)
}

func TestRunFixedSteps(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	report := recordRun(t, dbPath, "pendulum.cue", "run-fixed", 30,
		"{at: 10, kind: impulse, actor: rope, particles: [6], vector: [0, 0, 2]}")

	assert.Equal(t, "run-fixed", report.RunID)
	assert.Equal(t, "pendulum", report.Scene)
	assert.Equal(t, "native", report.Backend)
	assert.Equal(t, 30, report.Ticks)
	assert.Equal(t, 30, report.Steps)
	assert.False(t, report.Failed)
	assert.NotEmpty(t, report.StateHash)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	frames, err := st.ReadFrames(ctx, "run-fixed")
	require.NoError(t, err)
	require.Len(t, frames, 30)
	assert.Equal(t, report.StateHash, frames[29].StateHash)

	commands, err := st.ReadEventsByKind(ctx, "run-fixed", ir.EventCommand)
	require.NoError(t, err)
	require.Len(t, commands, 1)
	assert.Equal(t, int64(10), commands[0].Step)
	assert.Equal(t, "rope", commands[0].Actor)
}

func TestRunIsDeterministic(t *testing.T) {
	dir := t.TempDir()

	kick := "{at: 5, kind: impulse, actor: rope, vector: [0.5, 0, 0]}"
	a := recordRun(t, filepath.Join(dir, "a.db"), "pendulum.cue", "run-a", 20, kick)
	b := recordRun(t, filepath.Join(dir, "b.db"), "pendulum.cue", "run-b", 20, kick)

	assert.Equal(t, a.StateHash, b.StateHash)
}

func TestRunLargeDtRunsSeveralStepsPerTick(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "trace.db")

	out, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--steps", "4", "--dt", "0.04", scenePath("two_ropes.cue"))
	require.NoError(t, err)

	// 4 ticks of 0.04s at 60Hz is 9.6 steps; the remainder carries over.
	assert.Contains(t, out, "ticks: 4, steps: 9")
	_, statErr := os.Stat(dbPath)
	assert.NoError(t, statErr, "database should be created")
}

func TestRunRealtimeStopsOnContext(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "trace.db")

	cmd := NewRunCommand(&RootOptions{Format: "json"})
	cmd.SetOut(&discard{})
	cmd.SetErr(&discard{})
	cmd.SetArgs([]string{"--db", dbPath, scenePath("two_ropes.cue")})

	ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- cmd.ExecuteContext(ctx)
	}()

	select {
	case err := <-errChan:
		require.NoError(t, err, "cancellation is a clean shutdown")
	case <-time.After(5 * time.Second):
		t.Fatal("command did not respect context timeout")
	}

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunRealtimeRejectsScheduledCommands(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}),
		"--db", filepath.Join(dir, "trace.db"),
		"--cmd", "{at: 3, kind: set_wind, vector: [1, 0, 0]}", scenePath("two_ropes.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs --steps")
}

func TestParseCommandFlags(t *testing.T) {
	cmds, err := ParseCommandFlags([]string{
		`{"at": 8, "kind": "set_gravity", "vector": [0, -1, 0]}`,
		"{at: 2, kind: impulse, actor: rope, particles: [1, 2], vector: [1, 0, 0]}",
		"{kind: remove_actor, actor: rope}",
	})
	require.NoError(t, err)
	require.Len(t, cmds, 3)

	assert.Equal(t, 0, cmds[0].At)
	assert.Equal(t, engine.CommandRemoveActor, cmds[0].Command.Kind)
	assert.Equal(t, 2, cmds[1].At)
	assert.Equal(t, []int{1, 2}, cmds[1].Command.Particles)
	assert.Equal(t, 8, cmds[2].At)
	assert.Equal(t, engine.CommandSetGravity, cmds[2].Command.Kind)
	assert.InDelta(t, -1.0, cmds[2].Command.Vector[1], 1e-12)
}

func TestParseCommandFlagsErrors(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"not_a_mapping", "[1, 2]", "invalid --cmd 1"},
		{"negative_at", "{at: -1, kind: set_wind}", "must not be negative"},
		{"tick", "{kind: tick}", "driven by --steps"},
		{"short_vector", "{kind: set_wind, vector: [1, 0]}", "3 components"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommandFlags([]string{tt.value})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunHelpText(t *testing.T) {
	out, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "Simulate a scene and record")
	assert.Contains(t, out, "--db")
	assert.Contains(t, out, "scene.cue")
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

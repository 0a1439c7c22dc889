package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xpbd/internal/ir"
)

func TestTraceMissingDBFlag(t *testing.T) {
	_, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceTimeline(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	recordRun(t, dbPath, "pendulum.cue", "run-trace", 30, pendulumKick)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)

	assert.Contains(t, out, "Trace for Run: run-trace")
	assert.Contains(t, out, "Scene: pendulum (native backend)")
	assert.Contains(t, out, "Status: OK")
	assert.Contains(t, out, "[1] step 0 ACTOR_ADDED rope")
	assert.Contains(t, out, "[2] step 10 COMMAND rope")
	assert.Contains(t, out, "Frames:      30")
	assert.Contains(t, out, "command: 1")
	// Details only in verbose mode
	assert.NotContains(t, out, "Detail:")
}

func TestTraceVerboseShowsDetail(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	recordRun(t, dbPath, "pendulum.cue", "run-verbose", 12, pendulumKick)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "text", Verbose: true}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Detail: {actor=rope, kind=impulse, particles=[6], vector=[0, 0, 2]}")
}

func TestTraceJSONWithKindFilter(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	recordRun(t, dbPath, "two_ropes.cue", "run-kinds", 20,
		"{at: 5, kind: remove_actor, actor: left}",
		"{at: 10, kind: add_actor, actor: left}")

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "--kind", ir.EventCommand)
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	decodeJSON(t, []byte(out), &resp)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Timeline, 2)
	assert.Equal(t, "remove_actor", resp.Data.Timeline[0].Detail["kind"])
	assert.Equal(t, int64(5), resp.Data.Timeline[0].Step)
	assert.Equal(t, "add_actor", resp.Data.Timeline[1].Detail["kind"])

	// Stats cover the whole run, not just the filtered kind.
	assert.Equal(t, 3, resp.Data.Stats.Events[ir.EventActorAdded])
	assert.Equal(t, 1, resp.Data.Stats.Events[ir.EventActorRemoved])
	assert.Equal(t, 2, resp.Data.Stats.Events[ir.EventCommand])
	assert.Equal(t, 20, resp.Data.Stats.Frames)
	assert.False(t, resp.Data.Stats.Failed)
}

func TestTraceActorFilter(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	recordRun(t, dbPath, "two_ropes.cue", "run-actor", 3)

	out, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--actor", "right")
	require.NoError(t, err)
	assert.Contains(t, out, "ACTOR_ADDED right")
	assert.NotContains(t, out, "ACTOR_ADDED left")
}

func TestBuildTimelineKeepsPlainDetail(t *testing.T) {
	events := []ir.Event{
		{Seq: 1, Step: 4, Kind: ir.EventStepFailed, Detail: "solver diverged"},
		{Seq: 2, Step: 4, Kind: ir.EventPinBroken, Actor: "rope", Detail: `{"particle":0}`},
	}

	timeline := buildTimeline(events, "")
	require.Len(t, timeline, 2)
	assert.Equal(t, "solver diverged", timeline[0].Text)
	assert.Nil(t, timeline[0].Detail)
	assert.Equal(t, float64(0), timeline[1].Detail["particle"])
}

func TestFormatArgsSorted(t *testing.T) {
	got := formatArgs(map[string]any{
		"vector": []any{1.0, 0.0, 0.0},
		"actor":  "rope",
		"nested": map[string]any{"b": 2.0, "a": 1.0},
	})
	assert.Equal(t, "{actor=rope, nested={a=1, b=2}, vector=[1, 0, 0]}", got)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", truncateID("short"))
	id := "0192f3a1-7c2e-7b00-8000-123456789abc"
	got := truncateID(id)
	assert.True(t, strings.HasPrefix(got, "0192f3a1..."))
	assert.True(t, strings.HasSuffix(got, "789abc"))
}

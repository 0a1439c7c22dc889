package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xpbd/internal/engine"
	"github.com/roach88/xpbd/internal/ir"
	"github.com/roach88/xpbd/internal/testutil"
	"github.com/roach88/xpbd/internal/vmath"
)

var _ engine.Recorder = (*Recorder)(nil)

// recordPendulum runs the pendulum fixture for steps steps into s.
func recordPendulum(t *testing.T, s *Store, runID string, steps int) {
	t.Helper()
	e, err := engine.New(testutil.PendulumScene(),
		engine.WithLogger(testutil.DiscardLogger()),
		engine.WithRecorder(s.Recorder(t.Context())),
		engine.WithRunIDGenerator(testutil.NewFixedRunGenerator(runID)),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithSampleEvery(5),
	)
	require.NoError(t, err)
	defer e.Close()

	for i := 0; i < steps; i++ {
		if i == 4 {
			e.Enqueue(engine.Command{Kind: engine.CommandImpulse, Actor: "rope", Particles: []int{6}, Vector: vmath.Vec3{0, 0, 2}})
		}
		_, err := e.Tick(testutil.StepTime)
		require.NoError(t, err)
	}
}

func TestRecorder_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	recordPendulum(t, s, "run-1", 10)

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "pendulum", run.Scene)
	assert.Equal(t, "native", run.Backend)

	scene, err := DecodeScene(run)
	require.NoError(t, err)
	assert.Equal(t, testutil.PendulumScene(), scene)

	frames, err := s.ReadFrames(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, frames, 10)
	assert.Equal(t, 7, frames[0].Particles)

	samples, err := s.ReadSamples(ctx, "run-1", "rope")
	require.NoError(t, err)
	assert.Len(t, samples, 14, "steps 5 and 10, seven particles each")

	events, err := s.ReadEvents(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ir.EventActorAdded, events[0].Kind)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, ir.EventCommand, events[1].Kind)
	assert.Equal(t, int64(4), events[1].Step)
}

func TestSummarize(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	recordPendulum(t, s, "run-1", 8)

	sum, err := s.Summarize(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 8, sum.Frames)
	assert.Equal(t, int64(8), sum.LastStep)
	assert.NotEmpty(t, sum.LastHash)
	assert.Equal(t, map[string]int{ir.EventActorAdded: 1, ir.EventCommand: 1}, sum.Events)
	assert.False(t, sum.Failed)
	assert.Positive(t, sum.MaxEnergy)

	_, err = s.Summarize(ctx, "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSummarize_EmptyRun(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1")))

	sum, err := s.Summarize(ctx, "run-1")
	require.NoError(t, err)
	assert.Zero(t, sum.Frames)
	assert.Zero(t, sum.LastStep)
	assert.Empty(t, sum.LastHash)
	assert.Zero(t, sum.MaxEnergy)
}

func TestReplay_StoredRun(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	recordPendulum(t, s, "run-1", 12)

	result, err := s.Replay(ctx, "run-1", engine.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, err)
	assert.True(t, result.Match)
	assert.Equal(t, 12, result.Steps)
}

func TestReplay_DetectsEditedTrace(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	recordPendulum(t, s, "run-1", 6)

	_, err := s.DB().Exec(`UPDATE frames SET state_hash = 'edited' WHERE run_id = ? AND step = 5`, "run-1")
	require.NoError(t, err)

	result, err := s.Replay(ctx, "run-1", engine.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, err)
	assert.False(t, result.Match)
	assert.Equal(t, int64(5), result.FirstMismatch)
}

func TestLoadRun_Errors(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	_, err := s.LoadRun(ctx, "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, s.WriteRun(ctx, createTestRun("bare")))
	_, err = s.LoadRun(ctx, "bare")
	assert.ErrorContains(t, err, "no scene recorded")

	run := createTestRun("tampered")
	run.SceneJSON = `{"name":"x","settings":{"step_time":0.01,"substeps":1,"gravity":[0,0,0],"wind":[0,0,0],"interpolate":false},"actors":[]}`
	require.NoError(t, s.WriteRun(ctx, run))
	_, err = s.LoadRun(ctx, "tampered")
	assert.ErrorContains(t, err, "does not match recorded")

	run = createTestRun("unknown-field")
	run.SceneJSON = `{"name":"x","gravity_scale":2}`
	require.NoError(t, s.WriteRun(ctx, run))
	_, err = s.LoadRun(ctx, "unknown-field")
	assert.ErrorContains(t, err, "unknown field")
}

func TestReplay_NoFrames(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	e, err := engine.New(testutil.RopeScene(),
		engine.WithLogger(testutil.DiscardLogger()),
		engine.WithRecorder(s.Recorder(ctx)),
		engine.WithRunIDGenerator(testutil.NewFixedRunGenerator("run-0")),
	)
	require.NoError(t, err)
	e.Close()

	_, err = s.Replay(ctx, "run-0")
	assert.ErrorContains(t, err, "no frames")
}

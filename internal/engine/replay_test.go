package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xpbd/internal/ir"
	"github.com/roach88/xpbd/internal/vmath"
)

// recordRun simulates a rope with a few commands mixed in and returns what
// was recorded.
func recordRun(t *testing.T, steps int) *memRecorder {
	t.Helper()
	rec := &memRecorder{}
	e := newEngine(t, ropeScene(), WithRecorder(rec), WithRunIDGenerator(NewFixedGenerator("run-1")))
	for i := 0; i < steps; i++ {
		switch i {
		case 2:
			e.Enqueue(Command{Kind: CommandImpulse, Actor: "rope", Particles: []int{4}, Vector: vmath.Vec3{0, 3, 0}})
		case 5:
			e.Enqueue(Command{Kind: CommandSetWind, Vector: vmath.Vec3{2, 0, 0}})
			e.Enqueue(Command{Kind: CommandForce, Actor: "rope", Vector: vmath.Vec3{0, 0, 1}})
		}
		_, err := e.Tick(dt)
		require.NoError(t, err)
	}
	return rec
}

func TestReplay_Matches(t *testing.T) {
	rec := recordRun(t, 10)
	require.Len(t, rec.frames, 10)

	result, err := Replay(ropeScene(), rec.frames, rec.events, WithLogger(discard))
	require.NoError(t, err)
	assert.True(t, result.Match)
	assert.Equal(t, 10, result.Steps)
	assert.Zero(t, result.FirstMismatch)
}

func TestReplay_AcrossBackends(t *testing.T) {
	rec := recordRun(t, 6)

	result, err := Replay(ropeScene(), rec.frames, rec.events, WithLogger(discard), WithBackend("parallel"))
	require.NoError(t, err)
	assert.True(t, result.Match)
}

func TestReplay_DetectsMismatch(t *testing.T) {
	rec := recordRun(t, 6)
	rec.frames[3].StateHash = "tampered"

	result, err := Replay(ropeScene(), rec.frames, rec.events, WithLogger(discard))
	require.NoError(t, err)
	assert.False(t, result.Match)
	assert.Equal(t, int64(4), result.FirstMismatch)
	assert.Equal(t, "tampered", result.Expected)
	assert.NotEqual(t, result.Expected, result.Actual)
	assert.Equal(t, 4, result.Steps)
}

func TestReplay_MissingCommandsDiverge(t *testing.T) {
	rec := recordRun(t, 6)

	var kept []ir.Event
	for _, ev := range rec.events {
		if ev.Kind != ir.EventCommand {
			kept = append(kept, ev)
		}
	}
	result, err := Replay(ropeScene(), rec.frames, kept, WithLogger(discard))
	require.NoError(t, err)
	assert.False(t, result.Match)
	// The impulse was issued after step 2.
	assert.Equal(t, int64(3), result.FirstMismatch)
}

func TestReplay_RejectsGaps(t *testing.T) {
	rec := recordRun(t, 3)
	frames := []ir.Frame{rec.frames[0], rec.frames[2]}

	_, err := Replay(ropeScene(), frames, rec.events, WithLogger(discard))
	assert.ErrorContains(t, err, "has step 3, want 2")
}

func TestReplay_BadCommandDetail(t *testing.T) {
	rec := recordRun(t, 1)
	events := append(rec.events, ir.Event{Kind: ir.EventCommand, Seq: 99, Detail: "{"})

	_, err := Replay(ropeScene(), rec.frames, events, WithLogger(discard))
	assert.ErrorContains(t, err, "decode command seq 99")
}

package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xpbd/internal/ir"
)

func TestWriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	run := createTestRun("run-1")
	run.SceneJSON = `{"name":"test"}`
	require.NoError(t, s.WriteRun(ctx, run))

	changed := run
	changed.Backend = "parallel"
	require.NoError(t, s.WriteRun(ctx, changed), "duplicate IDs are ignored")

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run, got)
}

func TestWriteFrame_RequiresRun(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteFrame(t.Context(), createTestFrame("missing", 1))
	assert.ErrorContains(t, err, "FOREIGN KEY")
}

func TestWriteFrame_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1")))

	f := createTestFrame("run-1", 1)
	require.NoError(t, s.WriteFrame(ctx, f))
	dup := f
	dup.StateHash = "other"
	require.NoError(t, s.WriteFrame(ctx, dup))

	frames, err := s.ReadFrames(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, f, frames[0])
}

func TestWriteSamples_Atomic(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1")))

	samples := []ir.Sample{
		{RunID: "run-1", Step: 1, Actor: "rope", Particle: 0, Position: ir.Vec3{1, 2, 3}},
		{RunID: "missing", Step: 1, Actor: "rope", Particle: 1},
	}
	require.Error(t, s.WriteSamples(ctx, samples))

	got, err := s.ReadSamples(ctx, "run-1", "")
	require.NoError(t, err)
	assert.Empty(t, got, "a failed batch writes nothing")

	assert.NoError(t, s.WriteSamples(ctx, nil))
}

func TestWriteEvent_KeyedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1")))

	require.NoError(t, s.WriteEvent(ctx, ir.Event{RunID: "run-1", Seq: 1, Kind: ir.EventActorAdded, Actor: "rope"}))
	require.NoError(t, s.WriteEvent(ctx, ir.Event{RunID: "run-1", Seq: 1, Kind: ir.EventPinBroken}))

	events, err := s.ReadEvents(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ir.EventActorAdded, events[0].Kind)
}

func TestDeleteRun_Cascades(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	require.NoError(t, s.WriteRun(ctx, createTestRun("run-1")))
	require.NoError(t, s.WriteFrame(ctx, createTestFrame("run-1", 1)))
	require.NoError(t, s.WriteSamples(ctx, []ir.Sample{{RunID: "run-1", Step: 1, Actor: "a"}}))
	require.NoError(t, s.WriteEvent(ctx, ir.Event{RunID: "run-1", Seq: 1, Kind: ir.EventCommand}))

	ok, err := s.DeleteRun(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, ok)

	for _, table := range []string{"frames", "samples", "events"} {
		var n int
		require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
		assert.Zero(t, n, table)
	}
	_, err = s.ReadRun(ctx, "run-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	ok, err = s.DeleteRun(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandQueue_FIFO(t *testing.T) {
	q := newCommandQueue()
	require.True(t, q.Enqueue(Command{Kind: CommandForce, Actor: "a"}))
	require.True(t, q.Enqueue(Command{Kind: CommandImpulse, Actor: "b"}))
	assert.Equal(t, 2, q.Len())

	c, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "a", c.Actor)
	c, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "b", c.Actor)

	_, ok = q.TryDequeue()
	assert.False(t, ok)
}

func TestCommandQueue_Close(t *testing.T) {
	q := newCommandQueue()
	require.True(t, q.Enqueue(Command{Kind: CommandTick}))
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(Command{Kind: CommandTick}))
	_, ok := q.TryDequeue()
	assert.True(t, ok, "commands queued before close are still delivered")

	select {
	case <-q.Wait():
	default:
		t.Fatal("wait channel should be closed")
	}
}

func TestParseCommandKind(t *testing.T) {
	k, err := ParseCommandKind("remove_actor")
	require.NoError(t, err)
	assert.Equal(t, CommandRemoveActor, k)

	_, err = ParseCommandKind("explode")
	assert.Error(t, err)
}

package collider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blob struct{ n int }

func newCountingCache() (*Cache[*blob, int], *int, *int) {
	built, destroyed := 0, 0
	c := NewCache("blob",
		func(b *blob) int { built++; return b.n },
		func(int) { destroyed++ })
	return c, &built, &destroyed
}

func TestCache_IdentityDeduplicates(t *testing.T) {
	c, built, _ := newCountingCache()
	a, b := &blob{1}, &blob{1}

	ia := c.GetOrCreate(a)
	assert.Equal(t, ia, c.GetOrCreate(a))
	ib := c.GetOrCreate(b)
	assert.NotEqual(t, ia, ib, "equal contents but distinct sources")
	assert.Equal(t, 2, *built)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "blob", c.Name())
}

func TestCache_BalancedReferencesDestroyOnce(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		c, _, destroyed := newCountingCache()
		i := c.GetOrCreate(&blob{n})
		for k := 0; k < n; k++ {
			c.Reference(i)
		}
		require.Equal(t, n, c.RefCount(i))

		for k := 0; k < n-1; k++ {
			assert.False(t, c.Dereference(i))
			assert.Equal(t, 0, *destroyed)
		}
		assert.True(t, c.Dereference(i))
		assert.Equal(t, 1, *destroyed)

		// The entry is gone; further calls are no-ops.
		assert.False(t, c.Dereference(i))
		assert.Equal(t, 1, *destroyed)
		_, ok := c.Get(i)
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	}
}

func TestCache_ZeroNetCallsNeverDestroys(t *testing.T) {
	c, _, destroyed := newCountingCache()
	i := c.GetOrCreate(&blob{3})
	v, ok := c.Get(i)
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 0, *destroyed)
	assert.Equal(t, 1, c.Len())
}

func TestCache_IndexReusedAfterDestroy(t *testing.T) {
	c, built, _ := newCountingCache()
	src := &blob{1}
	i := c.GetOrCreate(src)
	c.Reference(i)
	c.Dereference(i)

	j := c.GetOrCreate(&blob{2})
	assert.Equal(t, i, j)

	// The old source builds a fresh entry.
	k := c.GetOrCreate(src)
	assert.NotEqual(t, j, k)
	assert.Equal(t, 3, *built)
	assert.Equal(t, -1, c.Reference(99))
}

func TestCache_Clear(t *testing.T) {
	c, _, destroyed := newCountingCache()
	i := c.GetOrCreate(&blob{1})
	c.Reference(i)
	c.GetOrCreate(&blob{2})
	c.Clear()
	assert.Equal(t, 2, *destroyed)
	assert.Equal(t, 0, c.Len())
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xpbd/internal/ir"
	"github.com/roach88/xpbd/internal/queryir"
	"github.com/roach88/xpbd/internal/vmath"
)

func TestSpatialQuery_ResolvesActorParticles(t *testing.T) {
	scene := ropeScene()
	scene.Actors = append(scene.Actors, ropeActor("other", ir.Vec3{0.5, 1, 0}))
	e := newEngine(t, scene)

	hits, err := e.SpatialQuery([]queryir.Query{
		{Shape: queryir.Sphere{Center: vmath.Vec3{0.4, 1, 0}, Radius: 0.01}},
		{Shape: queryir.Sphere{Center: vmath.Vec3{0.7, 1, 0}, Radius: 0.01}},
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 0, hits[0].QueryIndex)
	assert.Equal(t, "rope", hits[0].Actor)
	assert.Equal(t, 4, hits[0].Local)
	assert.Equal(t, 1, hits[1].QueryIndex)
	assert.Equal(t, "other", hits[1].Actor)
	assert.Equal(t, 2, hits[1].Local)

	other, _ := e.Actor("other")
	other.RemoveFromSolver()
	hits, err = e.SpatialQuery([]queryir.Query{{Shape: queryir.Sphere{Center: vmath.Vec3{0.7, 1, 0}, Radius: 0.01}}})
	require.NoError(t, err)
	assert.Empty(t, hits, "detached actors are not queried")

	_, err = e.SpatialQuery([]queryir.Query{{Shape: queryir.Sphere{Radius: 1}, MaxDistance: -1}})
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeInvalidCommand, re.Code)
}

func TestSmoothProperty_PerActor(t *testing.T) {
	e := newEngine(t, ropeScene())

	out, err := e.SmoothProperty("rope", []float64{0, 0, 5, 0, 0}, 0.25)
	require.NoError(t, err)
	require.Len(t, out, 5)
	assert.Less(t, out[2], 5.0)
	assert.Greater(t, out[1], 0.0)
	assert.InDelta(t, out[1], out[3], 1e-12)

	_, err = e.SmoothProperty("rope", []float64{1}, 0.25)
	assert.Error(t, err)

	_, err = e.SmoothProperty("ghost", nil, 0.25)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeUnknownActor, re.Code)
}

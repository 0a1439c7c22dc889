package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func posInf() float64 { return math.Inf(1) }

func testScene() *Scene {
	return &Scene{
		Name:     "drop",
		Settings: Settings{StepTime: 1.0 / 60, Substeps: 4, Gravity: Vec3{0, -9.81, 0}},
		Actors: []ActorSpec{{
			Name: "ball",
			Particles: []ParticleSpec{
				{Position: Vec3{0, 1, 0}, InvMass: 1, Radius: 0.1},
			},
		}},
	}
}

func TestSceneHashDeterminism(t *testing.T) {
	h1, err := SceneHash(testScene())
	require.NoError(t, err)
	h2, err := SceneHash(testScene())
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestSceneHashChangesWithContent(t *testing.T) {
	base, err := SceneHash(testScene())
	require.NoError(t, err)

	moved := testScene()
	moved.Actors[0].Particles[0].Position[1] = 2
	h, err := SceneHash(moved)
	require.NoError(t, err)
	assert.NotEqual(t, base, h)

	// Below the quantum the hash is stable.
	jitter := testScene()
	jitter.Actors[0].Particles[0].Position[1] += 1e-9
	h, err = SceneHash(jitter)
	require.NoError(t, err)
	assert.Equal(t, base, h)
}

func TestStateHash(t *testing.T) {
	ps := []Vec3{{0, 1, 0}, {1, 0, 0}}

	assert.Equal(t, MustStateHash(3, ps), MustStateHash(3, ps))
	assert.NotEqual(t, MustStateHash(3, ps), MustStateHash(4, ps), "step is part of the identity")
	assert.NotEqual(t, MustStateHash(3, ps), MustStateHash(3, []Vec3{ps[1], ps[0]}), "order matters")

	_, err := StateHash(0, []Vec3{{math.NaN(), 0, 0}})
	assert.Error(t, err)
}

func TestDomainSeparation(t *testing.T) {
	data := []byte("same")
	assert.NotEqual(t, hashWithDomain(DomainScene, data), hashWithDomain(DomainState, data))
}

func TestSceneLookup(t *testing.T) {
	s := testScene()
	a, ok := s.Actor("ball")
	require.True(t, ok)
	assert.Equal(t, "ball", a.Name)
	_, ok = s.Actor("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, s.ParticleCount())
}

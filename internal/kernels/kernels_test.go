package kernels

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xpbd/internal/collider"
	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/particles"
	"github.com/roach88/xpbd/internal/queryir"
	"github.com/roach88/xpbd/internal/vmath"
)

const tolerance = 1e-9

func newBuffer(positions ...vmath.Vec3) *particles.Buffer {
	buf := particles.NewBuffer(len(positions))
	for k, i := range buf.Allocate(len(positions)) {
		buf.Positions[i] = positions[k]
		buf.PrevPositions[i] = positions[k]
		buf.StartPositions[i] = positions[k]
	}
	return buf
}

func testContext(buf *particles.Buffer) *Context {
	return &Context{
		Particles:   buf,
		Params:      DefaultParameters(),
		StepTime:    1.0 / 60,
		SubstepTime: 1.0 / 60,
		Substeps:    1,
	}
}

// solveOnce runs one initialize/evaluate/apply round over b.
func solveOnce(t *testing.T, ctx *Context, b constraints.AnyBatch, sor float64) {
	t.Helper()
	bound, err := Bind(b)
	require.NoError(t, err)
	bound.Initialize(ctx.Particles)
	bound.EvaluateRange(ctx, 0, bound.Count())
	bound.ApplyRange(ctx.Particles, sor, 0, len(bound.Particles))
}

func assertVec(t *testing.T, want, got vmath.Vec3) {
	t.Helper()
	assert.True(t, vmath.NearlyEqual(want, got, tolerance), "want %v, got %v", want, got)
}

func TestDistance_RigidCorrection(t *testing.T) {
	buf := newBuffer(vmath.Vec3{0, 0, 0}, vmath.Vec3{2, 0, 0})
	ctx := testContext(buf)

	b := constraints.NewBatch[constraints.DistanceParams](constraints.Distance)
	b.Add([]int{0, 1}, constraints.DistanceParams{RestLength: 1})
	solveOnce(t, ctx, b, 1)

	assertVec(t, vmath.Vec3{0.5, 0, 0}, buf.Positions[0])
	assertVec(t, vmath.Vec3{1.5, 0, 0}, buf.Positions[1])
	assert.InDelta(t, -0.5, b.Lambdas()[0], tolerance)
	assert.Zero(t, buf.PositionCounts[0])
	assert.Equal(t, vmath.Vec3{}, buf.PositionDeltas[1])
}

func TestDistance_CompliantIsSofter(t *testing.T) {
	buf := newBuffer(vmath.Vec3{0, 0, 0}, vmath.Vec3{2, 0, 0})
	ctx := testContext(buf)

	b := constraints.NewBatch[constraints.DistanceParams](constraints.Distance)
	b.Add([]int{0, 1}, constraints.DistanceParams{RestLength: 1, Compliance: 1e-3})
	solveOnce(t, ctx, b, 1)

	moved := buf.Positions[0][0]
	assert.Greater(t, moved, 0.0)
	assert.Less(t, moved, 0.5)
}

func TestDistance_ZeroLengthIsSkipped(t *testing.T) {
	buf := newBuffer(vmath.Vec3{1, 1, 1}, vmath.Vec3{1, 1, 1})
	ctx := testContext(buf)

	b := constraints.NewBatch[constraints.DistanceParams](constraints.Distance)
	b.Add([]int{0, 1}, constraints.DistanceParams{RestLength: 1})
	solveOnce(t, ctx, b, 1)

	assert.True(t, buf.IsFinite())
	assertVec(t, vmath.Vec3{1, 1, 1}, buf.Positions[0])
}

// Two batches share particle 1. Evaluating both before applying gives the
// averaged correction whichever batch runs first.
func TestAccumulation_OrderIndependent(t *testing.T) {
	const sor = 1.5
	run := func(order []int) *particles.Buffer {
		buf := newBuffer(vmath.Vec3{0, 0, 0}, vmath.Vec3{2, 0, 0}, vmath.Vec3{5, 0, 0})
		ctx := testContext(buf)

		batches := []*constraints.Batch[constraints.DistanceParams]{
			constraints.NewBatch[constraints.DistanceParams](constraints.Distance),
			constraints.NewBatch[constraints.DistanceParams](constraints.Distance),
		}
		batches[0].Add([]int{0, 1}, constraints.DistanceParams{RestLength: 1})
		batches[1].Add([]int{1, 2}, constraints.DistanceParams{RestLength: 1})

		var bound []*Bound
		for _, k := range order {
			b, err := Bind(batches[k])
			require.NoError(t, err)
			b.Initialize(buf)
			bound = append(bound, b)
		}
		for _, b := range bound {
			b.EvaluateRange(ctx, 0, b.Count())
		}
		for _, b := range bound {
			b.ApplyRange(buf, sor, 0, len(b.Particles))
		}
		return buf
	}

	ab := run([]int{0, 1})
	ba := run([]int{1, 0})
	for i := 0; i < 3; i++ {
		assertVec(t, ab.Positions[i], ba.Positions[i])
	}

	// Particle 1 receives -0.5 and +1.0 from two constraints.
	assertVec(t, vmath.Vec3{2 + (0.5 * sor / 2), 0, 0}, ab.Positions[1])
	assertVec(t, vmath.Vec3{0.5 * sor, 0, 0}, ab.Positions[0])
	assertVec(t, vmath.Vec3{5 - sor, 0, 0}, ab.Positions[2])
}

func TestApplyPositionDelta_UntouchedIsNoop(t *testing.T) {
	buf := newBuffer(vmath.Vec3{1, 2, 3})
	ApplyPositionDelta(buf, 0, 1)
	assertVec(t, vmath.Vec3{1, 2, 3}, buf.Positions[0])
}

func TestBend_Straightens(t *testing.T) {
	buf := newBuffer(vmath.Vec3{0, 0, 0}, vmath.Vec3{1, 1, 0}, vmath.Vec3{2, 0, 0})
	ctx := testContext(buf)

	b := constraints.NewBatch[constraints.BendParams](constraints.Bend)
	b.Add([]int{0, 1, 2}, constraints.BendParams{})
	solveOnce(t, ctx, b, 1)

	center := buf.Positions[0].Add(buf.Positions[1]).Add(buf.Positions[2]).Mul(1.0 / 3)
	assert.InDelta(t, 0, buf.Positions[1].Sub(center).Len(), 1e-6)
}

func TestTether_OnlyPulls(t *testing.T) {
	buf := newBuffer(vmath.Vec3{0.5, 0, 0}, vmath.Vec3{0, 0, 0}, vmath.Vec3{3, 0, 0}, vmath.Vec3{0, 5, 0})
	buf.InvMasses[1] = 0
	buf.InvMasses[3] = 0
	ctx := testContext(buf)

	b := constraints.NewBatch[constraints.TetherParams](constraints.Tether)
	b.Add([]int{0, 1}, constraints.TetherParams{MaxLength: 1})
	b.Add([]int{2, 3}, constraints.TetherParams{MaxLength: 1})
	solveOnce(t, ctx, b, 1)

	// Inside the tether: untouched.
	assertVec(t, vmath.Vec3{0.5, 0, 0}, buf.Positions[0])
	assert.InDelta(t, 1, buf.Positions[2].Sub(buf.Positions[3]).Len(), 1e-9)
	assertVec(t, vmath.Vec3{0, 5, 0}, buf.Positions[3])
}

func tetrahedron() ([]vmath.Vec3, []int) {
	return []vmath.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		[]int{0, 2, 1, 0, 1, 3, 0, 3, 2, 1, 2, 3}
}

func TestVolume(t *testing.T) {
	pos, tris := tetrahedron()
	assert.InDelta(t, 1.0/6, Volume(pos, []int{0, 1, 2, 3}, tris), tolerance)
}

func TestVolume_RestoresRestVolume(t *testing.T) {
	pos, tris := tetrahedron()
	buf := newBuffer(pos...)
	ctx := testContext(buf)

	b := constraints.NewBatch[constraints.VolumeParams](constraints.Volume)
	b.Add([]int{0, 1, 2, 3}, constraints.VolumeParams{Triangles: tris, RestVolume: 2.0 / 6})
	for k := 0; k < 20; k++ {
		solveOnce(t, ctx, b, 1)
	}
	assert.InDelta(t, 2.0/6, Volume(buf.Positions, []int{0, 1, 2, 3}, tris), 1e-3)
}

func TestShapeMatching_RecoversRotatedShape(t *testing.T) {
	rest := []vmath.Vec3{{-1, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	rot := mgl64.QuatRotate(0.3, vmath.Vec3{0, 1, 0})
	var pos []vmath.Vec3
	for _, r := range rest {
		pos = append(pos, rot.Rotate(r).Add(vmath.Vec3{5, 0, 0}))
	}
	// Squash one particle out of shape.
	pos[2] = pos[2].Add(vmath.Vec3{0, -0.5, 0})
	buf := newBuffer(pos...)
	ctx := testContext(buf)

	b := constraints.NewBatch[constraints.ShapeMatchingParams](constraints.ShapeMatching)
	b.Add([]int{0, 1, 2, 3}, constraints.ShapeMatchingParams{RestOffsets: centered(rest)})
	for k := 0; k < 10; k++ {
		solveOnce(t, ctx, b, 1)
	}

	d01 := buf.Positions[0].Sub(buf.Positions[1]).Len()
	assert.InDelta(t, 2, d01, 0.05)
	assert.True(t, buf.IsFinite())
}

func centered(ps []vmath.Vec3) []vmath.Vec3 {
	var c vmath.Vec3
	for _, p := range ps {
		c = c.Add(p)
	}
	c = c.Mul(1 / float64(len(ps)))
	out := make([]vmath.Vec3, len(ps))
	for i, p := range ps {
		out[i] = p.Sub(c)
	}
	return out
}

func TestPredict(t *testing.T) {
	buf := newBuffer(vmath.Vec3{0, 0, 0}, vmath.Vec3{1, 0, 0})
	buf.InvMasses[1] = 0
	ctx := testContext(buf)
	ctx.Params.Gravity = vmath.Vec3{0, -10, 0}
	ctx.SubstepTime = 0.1

	Predict(ctx, 0)
	Predict(ctx, 1)

	assertVec(t, vmath.Vec3{0, -1, 0}, buf.Velocities[0])
	assertVec(t, vmath.Vec3{0, -0.1, 0}, buf.Positions[0])
	assertVec(t, vmath.Vec3{0, 0, 0}, buf.PrevPositions[0])
	assertVec(t, vmath.Vec3{1, 0, 0}, buf.Positions[1])

	UpdateVelocities(ctx, 0)
	assertVec(t, vmath.Vec3{0, -1, 0}, buf.Velocities[0])
}

func TestPredict_ClampsVelocity(t *testing.T) {
	buf := newBuffer(vmath.Vec3{})
	buf.Velocities[0] = vmath.Vec3{100, 0, 0}
	ctx := testContext(buf)
	ctx.Params.Gravity = vmath.Vec3{}
	ctx.Params.MaxVelocity = 2

	Predict(ctx, 0)
	assert.InDelta(t, 2, buf.Velocities[0].Len(), tolerance)
}

func TestPredict_SpinsOrientation(t *testing.T) {
	buf := newBuffer(vmath.Vec3{})
	buf.AngularVelocities[0] = vmath.Vec3{0, 1, 0}
	ctx := testContext(buf)
	ctx.SubstepTime = 0.01

	Predict(ctx, 0)
	UpdateVelocities(ctx, 0)
	assert.True(t, vmath.NearlyEqual(vmath.Vec3{0, 1, 0}, buf.AngularVelocities[0], 1e-3))
	assert.InDelta(t, 1, buf.Orientations[0].Len(), tolerance)
}

func TestSettle(t *testing.T) {
	buf := newBuffer(vmath.Vec3{}, vmath.Vec3{})
	buf.Positions[0] = vmath.Vec3{1e-4, 0, 0}
	buf.Positions[1] = vmath.Vec3{1, 0, 0}
	ctx := testContext(buf)

	Settle(ctx, 0)
	Settle(ctx, 1)

	assertVec(t, vmath.Vec3{}, buf.Positions[0])
	assertVec(t, vmath.Vec3{1, 0, 0}, buf.Positions[1])
}

func TestSettle_LeavesDivergedParticles(t *testing.T) {
	buf := newBuffer(vmath.Vec3{0, 1, 0}, vmath.Vec3{0, 1, 0})
	buf.Positions[0] = vmath.Vec3{math.NaN(), 0, 0}
	buf.Velocities[0] = vmath.Vec3{math.Inf(1), 0, 0}
	buf.Velocities[1] = vmath.Vec3{math.Inf(-1), 0, 0}
	ctx := testContext(buf)

	Settle(ctx, 0)
	Settle(ctx, 1)

	assert.True(t, math.IsNaN(buf.Positions[0][0]))
	assert.True(t, math.IsInf(buf.Velocities[0][0], 1))
	assert.True(t, math.IsInf(buf.Velocities[1][0], -1))
	assert.False(t, buf.IsFinite())
}

func TestInterpolate(t *testing.T) {
	buf := newBuffer(vmath.Vec3{})
	buf.Positions[0] = vmath.Vec3{1, 0, 0}

	Interpolate(buf, 0, 0, true)
	assertVec(t, vmath.Vec3{}, buf.RenderablePositions[0])

	Interpolate(buf, 0, 1, true)
	assertVec(t, vmath.Vec3{1, 0, 0}, buf.RenderablePositions[0])

	Interpolate(buf, 0, 0.25, true)
	assertVec(t, vmath.Vec3{0.25, 0, 0}, buf.RenderablePositions[0])

	Interpolate(buf, 0, 0.25, false)
	assertVec(t, vmath.Vec3{1, 0, 0}, buf.RenderablePositions[0])
}

func TestInterpolationAlpha(t *testing.T) {
	assert.Equal(t, 1.0, InterpolationAlpha(0, 0.3))
	assert.InDelta(t, 0.5, InterpolationAlpha(0.1, 0.05), tolerance)
	assert.Equal(t, 1.0, InterpolationAlpha(0.1, 0.5))
	assert.Equal(t, 0.0, InterpolationAlpha(0.1, -1))
}

func TestDetect_ParticlePairsRespectPhase(t *testing.T) {
	buf := newBuffer(vmath.Vec3{0, 0, 0}, vmath.Vec3{0.15, 0, 0}, vmath.Vec3{0.3, 0, 0}, vmath.Vec3{10, 0, 0})
	buf.Phases[0] = particles.MakePhase(1, 0)
	buf.Phases[1] = particles.MakePhase(2, 0)
	buf.Phases[2] = particles.MakePhase(2, 0)
	buf.Phases[3] = particles.MakePhase(3, 0)
	ctx := testContext(buf)

	c := NewContacts()
	c.Detect(ctx)

	// 1 and 2 share a group without self collision; 3 is far away.
	require.Equal(t, 1, c.Particle.ConstraintCount())
	assert.Equal(t, []int{0, 1}, c.Particle.Batches()[0].Particles(0))
	assert.Equal(t, 0, c.Collider.ConstraintCount())

	buf.Phases[1] = particles.MakePhase(2, particles.SelfCollide)
	buf.Phases[2] = particles.MakePhase(2, particles.SelfCollide)
	c.Detect(ctx)
	assert.Equal(t, 2, c.Particle.ConstraintCount())
	assert.Equal(t, 2, c.Particle.BatchCount(), "pairs sharing particle 1 land in different batches")
}

func TestDetect_FiltersExcludePairs(t *testing.T) {
	buf := newBuffer(vmath.Vec3{0, 0, 0}, vmath.Vec3{0.1, 0, 0})
	buf.Phases[1] = particles.MakePhase(1, 0)
	buf.Filters[0] = particles.MakeFilter(1, 1)
	buf.Filters[1] = particles.MakeFilter(2, 2)
	ctx := testContext(buf)

	c := NewContacts()
	c.Detect(ctx)
	assert.Zero(t, c.Count())
}

func testWorld() *collider.World {
	return collider.NewWorld(collider.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func groundWorld() *collider.World {
	w := testWorld()
	c := collider.DefaultCollider()
	w.CreateShape(collider.Shape{
		Geometry:  collider.Box{Size: vmath.Vec3{10, 1, 10}},
		Transform: vmath.Translate(vmath.Vec3{0, -0.5, 0}),
		Filter:    c.Filter,
		Rigidbody: c.Rigidbody,
		Material:  c.Material,
	})
	return w
}

func TestDetect_ColliderContactResolves(t *testing.T) {
	buf := newBuffer(vmath.Vec3{0, 0.05, 0}, vmath.Vec3{3, 2, 0})
	ctx := testContext(buf)
	ctx.World = groundWorld()

	c := NewContacts()
	c.Detect(ctx)
	require.Equal(t, 1, c.Collider.ConstraintCount())

	contact := c.Collider.Batches()[0].Params(0)
	assertVec(t, vmath.Vec3{0, 1, 0}, contact.Normal)
	assert.InDelta(t, 0, contact.Point[1], tolerance)

	solveOnce(t, ctx, c.Collider.Batches()[0], 1)
	assert.InDelta(t, 0.1, buf.Positions[0][1], tolerance)
}

func TestDetect_NoWorldNoColliderContacts(t *testing.T) {
	ctx := testContext(newBuffer(vmath.Vec3{}))
	c := NewContacts()
	c.Detect(ctx)
	assert.Zero(t, c.Count())
}

func TestParticleContact_Separates(t *testing.T) {
	buf := newBuffer(vmath.Vec3{0, 0, 0}, vmath.Vec3{0.1, 0, 0})
	ctx := testContext(buf)

	b := constraints.NewBatch[constraints.ParticleContact](constraints.ParticleCollision)
	b.Add([]int{0, 1}, constraints.ParticleContact{Normal: vmath.Vec3{-1, 0, 0}})
	solveOnce(t, ctx, b, 1)

	assert.InDelta(t, 0.2, buf.Positions[1].Sub(buf.Positions[0]).Len(), tolerance)
}

func TestSpatialQuery_OrderAndDistance(t *testing.T) {
	buf := newBuffer(vmath.Vec3{0.5, 0, 0}, vmath.Vec3{3, 0, 0})
	ctx := testContext(buf)

	queries := []queryir.Query{
		{Shape: queryir.Sphere{Radius: 1}, Transform: vmath.IdentityAffine(), MaxDistance: 2},
		{Shape: queryir.Sphere{Radius: 1}, Transform: vmath.IdentityAffine()},
		{Shape: queryir.Ray{Origin: vmath.Vec3{0.5, -1, 0}, Direction: vmath.Vec3{0, 1, 0}, Length: 10}},
	}
	got := SpatialQuery(ctx, queries)
	require.Len(t, got, 4)

	assert.Equal(t, [2]int{0, 0}, [2]int{got[0].QueryIndex, got[0].Particle})
	assert.InDelta(t, -0.6, got[0].Distance, tolerance)
	assert.Equal(t, [2]int{0, 1}, [2]int{got[1].QueryIndex, got[1].Particle})
	assert.InDelta(t, 1.9, got[1].Distance, tolerance)
	assertVec(t, vmath.Vec3{1, 0, 0}, got[1].Point)
	assertVec(t, vmath.Vec3{1, 0, 0}, got[1].Normal)

	assert.Equal(t, [2]int{1, 0}, [2]int{got[2].QueryIndex, got[2].Particle})
	assert.Equal(t, 2, got[3].QueryIndex)
	assert.Equal(t, 0, got[3].Particle)
}

func TestSpatialQuery_FilterAndTransform(t *testing.T) {
	buf := newBuffer(vmath.Vec3{5, 0, 0}, vmath.Vec3{5.1, 0, 0})
	buf.Filters[1] = particles.MakeFilter(2, 0xffff)
	ctx := testContext(buf)

	got := SpatialQuery(ctx, []queryir.Query{{
		Shape:     queryir.Box{Size: vmath.Vec3{1, 1, 1}},
		Transform: vmath.Translate(vmath.Vec3{5, 0, 0}),
		Filter:    particles.MakeFilter(1, 1),
	}})
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Particle)
}

func TestNewEvaluator_CoversEveryType(t *testing.T) {
	batches := []constraints.AnyBatch{
		constraints.NewBatch[constraints.TetherParams](constraints.Tether),
		constraints.NewBatch[constraints.VolumeParams](constraints.Volume),
		constraints.NewBatch[constraints.BendParams](constraints.Bend),
		constraints.NewBatch[constraints.DistanceParams](constraints.Distance),
		constraints.NewBatch[constraints.ShapeMatchingParams](constraints.ShapeMatching),
		constraints.NewBatch[constraints.PinParams](constraints.Pin),
		constraints.NewBatch[constraints.ParticleContact](constraints.ParticleCollision),
		constraints.NewBatch[constraints.ColliderContact](constraints.Collision),
		constraints.NewBatch[constraints.SkinParams](constraints.Skin),
		constraints.NewBatch[constraints.AerodynamicParams](constraints.Aerodynamic),
		constraints.NewBatch[constraints.StitchParams](constraints.Stitch),
	}
	require.Len(t, batches, len(constraints.Types()))
	for _, b := range batches {
		_, err := NewEvaluator(b)
		assert.NoError(t, err, b.Type().String())
	}
}

func TestRestOffsets_StaticParticleDominates(t *testing.T) {
	offsets := RestOffsets([]vmath.Vec3{{0, 0, 0}, {2, 0, 0}}, []float64{1, 1})
	assert.True(t, vmath.NearlyEqual(offsets[0], vmath.Vec3{-1, 0, 0}, tolerance))
	assert.True(t, vmath.NearlyEqual(offsets[1], vmath.Vec3{1, 0, 0}, tolerance))

	offsets = RestOffsets([]vmath.Vec3{{0, 0, 0}, {2, 0, 0}}, []float64{0, 1})
	assert.InDelta(t, 0, offsets[0][0], 1e-5)
	assert.Nil(t, RestOffsets(nil, nil))
}

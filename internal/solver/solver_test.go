package solver

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xpbd/internal/backend"
	"github.com/roach88/xpbd/internal/backend/native"
	"github.com/roach88/xpbd/internal/collider"
	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/kernels"
	"github.com/roach88/xpbd/internal/particles"
	"github.com/roach88/xpbd/internal/queryir"
	"github.com/roach88/xpbd/internal/vmath"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const dt = 1.0 / 60

// rope returns a blueprint of n particles along x joined by distance
// constraints, batched so no batch shares a particle.
func rope(name string, n int, origin vmath.Vec3) *Blueprint {
	bp := &Blueprint{Name: name, Constraints: constraints.NewSet()}
	for i := 0; i < n; i++ {
		bp.Particles = append(bp.Particles, ParticleDef{
			Position: origin.Add(vmath.Vec3{float64(i) * 0.1, 0, 0}),
			InvMass:  1,
			Radius:   0.05,
		})
		if i > 0 {
			bp.Constraints.Distance.Add([]int{i - 1, i}, constraints.DistanceParams{RestLength: 0.1})
		}
	}
	return bp
}

func weightless() Settings {
	s := DefaultSettings()
	s.Parameters.Gravity = vmath.Vec3{}
	return s
}

func newSolver(opts ...Option) *Solver {
	return New(native.New(nil), nil, append([]Option{WithLogger(discard)}, opts...)...)
}

func TestNew_NilBackendDegradesToNull(t *testing.T) {
	s := New(nil, nil, WithLogger(discard))
	assert.Equal(t, "null", s.Backend())

	a := NewActor(rope("r", 3, vmath.Vec3{0, 1, 0}))
	require.NoError(t, a.AddToSolver(s))
	before := a.SimulatedPositions()

	require.NoError(t, s.Step(dt))
	assert.Equal(t, before, a.SimulatedPositions())
	assert.Equal(t, 1, s.StepCount())
}

func TestNewBackend(t *testing.T) {
	for _, name := range BackendNames() {
		be, err := NewBackend(name)
		require.NoError(t, err)
		assert.Equal(t, name, be.Name())
	}
	_, err := NewBackend("gpu")
	assert.Error(t, err)
}

func TestActor_AttachDetachRoundTrip(t *testing.T) {
	s := newSolver()
	a := NewActor(rope("a", 5, vmath.Vec3{}))
	b := NewActor(rope("b", 4, vmath.Vec3{0, 1, 0}))

	require.NoError(t, a.AddToSolver(s))
	batchCounts := func() []int {
		var out []int
		for _, c := range s.Constraints().Containers() {
			out = append(out, c.BatchCount(), c.ConstraintCount())
		}
		return out
	}
	before := batchCounts()
	beforeOffsets := a.Offsets()

	require.NoError(t, b.AddToSolver(s))
	assert.Equal(t, 4+3, s.Constraints().Distance.ConstraintCount())
	assert.NotEqual(t, a.Group(), b.Group())

	b.RemoveFromSolver()
	assert.Equal(t, before, batchCounts())
	assert.Equal(t, beforeOffsets, a.Offsets())
	assert.Nil(t, b.Solver())
	assert.Nil(t, b.SolverIndices())
	assert.Equal(t, 5, s.Particles().ActiveCount())
}

func TestActor_OffsetsAttributeBatches(t *testing.T) {
	s := newSolver()
	a := NewActor(rope("a", 5, vmath.Vec3{}))
	b := NewActor(rope("b", 5, vmath.Vec3{0, 1, 0}))
	require.NoError(t, a.AddToSolver(s))
	require.NoError(t, b.AddToSolver(s))

	aOff := a.Offsets()[constraints.Distance]
	bOff := b.Offsets()[constraints.Distance]
	require.Len(t, bOff, 2)
	assert.Equal(t, []int{0, 0}, aOff)
	// Rope of 5: batch 0 holds edges 0-1 and 2-3, batch 1 holds 1-2 and 3-4.
	assert.Equal(t, []int{2, 2}, bOff)

	merged := s.Constraints().Distance.Batches()[0]
	assert.Equal(t, []int{b.SolverIndices()[0], b.SolverIndices()[1]}, merged.Particles(bOff[0]))
}

func TestActor_BadBlueprintIsRejected(t *testing.T) {
	s := newSolver()
	bp := rope("bad", 2, vmath.Vec3{})
	bp.Constraints.Distance.Add([]int{0, 7}, constraints.DistanceParams{RestLength: 1})
	assert.Error(t, bp.Validate())

	a := NewActor(bp)
	assert.Error(t, a.AddToSolver(s))
	assert.Nil(t, a.Solver())
	assert.Zero(t, s.Particles().ActiveCount())
	assert.Zero(t, s.Constraints().ConstraintCount())
}

func TestActor_DetachedOperationsAreNoops(t *testing.T) {
	a := NewActor(rope("r", 3, vmath.Vec3{}))
	require.NoError(t, a.AddToSolver(nil))
	a.RemoveFromSolver()
	a.AddExternalForce(0, vmath.Vec3{1, 0, 0})

	assert.True(t, a.DeactivateConstraint(constraints.Distance, 0, 0))
	assert.False(t, a.IsConstraintActive(constraints.Distance, 0, 0))
	assert.False(t, a.DeactivateConstraint(constraints.Distance, 9, 0))
	assert.Equal(t, vmath.Vec3{0.2, 0, 0}, a.Positions()[2])
}

func TestActor_DeactivationReachesSolver(t *testing.T) {
	s := newSolver()
	a := NewActor(rope("r", 5, vmath.Vec3{}))
	require.NoError(t, a.AddToSolver(s))
	require.Equal(t, 4, s.Constraints().Distance.ConstraintCount())

	require.True(t, a.DeactivateConstraint(constraints.Distance, 0, 0))
	assert.Equal(t, 3, s.Constraints().Distance.ConstraintCount())

	require.True(t, a.ActivateConstraint(constraints.Distance, 0, 0))
	require.NoError(t, s.Step(dt))
	assert.Equal(t, 4, s.Constraints().Distance.ConstraintCount())
}

func TestActor_MovesBetweenSolvers(t *testing.T) {
	s1 := newSolver(WithSettings(weightless()))
	s2 := newSolver(WithSettings(weightless()))
	a := NewActor(rope("r", 2, vmath.Vec3{}))
	a.defs[0].Velocity = vmath.Vec3{1, 0, 0}

	require.NoError(t, a.AddToSolver(s1))
	require.NoError(t, s1.Step(dt))
	moved := a.SimulatedPositions()

	require.NoError(t, a.AddToSolver(s2))
	assert.Empty(t, s1.Actors())
	assert.Equal(t, []*Actor{a}, s2.Actors())
	assert.Equal(t, moved, a.SimulatedPositions())
}

func TestStep_DistanceConstraint(t *testing.T) {
	settings := weightless()
	settings.Substeps = 1
	s := newSolver(WithSettings(settings))

	bp := &Blueprint{Name: "pair", Constraints: constraints.NewSet(), Particles: []ParticleDef{
		{Position: vmath.Vec3{0, 0, 0}, InvMass: 1},
		{Position: vmath.Vec3{2, 0, 0}, InvMass: 1},
	}}
	bp.Constraints.Distance.Add([]int{0, 1}, constraints.DistanceParams{RestLength: 1})
	a := NewActor(bp)
	require.NoError(t, a.AddToSolver(s))

	require.NoError(t, s.Step(dt))
	got := a.SimulatedPositions()
	assert.InDelta(t, 0.5, got[0][0], 1e-12)
	assert.InDelta(t, 1.5, got[1][0], 1e-12)
}

func TestStep_FailureRestoresState(t *testing.T) {
	s := newSolver()
	a := NewActor(rope("r", 3, vmath.Vec3{0, 1, 0}))
	require.NoError(t, a.AddToSolver(s))
	require.NoError(t, s.Step(dt))

	before := a.SimulatedPositions()
	s.Particles().Velocities[a.SolverIndices()[1]] = vmath.Vec3{math.Inf(1), 0, 0}

	err := s.Step(dt)
	require.Error(t, err)
	assert.True(t, errors.Is(err, backend.ErrNonFinite))
	assert.Equal(t, before, a.SimulatedPositions())
	assert.Equal(t, 1, s.StepCount())
}

func TestShapeMatching_PlasticDeformationSurvivesRebuild(t *testing.T) {
	s := newSolver(WithSettings(weightless()))

	rest := []vmath.Vec3{{0, 0, 0}, {0.1, 0, 0}, {0, 0.1, 0}, {0, 0, 0.1}}
	authored := kernels.RestOffsets(rest, []float64{1, 1, 1, 1})
	bp := &Blueprint{Name: "blob", Constraints: constraints.NewSet()}
	for _, r := range rest {
		// Stretched threefold along x.
		bp.Particles = append(bp.Particles, ParticleDef{
			Position: vmath.Vec3{3 * r[0], r[1], r[2]},
			InvMass:  1,
			Radius:   0.01,
		})
	}
	bp.Constraints.ShapeMatching.Add([]int{0, 1, 2, 3}, constraints.ShapeMatchingParams{
		RestOffsets:  slices.Clone(authored),
		PlasticYield: 0.01,
		PlasticCreep: 1,
	})
	a := NewActor(bp)
	require.NoError(t, a.AddToSolver(s))
	require.NoError(t, s.Step(dt))

	deformed := slices.Clone(s.Constraints().ShapeMatching.Batches()[0].Params(0).RestOffsets)
	require.NotEqual(t, authored, deformed)

	// Attaching another actor rebuilds the merged constraints.
	require.NoError(t, NewActor(rope("other", 3, vmath.Vec3{5, 0, 0})).AddToSolver(s))

	assert.Equal(t, deformed, s.Constraints().ShapeMatching.Batches()[0].Params(0).RestOffsets)
	assert.Equal(t, deformed, a.Constraints().ShapeMatching.Batches()[0].Params(0).RestOffsets)
	assert.Equal(t, authored, bp.Constraints.ShapeMatching.Batches()[0].Params(0).RestOffsets)

	// A removed actor keeps its shape for the next attachment.
	a.RemoveFromSolver()
	assert.Equal(t, deformed, a.Constraints().ShapeMatching.Batches()[0].Params(0).RestOffsets)
}

func TestStep_ZeroStepIsNoop(t *testing.T) {
	s := newSolver()
	a := NewActor(rope("r", 2, vmath.Vec3{}))
	require.NoError(t, a.AddToSolver(s))
	require.NoError(t, s.Step(0))
	assert.Zero(t, s.StepCount())
}

func TestInterpolate(t *testing.T) {
	s := newSolver()
	a := NewActor(rope("r", 1, vmath.Vec3{}))
	require.NoError(t, a.AddToSolver(s))
	require.NoError(t, s.Step(dt))

	s.Interpolate(dt, 0)
	assert.Equal(t, vmath.Vec3{}, a.Positions()[0])
	s.Interpolate(dt, dt)
	assert.True(t, vmath.NearlyEqual(a.SimulatedPositions()[0], a.Positions()[0], 1e-12))

	p := s.Settings().Parameters
	p.Interpolate = false
	s.SetParameters(p)
	s.Interpolate(dt, 0)
	assert.Equal(t, a.SimulatedPositions()[0], a.Positions()[0])
}

func pinWorld(t *testing.T) (*collider.World, int, int) {
	t.Helper()
	w := collider.NewWorld(collider.WithLogger(discard))
	rb := w.CreateRigidbody(collider.Rigidbody{Transform: vmath.IdentityAffine(), InvMass: 1})
	c := collider.DefaultCollider()
	shape := w.CreateShape(collider.Shape{
		Geometry:  collider.Sphere{Radius: 0.1},
		Transform: vmath.Translate(vmath.Vec3{0, 1, 0}),
		// Mask zero: the pinned particle sits inside the sphere.
		Filter:    particles.MakeFilter(1, 0),
		Rigidbody: rb,
		Material:  c.Material,
	})
	return w, shape, rb
}

func pinned(shape int, threshold float64) *Blueprint {
	bp := &Blueprint{Name: "pinned", Constraints: constraints.NewSet(), Particles: []ParticleDef{
		{Position: vmath.Vec3{0, 1, 0}, InvMass: 1, Radius: 0.01},
	}}
	bp.Constraints.Pin.Add([]int{0}, constraints.PinParams{Shape: shape, BreakThreshold: threshold})
	return bp
}

func TestPin_HoldsAndPushesRigidbody(t *testing.T) {
	w, shape, rb := pinWorld(t)
	s := New(native.New(nil), w, WithLogger(discard))
	a := NewActor(pinned(shape, 100))
	require.NoError(t, a.AddToSolver(s))

	require.NoError(t, s.Step(dt))
	assert.InDelta(t, 1, a.SimulatedPositions()[0][1], 1e-9)
	assert.True(t, a.IsConstraintActive(constraints.Pin, 0, 0))

	body, ok := w.Rigidbody(rb)
	require.True(t, ok)
	assert.InDelta(t, -9.81, body.Force[1], 1e-6)
}

func TestPin_Breaks(t *testing.T) {
	w, shape, _ := pinWorld(t)
	s := New(native.New(nil), w, WithLogger(discard))
	a := NewActor(pinned(shape, 1))
	require.NoError(t, a.AddToSolver(s))

	require.NoError(t, s.Step(dt))
	assert.False(t, a.IsConstraintActive(constraints.Pin, 0, 0))
	assert.Zero(t, s.Constraints().Pin.ConstraintCount())

	require.NoError(t, s.Step(dt))
	assert.Less(t, a.SimulatedPositions()[0][1], 1.0)
}

func TestStitch(t *testing.T) {
	s := newSolver(WithSettings(weightless()))
	a := NewActor(rope("a", 1, vmath.Vec3{}))
	b := NewActor(rope("b", 1, vmath.Vec3{1, 0, 0}))
	require.NoError(t, a.AddToSolver(s))
	require.NoError(t, b.AddToSolver(s))

	st := &Stitch{A: a, B: b}
	require.True(t, s.AddStitch(st))
	assert.False(t, s.AddStitch(&Stitch{A: a, B: a}))

	require.NoError(t, s.Step(dt))
	assert.InDelta(t, a.SimulatedPositions()[0][0], b.SimulatedPositions()[0][0], 1e-9)
	assert.Equal(t, 1, s.Constraints().Stitch.ConstraintCount())

	b.RemoveFromSolver()
	assert.Empty(t, s.Stitches())
	assert.Zero(t, s.Constraints().Stitch.ConstraintCount())
	assert.False(t, s.RemoveStitch(st))
}

func TestForceProviders(t *testing.T) {
	well := &GravityWell{Center: vmath.Vec3{1, 0, 0}, Radius: 5, Strength: 10}
	s := newSolver(WithSettings(weightless()), WithForceProvider(well))
	a := NewActor(rope("r", 1, vmath.Vec3{}))
	require.NoError(t, a.AddToSolver(s))

	require.NoError(t, s.Step(dt))
	assert.Greater(t, a.Velocities()[0][0], 0.0)
	assert.Equal(t, vmath.Vec3{}, s.Particles().ExternalForces[a.SolverIndices()[0]], "forces clear after the step")

	wind := &WindZone{Velocity: vmath.Vec3{0, 0, 3}, Drag: 1}
	s.AddForceProvider(wind)
	require.NoError(t, s.Step(dt))
	assert.Greater(t, a.Velocities()[0][2], 0.0)
}

func TestWindZone_Bounds(t *testing.T) {
	s := newSolver(WithSettings(weightless()))
	in := NewActor(rope("in", 1, vmath.Vec3{}))
	out := NewActor(rope("out", 1, vmath.Vec3{10, 0, 0}))
	require.NoError(t, in.AddToSolver(s))
	require.NoError(t, out.AddToSolver(s))

	wind := &WindZone{Velocity: vmath.Vec3{1, 0, 0}, Bounds: vmath.AABBFromPoint(vmath.Vec3{}, 1)}
	wind.ApplyForcesToActor(in)
	wind.ApplyForcesToActor(out)
	assert.Equal(t, vmath.Vec3{1, 0, 0}, s.Particles().Wind[in.SolverIndices()[0]])
	assert.Equal(t, vmath.Vec3{}, s.Particles().Wind[out.SolverIndices()[0]])
}

func TestSpatialQuery(t *testing.T) {
	s := newSolver()
	a := NewActor(rope("r", 3, vmath.Vec3{}))
	require.NoError(t, a.AddToSolver(s))

	got, err := s.SpatialQuery([]queryir.Query{{Shape: queryir.Sphere{Center: vmath.Vec3{0.2, 0, 0}, Radius: 0.01}}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.SolverIndices()[2], got[0].Particle)

	_, err = s.SpatialQuery([]queryir.Query{{Shape: queryir.Sphere{Radius: -1}}})
	var verr *queryir.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSmoothProperty(t *testing.T) {
	s := newSolver()
	a := NewActor(rope("r", 4, vmath.Vec3{}))
	require.NoError(t, a.AddToSolver(s))

	got, err := s.SmoothProperty(a.SolverIndices(), []float64{2, 2, 2, 2}, 0.5)
	require.NoError(t, err)
	for _, v := range got {
		assert.InDelta(t, 2, v, 1e-9)
	}

	_, err = s.SmoothProperty(a.SolverIndices(), []float64{1}, 0.5)
	assert.Error(t, err)
	_, err = s.SmoothProperty([]int{99}, []float64{1}, 0.5)
	assert.Error(t, err)
}

func TestSetConstraintParameters(t *testing.T) {
	s := newSolver(WithSettings(weightless()))
	bp := &Blueprint{Name: "pair", Constraints: constraints.NewSet(), Particles: []ParticleDef{
		{Position: vmath.Vec3{0, 0, 0}, InvMass: 1},
		{Position: vmath.Vec3{2, 0, 0}, InvMass: 1},
	}}
	bp.Constraints.Distance.Add([]int{0, 1}, constraints.DistanceParams{RestLength: 1})
	a := NewActor(bp)
	require.NoError(t, a.AddToSolver(s))

	p := kernels.DefaultConstraintParameters(constraints.Distance)
	p.Enabled = false
	s.SetConstraintParameters(constraints.Distance, p)
	assert.False(t, s.Settings().Constraints[constraints.Distance].Enabled)

	require.NoError(t, s.Step(dt))
	assert.InDelta(t, 2, a.SimulatedPositions()[1][0], 1e-12)
}

func TestDestroy(t *testing.T) {
	s := newSolver()
	a := NewActor(rope("r", 3, vmath.Vec3{}))
	require.NoError(t, a.AddToSolver(s))
	s.Destroy()
	assert.Nil(t, a.Solver())
	assert.Len(t, a.Positions(), 3)
}

package particles

import (
	"sort"

	"github.com/roach88/xpbd/internal/vmath"
)

// Buffer is the struct-of-arrays particle store of one solver.
//
// The exported slices are indexed by particle handle and always have length
// Capacity(). Backends read and write them directly; only Allocate and Free
// change their length.
type Buffer struct {
	Positions              []vmath.Vec3
	PrevPositions          []vmath.Vec3
	StartPositions         []vmath.Vec3
	RenderablePositions    []vmath.Vec3
	Orientations           []vmath.Quat
	PrevOrientations       []vmath.Quat
	StartOrientations      []vmath.Quat
	RenderableOrientations []vmath.Quat

	Velocities        []vmath.Vec3
	AngularVelocities []vmath.Vec3

	InvMasses           []float64
	InvRotationalMasses []float64
	Radii               []float64
	Phases              []Phase
	Filters             []Filter

	ExternalForces  []vmath.Vec3
	ExternalTorques []vmath.Vec3
	Wind            []vmath.Vec3

	// Accumulation buffers written by Evaluate and consumed by Apply.
	PositionDeltas    []vmath.Vec3
	PositionCounts    []int32
	OrientationDeltas []vmath.Quat
	OrientationCounts []int32

	active []bool
	free   []int
}

// NewBuffer creates an empty buffer with room for capacity particles.
func NewBuffer(capacity int) *Buffer {
	b := &Buffer{}
	b.grow(capacity)
	b.free = b.free[:0]
	for i := capacity - 1; i >= 0; i-- {
		b.free = append(b.free, i)
	}
	return b
}

// Capacity returns the number of particle slots.
func (b *Buffer) Capacity() int {
	return len(b.Positions)
}

// ActiveCount returns the number of allocated particles.
func (b *Buffer) ActiveCount() int {
	return len(b.Positions) - len(b.free)
}

// IsActive reports whether slot i is allocated.
func (b *Buffer) IsActive(i int) bool {
	return i >= 0 && i < len(b.active) && b.active[i]
}

// ActiveIndices returns the allocated slots in ascending order.
func (b *Buffer) ActiveIndices() []int {
	out := make([]int, 0, b.ActiveCount())
	for i, a := range b.active {
		if a {
			out = append(out, i)
		}
	}
	return out
}

// Allocate reserves n slots, lowest free indices first, growing the arrays
// when the free list runs out. Allocated slots are reset to a resting
// particle at the origin.
func (b *Buffer) Allocate(n int) []int {
	if n <= 0 {
		return nil
	}
	if len(b.free) < n {
		old := b.Capacity()
		newCap := max(old*2, old+n-len(b.free))
		b.grow(newCap)
		extra := make([]int, 0, newCap-old)
		for i := newCap - 1; i >= old; i-- {
			extra = append(extra, i)
		}
		// Keep the stack ordered so the lowest index pops first.
		b.free = append(extra, b.free...)
	}

	out := make([]int, n)
	for k := 0; k < n; k++ {
		i := b.free[len(b.free)-1]
		b.free = b.free[:len(b.free)-1]
		b.active[i] = true
		b.reset(i)
		out[k] = i
	}
	return out
}

// Free returns slots to the buffer. Freeing an inactive slot is a no-op.
func (b *Buffer) Free(indices []int) {
	for _, i := range indices {
		if !b.IsActive(i) {
			continue
		}
		b.active[i] = false
		b.reset(i)
		b.InvMasses[i] = 0
		b.free = append(b.free, i)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(b.free)))
}

// ClearDeltas zeroes the accumulation buffers of particle i.
func (b *Buffer) ClearDeltas(i int) {
	b.PositionDeltas[i] = vmath.Vec3{}
	b.PositionCounts[i] = 0
	b.OrientationDeltas[i] = vmath.Quat{}
	b.OrientationCounts[i] = 0
}

func (b *Buffer) reset(i int) {
	id := vmath.Identity()
	b.Positions[i] = vmath.Vec3{}
	b.PrevPositions[i] = vmath.Vec3{}
	b.StartPositions[i] = vmath.Vec3{}
	b.RenderablePositions[i] = vmath.Vec3{}
	b.Orientations[i] = id
	b.PrevOrientations[i] = id
	b.StartOrientations[i] = id
	b.RenderableOrientations[i] = id
	b.Velocities[i] = vmath.Vec3{}
	b.AngularVelocities[i] = vmath.Vec3{}
	b.InvMasses[i] = 1
	b.InvRotationalMasses[i] = 1
	b.Radii[i] = 0.1
	b.Phases[i] = 0
	b.Filters[i] = FilterAll
	b.ExternalForces[i] = vmath.Vec3{}
	b.ExternalTorques[i] = vmath.Vec3{}
	b.Wind[i] = vmath.Vec3{}
	b.ClearDeltas(i)
}

func (b *Buffer) grow(n int) {
	old := len(b.Positions)
	if n <= old {
		return
	}
	b.Positions = growVec(b.Positions, n)
	b.PrevPositions = growVec(b.PrevPositions, n)
	b.StartPositions = growVec(b.StartPositions, n)
	b.RenderablePositions = growVec(b.RenderablePositions, n)
	b.Orientations = growQuat(b.Orientations, n)
	b.PrevOrientations = growQuat(b.PrevOrientations, n)
	b.StartOrientations = growQuat(b.StartOrientations, n)
	b.RenderableOrientations = growQuat(b.RenderableOrientations, n)
	b.Velocities = growVec(b.Velocities, n)
	b.AngularVelocities = growVec(b.AngularVelocities, n)
	b.InvMasses = growSlice(b.InvMasses, n)
	b.InvRotationalMasses = growSlice(b.InvRotationalMasses, n)
	b.Radii = growSlice(b.Radii, n)
	b.Phases = growSlice(b.Phases, n)
	b.Filters = growSlice(b.Filters, n)
	b.ExternalForces = growVec(b.ExternalForces, n)
	b.ExternalTorques = growVec(b.ExternalTorques, n)
	b.Wind = growVec(b.Wind, n)
	b.PositionDeltas = growVec(b.PositionDeltas, n)
	b.PositionCounts = growSlice(b.PositionCounts, n)
	b.OrientationDeltas = growSlice(b.OrientationDeltas, n)
	b.OrientationCounts = growSlice(b.OrientationCounts, n)
	b.active = growSlice(b.active, n)

	for i := old; i < n; i++ {
		b.reset(i)
		b.InvMasses[i] = 0
	}
}

func growSlice[T any](s []T, n int) []T {
	out := make([]T, n)
	copy(out, s)
	return out
}

func growVec(s []vmath.Vec3, n int) []vmath.Vec3 {
	return growSlice(s, n)
}

func growQuat(s []vmath.Quat, n int) []vmath.Quat {
	return growSlice(s, n)
}

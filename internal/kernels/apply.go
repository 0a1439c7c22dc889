package kernels

import (
	"github.com/roach88/xpbd/internal/particles"
	"github.com/roach88/xpbd/internal/vmath"
)

// addPosition accumulates one constraint's correction for particle i.
func addPosition(buf *particles.Buffer, i int, d vmath.Vec3) {
	buf.PositionDeltas[i] = buf.PositionDeltas[i].Add(d)
	buf.PositionCounts[i]++
}

// addOrientation accumulates one constraint's quaternion correction.
func addOrientation(buf *particles.Buffer, i int, d vmath.Quat) {
	buf.OrientationDeltas[i] = buf.OrientationDeltas[i].Add(d)
	buf.OrientationCounts[i]++
}

// ApplyPositionDelta adds the averaged, SOR-scaled delta of particle i to
// its position and clears the accumulator. Particles nobody touched are
// left alone.
func ApplyPositionDelta(buf *particles.Buffer, i int, sor float64) {
	c := buf.PositionCounts[i]
	if c == 0 {
		return
	}
	buf.Positions[i] = buf.Positions[i].Add(buf.PositionDeltas[i].Mul(sor / float64(c)))
	buf.PositionDeltas[i] = vmath.Vec3{}
	buf.PositionCounts[i] = 0
}

// ApplyOrientationDelta is ApplyPositionDelta for orientations; the result
// is renormalized.
func ApplyOrientationDelta(buf *particles.Buffer, i int, sor float64) {
	c := buf.OrientationCounts[i]
	if c == 0 {
		return
	}
	q := buf.Orientations[i].Add(buf.OrientationDeltas[i].Scale(sor / float64(c)))
	if q.Len() > vmath.Epsilon {
		buf.Orientations[i] = q.Normalize()
	}
	buf.OrientationDeltas[i] = vmath.Quat{}
	buf.OrientationCounts[i] = 0
}

// ApplyDeltas applies both accumulators of particle i.
func ApplyDeltas(buf *particles.Buffer, i int, sor float64) {
	ApplyPositionDelta(buf, i, sor)
	ApplyOrientationDelta(buf, i, sor)
}

// invMass returns the inverse mass of an active particle, 0 otherwise.
func invMass(buf *particles.Buffer, i int) float64 {
	if !buf.IsActive(i) {
		return 0
	}
	return buf.InvMasses[i]
}

package kernels

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/vmath"
)

const (
	polarIterations = 20
	// staticMass stands in for infinite mass when weighting the centroid.
	staticMass = 1e6
)

// ExtractRotation finds the rotation closest to the 3x3 matrix whose columns
// are a, starting from q. It is the iterative method of Müller et al.,
// "A Robust Method to Extract the Rotational Part of Deformations".
func ExtractRotation(a [3]vmath.Vec3, q vmath.Quat) vmath.Quat {
	for it := 0; it < polarIterations; it++ {
		var num vmath.Vec3
		var den float64
		for k := 0; k < 3; k++ {
			var e vmath.Vec3
			e[k] = 1
			col := q.Rotate(e)
			num = num.Add(col.Cross(a[k]))
			den += col.Dot(a[k])
		}
		omega := num.Mul(1 / (math.Abs(den) + 1e-9))
		axis, angle := vmath.SafeNormalize(omega)
		if angle < 1e-9 {
			break
		}
		q = mgl64.QuatRotate(angle, axis).Mul(q).Normalize()
	}
	return q
}

// evaluateShapeMatching moves each particle toward its goal position
// c + R·rest, where c is the mass-weighted centroid and R the best rotation
// of the rest shape onto the current one. Compliance softens the pull.
// Deformation beyond PlasticYield creeps the rest shape toward the current
// one.
func evaluateShapeMatching(ctx *Context, ps []int, p *constraints.ShapeMatchingParams, _ []float64) {
	buf := ctx.Particles
	if len(ps) == 0 || len(p.RestOffsets) != len(ps) {
		return
	}

	var center vmath.Vec3
	var total float64
	masses := make([]float64, len(ps))
	for k, i := range ps {
		w := invMass(buf, i)
		m := staticMass
		if w > vmath.Epsilon {
			m = 1 / w
		}
		masses[k] = m
		center = center.Add(buf.Positions[i].Mul(m))
		total += m
	}
	center = center.Mul(1 / total)

	// A = Σ m (x - c) ⊗ rest, stored by columns.
	var a [3]vmath.Vec3
	for k, i := range ps {
		d := buf.Positions[i].Sub(center).Mul(masses[k])
		r := p.RestOffsets[k]
		for col := 0; col < 3; col++ {
			a[col] = a[col].Add(d.Mul(r[col]))
		}
	}
	rot := ExtractRotation(a, vmath.Identity())

	stiffness := 1 / (1 + ctx.compliance(p.Compliance))
	var deformation float64
	for k, i := range ps {
		goal := center.Add(rot.Rotate(p.RestOffsets[k]))
		d := goal.Sub(buf.Positions[i])
		deformation += d.LenSqr()
		if invMass(buf, i) == 0 {
			addPosition(buf, i, vmath.Vec3{})
			continue
		}
		addPosition(buf, i, d.Mul(stiffness))
	}

	if p.PlasticYield > 0 && math.Sqrt(deformation/float64(len(ps))) > p.PlasticYield {
		inv := rot.Conjugate()
		for k, i := range ps {
			current := inv.Rotate(buf.Positions[i].Sub(center))
			p.RestOffsets[k] = vmath.Lerp(p.RestOffsets[k], current, vmath.Clamp01(p.PlasticCreep))
		}
	}
}

// RestOffsets returns each position relative to the mass-weighted centroid
// of the set, weighting static particles like evaluation does.
func RestOffsets(positions []vmath.Vec3, invMasses []float64) []vmath.Vec3 {
	if len(positions) == 0 {
		return nil
	}
	var center vmath.Vec3
	var total float64
	for k, p := range positions {
		m := staticMass
		if invMasses[k] > vmath.Epsilon {
			m = 1 / invMasses[k]
		}
		center = center.Add(p.Mul(m))
		total += m
	}
	center = center.Mul(1 / total)
	out := make([]vmath.Vec3, len(positions))
	for k, p := range positions {
		out[k] = p.Sub(center)
	}
	return out
}

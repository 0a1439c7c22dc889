package kernels

import (
	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/vmath"
)

// surfaceNormal is the local axis of a particle's orientation taken as its
// surface normal.
var surfaceNormal = vmath.Vec3{0, 0, 1}

// evaluateAerodynamic applies drag against, and lift across, the wind
// relative to an oriented particle:
//
//	F = ½ρA|v|² (-Cd cosθ v̂ - Cl cosθ l̂)
//
// where θ is the angle between the surface normal and the relative wind v
// and l̂ is the component of the normal perpendicular to v̂.
func evaluateAerodynamic(ctx *Context, ps []int, p *constraints.AerodynamicParams, _ []float64) {
	buf := ctx.Particles
	i := ps[0]
	w := invMass(buf, i)
	h := ctx.SubstepTime
	if w == 0 || h < vmath.Epsilon {
		return
	}

	wind := buf.Wind[i].Add(ctx.directionToLocal(ctx.Params.Wind))
	rel := buf.Velocities[i].Sub(wind)
	dir, speed := vmath.SafeNormalize(rel)
	if speed < vmath.Epsilon {
		addPosition(buf, i, vmath.Vec3{})
		return
	}

	n := buf.Orientations[i].Rotate(surfaceNormal)
	cos := n.Dot(dir)
	if cos < 0 {
		n, cos = n.Mul(-1), -cos
	}
	lift, _ := vmath.SafeNormalize(n.Sub(dir.Mul(cos)))

	k := 0.5 * ctx.Params.AirDensity * p.Area * speed * speed
	force := dir.Mul(-p.DragCoefficient * cos).Add(lift.Mul(-p.LiftCoefficient * cos)).Mul(k)
	addPosition(buf, i, force.Mul(w*h*h))
}

package kernels

import (
	"math"

	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/vmath"
)

// depenetrationCap limits how far a contact may push in one substep.
func depenetrationCap(ctx *Context, pen float64) float64 {
	if ctx.Params.MaxDepenetration <= 0 {
		return pen
	}
	return math.Min(pen, ctx.Params.MaxDepenetration*ctx.SubstepTime)
}

// frictionCorrection returns the tangential displacement to remove given the
// relative displacement dx over the substep, the contact normal and the
// normal correction magnitude. Static friction removes all of it while it
// stays under static*normal; past that, dynamic friction removes up to
// dynamic*normal.
func frictionCorrection(dx, n vmath.Vec3, normal, dynamic, static float64) vmath.Vec3 {
	tangent := dx.Sub(n.Mul(dx.Dot(n)))
	l := tangent.Len()
	if l < vmath.Epsilon {
		return vmath.Vec3{}
	}
	if l < static*normal {
		return tangent
	}
	return tangent.Mul(math.Min(dynamic*normal/l, 1))
}

// evaluateParticleContact separates two overlapping particles and applies
// friction to their relative tangential motion.
func evaluateParticleContact(ctx *Context, ps []int, p *constraints.ParticleContact, lambda []float64) {
	buf := ctx.Particles
	a, b := ps[0], ps[1]
	wa, wb := invMass(buf, a), invMass(buf, b)
	w := wa + wb
	if w < vmath.Epsilon {
		return
	}

	n, l := vmath.SafeNormalize(buf.Positions[a].Sub(buf.Positions[b]))
	if l == 0 {
		n = p.Normal
	}
	dist := l - (buf.Radii[a] + buf.Radii[b])
	if dist >= 0 {
		return
	}

	pen := depenetrationCap(ctx, -dist)
	lambda[0] += pen
	corr := n.Mul(pen / w)

	dx := buf.Positions[a].Sub(buf.PrevPositions[a]).Sub(buf.Positions[b].Sub(buf.PrevPositions[b]))
	f := frictionCorrection(dx, n, pen, p.Friction, p.Friction).Mul(1 / w)

	addPosition(buf, a, corr.Sub(f).Mul(wa))
	addPosition(buf, b, corr.Sub(f).Mul(-wb))
}

// evaluateColliderContact keeps a particle on the outside of the contact
// plane recorded at detection time, offset by the particle radius and the
// shape's contact offset, and applies the shape's friction.
func evaluateColliderContact(ctx *Context, ps []int, p *constraints.ColliderContact, lambda []float64) {
	buf := ctx.Particles
	i := ps[0]
	w := invMass(buf, i)
	if w == 0 {
		return
	}

	dist := buf.Positions[i].Sub(p.Point).Dot(p.Normal) - buf.Radii[i] - p.Offset
	if dist >= 0 {
		return
	}
	pen := depenetrationCap(ctx, -dist)
	lambda[0] += pen

	dx := buf.Positions[i].Sub(buf.PrevPositions[i])
	if ctx.World != nil {
		if s, ok := ctx.World.Shape(p.Shape); ok {
			if rb, ok := ctx.World.Rigidbody(s.Rigidbody); ok {
				v := ctx.directionToLocal(rb.VelocityAt(ctx.toWorld(buf.Positions[i])))
				dx = dx.Sub(v.Mul(ctx.SubstepTime))
			}
		}
	}
	f := frictionCorrection(dx, p.Normal, pen, p.Friction, p.Static)

	addPosition(buf, i, p.Normal.Mul(pen).Sub(f))
}

package kernels

import (
	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/vmath"
)

// evaluatePin drives a particle to Offset in its shape's frame, one
// multiplier per axis. The multipliers double as the reaction on the shape's
// rigidbody: force = λ / h².
func evaluatePin(ctx *Context, ps []int, p *constraints.PinParams, lambda []float64) {
	if ctx.World == nil {
		return
	}
	s, ok := ctx.World.Shape(p.Shape)
	if !ok {
		return
	}
	buf := ctx.Particles
	i := ps[0]
	w := invMass(buf, i)

	target := ctx.toLocal(s.Transform.TransformPoint(p.Offset))
	c := buf.Positions[i].Sub(target)

	alpha := ctx.compliance(p.Compliance)
	if w+alpha < vmath.Epsilon {
		return
	}
	var delta vmath.Vec3
	for k := 0; k < 3; k++ {
		dl := (-c[k] - alpha*lambda[k]) / (w + alpha)
		lambda[k] += dl
		delta[k] = dl * w
	}
	addPosition(buf, i, delta)
}

// PinForce converts a pin's multipliers into the force it exerts on the
// particle over a substep of length h.
func PinForce(lambda []float64, h float64) vmath.Vec3 {
	if h < vmath.Epsilon {
		return vmath.Vec3{}
	}
	return vmath.Vec3{lambda[0], lambda[1], lambda[2]}.Mul(1 / (h * h))
}

package kernels

import (
	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/vmath"
)

// evaluateSkin keeps a particle within Radius of its skin point, then pushes
// it out of the backstop sphere centred BackstopOffset+BackstopRadius behind
// the skin point along the normal. The radius term is compliant; the
// backstop is hard.
func evaluateSkin(ctx *Context, ps []int, p *constraints.SkinParams, lambda []float64) {
	buf := ctx.Particles
	i := ps[0]
	w := invMass(buf, i)
	if w == 0 {
		return
	}
	pos := buf.Positions[i]
	var delta vmath.Vec3

	n, l := vmath.SafeNormalize(pos.Sub(p.Point))
	if c := l - p.Radius; c > 0 {
		alpha := ctx.compliance(p.Compliance)
		dl := (-c - alpha*lambda[0]) / (w + alpha)
		lambda[0] += dl
		delta = n.Mul(dl * w)
	}

	if p.BackstopRadius > 0 {
		normal, _ := vmath.SafeNormalize(p.Normal)
		center := p.Point.Sub(normal.Mul(p.BackstopOffset + p.BackstopRadius))
		moved := pos.Add(delta)
		dir, dist := vmath.SafeNormalize(moved.Sub(center))
		if dist == 0 {
			dir = normal
		}
		if pen := p.BackstopRadius - dist; pen > 0 {
			delta = delta.Add(dir.Mul(pen))
		}
	}

	addPosition(buf, i, delta)
}

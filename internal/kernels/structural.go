package kernels

import (
	"math"

	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/vmath"
)

// evaluateDistance keeps two particles at their rest length:
//
//	C = |p1 - p2| - rest
//	dλ = (-C - α̃λ) / (w1 + w2 + α̃)
func evaluateDistance(ctx *Context, ps []int, p *constraints.DistanceParams, lambda []float64) {
	buf := ctx.Particles
	i, j := ps[0], ps[1]
	w1, w2 := invMass(buf, i), invMass(buf, j)

	n, l := vmath.SafeNormalize(buf.Positions[i].Sub(buf.Positions[j]))
	if l == 0 {
		return
	}
	c := l - p.RestLength
	if c < 0 {
		c = math.Min(0, l-p.RestLength*(1-p.MaxCompression))
	}

	alpha := ctx.compliance(p.Compliance)
	w := w1 + w2 + alpha
	if w < vmath.Epsilon {
		return
	}
	dl := (-c - alpha*lambda[0]) / w
	lambda[0] += dl

	d := n.Mul(dl)
	addPosition(buf, i, d.Mul(w1))
	addPosition(buf, j, d.Mul(-w2))
}

// evaluateStitch makes two particles coincide; a distance constraint with
// zero rest length.
func evaluateStitch(ctx *Context, ps []int, p *constraints.StitchParams, lambda []float64) {
	evaluateDistance(ctx, ps, &constraints.DistanceParams{Compliance: p.Compliance}, lambda)
}

// evaluateBend straightens p0-p1-p2 by driving the distance between the
// middle particle p1 and the triangle centroid toward the rest bend. Bends
// within MaxBending of rest are left alone.
func evaluateBend(ctx *Context, ps []int, p *constraints.BendParams, lambda []float64) {
	buf := ctx.Particles
	a, m, b := ps[0], ps[1], ps[2]
	wa, wm, wb := invMass(buf, a), invMass(buf, m), invMass(buf, b)

	center := buf.Positions[a].Add(buf.Positions[m]).Add(buf.Positions[b]).Mul(1.0 / 3.0)
	u, l := vmath.SafeNormalize(buf.Positions[m].Sub(center))
	if l == 0 {
		return
	}

	c := l - p.RestBend
	switch {
	case math.Abs(c) <= p.MaxBending:
		return
	case c > 0:
		c -= p.MaxBending
	default:
		c += p.MaxBending
	}

	// Gradients: -u/3 for the ends, 2u/3 for the middle.
	alpha := ctx.compliance(p.Compliance)
	w := (wa+wb+4*wm)/9 + alpha
	if w < vmath.Epsilon {
		return
	}
	dl := (-c - alpha*lambda[0]) / w
	lambda[0] += dl

	addPosition(buf, a, u.Mul(-dl*wa/3))
	addPosition(buf, b, u.Mul(-dl*wb/3))
	addPosition(buf, m, u.Mul(2*dl*wm/3))
}

// evaluateTether pulls a particle back toward its anchor once it strays
// farther than MaxLength*Scale. Only the first particle moves and the
// multiplier never goes positive, so the tether never pushes.
func evaluateTether(ctx *Context, ps []int, p *constraints.TetherParams, lambda []float64) {
	buf := ctx.Particles
	i, anchor := ps[0], ps[1]
	w := invMass(buf, i)

	n, l := vmath.SafeNormalize(buf.Positions[i].Sub(buf.Positions[anchor]))
	scale := p.Scale
	if scale == 0 {
		scale = 1
	}
	c := math.Max(0, l-p.MaxLength*scale)

	alpha := ctx.compliance(p.Compliance)
	if w+alpha < vmath.Epsilon {
		return
	}
	dl := (-c - alpha*lambda[0]) / (w + alpha)
	next := math.Min(0, lambda[0]+dl)
	dl = next - lambda[0]
	lambda[0] = next

	addPosition(buf, i, n.Mul(dl*w))
}

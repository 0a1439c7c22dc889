package kernels

import (
	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/vmath"
)

// Volume returns the signed volume enclosed by triangles (local indices into
// ps), positive for outward-facing counter-clockwise winding.
func Volume(positions []vmath.Vec3, ps []int, triangles []int) float64 {
	var v float64
	for t := 0; t+2 < len(triangles); t += 3 {
		a := positions[ps[triangles[t]]]
		b := positions[ps[triangles[t+1]]]
		c := positions[ps[triangles[t+2]]]
		v += a.Cross(b).Dot(c)
	}
	return v / 6
}

// evaluateVolume inflates or deflates a closed mesh toward Pressure times
// its rest volume:
//
//	C = V - pressure * V0,  ∇_a V = (b × c) / 6
func evaluateVolume(ctx *Context, ps []int, p *constraints.VolumeParams, lambda []float64) {
	buf := ctx.Particles
	grads := make([]vmath.Vec3, len(ps))
	for t := 0; t+2 < len(p.Triangles); t += 3 {
		ia, ib, ic := p.Triangles[t], p.Triangles[t+1], p.Triangles[t+2]
		a, b, c := buf.Positions[ps[ia]], buf.Positions[ps[ib]], buf.Positions[ps[ic]]
		grads[ia] = grads[ia].Add(b.Cross(c).Mul(1.0 / 6.0))
		grads[ib] = grads[ib].Add(c.Cross(a).Mul(1.0 / 6.0))
		grads[ic] = grads[ic].Add(a.Cross(b).Mul(1.0 / 6.0))
	}

	pressure := p.Pressure
	if pressure == 0 {
		pressure = 1
	}
	c := Volume(buf.Positions, ps, p.Triangles) - pressure*p.RestVolume

	alpha := ctx.compliance(p.Compliance)
	w := alpha
	for k, g := range grads {
		w += invMass(buf, ps[k]) * g.LenSqr()
	}
	if w < vmath.Epsilon {
		return
	}
	dl := (-c - alpha*lambda[0]) / w
	lambda[0] += dl

	for k, g := range grads {
		addPosition(buf, ps[k], g.Mul(dl*invMass(buf, ps[k])))
	}
}

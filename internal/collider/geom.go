package collider

import "github.com/roach88/xpbd/internal/vmath"

// closestOnSegment returns the point of segment ab nearest to p.
func closestOnSegment(p, a, b vmath.Vec3) vmath.Vec3 {
	ab := b.Sub(a)
	l2 := ab.LenSqr()
	if l2 < vmath.Epsilon {
		return a
	}
	t := vmath.Clamp01(p.Sub(a).Dot(ab) / l2)
	return a.Add(ab.Mul(t))
}

// closestOnTriangle returns the point of triangle abc nearest to p, by
// Voronoi region classification.
func closestOnTriangle(p, a, b, c vmath.Vec3) vmath.Vec3 {
	ab, ac, ap := b.Sub(a), c.Sub(a), p.Sub(a)
	d1, d2 := ab.Dot(ap), ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := p.Sub(b)
	d3, d4 := ab.Dot(bp), ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.Mul(d1 / (d1 - d3)))
	}

	cp := p.Sub(c)
	d5, d6 := ab.Dot(cp), ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.Mul(d2 / (d2 - d6)))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		return b.Add(c.Sub(b).Mul((d4 - d3) / ((d4 - d3) + (d5 - d6))))
	}

	denom := va + vb + vc
	if denom < vmath.Epsilon {
		return closestOnSegment(p, a, b)
	}
	v, w := vb/denom, vc/denom
	return a.Add(ab.Mul(v)).Add(ac.Mul(w))
}

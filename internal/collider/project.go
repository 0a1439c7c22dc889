package collider

import (
	"math"

	"github.com/roach88/xpbd/internal/vmath"
)

// Projection is the nearest surface point of a shape to a query point.
// Distance is signed (negative inside) for closed shapes and unsigned for
// edge meshes; Normal points away from the surface toward the outside.
type Projection struct {
	Point    vmath.Vec3
	Normal   vmath.Vec3
	Distance float64
}

var up = vmath.Vec3{0, 1, 0}

// Project returns the projection of world point p onto shape i. It fails
// for dead handles and for mesh-like shapes whose cache entry is gone.
func (w *World) Project(i int, p vmath.Vec3) (Projection, bool) {
	s, ok := w.shapes.get(i)
	if !ok {
		return Projection{}, false
	}
	return w.ProjectShape(s, p)
}

// ProjectShape projects p onto s without requiring s to be registered.
func (w *World) ProjectShape(s *Shape, p vmath.Vec3) (Projection, bool) {
	local := s.Transform.InverseTransformPoint(p)

	pr, ok := ProjectPrimitive(s.Geometry, local)
	if !ok {
		pr, ok = w.projectCached(s.Geometry, local)
	}
	if !ok {
		return Projection{}, false
	}

	// Back to world space. Distances are rescaled by the transform so
	// contact offsets stay world-space quantities.
	world := s.Transform.TransformPoint(pr.Point)
	normal, _ := vmath.SafeNormalize(s.Transform.TransformDirection(pr.Normal))
	if normal == (vmath.Vec3{}) {
		normal = up
	}
	dist := p.Sub(world).Len()
	if pr.Distance < 0 {
		dist = -dist
	}
	return Projection{Point: world, Normal: normal, Distance: dist}, true
}

func (w *World) projectCached(g Geometry, p vmath.Vec3) (Projection, bool) {
	switch g := g.(type) {
	case Heightmap:
		if d, ok := w.heightFields.Get(g.DataIndex); ok {
			return projectHeightmap(d, g.Size, p), true
		}
	case TriangleMesh:
		if d, ok := w.meshes.Get(g.DataIndex); ok && len(d.Tree.Nodes) > 0 {
			return projectMesh(d, p), true
		}
	case EdgeMesh:
		if d, ok := w.edgeMeshes.Get(g.DataIndex); ok && len(d.Tree.Nodes) > 0 {
			return projectEdges(d, p), true
		}
	case DistanceField:
		if d, ok := w.distanceFields.Get(g.DataIndex); ok {
			return projectField(d, p), true
		}
	}
	return Projection{}, false
}

// ProjectPrimitive projects a shape-space point onto a sphere, box or
// capsule. It fails for the cache-backed variants, which need a World.
func ProjectPrimitive(g Geometry, p vmath.Vec3) (Projection, bool) {
	switch g := g.(type) {
	case Sphere:
		return projectSphere(g.Center, g.Radius, p), true
	case Box:
		return projectBox(g, p), true
	case Capsule:
		a, b := g.segment()
		return projectSphere(closestOnSegment(p, a, b), g.Radius, p), true
	}
	return Projection{}, false
}

// ClosestOnSegment returns the point of segment ab nearest to p.
func ClosestOnSegment(p, a, b vmath.Vec3) vmath.Vec3 {
	return closestOnSegment(p, a, b)
}

func projectSphere(center vmath.Vec3, radius float64, p vmath.Vec3) Projection {
	dir, l := vmath.SafeNormalize(p.Sub(center))
	if l == 0 {
		dir = up
	}
	return Projection{Point: center.Add(dir.Mul(radius)), Normal: dir, Distance: l - radius}
}

func projectBox(b Box, p vmath.Vec3) Projection {
	q := p.Sub(b.Center)
	h := vmath.Abs(b.Size).Mul(0.5)

	inside := math.Abs(q[0]) <= h[0] && math.Abs(q[1]) <= h[1] && math.Abs(q[2]) <= h[2]
	if !inside {
		clamped := vmath.MaxComponents(h.Mul(-1), vmath.MinComponents(h, q))
		n, l := vmath.SafeNormalize(q.Sub(clamped))
		return Projection{Point: b.Center.Add(clamped), Normal: n, Distance: l}
	}

	// Inside: push out through the nearest face.
	axis, depth := 0, math.Inf(1)
	for k := 0; k < 3; k++ {
		if d := h[k] - math.Abs(q[k]); d < depth {
			axis, depth = k, d
		}
	}
	sign := 1.0
	if q[axis] < 0 {
		sign = -1
	}
	point := q
	point[axis] = sign * h[axis]
	var n vmath.Vec3
	n[axis] = sign
	return Projection{Point: b.Center.Add(point), Normal: n, Distance: -depth}
}

func projectHeightmap(d *HeightFieldData, size, p vmath.Vec3) Projection {
	if d.ResolutionX < 2 || d.ResolutionZ < 2 {
		return Projection{Point: vmath.Vec3{p[0], 0, p[2]}, Normal: up, Distance: p[1]}
	}
	dx := size[0] / float64(d.ResolutionX-1)
	dz := size[2] / float64(d.ResolutionZ-1)
	if dx < vmath.Epsilon || dz < vmath.Epsilon {
		return Projection{Point: vmath.Vec3{p[0], 0, p[2]}, Normal: up, Distance: p[1]}
	}
	cx := min(max(int(math.Floor(p[0]/dx)), 0), d.ResolutionX-2)
	cz := min(max(int(math.Floor(p[2]/dz)), 0), d.ResolutionZ-2)

	vertex := func(x, z int) vmath.Vec3 {
		return vmath.Vec3{float64(x) * dx, d.height(x, z) * size[1], float64(z) * dz}
	}

	best := Projection{Distance: math.Inf(1)}
	bestSq := math.Inf(1)
	for z := max(cz-1, 0); z <= min(cz+1, d.ResolutionZ-2); z++ {
		for x := max(cx-1, 0); x <= min(cx+1, d.ResolutionX-2); x++ {
			v00, v10 := vertex(x, z), vertex(x+1, z)
			v01, v11 := vertex(x, z+1), vertex(x+1, z+1)
			for _, tri := range [2][3]vmath.Vec3{{v00, v01, v11}, {v00, v11, v10}} {
				c := closestOnTriangle(p, tri[0], tri[1], tri[2])
				dsq := p.Sub(c).LenSqr()
				if dsq >= bestSq {
					continue
				}
				n, _ := vmath.SafeNormalize(tri[1].Sub(tri[0]).Cross(tri[2].Sub(tri[0])))
				bestSq = dsq
				best = signedProjection(p, c, n, dsq)
			}
		}
	}
	return best
}

func projectMesh(d *MeshData, p vmath.Vec3) Projection {
	tri, dsq := d.Tree.Closest(p, func(t int) float64 {
		a, b, c := d.triangle(t)
		return p.Sub(closestOnTriangle(p, a, b, c)).LenSqr()
	})
	a, b, c := d.triangle(tri)
	return signedProjection(p, closestOnTriangle(p, a, b, c), d.Normals[tri], dsq)
}

// signedProjection orients the result by the face normal n: points behind
// the face get a negative distance.
func signedProjection(p, closest, n vmath.Vec3, dsq float64) Projection {
	dist := math.Sqrt(dsq)
	if dist < vmath.Epsilon {
		return Projection{Point: closest, Normal: n, Distance: 0}
	}
	dir := p.Sub(closest).Mul(1 / dist)
	if dir.Dot(n) < 0 {
		return Projection{Point: closest, Normal: dir.Mul(-1), Distance: -dist}
	}
	return Projection{Point: closest, Normal: dir, Distance: dist}
}

func projectEdges(d *EdgeMeshData, p vmath.Vec3) Projection {
	e, _ := d.Tree.Closest(p, func(e int) float64 {
		a, b := d.edge(e)
		return p.Sub(closestOnSegment(p, a, b)).LenSqr()
	})
	a, b := d.edge(e)
	c := closestOnSegment(p, a, b)
	n, l := vmath.SafeNormalize(p.Sub(c))
	if l == 0 {
		n = up
	}
	return Projection{Point: c, Normal: n, Distance: l}
}

func projectField(d *DistanceFieldData, p vmath.Vec3) Projection {
	q := d.Bounds.ClosestPoint(p)
	outside := p.Sub(q).Len()

	h := d.CellSize * 0.5
	grad := vmath.Vec3{
		d.Distance(q.Add(vmath.Vec3{h, 0, 0})) - d.Distance(q.Sub(vmath.Vec3{h, 0, 0})),
		d.Distance(q.Add(vmath.Vec3{0, h, 0})) - d.Distance(q.Sub(vmath.Vec3{0, h, 0})),
		d.Distance(q.Add(vmath.Vec3{0, 0, h})) - d.Distance(q.Sub(vmath.Vec3{0, 0, h})),
	}
	n, l := vmath.SafeNormalize(grad)
	if l == 0 {
		n = up
	}
	dist := d.Distance(q) + outside
	return Projection{Point: p.Sub(n.Mul(dist)), Normal: n, Distance: dist}
}

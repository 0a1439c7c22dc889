package kernels

import (
	"github.com/roach88/xpbd/internal/collider"
	"github.com/roach88/xpbd/internal/particles"
	"github.com/roach88/xpbd/internal/queryir"
	"github.com/roach88/xpbd/internal/vmath"
)

// project finds the nearest point of a query shape to a query-space point.
// The returned distance is measured to the shape surface and is negative
// inside.
func project(s queryir.Shape, p vmath.Vec3) (collider.Projection, bool) {
	switch s := s.(type) {
	case queryir.Sphere:
		return collider.ProjectPrimitive(collider.Sphere{Center: s.Center, Radius: s.Radius}, p)
	case queryir.Box:
		return collider.ProjectPrimitive(collider.Box{Center: s.Center, Size: s.Size}, p)
	case queryir.Ray:
		dir, _ := vmath.SafeNormalize(s.Direction)
		end := s.Origin.Add(dir.Mul(s.Length))
		axis := collider.ClosestOnSegment(p, s.Origin, end)
		n, d := vmath.SafeNormalize(p.Sub(axis))
		if d < vmath.Epsilon {
			n = vmath.Perpendicular(dir)
		}
		return collider.Projection{
			Point:    axis.Add(n.Mul(s.Thickness)),
			Normal:   n,
			Distance: d - s.Thickness,
		}, true
	}
	return collider.Projection{}, false
}

// SpatialQuery matches every active particle against every query. Results
// are ordered by query index, then particle index.
func SpatialQuery(ctx *Context, queries []queryir.Query) []queryir.Result {
	buf := ctx.Particles
	active := buf.ActiveIndices()

	var results []queryir.Result
	for qi, q := range queries {
		// An unset transform means query space is world space.
		scale := q.Transform.MaxScale()
		if scale < vmath.Epsilon {
			q.Transform = vmath.IdentityAffine()
			scale = 1
		}
		filter := q.Filter
		if filter == 0 {
			filter = particles.FilterAll
		}
		for _, i := range active {
			if !filter.CollidesWith(buf.Filters[i]) {
				continue
			}
			world := ctx.toWorld(buf.Positions[i])
			pr, ok := project(q.Shape, q.Transform.InverseTransformPoint(world))
			if !ok {
				continue
			}

			point := q.Transform.TransformPoint(pr.Point)
			normal, _ := vmath.SafeNormalize(q.Transform.TransformDirection(pr.Normal))
			radius := buf.Radii[i]
			if ctx.Frame != nil {
				radius *= ctx.Frame.Frame.MaxScale()
			}
			dist := pr.Distance*scale - radius
			if dist > q.MaxDistance {
				continue
			}
			results = append(results, queryir.Result{
				QueryIndex: qi,
				Particle:   i,
				Point:      point,
				Normal:     normal,
				Distance:   dist,
			})
		}
	}
	return results
}

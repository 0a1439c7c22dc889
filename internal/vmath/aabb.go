package vmath

import "math"

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min Vec3
	Max Vec3
}

// EmptyAABB returns an inverted box that any Encapsulate call replaces.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{Min: Vec3{inf, inf, inf}, Max: Vec3{-inf, -inf, -inf}}
}

// AABBFromPoint returns the box of a sphere.
func AABBFromPoint(p Vec3, radius float64) AABB {
	r := Vec3{radius, radius, radius}
	return AABB{Min: p.Sub(r), Max: p.Add(r)}
}

// AABBFromCenterSize returns the box with the given center and full size.
func AABBFromCenterSize(center, size Vec3) AABB {
	h := Abs(size).Mul(0.5)
	return AABB{Min: center.Sub(h), Max: center.Add(h)}
}

// IsEmpty reports whether the box contains no point.
func (b AABB) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Center returns the box midpoint.
func (b AABB) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the full box extent.
func (b AABB) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Extents returns the half size.
func (b AABB) Extents() Vec3 {
	return b.Size().Mul(0.5)
}

// SurfaceArea returns the box surface area, the cost metric of tree builds.
func (b AABB) SurfaceArea() float64 {
	if b.IsEmpty() {
		return 0
	}
	s := b.Size()
	return 2 * (s[0]*s[1] + s[1]*s[2] + s[2]*s[0])
}

// LongestAxis returns the index of the largest dimension.
func (b AABB) LongestAxis() int {
	s := b.Size()
	if s[0] >= s[1] && s[0] >= s[2] {
		return 0
	}
	if s[1] >= s[2] {
		return 1
	}
	return 2
}

// Encapsulate grows the box to include p.
func (b AABB) Encapsulate(p Vec3) AABB {
	return AABB{Min: MinComponents(b.Min, p), Max: MaxComponents(b.Max, p)}
}

// EncapsulateBounds grows the box to include o.
func (b AABB) EncapsulateBounds(o AABB) AABB {
	if o.IsEmpty() {
		return b
	}
	return AABB{Min: MinComponents(b.Min, o.Min), Max: MaxComponents(b.Max, o.Max)}
}

// Expand grows the box by margin on every side.
func (b AABB) Expand(margin float64) AABB {
	m := Vec3{margin, margin, margin}
	return AABB{Min: b.Min.Sub(m), Max: b.Max.Add(m)}
}

// Intersects reports whether two boxes overlap (touching counts).
func (b AABB) Intersects(o AABB) bool {
	if b.Max[0] < o.Min[0] || o.Max[0] < b.Min[0] {
		return false
	}
	if b.Max[1] < o.Min[1] || o.Max[1] < b.Min[1] {
		return false
	}
	return b.Max[2] >= o.Min[2] && o.Max[2] >= b.Min[2]
}

// Contains reports whether p lies inside the box.
func (b AABB) Contains(p Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// ClosestPoint clamps p to the box.
func (b AABB) ClosestPoint(p Vec3) Vec3 {
	return MaxComponents(b.Min, MinComponents(b.Max, p))
}

// Transformed returns the world box enclosing the eight transformed corners.
func (b AABB) Transformed(a Affine) AABB {
	out := EmptyAABB()
	for i := 0; i < 8; i++ {
		c := Vec3{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			c[0] = b.Max[0]
		}
		if i&2 != 0 {
			c[1] = b.Max[1]
		}
		if i&4 != 0 {
			c[2] = b.Max[2]
		}
		out = out.Encapsulate(a.TransformPoint(c))
	}
	return out
}

// IntersectRay clips a ray against the box using the slab test. It returns
// the entry distance along dir (dir need not be normalized) and whether the
// ray hits within [0, maxT].
func (b AABB) IntersectRay(origin, dir Vec3, maxT float64) (float64, bool) {
	tmin, tmax := 0.0, maxT
	for axis := 0; axis < 3; axis++ {
		if math.Abs(dir[axis]) < Epsilon {
			if origin[axis] < b.Min[axis] || origin[axis] > b.Max[axis] {
				return 0, false
			}
			continue
		}
		inv := 1 / dir[axis]
		t1 := (b.Min[axis] - origin[axis]) * inv
		t2 := (b.Max[axis] - origin[axis]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

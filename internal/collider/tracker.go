package collider

import (
	"github.com/roach88/xpbd/internal/particles"
	"github.com/roach88/xpbd/internal/vmath"
)

// Tracker mirrors one host collider description into a World shape.
type Tracker interface {
	// UpdateIfNeeded rewrites the shape if the description changed since
	// the last call and reports whether it did. The first call always
	// creates the shape.
	UpdateIfNeeded() bool
	// Destroy removes the shape and releases any cache entry.
	Destroy()
	// Shape returns the shape handle, or -1 before the first update.
	Shape() int
}

// Collider is the part of a host collider common to every shape kind.
type Collider struct {
	Transform     vmath.Affine
	ContactOffset float64
	Filter        particles.Filter
	Rigidbody     int
	Material      int
}

// DefaultCollider returns an identity-transformed collider that collides
// with everything and belongs to no body.
func DefaultCollider() Collider {
	return Collider{
		Transform: vmath.IdentityAffine(),
		Filter:    particles.FilterAll,
		Rigidbody: NoRigidbody,
		Material:  -1,
	}
}

type SphereCollider struct {
	Collider
	Center vmath.Vec3
	Radius float64
}

type BoxCollider struct {
	Collider
	Center vmath.Vec3
	Size   vmath.Vec3
}

type CapsuleCollider struct {
	Collider
	Center    vmath.Vec3
	Radius    float64
	Height    float64
	Direction int
}

// TerrainCollider wraps a heightfield shared through the world cache.
type TerrainCollider struct {
	Collider
	Data *HeightFieldSource
	Size vmath.Vec3
}

// MeshCollider wraps a triangle mesh shared through the world cache.
type MeshCollider struct {
	Collider
	Mesh *MeshSource
}

// EdgeCollider wraps an edge mesh shared through the world cache.
type EdgeCollider struct {
	Collider
	Mesh *EdgeMeshSource
}

// DistanceFieldCollider wraps a distance field shared through the world
// cache.
type DistanceFieldCollider struct {
	Collider
	Field *DistanceFieldSource
}

// tracker is the shared implementation. S is compared by value, so any
// field change (including the transform) triggers an update.
type tracker[S comparable] struct {
	world  *World
	src    *S
	last   S
	synced bool
	shape  int

	common   func(*S) Collider
	geometry func(s *S, dataIndex int) Geometry

	// Mesh-like trackers only.
	sameData func(a, b *S) bool
	acquire  func(*S) int
	release  func(int)
	data     int
}

func (t *tracker[S]) Shape() int {
	return t.shape
}

func (t *tracker[S]) UpdateIfNeeded() bool {
	if t.synced && *t.src == t.last {
		return false
	}

	if t.acquire != nil && (!t.synced || !t.sameData(&t.last, t.src)) {
		// Release before acquiring so a replaced source never leaks a
		// reference.
		if t.data >= 0 {
			t.release(t.data)
			t.data = -1
		}
		t.data = t.acquire(t.src)
	}

	c := t.common(t.src)
	s := Shape{
		Geometry:      t.geometry(t.src, t.data),
		Transform:     c.Transform,
		ContactOffset: c.ContactOffset,
		Filter:        c.Filter,
		Rigidbody:     c.Rigidbody,
		Material:      c.Material,
	}
	if t.shape < 0 {
		t.shape = t.world.CreateShape(s)
	} else {
		t.world.UpdateShape(t.shape, s)
	}

	t.last = *t.src
	t.synced = true
	return true
}

func (t *tracker[S]) Destroy() {
	if t.acquire != nil && t.data >= 0 {
		t.release(t.data)
		t.data = -1
	}
	if t.shape >= 0 {
		t.world.DestroyShape(t.shape)
		t.shape = -1
	}
	t.synced = false
}

func newTracker[S comparable](w *World, src *S, common func(*S) Collider, geometry func(*S, int) Geometry) *tracker[S] {
	return &tracker[S]{world: w, src: src, shape: -1, data: -1, common: common, geometry: geometry}
}

// cached wires a tracker to a cache keyed by the pointer key(s) returns.
func cached[S comparable, K comparable, V any](t *tracker[S], c *Cache[K, V], key func(*S) K) *tracker[S] {
	var none K
	t.sameData = func(a, b *S) bool { return key(a) == key(b) }
	t.acquire = func(s *S) int {
		k := key(s)
		if k == none {
			return -1
		}
		i := c.GetOrCreate(k)
		c.Reference(i)
		return i
	}
	t.release = func(i int) { c.Dereference(i) }
	return t
}

// NewSphereTracker tracks src. src must outlive the tracker.
func NewSphereTracker(w *World, src *SphereCollider) Tracker {
	return newTracker(w, src,
		func(s *SphereCollider) Collider { return s.Collider },
		func(s *SphereCollider, _ int) Geometry { return Sphere{Center: s.Center, Radius: s.Radius} })
}

// NewBoxTracker tracks src.
func NewBoxTracker(w *World, src *BoxCollider) Tracker {
	return newTracker(w, src,
		func(s *BoxCollider) Collider { return s.Collider },
		func(s *BoxCollider, _ int) Geometry { return Box{Center: s.Center, Size: s.Size} })
}

// NewCapsuleTracker tracks src.
func NewCapsuleTracker(w *World, src *CapsuleCollider) Tracker {
	return newTracker(w, src,
		func(s *CapsuleCollider) Collider { return s.Collider },
		func(s *CapsuleCollider, _ int) Geometry {
			return Capsule{Center: s.Center, Radius: s.Radius, Height: s.Height, Direction: s.Direction}
		})
}

// NewTerrainTracker tracks src, sharing its heightfield through the cache.
func NewTerrainTracker(w *World, src *TerrainCollider) Tracker {
	t := newTracker(w, src,
		func(s *TerrainCollider) Collider { return s.Collider },
		func(s *TerrainCollider, data int) Geometry { return Heightmap{Size: s.Size, DataIndex: data} })
	return cached(t, w.heightFields, func(s *TerrainCollider) *HeightFieldSource { return s.Data })
}

// NewMeshTracker tracks src, sharing its mesh through the cache.
func NewMeshTracker(w *World, src *MeshCollider) Tracker {
	t := newTracker(w, src,
		func(s *MeshCollider) Collider { return s.Collider },
		func(_ *MeshCollider, data int) Geometry { return TriangleMesh{DataIndex: data} })
	return cached(t, w.meshes, func(s *MeshCollider) *MeshSource { return s.Mesh })
}

// NewEdgeMeshTracker tracks src, sharing its edges through the cache.
func NewEdgeMeshTracker(w *World, src *EdgeCollider) Tracker {
	t := newTracker(w, src,
		func(s *EdgeCollider) Collider { return s.Collider },
		func(_ *EdgeCollider, data int) Geometry { return EdgeMesh{DataIndex: data} })
	return cached(t, w.edgeMeshes, func(s *EdgeCollider) *EdgeMeshSource { return s.Mesh })
}

// NewDistanceFieldTracker tracks src, sharing its field through the cache.
func NewDistanceFieldTracker(w *World, src *DistanceFieldCollider) Tracker {
	t := newTracker(w, src,
		func(s *DistanceFieldCollider) Collider { return s.Collider },
		func(_ *DistanceFieldCollider, data int) Geometry { return DistanceField{DataIndex: data} })
	return cached(t, w.distanceFields, func(s *DistanceFieldCollider) *DistanceFieldSource { return s.Field })
}

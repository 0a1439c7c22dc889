package collider

import (
	"log/slog"

	"github.com/roach88/xpbd/internal/particles"
	"github.com/roach88/xpbd/internal/vmath"
)

// NoRigidbody marks a static shape.
const NoRigidbody = -1

// Shape is the canonical record of one collider.
type Shape struct {
	Geometry      Geometry
	Transform     vmath.Affine
	ContactOffset float64
	Filter        particles.Filter
	Rigidbody     int
	Material      int

	// Bounds is the world-space box, expanded by ContactOffset. The world
	// recomputes it on every create or update.
	Bounds vmath.AABB
}

// Rigidbody is the motion state of a body colliders are attached to.
type Rigidbody struct {
	Transform       vmath.Affine
	Velocity        vmath.Vec3
	AngularVelocity vmath.Vec3
	InvMass         float64
	Kinematic       bool

	// Force and Torque accumulate reactions from pinned particles during a
	// step. The host reads and clears them.
	Force  vmath.Vec3
	Torque vmath.Vec3
}

// VelocityAt returns the velocity of the body at world point p.
func (r *Rigidbody) VelocityAt(p vmath.Vec3) vmath.Vec3 {
	return r.Velocity.Add(r.AngularVelocity.Cross(p.Sub(r.Transform.Translation)))
}

// Material holds surface friction. Contact friction averages the values of
// both sides.
type Material struct {
	DynamicFriction float64
	StaticFriction  float64
	Stickiness      float64
}

// DefaultMaterial is used by shapes without a valid material index.
var DefaultMaterial = Material{DynamicFriction: 0.3, StaticFriction: 0.3}

// World owns every shape, rigidbody, material and geometry cache.
type World struct {
	shapes      arena[Shape]
	rigidbodies arena[Rigidbody]
	materials   arena[Material]

	meshes         *Cache[*MeshSource, *MeshData]
	edgeMeshes     *Cache[*EdgeMeshSource, *EdgeMeshData]
	heightFields   *Cache[*HeightFieldSource, *HeightFieldData]
	distanceFields *Cache[*DistanceFieldSource, *DistanceFieldData]

	logger *slog.Logger
}

// Option configures a World.
type Option func(*World)

// WithLogger sets the logger for cache and lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(w *World) {
		w.logger = l
	}
}

// NewWorld returns an empty world.
func NewWorld(opts ...Option) *World {
	w := &World{logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	w.meshes = NewCache("triangle_mesh", BuildMeshData, logDestroyed[*MeshData](w, "triangle_mesh"))
	w.edgeMeshes = NewCache("edge_mesh", BuildEdgeMeshData, logDestroyed[*EdgeMeshData](w, "edge_mesh"))
	w.heightFields = NewCache("height_field", BuildHeightFieldData, logDestroyed[*HeightFieldData](w, "height_field"))
	w.distanceFields = NewCache("distance_field", BuildDistanceFieldData, logDestroyed[*DistanceFieldData](w, "distance_field"))
	return w
}

func logDestroyed[V any](w *World, name string) func(V) {
	return func(V) {
		w.logger.Debug("geometry cache entry destroyed", "cache", name)
	}
}

// Meshes returns the triangle mesh cache.
func (w *World) Meshes() *Cache[*MeshSource, *MeshData] { return w.meshes }

// EdgeMeshes returns the edge mesh cache.
func (w *World) EdgeMeshes() *Cache[*EdgeMeshSource, *EdgeMeshData] { return w.edgeMeshes }

// HeightFields returns the heightfield cache.
func (w *World) HeightFields() *Cache[*HeightFieldSource, *HeightFieldData] { return w.heightFields }

// DistanceFields returns the distance field cache.
func (w *World) DistanceFields() *Cache[*DistanceFieldSource, *DistanceFieldData] {
	return w.distanceFields
}

// CreateShape registers s and returns its handle.
func (w *World) CreateShape(s Shape) int {
	s.Transform = sanitize(s.Transform)
	s.Bounds = w.worldBounds(s)
	i := w.shapes.create(s)
	w.logger.Debug("shape created", "shape", i, "kind", kindOf(s.Geometry))
	return i
}

// UpdateShape replaces the record of shape i.
func (w *World) UpdateShape(i int, s Shape) bool {
	p, ok := w.shapes.get(i)
	if !ok {
		return false
	}
	s.Transform = sanitize(s.Transform)
	s.Bounds = w.worldBounds(s)
	*p = s
	return true
}

// DestroyShape frees handle i.
func (w *World) DestroyShape(i int) bool {
	ok := w.shapes.destroy(i)
	if ok {
		w.logger.Debug("shape destroyed", "shape", i)
	}
	return ok
}

// Shape returns the record of shape i.
func (w *World) Shape(i int) (Shape, bool) {
	p, ok := w.shapes.get(i)
	if !ok {
		return Shape{}, false
	}
	return *p, true
}

// ShapeHandles returns live shape handles in ascending order.
func (w *World) ShapeHandles() []int {
	return w.shapes.handles()
}

// ShapeCount returns the number of live shapes.
func (w *World) ShapeCount() int {
	return w.shapes.len()
}

// Overlapping calls fn with every live shape whose bounds intersect box, in
// ascending handle order.
func (w *World) Overlapping(box vmath.AABB, fn func(i int, s *Shape)) {
	for i, alive := range w.shapes.alive {
		if alive && w.shapes.items[i].Bounds.Intersects(box) {
			fn(i, &w.shapes.items[i])
		}
	}
}

// CreateRigidbody registers rb and returns its handle.
func (w *World) CreateRigidbody(rb Rigidbody) int {
	return w.rigidbodies.create(rb)
}

// DestroyRigidbody frees handle i. Shapes still pointing at it behave as
// static.
func (w *World) DestroyRigidbody(i int) bool {
	return w.rigidbodies.destroy(i)
}

// Rigidbody returns a pointer to body i, valid until the next create.
func (w *World) Rigidbody(i int) (*Rigidbody, bool) {
	return w.rigidbodies.get(i)
}

// CreateMaterial registers m and returns its handle.
func (w *World) CreateMaterial(m Material) int {
	return w.materials.create(m)
}

// Material returns material i, or DefaultMaterial.
func (w *World) Material(i int) Material {
	if m, ok := w.materials.get(i); ok {
		return *m
	}
	return DefaultMaterial
}

// Teardown destroys every shape, body, material and cache entry.
func (w *World) Teardown() {
	w.shapes.reset()
	w.rigidbodies.reset()
	w.materials.reset()
	w.meshes.Clear()
	w.edgeMeshes.Clear()
	w.heightFields.Clear()
	w.distanceFields.Clear()
	w.logger.Debug("collider world torn down")
}

func (w *World) worldBounds(s Shape) vmath.AABB {
	local, ok := w.localBounds(s.Geometry)
	if !ok {
		return vmath.EmptyAABB()
	}
	return local.Transformed(s.Transform).Expand(s.ContactOffset)
}

func (w *World) localBounds(g Geometry) (vmath.AABB, bool) {
	switch g := g.(type) {
	case Sphere:
		return vmath.AABBFromPoint(g.Center, g.Radius), true
	case Box:
		return vmath.AABBFromCenterSize(g.Center, g.Size), true
	case Capsule:
		a, b := g.segment()
		return vmath.AABBFromPoint(a, g.Radius).EncapsulateBounds(vmath.AABBFromPoint(b, g.Radius)), true
	case Heightmap:
		d, ok := w.heightFields.Get(g.DataIndex)
		if !ok {
			return vmath.AABB{}, false
		}
		return vmath.AABB{
			Min: vmath.Vec3{0, d.MinHeight * g.Size[1], 0},
			Max: vmath.Vec3{g.Size[0], d.MaxHeight * g.Size[1], g.Size[2]},
		}, true
	case TriangleMesh:
		d, ok := w.meshes.Get(g.DataIndex)
		if !ok || len(d.Tree.Nodes) == 0 {
			return vmath.AABB{}, false
		}
		return d.Tree.Bounds, true
	case EdgeMesh:
		d, ok := w.edgeMeshes.Get(g.DataIndex)
		if !ok || len(d.Tree.Nodes) == 0 {
			return vmath.AABB{}, false
		}
		return d.Tree.Bounds, true
	case DistanceField:
		d, ok := w.distanceFields.Get(g.DataIndex)
		if !ok {
			return vmath.AABB{}, false
		}
		return d.Bounds, true
	}
	return vmath.AABB{}, false
}

func kindOf(g Geometry) string {
	if g == nil {
		return "none"
	}
	return g.Kind().String()
}

// sanitize turns zero-valued transform parts into identity parts.
func sanitize(a vmath.Affine) vmath.Affine {
	if a.Scale == (vmath.Vec3{}) {
		a.Scale = vmath.Vec3{1, 1, 1}
	}
	return vmath.NewAffine(a.Translation, a.Rotation, a.Scale)
}

package collider

import "github.com/roach88/xpbd/internal/vmath"

// Kind enumerates the geometry variants.
type Kind int

const (
	KindSphere Kind = iota
	KindBox
	KindCapsule
	KindHeightmap
	KindTriangleMesh
	KindEdgeMesh
	KindDistanceField
)

func (k Kind) String() string {
	switch k {
	case KindSphere:
		return "sphere"
	case KindBox:
		return "box"
	case KindCapsule:
		return "capsule"
	case KindHeightmap:
		return "heightmap"
	case KindTriangleMesh:
		return "triangle_mesh"
	case KindEdgeMesh:
		return "edge_mesh"
	case KindDistanceField:
		return "distance_field"
	default:
		return "unknown"
	}
}

// Geometry is implemented only by the variants in this package.
type Geometry interface {
	Kind() Kind
	isGeometry()
}

// Sphere is a ball around Center.
type Sphere struct {
	Center vmath.Vec3
	Radius float64
}

// Box is an axis-aligned box in shape space.
type Box struct {
	Center vmath.Vec3
	Size   vmath.Vec3
}

// Capsule is a swept sphere. Height includes both caps; Direction is the
// shape-space axis (0, 1 or 2) it extends along.
type Capsule struct {
	Center    vmath.Vec3
	Radius    float64
	Height    float64
	Direction int
}

// Heightmap is a terrain grid spanning [0, Size.X] x [0, Size.Z] with
// heights scaled by Size.Y.
type Heightmap struct {
	Size      vmath.Vec3
	DataIndex int
}

// TriangleMesh refers to an entry of the world's mesh cache.
type TriangleMesh struct {
	DataIndex int
}

// EdgeMesh refers to an entry of the world's edge mesh cache.
type EdgeMesh struct {
	DataIndex int
}

// DistanceField refers to an entry of the world's distance field cache.
type DistanceField struct {
	DataIndex int
}

func (Sphere) Kind() Kind        { return KindSphere }
func (Box) Kind() Kind           { return KindBox }
func (Capsule) Kind() Kind       { return KindCapsule }
func (Heightmap) Kind() Kind     { return KindHeightmap }
func (TriangleMesh) Kind() Kind  { return KindTriangleMesh }
func (EdgeMesh) Kind() Kind      { return KindEdgeMesh }
func (DistanceField) Kind() Kind { return KindDistanceField }

func (Sphere) isGeometry()        {}
func (Box) isGeometry()           {}
func (Capsule) isGeometry()       {}
func (Heightmap) isGeometry()     {}
func (TriangleMesh) isGeometry()  {}
func (EdgeMesh) isGeometry()      {}
func (DistanceField) isGeometry() {}

// segment returns the capsule's inner segment endpoints.
func (c Capsule) segment() (vmath.Vec3, vmath.Vec3) {
	var axis vmath.Vec3
	axis[min(max(c.Direction, 0), 2)] = 1
	half := max(0, c.Height*0.5-c.Radius)
	return c.Center.Sub(axis.Mul(half)), c.Center.Add(axis.Mul(half))
}

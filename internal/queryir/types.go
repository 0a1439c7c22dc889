package queryir

import (
	"github.com/roach88/xpbd/internal/particles"
	"github.com/roach88/xpbd/internal/vmath"
)

// Shape is a query volume in query space.
//
// This is a sealed interface - only types in this package implement it.
type Shape interface {
	shapeNode() // Marker method - seals interface to this package
}

// Sphere matches particles near a ball.
type Sphere struct {
	Center vmath.Vec3
	Radius float64
}

func (Sphere) shapeNode() {}

// Box matches particles near an axis-aligned box in query space; the query
// transform orients it.
type Box struct {
	Center vmath.Vec3
	Size   vmath.Vec3
}

func (Box) shapeNode() {}

// Ray matches particles near the segment Origin + t*Direction, t in
// [0, Length]. Thickness widens the segment into a capsule.
type Ray struct {
	Origin    vmath.Vec3
	Direction vmath.Vec3
	Length    float64
	Thickness float64
}

func (Ray) shapeNode() {}

// Query is one spatial query.
type Query struct {
	Shape     Shape
	Transform vmath.Affine
	// MaxDistance is the largest surface-to-surface gap reported. Zero
	// reports overlapping particles only.
	MaxDistance float64
	// Filter zero matches every particle.
	Filter particles.Filter
}

// Result is one particle matched by a query.
type Result struct {
	QueryIndex int
	Particle   int
	// Point is the nearest point on the query shape, Normal points from it
	// toward the particle, and Distance is the gap between the query
	// surface and the particle's surface (negative when overlapping).
	Point    vmath.Vec3
	Normal   vmath.Vec3
	Distance float64
}

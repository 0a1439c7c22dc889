package constraints

import "github.com/roach88/xpbd/internal/vmath"

// Type identifies a constraint kind. Declaration order is evaluation order.
type Type int

const (
	Tether Type = iota
	Volume
	Bend
	Distance
	ShapeMatching
	Pin
	ParticleCollision
	Collision
	Skin
	Aerodynamic
	Stitch

	typeCount
)

// Types returns every constraint type in evaluation order.
func Types() []Type {
	out := make([]Type, typeCount)
	for i := range out {
		out[i] = Type(i)
	}
	return out
}

var typeNames = [...]string{
	Tether:            "tether",
	Volume:            "volume",
	Bend:              "bend",
	Distance:          "distance",
	ShapeMatching:     "shape_matching",
	Pin:               "pin",
	ParticleCollision: "particle_collision",
	Collision:         "collision",
	Skin:              "skin",
	Aerodynamic:       "aerodynamic",
	Stitch:            "stitch",
}

func (t Type) String() string {
	if t < 0 || t >= typeCount {
		return "unknown"
	}
	return typeNames[t]
}

// ParseType is the inverse of String.
func ParseType(s string) (Type, bool) {
	for i, n := range typeNames {
		if n == s {
			return Type(i), true
		}
	}
	return 0, false
}

// LambdaStride is the number of Lagrange multipliers stored per constraint.
func (t Type) LambdaStride() int {
	if t == Pin {
		return 3
	}
	return 1
}

// Generated reports whether constraints of this type are produced by
// collision detection every step instead of being authored.
func (t Type) Generated() bool {
	return t == ParticleCollision || t == Collision
}

// DistanceParams keeps two particles at a rest length.
type DistanceParams struct {
	RestLength float64
	Compliance float64
	// MaxCompression is the fraction of the rest length the constraint may
	// shrink by before it starts pushing back.
	MaxCompression float64
}

// BendParams straightens three particles (p0, p1 middle, p2).
type BendParams struct {
	RestBend   float64
	MaxBending float64
	Compliance float64
}

// VolumeParams preserves the volume enclosed by a closed triangle list.
// Triangles index into the constraint's own particle list.
type VolumeParams struct {
	Triangles  []int
	RestVolume float64
	Pressure   float64
	Compliance float64
}

// SkinParams keeps a particle within Radius of a skin point, and outside a
// backstop sphere placed behind it along the skin normal.
type SkinParams struct {
	Point          vmath.Vec3
	Normal         vmath.Vec3
	Radius         float64
	BackstopRadius float64
	BackstopOffset float64
	Compliance     float64
}

// TetherParams limits the distance from a particle (first) to its anchor
// (second). It never pushes.
type TetherParams struct {
	MaxLength  float64
	Scale      float64
	Compliance float64
}

// PinParams attaches a particle to a point in a collider's local frame.
type PinParams struct {
	Shape          int
	Offset         vmath.Vec3
	Compliance     float64
	BreakThreshold float64
}

// StitchParams makes two particles coincide.
type StitchParams struct {
	Compliance float64
}

// ShapeMatchingParams drives a particle cluster toward the best rigid fit of
// its rest shape.
type ShapeMatchingParams struct {
	// RestOffsets are the rest positions relative to the rest center of
	// mass, one per particle. Plastic deformation rewrites them.
	RestOffsets []vmath.Vec3
	Compliance  float64

	PlasticYield float64
	PlasticCreep float64
}

// AerodynamicParams applies drag and lift from the relative wind on an
// oriented particle.
type AerodynamicParams struct {
	Area            float64
	DragCoefficient float64
	LiftCoefficient float64
}

// ParticleContact is a generated pair constraint between two particles.
type ParticleContact struct {
	Normal   vmath.Vec3
	Friction float64
}

// ColliderContact is a generated constraint between a particle and a
// collider shape.
type ColliderContact struct {
	Shape    int
	Point    vmath.Vec3
	Normal   vmath.Vec3
	Offset   float64
	Friction float64
	Static   float64
}

package vmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the smallest denominator the engine divides by.
const Epsilon = 1e-9

// Vec3 and Quat alias the mgl64 types so callers import a single package.
type (
	Vec3 = mgl64.Vec3
	Quat = mgl64.Quat
	Mat3 = mgl64.Mat3
)

// Zero is the zero vector.
var Zero = Vec3{}

// Identity returns the identity rotation.
func Identity() Quat {
	return mgl64.QuatIdent()
}

// IsFinite reports whether x is neither NaN nor infinite.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// IsFiniteVec reports whether every component of v is finite.
func IsFiniteVec(v Vec3) bool {
	return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2])
}

// SafeNormalize returns v/|v| and |v|. A vector shorter than Epsilon
// normalizes to zero with length zero.
func SafeNormalize(v Vec3) (Vec3, float64) {
	l := v.Len()
	if l < Epsilon {
		return Vec3{}, 0
	}
	return v.Mul(1 / l), l
}

// SafeDiv returns a/b, or zero when |b| < Epsilon.
func SafeDiv(a, b float64) float64 {
	if math.Abs(b) < Epsilon {
		return 0
	}
	return a / b
}

// MulComponents multiplies a and b component-wise.
func MulComponents(a, b Vec3) Vec3 {
	return Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// DivComponents divides a by b component-wise, yielding zero where b is
// near zero.
func DivComponents(a, b Vec3) Vec3 {
	return Vec3{SafeDiv(a[0], b[0]), SafeDiv(a[1], b[1]), SafeDiv(a[2], b[2])}
}

// MinComponents returns the component-wise minimum.
func MinComponents(a, b Vec3) Vec3 {
	return Vec3{math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Min(a[2], b[2])}
}

// MaxComponents returns the component-wise maximum.
func MaxComponents(a, b Vec3) Vec3 {
	return Vec3{math.Max(a[0], b[0]), math.Max(a[1], b[1]), math.Max(a[2], b[2])}
}

// Abs returns the component-wise absolute value.
func Abs(v Vec3) Vec3 {
	return Vec3{math.Abs(v[0]), math.Abs(v[1]), math.Abs(v[2])}
}

// Lerp interpolates linearly between a and b.
func Lerp(a, b Vec3, t float64) Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// ClampLength scales v down so that |v| <= max. A non-positive max leaves v
// untouched.
func ClampLength(v Vec3, max float64) Vec3 {
	if max <= 0 {
		return v
	}
	l2 := v.LenSqr()
	if l2 <= max*max {
		return v
	}
	return v.Mul(max / math.Sqrt(l2))
}

// NearlyEqual compares two vectors component-wise with an absolute tolerance.
func NearlyEqual(a, b Vec3, tolerance float64) bool {
	return math.Abs(a[0]-b[0]) <= tolerance &&
		math.Abs(a[1]-b[1]) <= tolerance &&
		math.Abs(a[2]-b[2]) <= tolerance
}

// Clamp01 clamps x to [0, 1].
func Clamp01(x float64) float64 {
	return mgl64.Clamp(x, 0, 1)
}

// Perpendicular returns a unit vector orthogonal to n.
func Perpendicular(n Vec3) Vec3 {
	var t Vec3
	if math.Abs(n[0]) > 0.9 {
		t = Vec3{0, 1, 0}
	} else {
		t = Vec3{1, 0, 0}
	}
	p, _ := SafeNormalize(n.Cross(t))
	return p
}

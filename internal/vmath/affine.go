package vmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Affine is a translation-rotation-scale transform. Points map as
// T + R(S∘p); non-uniform scale is applied in the local frame before rotating.
type Affine struct {
	Translation Vec3
	Rotation    Quat
	Scale       Vec3
}

// IdentityAffine returns the transform that maps every point to itself.
func IdentityAffine() Affine {
	return Affine{Rotation: Identity(), Scale: Vec3{1, 1, 1}}
}

// NewAffine builds a transform from its parts. A zero rotation is replaced by
// the identity so that zero-valued transforms coming from configuration still
// behave.
func NewAffine(translation Vec3, rotation Quat, scale Vec3) Affine {
	if rotation.Len() < Epsilon {
		rotation = Identity()
	}
	return Affine{Translation: translation, Rotation: rotation.Normalize(), Scale: scale}
}

// Translate returns an identity-rotation, unit-scale transform at t.
func Translate(t Vec3) Affine {
	return Affine{Translation: t, Rotation: Identity(), Scale: Vec3{1, 1, 1}}
}

// TransformPoint maps a local point to world space.
func (a Affine) TransformPoint(p Vec3) Vec3 {
	return a.Translation.Add(a.Rotation.Rotate(MulComponents(a.Scale, p)))
}

// InverseTransformPoint maps a world point to local space.
func (a Affine) InverseTransformPoint(p Vec3) Vec3 {
	return DivComponents(a.Rotation.Conjugate().Rotate(p.Sub(a.Translation)), a.Scale)
}

// TransformVector maps a local displacement to world space (no translation).
func (a Affine) TransformVector(v Vec3) Vec3 {
	return a.Rotation.Rotate(MulComponents(a.Scale, v))
}

// InverseTransformVector maps a world displacement to local space.
func (a Affine) InverseTransformVector(v Vec3) Vec3 {
	return DivComponents(a.Rotation.Conjugate().Rotate(v), a.Scale)
}

// TransformDirection rotates a direction, ignoring scale.
func (a Affine) TransformDirection(d Vec3) Vec3 {
	return a.Rotation.Rotate(d)
}

// InverseTransformDirection rotates a world direction into local space.
func (a Affine) InverseTransformDirection(d Vec3) Vec3 {
	return a.Rotation.Conjugate().Rotate(d)
}

// TransformRotation maps a local orientation to world space.
func (a Affine) TransformRotation(q Quat) Quat {
	return a.Rotation.Mul(q)
}

// InverseTransformRotation maps a world orientation to local space.
func (a Affine) InverseTransformRotation(q Quat) Quat {
	return a.Rotation.Conjugate().Mul(q)
}

// MaxScale returns the largest absolute scale component, used to scale radii
// and contact offsets.
func (a Affine) MaxScale() float64 {
	s := Abs(a.Scale)
	return max(s[0], s[1], s[2])
}

// Equal reports whether two transforms are identical within tolerance.
func (a Affine) Equal(b Affine, tolerance float64) bool {
	return NearlyEqual(a.Translation, b.Translation, tolerance) &&
		math.Abs(a.Rotation.W-b.Rotation.W) <= tolerance &&
		NearlyEqual(a.Rotation.V, b.Rotation.V, tolerance) &&
		NearlyEqual(a.Scale, b.Scale, tolerance)
}

// InterpolateAffine blends two transforms: translation and scale linearly,
// rotation by normalized lerp.
func InterpolateAffine(a, b Affine, t float64) Affine {
	return Affine{
		Translation: Lerp(a.Translation, b.Translation, t),
		Rotation:    mgl64.QuatNlerp(a.Rotation, b.Rotation, t),
		Scale:       Lerp(a.Scale, b.Scale, t),
	}
}

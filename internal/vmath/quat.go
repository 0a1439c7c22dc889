package vmath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// IntegrateSpin advances an orientation by an angular velocity over dt using
// the first-order quaternion derivative q' = ½ (0, ω) q. The result is
// normalized.
func IntegrateSpin(q Quat, angularVelocity Vec3, dt float64) Quat {
	spin := Quat{W: 0, V: angularVelocity}.Mul(q).Scale(0.5 * dt)
	return q.Add(spin).Normalize()
}

// AngularVelocity recovers the angular velocity that rotates prev onto cur in
// dt. The shortest arc is used. A dt below Epsilon yields zero.
func AngularVelocity(prev, cur Quat, dt float64) Vec3 {
	if dt < Epsilon {
		return Vec3{}
	}
	delta := cur.Mul(prev.Conjugate())
	if delta.W < 0 {
		delta = delta.Scale(-1)
	}
	sinHalf := delta.V.Len()
	if sinHalf < Epsilon {
		return Vec3{}
	}
	angle := 2 * math.Atan2(sinHalf, delta.W)
	return delta.V.Mul(angle / (sinHalf * dt))
}

// DeltaRotation returns the quaternion increment (not a rotation) that, added
// to q and renormalized, rotates q by the small angle dTheta.
func DeltaRotation(q Quat, dTheta Vec3) Quat {
	return Quat{W: 0, V: dTheta}.Mul(q).Scale(0.5)
}

// RotationBetween returns the shortest rotation taking unit vector a onto b.
func RotationBetween(a, b Vec3) Quat {
	d := a.Dot(b)
	if d < -1+1e-6 {
		return mgl64.QuatRotate(math.Pi, Perpendicular(a))
	}
	c := a.Cross(b)
	return Quat{W: 1 + d, V: c}.Normalize()
}

// FromEulerDegrees builds a rotation from XYZ Euler angles in degrees,
// applied X first.
func FromEulerDegrees(e Vec3) Quat {
	return mgl64.AnglesToQuat(mgl64.DegToRad(e[0]), mgl64.DegToRad(e[1]), mgl64.DegToRad(e[2]), mgl64.XYZ)
}

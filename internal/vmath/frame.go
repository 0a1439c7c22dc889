package vmath

// InertialFrame tracks the motion of the transform a solver simulates in, so
// that particles expressed in a moving or scaling local space receive the
// matching fictitious accelerations.
type InertialFrame struct {
	Frame     Affine
	PrevFrame Affine

	Velocity            Vec3
	AngularVelocity     Vec3
	Acceleration        Vec3
	AngularAcceleration Vec3

	initialized bool
}

// NewInertialFrame returns a frame resting at the given transform.
func NewInertialFrame(frame Affine) InertialFrame {
	return InertialFrame{Frame: frame, PrevFrame: frame, initialized: true}
}

// Update finite-differences the new transform against the previous one. The
// first update, or an update with dt below Epsilon, only records the
// transform.
func (f *InertialFrame) Update(frame Affine, dt float64) {
	if !f.initialized || dt < Epsilon {
		f.PrevFrame = frame
		f.Frame = frame
		f.initialized = true
		return
	}

	f.PrevFrame = f.Frame
	f.Frame = frame

	velocity := frame.Translation.Sub(f.PrevFrame.Translation).Mul(1 / dt)
	angular := AngularVelocity(f.PrevFrame.Rotation, frame.Rotation, dt)

	f.Acceleration = velocity.Sub(f.Velocity).Mul(1 / dt)
	f.AngularAcceleration = angular.Sub(f.AngularVelocity).Mul(1 / dt)
	f.Velocity = velocity
	f.AngularVelocity = angular
}

// FictitiousAcceleration returns, in local space, the acceleration a particle
// at local position p moving with local velocity v experiences because the
// frame itself accelerates and rotates. linearScale and angularScale weight
// the linear and rotational terms (0 = fully local simulation, 1 = fully
// world-space behaviour).
func (f *InertialFrame) FictitiousAcceleration(p, v Vec3, linearScale, angularScale float64) Vec3 {
	r := f.Frame.TransformVector(p)
	vr := f.Frame.TransformVector(v)

	linear := f.Acceleration.Mul(-linearScale)

	euler := f.AngularAcceleration.Cross(r)
	coriolis := f.AngularVelocity.Cross(vr).Mul(2)
	centrifugal := f.AngularVelocity.Cross(f.AngularVelocity.Cross(r))
	angular := euler.Add(coriolis).Add(centrifugal).Mul(-angularScale)

	return f.Frame.InverseTransformVector(linear.Add(angular))
}

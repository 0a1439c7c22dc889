package kernels

import (
	"github.com/roach88/xpbd/internal/vmath"
)

// BeginStep records the start-of-step state interpolation blends from.
func BeginStep(ctx *Context, i int) {
	buf := ctx.Particles
	buf.StartPositions[i] = buf.Positions[i]
	buf.StartOrientations[i] = buf.Orientations[i]
}

// Predict advances particle i by one substep of explicit integration:
// gravity, external force, the fictitious forces of a moving frame,
// damping and the velocity clamps. The current state becomes the previous
// state. Particles with zero inverse mass keep their position.
func Predict(ctx *Context, i int) {
	buf := ctx.Particles
	p := ctx.Params
	h := ctx.SubstepTime

	buf.PrevPositions[i] = buf.Positions[i]
	buf.PrevOrientations[i] = buf.Orientations[i]

	damping := max(0, 1-p.Damping*h)

	if w := buf.InvMasses[i]; w > 0 {
		v := buf.Velocities[i]
		a := p.Gravity.Add(buf.ExternalForces[i].Mul(w))
		if ctx.Frame != nil {
			a = a.Add(ctx.Frame.FictitiousAcceleration(buf.Positions[i], v, p.LinearInertiaScale, p.AngularInertiaScale))
		}
		v = v.Add(a.Mul(h)).Mul(damping)
		if p.MaxVelocity > 0 {
			v = vmath.ClampLength(v, p.MaxVelocity)
		}
		buf.Velocities[i] = v
		buf.Positions[i] = buf.Positions[i].Add(v.Mul(h))
	}

	if w := buf.InvRotationalMasses[i]; w > 0 {
		av := buf.AngularVelocities[i].Add(buf.ExternalTorques[i].Mul(w * h)).Mul(damping)
		if p.MaxAngularVelocity > 0 {
			av = vmath.ClampLength(av, p.MaxAngularVelocity)
		}
		buf.AngularVelocities[i] = av
		buf.Orientations[i] = vmath.IntegrateSpin(buf.Orientations[i], av, h)
	}
}

// UpdateVelocities derives velocities from the corrected positions of the
// substep.
func UpdateVelocities(ctx *Context, i int) {
	buf := ctx.Particles
	h := ctx.SubstepTime
	if h < vmath.Epsilon {
		return
	}
	buf.Velocities[i] = buf.Positions[i].Sub(buf.PrevPositions[i]).Mul(1 / h)
	buf.AngularVelocities[i] = vmath.AngularVelocity(buf.PrevOrientations[i], buf.Orientations[i], h)
}

// Settle freezes particle i at its start-of-step state when its kinetic
// energy per unit mass over the whole step stayed under the sleep
// threshold. A particle that left the finite range is never settled, so
// the step's finite check still sees it.
func Settle(ctx *Context, i int) {
	buf := ctx.Particles
	if ctx.Params.SleepThreshold <= 0 || ctx.StepTime < vmath.Epsilon || buf.InvMasses[i] == 0 {
		return
	}
	if !vmath.IsFiniteVec(buf.Positions[i]) || !vmath.IsFiniteVec(buf.Velocities[i]) {
		return
	}
	v := buf.Positions[i].Sub(buf.StartPositions[i]).Mul(1 / ctx.StepTime)
	// A NaN energy fails this test.
	if !(0.5*v.LenSqr() <= ctx.Params.SleepThreshold) {
		return
	}
	buf.Positions[i] = buf.StartPositions[i]
	buf.Velocities[i] = vmath.Vec3{}
	buf.AngularVelocities[i] = vmath.Vec3{}
}

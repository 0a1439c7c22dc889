package solver

import (
	"github.com/roach88/xpbd/internal/vmath"
)

// ForceProvider writes external forces into an actor's particles. Providers
// run once per step, before collision detection; the forces are cleared
// when the step ends.
type ForceProvider interface {
	ApplyForcesToActor(a *Actor)
}

// WindZone blows a uniform wind through a box. Particles inside feel the
// wind in their aerodynamic constraints and a linear drag toward the wind
// velocity.
type WindZone struct {
	Velocity vmath.Vec3
	// Bounds limits the zone in solver space; a zero or empty box means
	// everywhere.
	Bounds vmath.AABB
	// Drag is the force per unit of relative velocity.
	Drag float64
}

func (w *WindZone) ApplyForcesToActor(a *Actor) {
	s := a.Solver()
	if s == nil {
		return
	}
	buf := s.buf
	everywhere := w.Bounds == (vmath.AABB{}) || w.Bounds.IsEmpty()
	for local, i := range a.indices {
		if !everywhere && !w.Bounds.Contains(buf.Positions[i]) {
			continue
		}
		a.SetWind(local, w.Velocity)
		if w.Drag > 0 && buf.InvMasses[i] > 0 {
			a.AddExternalForce(local, w.Velocity.Sub(buf.Velocities[i]).Mul(w.Drag))
		}
	}
}

// GravityWell pulls particles within Radius toward Center with an
// acceleration of Strength, fading linearly to zero at the rim. A negative
// strength pushes.
type GravityWell struct {
	Center   vmath.Vec3
	Radius   float64
	Strength float64
}

func (g *GravityWell) ApplyForcesToActor(a *Actor) {
	s := a.Solver()
	if s == nil || g.Radius <= 0 {
		return
	}
	buf := s.buf
	for local, i := range a.indices {
		w := buf.InvMasses[i]
		if w == 0 {
			continue
		}
		dir, d := vmath.SafeNormalize(g.Center.Sub(buf.Positions[i]))
		if d == 0 || d > g.Radius {
			continue
		}
		accel := g.Strength * (1 - d/g.Radius)
		// F = m a, and the kernels scale forces by the inverse mass.
		a.AddExternalForce(local, dir.Mul(accel/w))
	}
}

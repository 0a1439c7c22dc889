package kernels

import (
	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/vmath"
)

// Parameters are the solver-wide simulation settings.
type Parameters struct {
	Gravity vmath.Vec3
	// Damping removes this fraction of velocity per second.
	Damping float64
	// MaxVelocity and MaxAngularVelocity clamp predicted velocities; zero
	// disables the clamp.
	MaxVelocity        float64
	MaxAngularVelocity float64
	// SleepThreshold freezes particles whose kinetic energy per unit mass
	// stays below it.
	SleepThreshold float64
	// CollisionMargin widens contact generation so fast particles are
	// caught before they tunnel.
	CollisionMargin float64
	// MaxDepenetration caps the collision correction speed; zero disables
	// the cap.
	MaxDepenetration float64
	ParticleFriction float64

	// LinearInertiaScale and AngularInertiaScale weight the fictitious
	// forces of a moving solver frame.
	LinearInertiaScale  float64
	AngularInertiaScale float64

	Wind       vmath.Vec3
	AirDensity float64

	// Interpolate blends renderable state between the last two steps.
	Interpolate bool
}

// DefaultParameters returns Earth gravity and mild damping.
func DefaultParameters() Parameters {
	return Parameters{
		Gravity:          vmath.Vec3{0, -9.81, 0},
		Damping:          0,
		SleepThreshold:   0.0005,
		CollisionMargin:  0.02,
		ParticleFriction: 0.1,
		AirDensity:       1.2,
		Interpolate:      true,
	}
}

// EvaluationMode chooses when deltas of a constraint type are applied.
type EvaluationMode int

const (
	// Sequential applies after each batch, so later batches see the
	// corrections of earlier ones. Contribution counters cover one batch.
	Sequential EvaluationMode = iota
	// Parallel evaluates every batch of the type first and applies once;
	// counters cover every batch of the type.
	Parallel
)

func (m EvaluationMode) String() string {
	if m == Parallel {
		return "parallel"
	}
	return "sequential"
}

// ConstraintParameters are the per-type solver settings.
type ConstraintParameters struct {
	Enabled    bool
	Iterations int
	// SOR is the successive over-relaxation factor applied to averaged
	// deltas.
	SOR  float64
	Mode EvaluationMode
}

// DefaultConstraintParameters returns one sequential iteration with SOR 1,
// or parallel mode for the collision types.
func DefaultConstraintParameters(t constraints.Type) ConstraintParameters {
	p := ConstraintParameters{Enabled: true, Iterations: 1, SOR: 1, Mode: Sequential}
	if t.Generated() {
		p.Mode = Parallel
	}
	return p
}

package testutil

import (
	"io"
	"log/slog"

	"github.com/roach88/xpbd/internal/compiler"
	"github.com/roach88/xpbd/internal/ir"
)

// StepTime is the fixed step of every fixture scene.
const StepTime = 1.0 / 60

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Settings returns the solver settings shared by the fixtures: native
// backend, two substeps, Earth gravity.
func Settings() ir.Settings {
	return ir.Settings{
		Backend:     "native",
		StepTime:    StepTime,
		Substeps:    2,
		Gravity:     ir.Vec3{0, -9.81, 0},
		Interpolate: true,
	}
}

// RopeScene is one free-falling four-segment rope named "rope" starting
// at height 1.
func RopeScene() *ir.Scene {
	ps, cs := compiler.Rope(compiler.RopeOptions{
		Start:        ir.Vec3{0, 1, 0},
		End:          ir.Vec3{0.4, 1, 0},
		Segments:     4,
		Radius:       0.05,
		ParticleMass: 1,
	})
	return &ir.Scene{
		Name:     "rope",
		Settings: Settings(),
		Actors:   []ir.ActorSpec{{Name: "rope", Particles: ps, Constraints: cs}},
	}
}

// PendulumScene hangs "rope" from a static sphere "hook" at the origin by
// its first particle.
func PendulumScene() *ir.Scene {
	ps, cs := compiler.Rope(compiler.RopeOptions{
		Start:        ir.Vec3{0, -0.2, 0},
		End:          ir.Vec3{0.6, -0.2, 0},
		Segments:     6,
		Radius:       0.04,
		ParticleMass: 0.5,
	})
	cs = append(cs, ir.ConstraintSpec{
		Type:      "pin",
		Particles: []int{0},
		Collider:  "hook",
		Offset:    ir.Vec3{0, -0.2, 0},
	})
	return &ir.Scene{
		Name:     "pendulum",
		Settings: Settings(),
		Colliders: []ir.ColliderSpec{
			// Category 2 with an empty mask: the rope never collides with it.
			{Name: "hook", Kind: ir.ColliderSphere, Radius: 0.05, Category: 2, Mask: 0},
		},
		Actors: []ir.ActorSpec{{Name: "rope", Particles: ps, Constraints: cs}},
	}
}

// ClothScene drops a 5x5 cloth onto a static ground box whose top face is
// at y=0.
func ClothScene() *ir.Scene {
	ps, cs := compiler.Cloth(compiler.ClothOptions{
		Origin:         ir.Vec3{-0.5, 0.3, -0.5},
		Width:          1,
		Depth:          1,
		ResolutionX:    5,
		ResolutionZ:    5,
		Radius:         0.05,
		ParticleMass:   0.1,
		BendCompliance: 1e-4,
		Shear:          true,
	})
	return &ir.Scene{
		Name:     "cloth",
		Settings: Settings(),
		Colliders: []ir.ColliderSpec{
			{Name: "ground", Kind: ir.ColliderBox, Position: ir.Vec3{0, -0.5, 0}, Size: ir.Vec3{4, 1, 4}},
		},
		Actors: []ir.ActorSpec{{Name: "cloth", Particles: ps, Constraints: cs}},
	}
}

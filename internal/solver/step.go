package solver

import (
	"fmt"

	"github.com/roach88/xpbd/internal/backend"
	"github.com/roach88/xpbd/internal/kernels"
	"github.com/roach88/xpbd/internal/vmath"
)

// Step advances the simulation by stepTime. A failed step (a backend error
// or a particle leaving the finite range) restores the particle state of
// step begin and returns the error wrapped.
func (s *Solver) Step(stepTime float64) error {
	if stepTime <= 0 {
		return nil
	}
	if s.dirty {
		if err := s.rebuild(); err != nil {
			return fmt.Errorf("step: %w", err)
		}
	}

	for _, p := range s.providers {
		for _, a := range s.actors {
			p.ApplyForcesToActor(a)
		}
	}

	s.buf.Snapshot(&s.snapshot)

	substeps := max(1, s.settings.Substeps)
	substepTime := stepTime / float64(substeps)

	h := s.impl.CollisionDetection(stepTime)
	for i := 0; i < substeps; i++ {
		h = s.impl.Substep(stepTime, substepTime, i)
	}
	err := h.Complete()
	if err == nil && !s.buf.IsFinite() {
		err = backend.ErrNonFinite
	}
	s.impl.Pool().ReleaseAll()

	if err != nil {
		s.buf.Restore(&s.snapshot)
		s.clearForces()
		s.logger.Error("step failed, particle state restored", "step", s.steps, "error", err)
		return fmt.Errorf("step %d: %w", s.steps, err)
	}

	s.processPins(substepTime)
	s.clearForces()
	s.steps++
	return nil
}

// Interpolate writes renderable positions unsimulatedTime past the last
// step.
func (s *Solver) Interpolate(stepTime, unsimulatedTime float64) {
	s.impl.ApplyInterpolation(stepTime, unsimulatedTime)
}

func (s *Solver) clearForces() {
	for _, i := range s.buf.ActiveIndices() {
		s.buf.ExternalForces[i] = vmath.Vec3{}
		s.buf.ExternalTorques[i] = vmath.Vec3{}
		s.buf.Wind[i] = vmath.Vec3{}
	}
}

type brokenPin struct {
	actor *Actor
	batch int
	id    int
}

// processPins pushes the reaction of every pin onto its rigidbody and
// deactivates, in the owning actor, pins whose force exceeded their break
// threshold.
func (s *Solver) processPins(substepTime float64) {
	var broken []brokenPin
	frame := s.impl.InertialFrame()

	for k, b := range s.merged.Pin.Batches() {
		lambdas := b.Lambdas()
		for j := 0; j < b.ActiveConstraintCount(); j++ {
			p := b.Params(j)
			force := kernels.PinForce(lambdas[3*j:3*j+3], substepTime)

			if s.world != nil {
				if shape, ok := s.world.Shape(p.Shape); ok {
					if rb, ok := s.world.Rigidbody(shape.Rigidbody); ok && !rb.Kinematic {
						f := frame.Frame.Rotation.Rotate(force)
						anchor := shape.Transform.TransformPoint(p.Offset)
						rb.Force = rb.Force.Sub(f)
						rb.Torque = rb.Torque.Sub(anchor.Sub(rb.Transform.Translation).Cross(f))
					}
				}
			}

			if p.BreakThreshold > 0 && force.Len() > p.BreakThreshold {
				if bp, ok := s.pinOwner(k, j); ok {
					broken = append(broken, bp)
				}
			}
		}
	}

	for _, bp := range broken {
		if bp.actor.DeactivateConstraint(bp.actor.constraints.Pin.Type(), bp.batch, bp.id) {
			s.logger.Debug("pin broke", "actor", bp.actor.name, "batch", bp.batch, "id", bp.id)
		}
	}
}

// pinOwner maps storage position j of merged pin batch k back to the actor
// constraint it was copied from.
func (s *Solver) pinOwner(k, j int) (brokenPin, bool) {
	for _, a := range s.actors {
		offs := a.offsets[s.merged.Pin.Type()]
		if k >= len(offs) {
			continue
		}
		src := a.constraints.Pin.Batches()[k]
		local := j - offs[k]
		if local >= 0 && local < src.ActiveConstraintCount() {
			return brokenPin{actor: a, batch: k, id: src.ID(local)}, true
		}
	}
	return brokenPin{}, false
}

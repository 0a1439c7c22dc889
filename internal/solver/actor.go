package solver

import (
	"fmt"
	"slices"

	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/particles"
	"github.com/roach88/xpbd/internal/vmath"
)

// ParticleDef is the initial state of one blueprint particle.
type ParticleDef struct {
	Position          vmath.Vec3
	Velocity          vmath.Vec3
	Orientation       vmath.Quat
	InvMass           float64
	InvRotationalMass float64
	Radius            float64
}

// Blueprint is the authored description of an actor.
type Blueprint struct {
	Name      string
	Particles []ParticleDef
	// Constraints reference particles by their index in Particles.
	Constraints *constraints.Set

	SelfCollision bool
	OneSided      bool
	// Filter zero collides with everything.
	Filter particles.Filter
}

// Validate reports constraints that reference particles outside the
// blueprint.
func (b *Blueprint) Validate() error {
	if b.Constraints == nil {
		return nil
	}
	n := len(b.Particles)
	for _, c := range b.Constraints.Containers() {
		for k := 0; k < c.BatchCount(); k++ {
			batch := c.Batch(k)
			for i := 0; i < batch.ConstraintCount(); i++ {
				for _, p := range batch.Particles(i) {
					if p < 0 || p >= n {
						return fmt.Errorf("blueprint %q: %s batch %d constraint %d references particle %d of %d",
							b.Name, c.Type(), k, batch.ID(i), p, n)
					}
				}
			}
		}
	}
	return nil
}

// Actor is a blueprint instance that can be attached to one solver at a
// time.
type Actor struct {
	name        string
	defs        []ParticleDef
	constraints *constraints.Set
	phaseFlags  particles.Phase
	filter      particles.Filter

	solver  *Solver
	indices []int
	offsets constraints.Offsets
	group   int

	// last holds the positions read back when the actor was detached.
	last []vmath.Vec3
}

// NewActor instantiates bp. The actor owns a copy of the blueprint's
// constraints, so activation changes stay per actor.
func NewActor(bp *Blueprint) *Actor {
	set := constraints.NewSet()
	if bp.Constraints != nil {
		set = bp.Constraints.Clone()
	}
	var flags particles.Phase
	if bp.SelfCollision {
		flags |= particles.SelfCollide
	}
	if bp.OneSided {
		flags |= particles.OneSided
	}
	filter := bp.Filter
	if filter == 0 {
		filter = particles.FilterAll
	}
	a := &Actor{
		name:        bp.Name,
		defs:        slices.Clone(bp.Particles),
		constraints: set,
		phaseFlags:  flags,
		filter:      filter,
	}
	a.last = make([]vmath.Vec3, len(a.defs))
	for i, d := range a.defs {
		a.last[i] = d.Position
	}
	return a
}

// Name returns the blueprint name.
func (a *Actor) Name() string { return a.name }

// Solver returns the solver the actor is attached to, or nil.
func (a *Actor) Solver() *Solver { return a.solver }

// ParticleCount returns the number of particles.
func (a *Actor) ParticleCount() int { return len(a.defs) }

// SolverIndices maps local particle indices to solver particle handles.
// It is nil while detached.
func (a *Actor) SolverIndices() []int { return a.indices }

// Offsets returns where the actor's batches start in the solver's merged
// Set, per type.
func (a *Actor) Offsets() constraints.Offsets {
	if a.solver != nil && a.solver.dirty {
		a.solver.Constraints()
	}
	return a.offsets
}

// Constraints returns the actor's own constraints.
func (a *Actor) Constraints() *constraints.Set { return a.constraints }

// Group returns the collision group assigned at attachment.
func (a *Actor) Group() int { return a.group }

// AddToSolver attaches the actor to s, detaching it from any previous
// solver first. Attaching to nil is a no-op.
func (a *Actor) AddToSolver(s *Solver) error {
	if s == nil || a.solver == s {
		return nil
	}
	if a.solver != nil {
		a.RemoveFromSolver()
	}
	return s.addActor(a)
}

// RemoveFromSolver detaches the actor, keeping its last positions. It is a
// no-op when the actor is not attached.
func (a *Actor) RemoveFromSolver() {
	if a.solver == nil {
		return
	}
	a.solver.removeActor(a)
}

// Positions returns the renderable positions while attached and the last
// known positions otherwise.
func (a *Actor) Positions() []vmath.Vec3 {
	if a.solver == nil {
		return slices.Clone(a.last)
	}
	out := make([]vmath.Vec3, len(a.indices))
	for k, i := range a.indices {
		out[k] = a.solver.buf.RenderablePositions[i]
	}
	return out
}

// SimulatedPositions returns the positions of the last completed step.
func (a *Actor) SimulatedPositions() []vmath.Vec3 {
	if a.solver == nil {
		return slices.Clone(a.last)
	}
	out := make([]vmath.Vec3, len(a.indices))
	for k, i := range a.indices {
		out[k] = a.solver.buf.Positions[i]
	}
	return out
}

// Velocities returns the particle velocities, zero while detached.
func (a *Actor) Velocities() []vmath.Vec3 {
	out := make([]vmath.Vec3, len(a.defs))
	if a.solver == nil {
		return out
	}
	for k, i := range a.indices {
		out[k] = a.solver.buf.Velocities[i]
	}
	return out
}

// AddExternalForce adds f to particle local for the coming step. Ignored
// while detached.
func (a *Actor) AddExternalForce(local int, f vmath.Vec3) {
	if a.solver == nil || local < 0 || local >= len(a.indices) {
		return
	}
	i := a.indices[local]
	a.solver.buf.ExternalForces[i] = a.solver.buf.ExternalForces[i].Add(f)
}

// AddExternalTorque adds t to particle local for the coming step.
func (a *Actor) AddExternalTorque(local int, t vmath.Vec3) {
	if a.solver == nil || local < 0 || local >= len(a.indices) {
		return
	}
	i := a.indices[local]
	a.solver.buf.ExternalTorques[i] = a.solver.buf.ExternalTorques[i].Add(t)
}

// SetWind sets the wind particle local feels during the coming step.
func (a *Actor) SetWind(local int, wind vmath.Vec3) {
	if a.solver == nil || local < 0 || local >= len(a.indices) {
		return
	}
	a.solver.buf.Wind[a.indices[local]] = wind
}

// DeactivateConstraint deactivates constraint id of batch of type t. The
// solver picks the change up before its next step. With no solver attached
// only the actor's copy changes.
func (a *Actor) DeactivateConstraint(t constraints.Type, batch, id int) bool {
	return a.setActive(t, batch, id, false)
}

// ActivateConstraint reverses DeactivateConstraint.
func (a *Actor) ActivateConstraint(t constraints.Type, batch, id int) bool {
	return a.setActive(t, batch, id, true)
}

func (a *Actor) setActive(t constraints.Type, batch, id int, active bool) bool {
	c := a.constraints.Container(t)
	if c == nil || batch < 0 || batch >= c.BatchCount() {
		return false
	}
	b := c.Batch(batch)
	var changed bool
	if active {
		changed = b.ActivateConstraint(id)
	} else {
		changed = b.DeactivateConstraint(id)
	}
	if changed && a.solver != nil {
		a.solver.markDirty()
	}
	return changed
}

// IsConstraintActive reports the activation state of one constraint.
func (a *Actor) IsConstraintActive(t constraints.Type, batch, id int) bool {
	c := a.constraints.Container(t)
	if c == nil || batch < 0 || batch >= c.BatchCount() {
		return false
	}
	return c.Batch(batch).IsConstraintActive(id)
}

func (s *Solver) addActor(a *Actor) error {
	indices := s.buf.Allocate(len(a.defs))
	s.nextGroup++
	group := s.nextGroup
	phase := particles.MakePhase(group, a.phaseFlags)

	for k, i := range indices {
		d := a.defs[k]
		q := d.Orientation
		if q.Len() < vmath.Epsilon {
			q = vmath.Identity()
		}
		pos := a.last[k]
		s.buf.Positions[i] = pos
		s.buf.PrevPositions[i] = pos
		s.buf.StartPositions[i] = pos
		s.buf.RenderablePositions[i] = pos
		s.buf.Orientations[i] = q
		s.buf.PrevOrientations[i] = q
		s.buf.StartOrientations[i] = q
		s.buf.RenderableOrientations[i] = q
		s.buf.Velocities[i] = d.Velocity
		s.buf.InvMasses[i] = d.InvMass
		s.buf.InvRotationalMasses[i] = d.InvRotationalMass
		if d.Radius > 0 {
			s.buf.Radii[i] = d.Radius
		}
		s.buf.Phases[i] = phase
		s.buf.Filters[i] = a.filter
	}

	a.solver = s
	a.indices = indices
	a.group = group
	s.actors = append(s.actors, a)

	if err := s.rebuild(); err != nil {
		s.detach(a)
		if rerr := s.rebuild(); rerr != nil {
			s.logger.Error("constraint rebuild failed", "error", rerr)
		}
		return fmt.Errorf("add actor: %w", err)
	}
	s.logger.Debug("actor added", "actor", a.name, "particles", len(indices), "group", group)
	return nil
}

func (s *Solver) removeActor(a *Actor) {
	a.last = a.SimulatedPositions()
	s.detach(a)
	s.stitches = slices.DeleteFunc(s.stitches, func(st *Stitch) bool {
		return st.A == a || st.B == a
	})
	if err := s.rebuild(); err != nil {
		s.logger.Error("constraint rebuild failed", "error", err)
		s.markDirty()
	}
	s.logger.Debug("actor removed", "actor", a.name)
}

// detach frees the actor's slots and forgets it without rebuilding.
func (s *Solver) detach(a *Actor) {
	s.buf.Free(a.indices)
	s.actors = slices.DeleteFunc(s.actors, func(o *Actor) bool { return o == a })
	a.solver = nil
	a.indices = nil
	a.offsets = nil
}

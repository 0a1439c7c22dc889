package solver

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/xpbd/internal/backend"
	"github.com/roach88/xpbd/internal/backend/null"
	"github.com/roach88/xpbd/internal/collider"
	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/kernels"
	"github.com/roach88/xpbd/internal/particles"
	"github.com/roach88/xpbd/internal/queryir"
	"github.com/roach88/xpbd/internal/vmath"
)

// Solver simulates the actors attached to it.
//
// Thread-safety model:
//   - A Solver is not safe for concurrent use. The host drives it from one
//     goroutine, the same one that updates collider trackers, so the
//     collider world is never mutated while a step runs.
//
// INVARIANTS:
//   - Every constraint in the merged Set references particles of attached
//     actors only.
//   - Backend batches mirror the merged Set batch for batch; they are
//     recreated whenever the Set is rebuilt.
type Solver struct {
	backend backend.Backend
	impl    backend.Solver
	world   *collider.World
	buf     *particles.Buffer
	logger  *slog.Logger

	settings  Settings
	capacity  int
	providers []ForceProvider

	actors    []*Actor
	stitches  []*Stitch
	nextGroup int

	merged  *constraints.Set
	batches []backend.BatchImpl
	dirty   bool
	// shapes links merged shape-matching constraints to their owners.
	shapes []shapeLink

	snapshot particles.Snapshot
	steps    int
}

// New creates a solver on be. A nil backend, or one that fails to create a
// solver, degrades to the null backend: the solver accepts actors but never
// moves them. world may be nil when nothing collides with shapes.
func New(be backend.Backend, world *collider.World, opts ...Option) *Solver {
	s := &Solver{
		world:    world,
		logger:   slog.Default(),
		settings: DefaultSettings(),
		merged:   constraints.NewSet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.buf = particles.NewBuffer(s.capacity)

	if be == nil {
		s.logger.Warn("no solver backend, physics disabled")
		be = null.New()
	}
	state := backend.State{Particles: s.buf, World: world, Logger: s.logger}
	impl, err := be.CreateSolver(state, s.capacity)
	if err != nil {
		s.logger.Warn("solver backend unavailable, physics disabled", "backend", be.Name(), "error", err)
		be = null.New()
		impl, _ = be.CreateSolver(state, s.capacity)
	}
	s.backend = be
	s.impl = impl
	s.pushSettings()

	s.logger.Debug("solver created", "backend", be.Name(), "capacity", s.capacity)
	return s
}

func (s *Solver) pushSettings() {
	s.impl.SetParameters(s.settings.Parameters)
	for _, t := range constraints.Types() {
		s.impl.SetConstraintParameters(t, s.settings.Constraints[t])
	}
}

// Backend returns the name of the backend in use.
func (s *Solver) Backend() string { return s.backend.Name() }

// Particles exposes the particle buffer. Callers must not allocate or free
// slots through it.
func (s *Solver) Particles() *particles.Buffer { return s.buf }

// World returns the collider world, possibly nil.
func (s *Solver) World() *collider.World { return s.world }

// Actors returns the attached actors in attachment order.
func (s *Solver) Actors() []*Actor { return slices.Clone(s.actors) }

// Constraints returns the merged constraint set. It is rebuilt on every
// actor or activation change; do not hold on to its batches.
func (s *Solver) Constraints() *constraints.Set {
	if s.dirty {
		if err := s.rebuild(); err != nil {
			s.logger.Error("constraint rebuild failed", "error", err)
		}
	}
	return s.merged
}

// Settings returns a copy of the current settings.
func (s *Solver) Settings() Settings {
	out := s.settings
	out.Constraints = make(map[constraints.Type]kernels.ConstraintParameters, len(s.settings.Constraints))
	for t, p := range s.settings.Constraints {
		out.Constraints[t] = p
	}
	return out
}

// SetParameters replaces the solver-wide parameters.
func (s *Solver) SetParameters(p kernels.Parameters) {
	s.settings.Parameters = p
	s.impl.SetParameters(p)
}

// SetSubsteps sets the substep count, at least one.
func (s *Solver) SetSubsteps(n int) {
	s.settings.Substeps = max(1, n)
}

// SetConstraintParameters replaces the solve settings of one type.
func (s *Solver) SetConstraintParameters(t constraints.Type, p kernels.ConstraintParameters) {
	p.Iterations = max(0, p.Iterations)
	s.settings.Constraints[t] = p
	s.impl.SetConstraintParameters(t, p)
}

// AddForceProvider registers p; it runs at the start of every step.
func (s *Solver) AddForceProvider(p ForceProvider) {
	s.providers = append(s.providers, p)
}

// UpdateFrame moves the space the solver simulates in. Particles keep
// their local positions and feel the fictitious forces of the motion.
func (s *Solver) UpdateFrame(frame vmath.Affine, dt float64) {
	s.impl.UpdateInertialFrame(frame, dt)
}

// Frame returns the current inertial frame.
func (s *Solver) Frame() vmath.InertialFrame {
	return s.impl.InertialFrame()
}

// StepCount returns how many steps completed successfully.
func (s *Solver) StepCount() int { return s.steps }

// ContactCount returns the contacts of the last step.
func (s *Solver) ContactCount() int { return s.impl.ContactCount() }

// SpatialQuery runs queries against the active particles. Results are
// ordered by query index, then particle index.
func (s *Solver) SpatialQuery(queries []queryir.Query) ([]queryir.Result, error) {
	if err := queryir.Validate(queries); err != nil {
		return nil, fmt.Errorf("spatial query: %w", err)
	}
	return s.impl.SpatialQuery(queries), nil
}

// SmoothProperty blurs one value per particle of indices over neighbours
// within radius, weighting by the Poly6 kernel. Particles with no weight
// keep their value.
func (s *Solver) SmoothProperty(indices []int, values []float64, radius float64) ([]float64, error) {
	if len(indices) != len(values) {
		return nil, fmt.Errorf("smooth property: %d particles, %d values", len(indices), len(values))
	}
	points := make([]vmath.Vec3, len(indices))
	for k, i := range indices {
		if !s.buf.IsActive(i) {
			return nil, fmt.Errorf("smooth property: particle %d is not active", i)
		}
		points[k] = s.buf.Positions[i]
	}
	return vmath.SmoothField(points, values, radius), nil
}

// Destroy detaches every actor and releases the backend solver.
func (s *Solver) Destroy() {
	for _, a := range slices.Clone(s.actors) {
		a.RemoveFromSolver()
	}
	for _, b := range s.batches {
		s.impl.DestroyConstraintsBatch(b)
	}
	s.batches = nil
	s.backend.DestroySolver(s.impl)
	s.logger.Debug("solver destroyed", "backend", s.backend.Name(), "steps", s.steps)
}

// markDirty schedules a rebuild before the next step.
func (s *Solver) markDirty() {
	s.dirty = true
}

// shapeLink ties storage position pos of merged shape-matching batch k to
// constraint id of the same batch in actor.
type shapeLink struct {
	actor  *Actor
	batch  int
	id     int
	merged int
}

func (s *Solver) linkShapes(a *Actor, offsets []int) {
	for k, src := range a.constraints.ShapeMatching.Batches() {
		if k >= len(offsets) {
			break
		}
		for i := 0; i < src.ActiveConstraintCount(); i++ {
			s.shapes = append(s.shapes, shapeLink{actor: a, batch: k, id: src.ID(i), merged: offsets[k] + i})
		}
	}
}

// keepPlasticity copies the rest offsets plastic deformation rewrote in the
// merged Set back to the owning actors. Actors removed since the last
// rebuild keep their deformed shape too.
func (s *Solver) keepPlasticity() {
	merged := s.merged.ShapeMatching.Batches()
	for _, l := range s.shapes {
		if l.batch >= len(merged) || l.merged >= merged[l.batch].ConstraintCount() {
			continue
		}
		src := l.actor.constraints.ShapeMatching.Batches()
		if l.batch >= len(src) {
			continue
		}
		pos, ok := src[l.batch].Position(l.id)
		if !ok {
			continue
		}
		deformed := merged[l.batch].Params(l.merged).RestOffsets
		own := src[l.batch].Params(pos)
		if len(deformed) == len(own.RestOffsets) {
			own.RestOffsets = slices.Clone(deformed)
		}
	}
}

// rebuild recreates the merged Set and the backend batches from the
// attached actors and stitches.
func (s *Solver) rebuild() error {
	s.keepPlasticity()
	for _, b := range s.batches {
		s.impl.DestroyConstraintsBatch(b)
	}
	s.batches = s.batches[:0]
	s.merged.Clear()
	s.shapes = s.shapes[:0]

	for _, a := range s.actors {
		offsets, err := s.merged.Merge(a.constraints, a.indices)
		if err != nil {
			return fmt.Errorf("actor %q: %w", a.name, err)
		}
		a.offsets = offsets
		s.linkShapes(a, offsets[constraints.ShapeMatching])
	}
	for _, st := range s.stitches {
		if st.active() {
			s.merged.Stitch.Add(st.particles(), constraints.StitchParams{Compliance: st.Compliance})
		}
	}

	for _, c := range s.merged.Containers() {
		for k := 0; k < c.BatchCount(); k++ {
			b := c.Batch(k)
			impl := s.impl.CreateConstraintsBatch(c.Type())
			if impl == nil {
				continue
			}
			if err := impl.Bind(b); err != nil {
				return fmt.Errorf("bind %s batch %d: %w", c.Type(), k, err)
			}
			impl.SetConstraintCount(b.ActiveConstraintCount())
			s.batches = append(s.batches, impl)
		}
	}

	s.dirty = false
	s.logger.Debug("constraints rebuilt",
		"actors", len(s.actors),
		"constraints", s.merged.ConstraintCount(),
		"batches", len(s.batches))
	return nil
}

package native

import (
	"fmt"
	"log/slog"

	"github.com/roach88/xpbd/internal/backend"
	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/jobs"
	"github.com/roach88/xpbd/internal/queryir"
	"github.com/roach88/xpbd/internal/vmath"
)

// Name identifies the backend on the command line.
const Name = "native"

// Backend forwards to a Library. Calls run synchronously on the caller's
// goroutine, so every returned handle is already complete.
type Backend struct {
	lib Library
}

// New wraps lib. A nil lib selects the in-process reference library.
func New(lib Library) *Backend {
	if lib == nil {
		lib = NewReference()
	}
	return &Backend{lib: lib}
}

func (*Backend) Name() string { return Name }

func (b *Backend) CreateSolver(state backend.State, capacity int) (backend.Solver, error) {
	ref, err := b.lib.CreateSolver(state.Particles, state.World, capacity)
	if err != nil {
		return nil, fmt.Errorf("native create solver: %w", err)
	}
	logger := state.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Solver{lib: b.lib, ref: ref, pool: jobs.NewPool(8), logger: logger}, nil
}

func (b *Backend) DestroySolver(s backend.Solver) {
	if ns, ok := s.(*Solver); ok && ns.ref != 0 {
		b.lib.DestroySolver(ns.ref)
		ns.ref = 0
	}
}

// Solver is a library solver handle.
type Solver struct {
	lib    Library
	ref    SolverRef
	pool   *jobs.Pool
	logger *slog.Logger
}

// resolved waits for deps, runs fn and returns a completed handle carrying
// the first error.
func (s *Solver) resolved(deps *jobs.Handle, fn func() error) *jobs.Handle {
	h := s.pool.Borrow()
	if err := deps.Complete(); err != nil {
		return h.Resolve(err)
	}
	return h.Resolve(fn())
}

func (s *Solver) SetParameters(p backend.Parameters) {
	s.lib.SetParameters(s.ref, p)
}

func (s *Solver) SetConstraintParameters(t constraints.Type, p backend.ConstraintParameters) {
	s.lib.SetConstraintParameters(s.ref, t, p)
}

func (s *Solver) UpdateInertialFrame(frame vmath.Affine, dt float64) {
	s.lib.UpdateFrame(s.ref, frame, dt)
}

func (s *Solver) InertialFrame() vmath.InertialFrame {
	return s.lib.Frame(s.ref)
}

func (s *Solver) CreateConstraintsBatch(t constraints.Type) backend.BatchImpl {
	ref, err := s.lib.CreateBatch(s.ref, t)
	if err != nil {
		s.logger.Warn("native batch creation failed", "type", t, "error", err)
		return nil
	}
	return &Batch{solver: s, ref: ref, typ: t}
}

func (s *Solver) DestroyConstraintsBatch(b backend.BatchImpl) {
	if nb, ok := b.(*Batch); ok {
		nb.Destroy()
	}
}

func (s *Solver) CollisionDetection(stepTime float64) *jobs.Handle {
	return s.resolved(nil, func() error {
		return s.lib.CollisionDetection(s.ref, stepTime)
	})
}

func (s *Solver) Substep(stepTime, substepTime float64, index int) *jobs.Handle {
	return s.resolved(nil, func() error {
		return s.lib.Substep(s.ref, stepTime, substepTime, index)
	})
}

func (s *Solver) ApplyInterpolation(stepTime, unsimulatedTime float64) {
	if err := s.lib.Interpolate(s.ref, stepTime, unsimulatedTime); err != nil {
		s.logger.Warn("native interpolation failed", "error", err)
	}
}

func (s *Solver) SpatialQuery(queries []queryir.Query) []queryir.Result {
	results, err := s.lib.SpatialQuery(s.ref, queries)
	if err != nil {
		s.logger.Warn("native spatial query failed", "error", err)
		return nil
	}
	return results
}

func (s *Solver) ContactCount() int { return s.lib.ContactCount(s.ref) }

func (s *Solver) Pool() *jobs.Pool { return s.pool }

// Batch is a library batch handle.
type Batch struct {
	solver *Solver
	ref    BatchRef
	typ    constraints.Type
}

func (b *Batch) Type() constraints.Type { return b.typ }

func (b *Batch) Bind(data constraints.AnyBatch) error {
	return b.solver.lib.SetBatchData(b.solver.ref, b.ref, data)
}

func (b *Batch) SetConstraintCount(n int) {
	b.solver.lib.SetBatchConstraintCount(b.solver.ref, b.ref, n)
}

func (b *Batch) ConstraintCount() int {
	return b.solver.lib.BatchConstraintCount(b.solver.ref, b.ref)
}

func (b *Batch) Initialize(deps *jobs.Handle, _ float64) *jobs.Handle {
	return b.solver.resolved(deps, func() error {
		return b.solver.lib.InitializeBatch(b.solver.ref, b.ref)
	})
}

func (b *Batch) Evaluate(deps *jobs.Handle, stepTime, substepTime float64, _ int) *jobs.Handle {
	return b.solver.resolved(deps, func() error {
		return b.solver.lib.EvaluateBatch(b.solver.ref, b.ref, stepTime, substepTime)
	})
}

func (b *Batch) Apply(deps *jobs.Handle, _ float64) *jobs.Handle {
	return b.solver.resolved(deps, func() error {
		return b.solver.lib.ApplyBatch(b.solver.ref, b.ref)
	})
}

func (b *Batch) Destroy() {
	if b.ref == 0 {
		return
	}
	b.solver.lib.DestroyBatch(b.solver.ref, b.ref)
	b.ref = 0
}

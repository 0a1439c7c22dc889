// Package null is the backend used when physics is disabled. Every
// operation succeeds immediately and produces nothing: handles are
// completed, queries are empty and particles never move.
package null

import (
	"github.com/roach88/xpbd/internal/backend"
	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/jobs"
	"github.com/roach88/xpbd/internal/queryir"
	"github.com/roach88/xpbd/internal/vmath"
)

// Name identifies the backend on the command line.
const Name = "null"

// Backend creates null solvers.
type Backend struct{}

// New returns the null backend.
func New() *Backend {
	return &Backend{}
}

func (*Backend) Name() string { return Name }

func (*Backend) CreateSolver(_ backend.State, _ int) (backend.Solver, error) {
	return &Solver{pool: jobs.NewPool(2), frame: vmath.NewInertialFrame(vmath.IdentityAffine())}, nil
}

func (*Backend) DestroySolver(backend.Solver) {}

// Solver tracks its inertial frame and nothing else.
type Solver struct {
	pool  *jobs.Pool
	frame vmath.InertialFrame
}

func (s *Solver) SetParameters(backend.Parameters) {}

func (s *Solver) SetConstraintParameters(constraints.Type, backend.ConstraintParameters) {}

func (s *Solver) UpdateInertialFrame(frame vmath.Affine, dt float64) {
	s.frame.Update(frame, dt)
}

func (s *Solver) InertialFrame() vmath.InertialFrame { return s.frame }

func (s *Solver) CreateConstraintsBatch(t constraints.Type) backend.BatchImpl {
	return &Batch{typ: t, pool: s.pool}
}

func (s *Solver) DestroyConstraintsBatch(backend.BatchImpl) {}

func (s *Solver) CollisionDetection(float64) *jobs.Handle {
	return s.pool.Borrow().Resolve(nil)
}

func (s *Solver) Substep(float64, float64, int) *jobs.Handle {
	return s.pool.Borrow().Resolve(nil)
}

func (s *Solver) ApplyInterpolation(float64, float64) {}

func (s *Solver) SpatialQuery([]queryir.Query) []queryir.Result { return nil }

func (s *Solver) ContactCount() int { return 0 }

func (s *Solver) Pool() *jobs.Pool { return s.pool }

// Batch remembers its size so callers see consistent counts.
type Batch struct {
	typ   constraints.Type
	count int
	pool  *jobs.Pool
}

func (b *Batch) Type() constraints.Type { return b.typ }

func (b *Batch) Bind(constraints.AnyBatch) error { return nil }

func (b *Batch) SetConstraintCount(n int) { b.count = max(0, n) }

func (b *Batch) ConstraintCount() int { return b.count }

func (b *Batch) Initialize(*jobs.Handle, float64) *jobs.Handle {
	return b.pool.Borrow().Resolve(nil)
}

func (b *Batch) Evaluate(*jobs.Handle, float64, float64, int) *jobs.Handle {
	return b.pool.Borrow().Resolve(nil)
}

func (b *Batch) Apply(*jobs.Handle, float64) *jobs.Handle {
	return b.pool.Borrow().Resolve(nil)
}

func (b *Batch) Destroy() {}

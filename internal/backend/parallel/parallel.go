// Package parallel is the data-parallel backend. Every stage of a step is
// a job whose handle depends on the previous stage; inside a job the work
// is split across goroutines. Constraints of one batch never share a
// particle and accumulate into per-particle buffers, so chunks need no
// locks.
package parallel

import (
	"log/slog"
	"runtime"
	"slices"

	"github.com/roach88/xpbd/internal/backend"
	"github.com/roach88/xpbd/internal/collider"
	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/jobs"
	"github.com/roach88/xpbd/internal/kernels"
	"github.com/roach88/xpbd/internal/particles"
	"github.com/roach88/xpbd/internal/queryir"
	"github.com/roach88/xpbd/internal/vmath"
)

// Name identifies the backend on the command line.
const Name = "parallel"

// Option configures the backend.
type Option func(*Backend)

// WithWorkers bounds the goroutines of one stage. Zero or less means
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.workers = n
		}
	}
}

// Backend creates parallel solvers.
type Backend struct {
	workers int
}

// New returns a parallel backend.
func New(opts ...Option) *Backend {
	b := &Backend{workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (*Backend) Name() string { return Name }

func (b *Backend) CreateSolver(state backend.State, _ int) (backend.Solver, error) {
	logger := state.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Solver{
		buf:      state.Particles,
		world:    state.World,
		workers:  b.workers,
		logger:   logger,
		params:   kernels.DefaultParameters(),
		cparams:  make(map[constraints.Type]kernels.ConstraintParameters),
		frame:    vmath.NewInertialFrame(vmath.IdentityAffine()),
		pool:     jobs.NewPool(16),
		contacts: kernels.NewContacts(),
	}
	for _, t := range constraints.Types() {
		s.cparams[t] = kernels.DefaultConstraintParameters(t)
	}
	return s, nil
}

func (b *Backend) DestroySolver(s backend.Solver) {
	if ps, ok := s.(*Solver); ok {
		_ = ps.last.Complete()
		ps.batches = nil
	}
}

// Solver schedules one particle buffer's steps as chained jobs.
type Solver struct {
	buf     *particles.Buffer
	world   *collider.World
	workers int
	logger  *slog.Logger

	params  kernels.Parameters
	cparams map[constraints.Type]kernels.ConstraintParameters
	frame   vmath.InertialFrame
	pool    *jobs.Pool

	batches  []*Batch
	contacts *kernels.Contacts
	// generated holds the bound contact batches of the last detection,
	// written by the detection job and read by later substep jobs.
	generated map[constraints.Type][]*kernels.Bound

	// last is the tail of the job chain; new stages depend on it.
	last *jobs.Handle
}

func (s *Solver) SetParameters(p backend.Parameters) { s.params = p }

func (s *Solver) SetConstraintParameters(t constraints.Type, p backend.ConstraintParameters) {
	s.cparams[t] = p
}

func (s *Solver) UpdateInertialFrame(frame vmath.Affine, dt float64) {
	s.frame.Update(frame, dt)
}

func (s *Solver) InertialFrame() vmath.InertialFrame { return s.frame }

func (s *Solver) CreateConstraintsBatch(t constraints.Type) backend.BatchImpl {
	b := &Batch{solver: s, typ: t}
	s.batches = append(s.batches, b)
	return b
}

func (s *Solver) DestroyConstraintsBatch(b backend.BatchImpl) {
	pb, ok := b.(*Batch)
	if !ok {
		return
	}
	s.batches = slices.DeleteFunc(s.batches, func(o *Batch) bool { return o == pb })
	pb.bound = nil
}

func (s *Solver) context(stepTime, substepTime float64) *kernels.Context {
	return kernels.NewContext(s.buf, s.world, &s.frame, s.params, stepTime, substepTime)
}

// schedule appends a job to the chain.
func (s *Solver) schedule(fn func() error, deps ...*jobs.Handle) *jobs.Handle {
	return s.pool.Borrow().Schedule(fn, deps...)
}

// CollisionDetection records the interpolation start state and rebuilds
// the contact batches. Detection runs on one goroutine.
func (s *Solver) CollisionDetection(stepTime float64) *jobs.Handle {
	ctx := s.context(stepTime, stepTime)
	s.last = s.schedule(func() error {
		active := s.buf.ActiveIndices()
		if err := forEach(active, s.workers, func(i int) { kernels.BeginStep(ctx, i) }); err != nil {
			return err
		}
		s.contacts.Detect(ctx)

		generated := make(map[constraints.Type][]*kernels.Bound)
		for _, c := range s.contacts.Containers() {
			for k := 0; k < c.BatchCount(); k++ {
				bound, err := kernels.Bind(c.Batch(k))
				if err != nil {
					return err
				}
				generated[c.Type()] = append(generated[c.Type()], bound)
			}
		}
		s.generated = generated
		return nil
	}, s.last)
	return s.last
}

// Substep schedules prediction, every constraint type in evaluation order
// and the velocity update. Authored batches chain through their BatchImpl
// handles; contact batches are only known once detection has run, so each
// contact type is solved inside a single job.
func (s *Solver) Substep(stepTime, substepTime float64, index int) *jobs.Handle {
	ctx := s.context(stepTime, substepTime)
	active := s.buf.ActiveIndices()

	h := s.schedule(func() error {
		return forEach(active, s.workers, func(i int) { kernels.Predict(ctx, i) })
	}, s.last)

	for _, t := range constraints.Types() {
		cp := s.cparams[t]
		if !cp.Enabled {
			continue
		}
		if t.Generated() {
			h = s.schedule(func() error { return s.solveGenerated(ctx, t, cp) }, h)
			continue
		}
		h = s.chainAuthored(h, t, cp, stepTime, substepTime)
	}

	h = s.schedule(func() error {
		if err := forEach(active, s.workers, func(i int) { kernels.UpdateVelocities(ctx, i) }); err != nil {
			return err
		}
		if index == ctx.Substeps-1 {
			if err := forEach(active, s.workers, func(i int) { kernels.Settle(ctx, i) }); err != nil {
				return err
			}
		}
		if !s.buf.IsFinite() {
			return backend.ErrNonFinite
		}
		return nil
	}, h)

	s.last = h
	return h
}

func (s *Solver) authored(t constraints.Type) []*Batch {
	var out []*Batch
	for _, b := range s.batches {
		if b.typ == t && b.bound != nil {
			out = append(out, b)
		}
	}
	return out
}

func (s *Solver) chainAuthored(h *jobs.Handle, t constraints.Type, cp kernels.ConstraintParameters, stepTime, substepTime float64) *jobs.Handle {
	batches := s.authored(t)
	if len(batches) == 0 {
		return h
	}
	substeps := kernels.SubstepCount(stepTime, substepTime)
	for _, b := range batches {
		h = b.Initialize(h, substepTime)
	}
	for it := 0; it < cp.Iterations; it++ {
		if cp.Mode == kernels.Sequential {
			for _, b := range batches {
				h = b.Evaluate(h, stepTime, substepTime, substeps)
				h = b.Apply(h, substepTime)
			}
			continue
		}
		for _, b := range batches {
			h = b.Evaluate(h, stepTime, substepTime, substeps)
		}
		for _, b := range batches {
			h = b.Apply(h, substepTime)
		}
	}
	return h
}

func (s *Solver) solveGenerated(ctx *kernels.Context, t constraints.Type, cp kernels.ConstraintParameters) error {
	bounds := s.generated[t]
	for _, b := range bounds {
		b.Initialize(s.buf)
	}
	evaluate := func(b *kernels.Bound) error {
		return forRange(b.Count(), s.workers, func(lo, hi int) { b.EvaluateRange(ctx, lo, hi) })
	}
	apply := func(b *kernels.Bound) error {
		return forRange(len(b.Particles), s.workers, func(lo, hi int) { b.ApplyRange(s.buf, cp.SOR, lo, hi) })
	}
	for it := 0; it < cp.Iterations; it++ {
		for _, b := range bounds {
			if err := evaluate(b); err != nil {
				return err
			}
			if cp.Mode == kernels.Sequential {
				if err := apply(b); err != nil {
					return err
				}
			}
		}
		if cp.Mode == kernels.Sequential {
			continue
		}
		for _, b := range bounds {
			if err := apply(b); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplyInterpolation waits for outstanding work and writes the renderable
// state.
func (s *Solver) ApplyInterpolation(stepTime, unsimulatedTime float64) {
	if err := s.last.Complete(); err != nil {
		s.logger.Debug("interpolating after failed step", "error", err)
	}
	alpha := kernels.InterpolationAlpha(stepTime, unsimulatedTime)
	err := forEach(s.buf.ActiveIndices(), s.workers, func(i int) {
		kernels.Interpolate(s.buf, i, alpha, s.params.Interpolate)
	})
	if err != nil {
		s.logger.Error("interpolation failed", "error", err)
	}
}

// SpatialQuery waits for outstanding work and runs the queries serially.
func (s *Solver) SpatialQuery(queries []queryir.Query) []queryir.Result {
	_ = s.last.Complete()
	return kernels.SpatialQuery(s.context(0, 0), queries)
}

func (s *Solver) ContactCount() int {
	_ = s.last.Complete()
	return s.contacts.Count()
}

func (s *Solver) Pool() *jobs.Pool { return s.pool }

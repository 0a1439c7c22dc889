package native

import (
	"errors"
	"fmt"

	"github.com/roach88/xpbd/internal/backend"
	"github.com/roach88/xpbd/internal/collider"
	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/kernels"
	"github.com/roach88/xpbd/internal/particles"
	"github.com/roach88/xpbd/internal/queryir"
	"github.com/roach88/xpbd/internal/vmath"
)

var (
	ErrUnknownSolver = errors.New("unknown solver handle")
	ErrUnknownBatch  = errors.New("unknown batch handle")
	ErrUnbound       = errors.New("batch has no constraint data")
)

// Reference runs the shared kernels on the calling goroutine. Its handles
// are counters; nothing is ever reused.
//
// Reference is not safe for concurrent use.
type Reference struct {
	next    uint64
	solvers map[SolverRef]*refSolver
}

// NewReference returns an empty reference library.
func NewReference() *Reference {
	return &Reference{solvers: make(map[SolverRef]*refSolver)}
}

type refSolver struct {
	buf     *particles.Buffer
	world   *collider.World
	params  kernels.Parameters
	cparams map[constraints.Type]kernels.ConstraintParameters
	frame   vmath.InertialFrame

	batches  map[BatchRef]*refBatch
	order    []BatchRef
	contacts *kernels.Contacts
	// generated holds the bound contact batches of the last detection.
	generated map[constraints.Type][]*refBatch
}

type refBatch struct {
	typ   constraints.Type
	bound *kernels.Bound
	count int
}

func (b *refBatch) active() int {
	if b.bound == nil {
		return 0
	}
	return min(b.count, b.bound.Count())
}

func (r *Reference) handle() uint64 {
	r.next++
	return r.next
}

func (r *Reference) CreateSolver(buf *particles.Buffer, world *collider.World, _ int) (SolverRef, error) {
	if buf == nil {
		return 0, errors.New("nil particle buffer")
	}
	s := &refSolver{
		buf:       buf,
		world:     world,
		params:    kernels.DefaultParameters(),
		cparams:   make(map[constraints.Type]kernels.ConstraintParameters),
		frame:     vmath.NewInertialFrame(vmath.IdentityAffine()),
		batches:   make(map[BatchRef]*refBatch),
		contacts:  kernels.NewContacts(),
		generated: make(map[constraints.Type][]*refBatch),
	}
	for _, t := range constraints.Types() {
		s.cparams[t] = kernels.DefaultConstraintParameters(t)
	}
	ref := SolverRef(r.handle())
	r.solvers[ref] = s
	return ref, nil
}

func (r *Reference) DestroySolver(s SolverRef) {
	delete(r.solvers, s)
}

func (r *Reference) SetParameters(s SolverRef, p kernels.Parameters) {
	if rs, ok := r.solvers[s]; ok {
		rs.params = p
	}
}

func (r *Reference) SetConstraintParameters(s SolverRef, t constraints.Type, p kernels.ConstraintParameters) {
	if rs, ok := r.solvers[s]; ok {
		rs.cparams[t] = p
	}
}

func (r *Reference) UpdateFrame(s SolverRef, frame vmath.Affine, dt float64) {
	if rs, ok := r.solvers[s]; ok {
		rs.frame.Update(frame, dt)
	}
}

func (r *Reference) Frame(s SolverRef) vmath.InertialFrame {
	if rs, ok := r.solvers[s]; ok {
		return rs.frame
	}
	return vmath.NewInertialFrame(vmath.IdentityAffine())
}

func (r *Reference) CreateBatch(s SolverRef, t constraints.Type) (BatchRef, error) {
	rs, ok := r.solvers[s]
	if !ok {
		return 0, ErrUnknownSolver
	}
	ref := BatchRef(r.handle())
	rs.batches[ref] = &refBatch{typ: t}
	rs.order = append(rs.order, ref)
	return ref, nil
}

func (r *Reference) DestroyBatch(s SolverRef, b BatchRef) {
	rs, ok := r.solvers[s]
	if !ok {
		return
	}
	if _, ok := rs.batches[b]; !ok {
		return
	}
	delete(rs.batches, b)
	for i, o := range rs.order {
		if o == b {
			rs.order = append(rs.order[:i], rs.order[i+1:]...)
			break
		}
	}
}

func (r *Reference) batch(s SolverRef, b BatchRef) (*refSolver, *refBatch, error) {
	rs, ok := r.solvers[s]
	if !ok {
		return nil, nil, ErrUnknownSolver
	}
	rb, ok := rs.batches[b]
	if !ok {
		return nil, nil, ErrUnknownBatch
	}
	return rs, rb, nil
}

func (r *Reference) SetBatchData(s SolverRef, b BatchRef, data constraints.AnyBatch) error {
	_, rb, err := r.batch(s, b)
	if err != nil {
		return err
	}
	if data.Type() != rb.typ {
		return fmt.Errorf("batch is %s, data is %s", rb.typ, data.Type())
	}
	bound, err := kernels.Bind(data)
	if err != nil {
		return err
	}
	rb.bound = bound
	rb.count = data.ActiveConstraintCount()
	return nil
}

func (r *Reference) SetBatchConstraintCount(s SolverRef, b BatchRef, n int) {
	if _, rb, err := r.batch(s, b); err == nil {
		rb.count = max(0, n)
		if rb.bound != nil {
			rb.bound.Refresh()
		}
	}
}

func (r *Reference) BatchConstraintCount(s SolverRef, b BatchRef) int {
	if _, rb, err := r.batch(s, b); err == nil {
		return rb.count
	}
	return 0
}

func (r *Reference) InitializeBatch(s SolverRef, b BatchRef) error {
	rs, rb, err := r.batch(s, b)
	if err != nil {
		return err
	}
	if rb.bound == nil {
		return ErrUnbound
	}
	rb.bound.Initialize(rs.buf)
	return nil
}

func (r *Reference) EvaluateBatch(s SolverRef, b BatchRef, stepTime, substepTime float64) error {
	rs, rb, err := r.batch(s, b)
	if err != nil {
		return err
	}
	if rb.bound == nil {
		return ErrUnbound
	}
	rb.bound.EvaluateRange(rs.context(stepTime, substepTime), 0, rb.active())
	return nil
}

func (r *Reference) ApplyBatch(s SolverRef, b BatchRef) error {
	rs, rb, err := r.batch(s, b)
	if err != nil {
		return err
	}
	if rb.bound == nil {
		return ErrUnbound
	}
	rb.bound.ApplyRange(rs.buf, rs.cparams[rb.typ].SOR, 0, len(rb.bound.Particles))
	return nil
}

func (r *Reference) CollisionDetection(s SolverRef, stepTime float64) error {
	rs, ok := r.solvers[s]
	if !ok {
		return ErrUnknownSolver
	}
	return rs.detect(stepTime)
}

func (r *Reference) Substep(s SolverRef, stepTime, substepTime float64, index int) error {
	rs, ok := r.solvers[s]
	if !ok {
		return ErrUnknownSolver
	}
	return rs.substep(stepTime, substepTime, index)
}

func (r *Reference) Interpolate(s SolverRef, stepTime, unsimulatedTime float64) error {
	rs, ok := r.solvers[s]
	if !ok {
		return ErrUnknownSolver
	}
	alpha := kernels.InterpolationAlpha(stepTime, unsimulatedTime)
	for _, i := range rs.buf.ActiveIndices() {
		kernels.Interpolate(rs.buf, i, alpha, rs.params.Interpolate)
	}
	return nil
}

func (r *Reference) SpatialQuery(s SolverRef, queries []queryir.Query) ([]queryir.Result, error) {
	rs, ok := r.solvers[s]
	if !ok {
		return nil, ErrUnknownSolver
	}
	return kernels.SpatialQuery(rs.context(0, 0), queries), nil
}

func (r *Reference) ContactCount(s SolverRef) int {
	if rs, ok := r.solvers[s]; ok {
		return rs.contacts.Count()
	}
	return 0
}

func (s *refSolver) context(stepTime, substepTime float64) *kernels.Context {
	return kernels.NewContext(s.buf, s.world, &s.frame, s.params, stepTime, substepTime)
}

// detect starts a step: it records the interpolation start state and
// rebuilds the contact batches.
func (s *refSolver) detect(stepTime float64) error {
	ctx := s.context(stepTime, stepTime)
	for _, i := range s.buf.ActiveIndices() {
		kernels.BeginStep(ctx, i)
	}
	s.contacts.Detect(ctx)

	clear(s.generated)
	for _, c := range s.contacts.Containers() {
		for k := 0; k < c.BatchCount(); k++ {
			bound, err := kernels.Bind(c.Batch(k))
			if err != nil {
				return err
			}
			s.generated[c.Type()] = append(s.generated[c.Type()], &refBatch{typ: c.Type(), bound: bound, count: bound.Count()})
		}
	}
	return nil
}

// batchesOf returns the batches of type t in solve order: authored batches
// in creation order, generated batches in detection order.
func (s *refSolver) batchesOf(t constraints.Type) []*refBatch {
	if t.Generated() {
		return s.generated[t]
	}
	var out []*refBatch
	for _, ref := range s.order {
		if b := s.batches[ref]; b.typ == t && b.bound != nil {
			out = append(out, b)
		}
	}
	return out
}

func (s *refSolver) substep(stepTime, substepTime float64, index int) error {
	ctx := s.context(stepTime, substepTime)
	active := s.buf.ActiveIndices()

	for _, i := range active {
		kernels.Predict(ctx, i)
	}

	for _, t := range constraints.Types() {
		cp := s.cparams[t]
		batches := s.batchesOf(t)
		if !cp.Enabled || len(batches) == 0 {
			continue
		}
		for _, b := range batches {
			b.bound.Initialize(s.buf)
		}
		for it := 0; it < cp.Iterations; it++ {
			if cp.Mode == kernels.Sequential {
				for _, b := range batches {
					b.bound.EvaluateRange(ctx, 0, b.active())
					b.bound.ApplyRange(s.buf, cp.SOR, 0, len(b.bound.Particles))
				}
				continue
			}
			for _, b := range batches {
				b.bound.EvaluateRange(ctx, 0, b.active())
			}
			for _, b := range batches {
				b.bound.ApplyRange(s.buf, cp.SOR, 0, len(b.bound.Particles))
			}
		}
	}

	for _, i := range active {
		kernels.UpdateVelocities(ctx, i)
	}
	if index == ctx.Substeps-1 {
		for _, i := range active {
			kernels.Settle(ctx, i)
		}
	}

	if !s.buf.IsFinite() {
		return backend.ErrNonFinite
	}
	return nil
}

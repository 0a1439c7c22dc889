package kernels

import (
	"fmt"

	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/particles"
)

// Evaluator runs the evaluate kernel of one bound batch.
type Evaluator interface {
	// Evaluate accumulates the correction of the i-th active constraint.
	Evaluate(i int, ctx *Context)
}

type evalFunc[P any] struct {
	batch *constraints.Batch[P]
	fn    func(ctx *Context, ps []int, p *P, lambda []float64)
}

func (e evalFunc[P]) Evaluate(i int, ctx *Context) {
	stride := e.batch.Type().LambdaStride()
	e.fn(ctx, e.batch.Particles(i), e.batch.Params(i), e.batch.Lambdas()[i*stride:(i+1)*stride])
}

func bind[P any](b *constraints.Batch[P], fn func(*Context, []int, *P, []float64)) Evaluator {
	return evalFunc[P]{batch: b, fn: fn}
}

// NewEvaluator selects the kernel for b once, at bind time.
func NewEvaluator(b constraints.AnyBatch) (Evaluator, error) {
	switch b := b.(type) {
	case *constraints.Batch[constraints.DistanceParams]:
		return bind(b, evaluateDistance), nil
	case *constraints.Batch[constraints.BendParams]:
		return bind(b, evaluateBend), nil
	case *constraints.Batch[constraints.VolumeParams]:
		return bind(b, evaluateVolume), nil
	case *constraints.Batch[constraints.SkinParams]:
		return bind(b, evaluateSkin), nil
	case *constraints.Batch[constraints.TetherParams]:
		return bind(b, evaluateTether), nil
	case *constraints.Batch[constraints.PinParams]:
		return bind(b, evaluatePin), nil
	case *constraints.Batch[constraints.StitchParams]:
		return bind(b, evaluateStitch), nil
	case *constraints.Batch[constraints.ShapeMatchingParams]:
		return bind(b, evaluateShapeMatching), nil
	case *constraints.Batch[constraints.AerodynamicParams]:
		return bind(b, evaluateAerodynamic), nil
	case *constraints.Batch[constraints.ParticleContact]:
		return bind(b, evaluateParticleContact), nil
	case *constraints.Batch[constraints.ColliderContact]:
		return bind(b, evaluateColliderContact), nil
	}
	return nil, fmt.Errorf("no kernel for %T", b)
}

// Bound is a batch prepared for execution: its kernel and the particles it
// touches, captured at bind time.
type Bound struct {
	Batch     constraints.AnyBatch
	Evaluator Evaluator
	Particles []int
}

// Bind prepares b for execution.
func Bind(b constraints.AnyBatch) (*Bound, error) {
	e, err := NewEvaluator(b)
	if err != nil {
		return nil, err
	}
	return &Bound{Batch: b, Evaluator: e, Particles: b.ParticleSet()}, nil
}

// Refresh recaptures the touched particles after the batch changed.
func (b *Bound) Refresh() {
	b.Particles = b.Batch.ParticleSet()
}

// Count returns the number of constraints to evaluate.
func (b *Bound) Count() int {
	return b.Batch.ActiveConstraintCount()
}

// Initialize zeroes the multipliers and the accumulators of every touched
// particle.
func (b *Bound) Initialize(buf *particles.Buffer) {
	b.Batch.ResetLambdas()
	for _, p := range b.Particles {
		buf.ClearDeltas(p)
	}
}

// EvaluateRange evaluates active constraints [lo, hi).
func (b *Bound) EvaluateRange(ctx *Context, lo, hi int) {
	for i := lo; i < hi; i++ {
		b.Evaluator.Evaluate(i, ctx)
	}
}

// ApplyRange applies the deltas of touched particles [lo, hi).
func (b *Bound) ApplyRange(buf *particles.Buffer, sor float64, lo, hi int) {
	for _, p := range b.Particles[lo:hi] {
		ApplyDeltas(buf, p, sor)
	}
}

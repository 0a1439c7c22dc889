package parallel

import (
	"fmt"

	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/jobs"
	"github.com/roach88/xpbd/internal/kernels"
)

// Batch solves one authored batch. Each stage is a job; evaluation is
// split over constraint ranges and application over particle ranges.
type Batch struct {
	solver *Solver
	typ    constraints.Type
	bound  *kernels.Bound
	count  int
}

func (b *Batch) Type() constraints.Type { return b.typ }

func (b *Batch) Bind(data constraints.AnyBatch) error {
	if data.Type() != b.typ {
		return fmt.Errorf("batch is %s, data is %s", b.typ, data.Type())
	}
	bound, err := kernels.Bind(data)
	if err != nil {
		return err
	}
	b.bound = bound
	b.count = data.ActiveConstraintCount()
	return nil
}

func (b *Batch) SetConstraintCount(n int) {
	b.count = max(0, n)
	if b.bound != nil {
		b.bound.Refresh()
	}
}

func (b *Batch) ConstraintCount() int { return b.count }

func (b *Batch) active() int {
	if b.bound == nil {
		return 0
	}
	return min(b.count, b.bound.Count())
}

func (b *Batch) Initialize(deps *jobs.Handle, _ float64) *jobs.Handle {
	return b.solver.schedule(func() error {
		if b.bound != nil {
			b.bound.Initialize(b.solver.buf)
		}
		return nil
	}, deps)
}

func (b *Batch) Evaluate(deps *jobs.Handle, stepTime, substepTime float64, _ int) *jobs.Handle {
	ctx := b.solver.context(stepTime, substepTime)
	return b.solver.schedule(func() error {
		if b.bound == nil {
			return nil
		}
		return forRange(b.active(), b.solver.workers, func(lo, hi int) {
			b.bound.EvaluateRange(ctx, lo, hi)
		})
	}, deps)
}

func (b *Batch) Apply(deps *jobs.Handle, _ float64) *jobs.Handle {
	sor := b.solver.cparams[b.typ].SOR
	return b.solver.schedule(func() error {
		if b.bound == nil {
			return nil
		}
		return forRange(len(b.bound.Particles), b.solver.workers, func(lo, hi int) {
			b.bound.ApplyRange(b.solver.buf, sor, lo, hi)
		})
	}, deps)
}

func (b *Batch) Destroy() {
	b.solver.DestroyConstraintsBatch(b)
}

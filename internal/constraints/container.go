package constraints

import "fmt"

// AnyBatch is the type-erased view of a Batch used by backends and the
// solver, which handle every constraint type uniformly.
type AnyBatch interface {
	Type() Type
	ConstraintCount() int
	ActiveConstraintCount() int
	SetConstraintCount(n int)
	ActivateConstraint(id int) bool
	DeactivateConstraint(id int) bool
	IsConstraintActive(id int) bool
	Position(id int) (int, bool)
	ID(i int) int
	Particles(i int) []int
	Lambdas() []float64
	ResetLambdas()
	ParticleSet() []int
}

// AnyContainer is the type-erased view of a Container.
type AnyContainer interface {
	Type() Type
	BatchCount() int
	Batch(i int) AnyBatch
	ConstraintCount() int
	ActiveConstraintCount() int
	Clear()
	MergeFrom(src AnyContainer, solverIndices []int) ([]int, error)
}

// Container is the ordered batch list of one constraint type.
type Container[P any] struct {
	typ     Type
	batches []*Batch[P]
}

// NewContainer returns an empty container of type t.
func NewContainer[P any](t Type) *Container[P] {
	return &Container[P]{typ: t}
}

// Type returns the constraint type.
func (c *Container[P]) Type() Type {
	return c.typ
}

// BatchCount returns the number of batches.
func (c *Container[P]) BatchCount() int {
	return len(c.batches)
}

// Batch returns batch i as an AnyBatch.
func (c *Container[P]) Batch(i int) AnyBatch {
	return c.batches[i]
}

// Batches returns the typed batch list.
func (c *Container[P]) Batches() []*Batch[P] {
	return c.batches
}

// AddBatch appends b. It panics if b is of another type.
func (c *Container[P]) AddBatch(b *Batch[P]) {
	if b.Type() != c.typ {
		panic(fmt.Sprintf("constraints: %s batch added to %s container", b.Type(), c.typ))
	}
	c.batches = append(c.batches, b)
}

// RemoveBatch removes b, reporting whether it was present.
func (c *Container[P]) RemoveBatch(b *Batch[P]) bool {
	for i, x := range c.batches {
		if x == b {
			c.batches = append(c.batches[:i], c.batches[i+1:]...)
			return true
		}
	}
	return false
}

// ConstraintCount sums the stored counts of all batches.
func (c *Container[P]) ConstraintCount() int {
	n := 0
	for _, b := range c.batches {
		n += b.ConstraintCount()
	}
	return n
}

// ActiveConstraintCount sums the active counts of all batches.
func (c *Container[P]) ActiveConstraintCount() int {
	n := 0
	for _, b := range c.batches {
		n += b.ActiveConstraintCount()
	}
	return n
}

// Clear removes every batch.
func (c *Container[P]) Clear() {
	c.batches = nil
}

// Add places a constraint in the first batch it does not conflict with,
// opening a new batch when none accepts it. It returns the batch index and
// the constraint ID within that batch.
func (c *Container[P]) Add(particles []int, params P) (int, int) {
	for i, b := range c.batches {
		if b.Accepts(particles) {
			return i, b.Add(particles, params)
		}
	}
	b := NewBatch[P](c.typ)
	c.batches = append(c.batches, b)
	return len(c.batches) - 1, b.Add(particles, params)
}

// Merge appends the active constraints of src, batch by batch, with every
// particle index p rewritten to solverIndices[p]. The batch count grows to
// the larger of the two containers first. The returned offsets hold, per
// source batch, the storage position its first constraint landed at.
func (c *Container[P]) Merge(src *Container[P], solverIndices []int) ([]int, error) {
	if src.typ != c.typ {
		return nil, fmt.Errorf("merge %s into %s container", src.typ, c.typ)
	}
	for len(c.batches) < len(src.batches) {
		c.batches = append(c.batches, NewBatch[P](c.typ))
	}

	offsets := make([]int, len(src.batches))
	for bi, sb := range src.batches {
		db := c.batches[bi]
		offsets[bi] = db.ConstraintCount()
		for i := 0; i < sb.ActiveConstraintCount(); i++ {
			local := sb.Particles(i)
			remapped := make([]int, len(local))
			for k, p := range local {
				if p < 0 || p >= len(solverIndices) {
					return nil, fmt.Errorf("%s batch %d constraint %d: particle %d outside actor (%d particles)",
						c.typ, bi, sb.ID(i), p, len(solverIndices))
				}
				remapped[k] = solverIndices[p]
			}
			db.Add(remapped, cloneParams(*sb.Params(i)))
		}
	}
	return offsets, nil
}

// MergeFrom is Merge for callers holding an AnyContainer.
func (c *Container[P]) MergeFrom(src AnyContainer, solverIndices []int) ([]int, error) {
	s, ok := src.(*Container[P])
	if !ok {
		return nil, fmt.Errorf("merge %s into %s container", src.Type(), c.typ)
	}
	return c.Merge(s, solverIndices)
}

// Clone returns a deep copy.
func (c *Container[P]) Clone() *Container[P] {
	out := &Container[P]{typ: c.typ, batches: make([]*Batch[P], len(c.batches))}
	for i, b := range c.batches {
		out.batches[i] = b.Clone()
	}
	return out
}

// cloneParams copies slice-backed parameter records so a solver-side copy
// can be mutated (plastic deformation) without touching the blueprint.
func cloneParams[P any](p P) P {
	switch v := any(p).(type) {
	case VolumeParams:
		v.Triangles = append([]int(nil), v.Triangles...)
		return any(v).(P)
	case ShapeMatchingParams:
		v.RestOffsets = append(v.RestOffsets[:0:0], v.RestOffsets...)
		return any(v).(P)
	}
	return p
}

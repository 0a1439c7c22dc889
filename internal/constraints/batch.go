package constraints

import "maps"

// Batch is a set of same-type constraints that share no particles.
//
// Storage positions [0, ActiveConstraintCount) hold active constraints and
// [ActiveConstraintCount, ConstraintCount) the deactivated tail.
type Batch[P any] struct {
	typ       Type
	particles [][]int
	params    []P
	lambdas   []float64

	ids   []int // storage position -> constraint ID
	slots []int // constraint ID -> storage position, -1 once dropped

	active int
	// used counts, per particle, the active constraints that reference it.
	used map[int]int
}

// NewBatch returns an empty batch of type t.
func NewBatch[P any](t Type) *Batch[P] {
	return &Batch[P]{typ: t, used: make(map[int]int)}
}

// Type returns the constraint type.
func (b *Batch[P]) Type() Type {
	return b.typ
}

// ConstraintCount returns the stored constraint count, active or not.
func (b *Batch[P]) ConstraintCount() int {
	return len(b.particles)
}

// ActiveConstraintCount returns how many constraints are evaluated.
func (b *Batch[P]) ActiveConstraintCount() int {
	return b.active
}

// SetConstraintCount resizes storage. Data up to min(old, n) is preserved;
// new constraints start deactivated with zero parameters.
func (b *Batch[P]) SetConstraintCount(n int) {
	if n < 0 {
		n = 0
	}
	old := len(b.particles)
	if n < old {
		for i := n; i < b.active; i++ {
			b.release(b.particles[i])
		}
		for _, id := range b.ids[n:] {
			b.slots[id] = -1
		}
		b.particles = b.particles[:n]
		b.params = b.params[:n]
		b.ids = b.ids[:n]
		b.lambdas = b.lambdas[:n*b.typ.LambdaStride()]
		b.active = min(b.active, n)
		return
	}

	var zero P
	for i := old; i < n; i++ {
		b.particles = append(b.particles, nil)
		b.params = append(b.params, zero)
		b.ids = append(b.ids, len(b.slots))
		b.slots = append(b.slots, i)
	}
	for len(b.lambdas) < n*b.typ.LambdaStride() {
		b.lambdas = append(b.lambdas, 0)
	}
}

// Add appends an active constraint and returns its ID.
func (b *Batch[P]) Add(particles []int, params P) int {
	i := len(b.particles)
	b.SetConstraintCount(i + 1)
	b.particles[i] = append([]int(nil), particles...)
	b.params[i] = params
	id := b.ids[i]
	b.ActivateConstraint(id)
	return id
}

// Set overwrites the constraint stored at position i.
func (b *Batch[P]) Set(i int, particles []int, params P) {
	if i < b.active {
		b.release(b.particles[i])
		b.retain(particles)
	}
	b.particles[i] = append(b.particles[i][:0], particles...)
	b.params[i] = params
}

// ActivateConstraint moves constraint id into the active prefix. It returns
// false if id is unknown or already active.
func (b *Batch[P]) ActivateConstraint(id int) bool {
	i, ok := b.position(id)
	if !ok || i < b.active {
		return false
	}
	b.swap(i, b.active)
	b.active++
	b.retain(b.particles[b.active-1])
	return true
}

// DeactivateConstraint moves constraint id into the inactive tail. It
// returns false if id is unknown or already inactive.
func (b *Batch[P]) DeactivateConstraint(id int) bool {
	i, ok := b.position(id)
	if !ok || i >= b.active {
		return false
	}
	b.active--
	b.swap(i, b.active)
	b.release(b.particles[b.active])
	return true
}

// IsConstraintActive reports whether constraint id is evaluated.
func (b *Batch[P]) IsConstraintActive(id int) bool {
	i, ok := b.position(id)
	return ok && i < b.active
}

// Position returns the storage position of constraint id.
func (b *Batch[P]) Position(id int) (int, bool) {
	return b.position(id)
}

// ID returns the ID of the constraint stored at position i.
func (b *Batch[P]) ID(i int) int {
	return b.ids[i]
}

// Particles returns the particle indices of the constraint at position i.
func (b *Batch[P]) Particles(i int) []int {
	return b.particles[i]
}

// Params returns the parameters of the constraint at position i. The pointer
// is valid until the next resize or swap.
func (b *Batch[P]) Params(i int) *P {
	return &b.params[i]
}

// Lambdas returns the multiplier storage, LambdaStride entries per
// constraint in storage order.
func (b *Batch[P]) Lambdas() []float64 {
	return b.lambdas
}

// ResetLambdas zeroes every multiplier.
func (b *Batch[P]) ResetLambdas() {
	clear(b.lambdas)
}

// Clear drops every constraint. IDs issued before are not reused.
func (b *Batch[P]) Clear() {
	b.SetConstraintCount(0)
}

// Clone returns a deep copy with identical IDs.
func (b *Batch[P]) Clone() *Batch[P] {
	c := &Batch[P]{
		typ:     b.typ,
		params:  make([]P, len(b.params)),
		lambdas: append([]float64(nil), b.lambdas...),
		ids:     append([]int(nil), b.ids...),
		slots:   append([]int(nil), b.slots...),
		active:  b.active,
		used:    maps.Clone(b.used),
	}
	for i, p := range b.params {
		c.params[i] = cloneParams(p)
	}
	c.particles = make([][]int, len(b.particles))
	for i, p := range b.particles {
		c.particles[i] = append([]int(nil), p...)
	}
	return c
}

// ParticleSet returns the distinct particles referenced by active
// constraints, in first-seen order.
func (b *Batch[P]) ParticleSet() []int {
	seen := make(map[int]struct{})
	var out []int
	for i := 0; i < b.active; i++ {
		for _, p := range b.particles[i] {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// Accepts reports whether a constraint on particles could join the batch
// without sharing a particle with an active constraint.
func (b *Batch[P]) Accepts(particles []int) bool {
	for _, p := range particles {
		if b.used[p] > 0 {
			return false
		}
	}
	return true
}

func (b *Batch[P]) retain(particles []int) {
	if b.used == nil {
		b.used = make(map[int]int)
	}
	for _, p := range particles {
		b.used[p]++
	}
}

func (b *Batch[P]) release(particles []int) {
	for _, p := range particles {
		if b.used[p] <= 1 {
			delete(b.used, p)
			continue
		}
		b.used[p]--
	}
}

func (b *Batch[P]) position(id int) (int, bool) {
	if id < 0 || id >= len(b.slots) || b.slots[id] < 0 {
		return 0, false
	}
	return b.slots[id], true
}

func (b *Batch[P]) swap(i, j int) {
	if i == j {
		return
	}
	b.particles[i], b.particles[j] = b.particles[j], b.particles[i]
	b.params[i], b.params[j] = b.params[j], b.params[i]
	stride := b.typ.LambdaStride()
	for k := 0; k < stride; k++ {
		b.lambdas[i*stride+k], b.lambdas[j*stride+k] = b.lambdas[j*stride+k], b.lambdas[i*stride+k]
	}
	b.ids[i], b.ids[j] = b.ids[j], b.ids[i]
	b.slots[b.ids[i]] = i
	b.slots[b.ids[j]] = j
}

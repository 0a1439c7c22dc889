package jobs

// Pool recycles handles across physics steps. It grows by exactly one handle
// each time Borrow finds it exhausted: fan-out per step is small and bounded,
// so doubling would only waste slots.
//
// A Pool belongs to one backend solver instance and is not safe for
// concurrent use; the solver borrows from a single goroutine.
type Pool struct {
	handles  []*Handle
	borrowed int
}

// NewPool creates a pool with capacity pre-allocated handles.
func NewPool(capacity int) *Pool {
	p := &Pool{handles: make([]*Handle, 0, capacity)}
	for i := 0; i < capacity; i++ {
		p.handles = append(p.handles, &Handle{})
	}
	return p
}

// Borrow returns the next free handle, growing the pool by one if needed.
func (p *Pool) Borrow() *Handle {
	if p.borrowed == len(p.handles) {
		p.handles = append(p.handles, &Handle{})
	}
	h := p.handles[p.borrowed]
	p.borrowed++
	return h
}

// ReleaseAll resets the borrowed count and releases every pooled handle,
// borrowed or not, without waiting for outstanding work.
func (p *Pool) ReleaseAll() {
	p.borrowed = 0
	for _, h := range p.handles {
		h.Release()
	}
}

// Borrowed returns how many handles are currently lent out.
func (p *Pool) Borrowed() int {
	return p.borrowed
}

// Len returns the number of handles the pool owns.
func (p *Pool) Len() int {
	return len(p.handles)
}

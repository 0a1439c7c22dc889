package collider

// arena is a slot map: handles stay valid until destroyed, and destroyed
// slots are reused lowest-first.
type arena[T any] struct {
	items []T
	alive []bool
	free  []int
}

func (a *arena[T]) create(v T) int {
	if n := len(a.free); n > 0 {
		best := 0
		for k := 1; k < n; k++ {
			if a.free[k] < a.free[best] {
				best = k
			}
		}
		i := a.free[best]
		a.free[best] = a.free[n-1]
		a.free = a.free[:n-1]
		a.items[i] = v
		a.alive[i] = true
		return i
	}
	a.items = append(a.items, v)
	a.alive = append(a.alive, true)
	return len(a.items) - 1
}

func (a *arena[T]) destroy(i int) bool {
	if !a.valid(i) {
		return false
	}
	var zero T
	a.items[i] = zero
	a.alive[i] = false
	a.free = append(a.free, i)
	return true
}

func (a *arena[T]) valid(i int) bool {
	return i >= 0 && i < len(a.items) && a.alive[i]
}

func (a *arena[T]) get(i int) (*T, bool) {
	if !a.valid(i) {
		return nil, false
	}
	return &a.items[i], true
}

func (a *arena[T]) len() int {
	return len(a.items) - len(a.free)
}

// handles returns live handles in ascending order.
func (a *arena[T]) handles() []int {
	out := make([]int, 0, a.len())
	for i, ok := range a.alive {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

func (a *arena[T]) reset() {
	a.items = nil
	a.alive = nil
	a.free = nil
}

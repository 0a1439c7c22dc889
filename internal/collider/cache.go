package collider

// Cache de-duplicates derived geometry by source identity. Sources are
// compared with ==, so pointer keys give identity semantics.
//
// GetOrCreate never changes the reference count. Every Reference must be
// matched by a Dereference; the call that brings the count back to zero
// destroys the entry and frees its index for reuse.
type Cache[K comparable, V any] struct {
	name    string
	build   func(K) V
	destroy func(V)
	index   map[K]int
	entries arena[cacheEntry[K, V]]
}

type cacheEntry[K comparable, V any] struct {
	source K
	value  V
	refs   int
}

// NewCache returns an empty cache. destroy may be nil.
func NewCache[K comparable, V any](name string, build func(K) V, destroy func(V)) *Cache[K, V] {
	return &Cache[K, V]{
		name:    name,
		build:   build,
		destroy: destroy,
		index:   make(map[K]int),
	}
}

// GetOrCreate returns the index of the entry wrapping src, building one if
// none exists.
func (c *Cache[K, V]) GetOrCreate(src K) int {
	if i, ok := c.index[src]; ok {
		return i
	}
	i := c.entries.create(cacheEntry[K, V]{source: src, value: c.build(src)})
	c.index[src] = i
	return i
}

// Reference increments the count of entry i and returns the new count, or
// -1 if i is not a live entry.
func (c *Cache[K, V]) Reference(i int) int {
	e, ok := c.entries.get(i)
	if !ok {
		return -1
	}
	e.refs++
	return e.refs
}

// Dereference decrements the count of entry i, destroying the entry when it
// reaches zero. It reports whether the entry was destroyed.
func (c *Cache[K, V]) Dereference(i int) bool {
	e, ok := c.entries.get(i)
	if !ok {
		return false
	}
	e.refs--
	if e.refs > 0 {
		return false
	}
	c.remove(i)
	return true
}

// Get returns the value of entry i.
func (c *Cache[K, V]) Get(i int) (V, bool) {
	e, ok := c.entries.get(i)
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// RefCount returns the count of entry i, 0 for dead entries.
func (c *Cache[K, V]) RefCount(i int) int {
	e, ok := c.entries.get(i)
	if !ok {
		return 0
	}
	return e.refs
}

// Len returns the number of live entries.
func (c *Cache[K, V]) Len() int {
	return c.entries.len()
}

// Clear destroys every entry regardless of its count.
func (c *Cache[K, V]) Clear() {
	for _, i := range c.entries.handles() {
		c.remove(i)
	}
	c.entries.reset()
}

func (c *Cache[K, V]) remove(i int) {
	e, _ := c.entries.get(i)
	delete(c.index, e.source)
	if c.destroy != nil {
		c.destroy(e.value)
	}
	c.entries.destroy(i)
}

// Name identifies the cache in logs.
func (c *Cache[K, V]) Name() string {
	return c.name
}

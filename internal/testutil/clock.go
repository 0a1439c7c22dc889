package testutil

import "sync/atomic"

// DeterministicClock numbers trace events for tests. It satisfies
// engine.Sequencer.
//
// Unlike engine.Clock it can start from an origin and be rewound to it, so
// the same scene run twice stamps its events with identical seq values, and
// a run resumed from a recorded prefix continues its numbering.
//
// Thread-safety: all methods are safe for concurrent use.
type DeterministicClock struct {
	origin int64
	seq    atomic.Int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(0)
}

// NewDeterministicClockAt returns a clock whose first Next is origin+1.
func NewDeterministicClockAt(origin int64) *DeterministicClock {
	c := &DeterministicClock{origin: origin}
	c.seq.Store(origin)
	return c
}

// Next stamps one event.
func (c *DeterministicClock) Next() int64 {
	return c.seq.Add(1)
}

// Current is the last stamp handed out, or the origin if none was.
func (c *DeterministicClock) Current() int64 {
	return c.seq.Load()
}

// Issued counts the stamps handed out since the origin.
func (c *DeterministicClock) Issued() int64 {
	return c.seq.Load() - c.origin
}

// Rewind returns the clock to its origin.
func (c *DeterministicClock) Rewind() {
	c.seq.Store(c.origin)
}

package engine

import "sync/atomic"

// Sequencer stamps recorded events. Implemented by Clock and by
// testutil.DeterministicClock.
type Sequencer interface {
	Next() int64
}

// Clock stamps recorded events with a strictly increasing sequence number.
// Event order within a step is the order of Next calls, never wall time.
//
// Thread-safety: Clock is safe for concurrent use. The engine's single
// writer is the only caller in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start, for resuming a recording.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current value without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

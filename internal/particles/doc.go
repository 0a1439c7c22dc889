// Package particles holds the solver's particle state as flat parallel
// arrays indexed by a stable integer handle.
//
// Slots are handed to actors in blocks by Allocate and returned by Free;
// freed slots are reused before the arrays grow. Besides the simulated state
// the buffer carries the per-particle accumulation buffers (position and
// orientation deltas plus contribution counters) that constraint batches
// write during evaluation and consume during apply.
package particles

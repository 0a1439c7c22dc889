// Package engine drives a compiled scene through a solver, frame by frame.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// Every mutation of the solver, the collider world and the rigidbodies
// happens on one goroutine, either inside Tick or inside Run. Other
// goroutines talk to the engine through Enqueue, which appends a Command to
// a FIFO queue. Commands are applied at the start of the next tick, before
// any step runs.
//
// Frame Pipeline (one Tick):
//  1. Drain the command queue in FIFO order.
//  2. Add dt to the time accumulator.
//  3. While the accumulator holds a full step and the frame budget allows:
//     integrate rigidbodies, update collider trackers, step the solver,
//     record the step.
//  4. Interpolate renderable positions by the leftover time.
//
// Determinism:
// The step time is fixed, commands apply at step boundaries and the solver
// is deterministic for a given backend, so a scene plus its command log
// reproduces the same state hashes. Replay checks that.
package engine

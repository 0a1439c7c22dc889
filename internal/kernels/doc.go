// Package kernels holds the per-element numerical work shared by every
// solver backend: particle prediction and velocity update, the XPBD
// evaluate kernel of each constraint type, delta application, collision
// detection, interpolation and spatial queries.
//
// Kernels never schedule work themselves. They receive an index and a
// Context and touch only the state that index owns, so a backend can run
// them in any order within a batch. Writes to shared particles go through
// the accumulation buffers (PositionDeltas, PositionCounts and their
// orientation counterparts); ApplyPositionDelta folds them back in:
//
//	position += delta * SOR / count
//
// Every division is guarded by vmath.Epsilon.
package kernels

// Package vmath provides the math and integration primitives used by the
// particle solver: affine transforms, quaternion spin integration,
// axis-aligned bounding boxes, smoothing kernels and the inertial frame.
//
// All functions are pure. Vectors and quaternions are the mgl64 types so the
// rest of the engine shares one representation.
//
// # Numeric Guards
//
// Divisions by quantities that can legitimately reach zero (lengths, total
// weights, time steps) are guarded with Epsilon. A guarded operation returns a
// neutral value (zero vector, identity rotation, zero weight) instead of NaN,
// because a single NaN propagates through every constraint that touches the
// particle and the whole actor explodes within one step.
package vmath

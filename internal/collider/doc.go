// Package collider is the collision world shared by solvers: shapes,
// rigidbodies, materials and reference-counted geometry caches.
//
// A World is created by the simulation driver and passed explicitly to every
// solver that reads from it. Shapes are a closed sum type (Geometry); the
// mesh-like variants point into caches that de-duplicate geometry by source
// identity, so many colliders sharing one source mesh share one bounding
// interval hierarchy.
//
// # Trackers
//
// Host-side collider descriptions (SphereCollider, MeshCollider, ...) are
// mirrored into the world by trackers. The driver calls UpdateIfNeeded on
// every tracker once per frame, before collision detection; a tracker only
// rewrites its shape when the description changed since the last call.
//
// The world has no locks. Tracker updates and solver steps are serialized by
// the driver.
package collider

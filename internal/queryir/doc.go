// Package queryir describes spatial queries against a solver's particles.
//
// A Query pairs a query shape with a transform, a search distance and a
// collision filter. Backends answer a list of queries with Results ordered
// by query index, then particle index.
//
// SEALED INTERFACES:
//
// Shape is a sealed interface using the marker method pattern; only Sphere,
// Box and Ray implement it, so backends can switch over it exhaustively:
//
//	switch s := q.Shape.(type) {
//	case Sphere:
//	    // distance to a ball
//	case Box:
//	    // distance to an oriented box
//	case Ray:
//	    // distance to a thick segment
//	}
//
// Validate rejects queries a backend cannot answer (nil shapes, negative
// radii, zero-length rays) before any work is scheduled.
package queryir

// Package solver is the actor-facing façade of the physics engine.
//
// A Solver owns a backend instance, a particle buffer and the actors
// attached to it, and drives the per-step pipeline:
//
//	force providers → collision detection → N substeps → pin bookkeeping
//
// Actors carry a Blueprint: particles in solver space plus a constraints.Set
// over local particle indices. Attaching an actor allocates particle slots
// and merges its active constraints into the solver's Set; detaching frees
// the slots and rebuilds the Set from the remaining actors.
package solver

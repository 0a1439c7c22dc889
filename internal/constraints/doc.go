// Package constraints holds the constraint data model: typed per-constraint
// parameter records, batches of conflict-free constraints, and per-type
// containers that can be merged from several actors into one solver.
//
// # Batches
//
// A Batch stores constraints of one type. No two constraints in a batch share
// a particle, so a backend may evaluate a whole batch in parallel. Storage is
// split into an active prefix and an inactive tail: deactivation swaps a
// constraint to the tail in O(1) and never changes ConstraintCount. Every
// constraint has a stable ID that survives these swaps.
//
// # Containers
//
// A Container is the ordered batch list of one type. Merge splices another
// container's active constraints into this one, remapping particle indices
// through the caller's solverIndices table, and reports where each source
// batch landed so later edits can be attributed back to their actor.
package constraints

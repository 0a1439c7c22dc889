// Package jobs provides the asynchronous completion tokens backends return
// when they schedule work, and the per-backend pool that recycles them.
//
// # Lifecycle
//
// A backend borrows a Handle from its Pool, schedules work on it (optionally
// depending on other handles), and returns it to the solver. The caller must
// call Complete before reading results. At the end of every physics step the
// solver calls Pool.ReleaseAll, which resets every pooled handle whether or
// not its work has finished; any handle whose results are still needed must
// be completed first.
//
// Dependency chains are explicit: Schedule takes the handles the new work
// waits on. A failed dependency short-circuits the dependent work and
// propagates its error, so the first failure of a chain surfaces at the
// final Complete.
package jobs

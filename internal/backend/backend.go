// Package backend defines the execution contract every solver backend
// implements. A backend turns the constraint containers of a solver into
// scheduled work: collision detection, substeps, interpolation and spatial
// queries.
//
// Three implementations exist: null (physics disabled), native (delegates
// to a solver library through opaque handles) and parallel (goroutine jobs
// with explicit dependency chains). They are substitutable: native and
// parallel produce the same particle state for the same input.
package backend

import (
	"errors"
	"log/slog"

	"github.com/roach88/xpbd/internal/collider"
	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/jobs"
	"github.com/roach88/xpbd/internal/kernels"
	"github.com/roach88/xpbd/internal/particles"
	"github.com/roach88/xpbd/internal/queryir"
	"github.com/roach88/xpbd/internal/vmath"
)

// ErrNonFinite is returned by a step that left a particle with a NaN or
// infinite position or velocity.
var ErrNonFinite = errors.New("non-finite particle state")

// Parameters are the solver-wide simulation settings.
type Parameters = kernels.Parameters

// ConstraintParameters are the per-type solve settings.
type ConstraintParameters = kernels.ConstraintParameters

// State is the data a backend solver runs against. The particle buffer is
// owned by the caller; the backend reads and writes it in place.
type State struct {
	Particles *particles.Buffer
	World     *collider.World
	Logger    *slog.Logger
}

// Backend creates solver instances.
type Backend interface {
	Name() string
	CreateSolver(state State, capacity int) (Solver, error)
	DestroySolver(s Solver)
}

// Solver is one backend instance bound to one particle buffer.
//
// The step pipeline is CollisionDetection, then Substep once per substep
// index, then ApplyInterpolation. Handles returned by the pipeline must be
// completed before particle state is read.
type Solver interface {
	SetParameters(p Parameters)
	SetConstraintParameters(t constraints.Type, p ConstraintParameters)

	// UpdateInertialFrame finite-differences the solver transform.
	UpdateInertialFrame(frame vmath.Affine, dt float64)
	InertialFrame() vmath.InertialFrame

	CreateConstraintsBatch(t constraints.Type) BatchImpl
	DestroyConstraintsBatch(b BatchImpl)

	CollisionDetection(stepTime float64) *jobs.Handle
	Substep(stepTime, substepTime float64, index int) *jobs.Handle
	ApplyInterpolation(stepTime, unsimulatedTime float64)

	// SpatialQuery returns matches ordered by query index, then particle
	// index.
	SpatialQuery(queries []queryir.Query) []queryir.Result

	// ContactCount returns the contacts found by the last detection.
	ContactCount() int

	// Pool lends the handles the pipeline returns. The caller releases it
	// once per step.
	Pool() *jobs.Pool
}

// BatchImpl is the backend side of one constraints batch.
type BatchImpl interface {
	Type() constraints.Type
	// Bind points the implementation at the batch whose data it solves.
	Bind(b constraints.AnyBatch) error
	SetConstraintCount(n int)
	ConstraintCount() int

	Initialize(deps *jobs.Handle, substepTime float64) *jobs.Handle
	Evaluate(deps *jobs.Handle, stepTime, substepTime float64, substeps int) *jobs.Handle
	Apply(deps *jobs.Handle, substepTime float64) *jobs.Handle
	Destroy()
}

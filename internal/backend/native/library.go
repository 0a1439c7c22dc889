// Package native is the backend that delegates the whole step to a solver
// library reached through opaque handles. The library owns its solver and
// batch objects; this package only forwards calls and wraps results in job
// handles.
//
// Reference is an in-process Library that runs the shared kernels
// serially. It is the default library and the baseline other backends are
// compared against.
package native

import (
	"github.com/roach88/xpbd/internal/collider"
	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/kernels"
	"github.com/roach88/xpbd/internal/particles"
	"github.com/roach88/xpbd/internal/queryir"
	"github.com/roach88/xpbd/internal/vmath"
)

// SolverRef is an opaque solver handle issued by a Library. Zero is never
// a valid handle.
type SolverRef uint64

// BatchRef is an opaque batch handle issued by a Library. Zero is never a
// valid handle.
type BatchRef uint64

// Library is the call surface of a solver library. Calls on unknown
// handles are ignored or return an error; they never panic.
type Library interface {
	CreateSolver(buf *particles.Buffer, world *collider.World, capacity int) (SolverRef, error)
	DestroySolver(s SolverRef)

	SetParameters(s SolverRef, p kernels.Parameters)
	SetConstraintParameters(s SolverRef, t constraints.Type, p kernels.ConstraintParameters)
	UpdateFrame(s SolverRef, frame vmath.Affine, dt float64)
	Frame(s SolverRef) vmath.InertialFrame

	CreateBatch(s SolverRef, t constraints.Type) (BatchRef, error)
	DestroyBatch(s SolverRef, b BatchRef)
	SetBatchData(s SolverRef, b BatchRef, data constraints.AnyBatch) error
	SetBatchConstraintCount(s SolverRef, b BatchRef, n int)
	BatchConstraintCount(s SolverRef, b BatchRef) int
	InitializeBatch(s SolverRef, b BatchRef) error
	EvaluateBatch(s SolverRef, b BatchRef, stepTime, substepTime float64) error
	ApplyBatch(s SolverRef, b BatchRef) error

	CollisionDetection(s SolverRef, stepTime float64) error
	Substep(s SolverRef, stepTime, substepTime float64, index int) error
	Interpolate(s SolverRef, stepTime, unsimulatedTime float64) error
	SpatialQuery(s SolverRef, queries []queryir.Query) ([]queryir.Result, error)
	ContactCount(s SolverRef) int
}

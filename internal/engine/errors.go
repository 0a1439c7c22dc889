package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while driving a scene.
//
// Runtime errors include:
//   - Step failure: the solver rejected a step and restored its state
//   - Quota exceeded: a tick needed more steps than the frame budget
//   - Unknown actor: a command named an actor the scene does not have
//   - Backend unavailable: the scene asked for a backend that does not exist
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Step is the solver step count when the error happened.
	Step int

	// Actor names the affected actor, if any.
	Actor string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeStepFailed indicates the solver failed a step.
	ErrCodeStepFailed RuntimeErrorCode = "STEP_FAILED"

	// ErrCodeQuotaExceeded indicates a tick hit the steps-per-frame budget.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeUnknownActor indicates a command referenced a missing actor.
	ErrCodeUnknownActor RuntimeErrorCode = "UNKNOWN_ACTOR"

	// ErrCodeInvalidCommand indicates a command with unusable arguments.
	ErrCodeInvalidCommand RuntimeErrorCode = "INVALID_COMMAND"

	// ErrCodeBackendUnavailable indicates an unknown backend name.
	ErrCodeBackendUnavailable RuntimeErrorCode = "BACKEND_UNAVAILABLE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Actor != "" {
		msg += fmt.Sprintf(" (actor=%s)", e.Actor)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsStepError reports whether err is a failed solver step.
// Uses errors.As to handle wrapped errors.
func IsStepError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeStepFailed
}

// IsQuotaError reports whether err is a frame budget overrun.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeQuotaExceeded
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

// NewStepError wraps a solver step failure.
func NewStepError(step int, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeStepFailed,
		Message: "solver step failed, state restored",
		Step:    step,
		Err:     err,
	}
}

// NewQuotaError creates a RuntimeError for a tick that needed more steps
// than allowed.
func NewQuotaError(step, wanted, maxSteps int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("frame needed %d steps, budget is %d", wanted, maxSteps),
		Step:    step,
		Details: map[string]string{
			"wanted":    fmt.Sprintf("%d", wanted),
			"max_steps": fmt.Sprintf("%d", maxSteps),
		},
	}
}

// NewUnknownActorError creates a RuntimeError for a missing actor.
func NewUnknownActorError(step int, actor string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownActor,
		Message: "no such actor",
		Step:    step,
		Actor:   actor,
	}
}

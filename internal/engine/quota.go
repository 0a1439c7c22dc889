package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxStepsPerFrame bounds the steps one tick may run when the scene
// does not say otherwise.
const DefaultMaxStepsPerFrame = 5

// QuotaEnforcer counts the fixed steps taken in one tick and refuses steps
// beyond the frame budget.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a quota enforcer with the given per-frame limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check counts one step and returns StepsExceededError once the count
// passes the limit.
func (q *QuotaEnforcer) Check(frame int64) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			Frame: frame,
			Steps: q.current,
			Limit: q.maxSteps,
		}
	}
	return nil
}

// Reset starts a new frame.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the step count of the current frame.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the per-frame limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned by Check when a frame wants more steps than
// allowed. The engine drops the remaining accumulated time.
type StepsExceededError struct {
	Frame int64
	Steps int
	Limit int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("frame %d exceeded max steps quota: %d steps > %d limit",
		e.Frame, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}

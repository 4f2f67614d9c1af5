package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/marbles/internal/ir"
)

// SchedulerError represents a misuse of the virtual-time scheduler.
//
// Scheduler errors include:
//   - Backward advance: AdvanceTo with a frame behind the clock
//   - Disposed: an operation on a scheduler after Dispose
//
// Parse errors from diagrams are reported as *marble.ParseError, not here.
type SchedulerError struct {
	// Code identifies the error category.
	Code SchedulerErrorCode

	// Message is a human-readable description.
	Message string

	// Frame is the clock's frame when the error occurred.
	Frame ir.Frame

	// Target is the requested frame (for backward advances).
	Target ir.Frame
}

// SchedulerErrorCode categorizes scheduler errors.
type SchedulerErrorCode string

const (
	// ErrCodeBackwardAdvance indicates AdvanceTo targeted a frame behind the clock.
	ErrCodeBackwardAdvance SchedulerErrorCode = "BACKWARD_ADVANCE"

	// ErrCodeDisposed indicates the scheduler was already disposed.
	ErrCodeDisposed SchedulerErrorCode = "DISPOSED"
)

// Error implements the error interface.
func (e *SchedulerError) Error() string {
	if e.Code == ErrCodeBackwardAdvance {
		return fmt.Sprintf("%s: %s (frame=%s, target=%s)", e.Code, e.Message, e.Frame, e.Target)
	}
	return fmt.Sprintf("%s: %s (frame=%s)", e.Code, e.Message, e.Frame)
}

// IsBackwardAdvance returns true if the error is a backward advance error.
// Uses errors.As to handle wrapped errors.
func IsBackwardAdvance(err error) bool {
	var se *SchedulerError
	if errors.As(err, &se) {
		return se.Code == ErrCodeBackwardAdvance
	}
	return false
}

// IsDisposed returns true if the error reports use of a disposed scheduler.
// Uses errors.As to handle wrapped errors.
func IsDisposed(err error) bool {
	var se *SchedulerError
	if errors.As(err, &se) {
		return se.Code == ErrCodeDisposed
	}
	return false
}

// NewBackwardAdvanceError creates a SchedulerError for a backward advance.
func NewBackwardAdvanceError(now, target ir.Frame) *SchedulerError {
	return &SchedulerError{
		Code:    ErrCodeBackwardAdvance,
		Message: "cannot advance to a frame behind the clock",
		Frame:   now,
		Target:  target,
	}
}

// NewDisposedError creates a SchedulerError for an operation after Dispose.
func NewDisposedError(op string, now ir.Frame) *SchedulerError {
	return &SchedulerError{
		Code:    ErrCodeDisposed,
		Message: fmt.Sprintf("%s called on a disposed scheduler", op),
		Frame:   now,
	}
}

package lifecycle

import (
	"errors"
	"fmt"
)

// RuntimeErrorCode categorizes lifecycle errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidTransition indicates the host delivered a phase out of order.
	ErrCodeInvalidTransition RuntimeErrorCode = "INVALID_TRANSITION"

	// ErrCodeSessionDestroyed indicates a phase arrived after Destroyed.
	ErrCodeSessionDestroyed RuntimeErrorCode = "SESSION_DESTROYED"
)

// RuntimeError is a rejected lifecycle transition.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Message string
	From    Phase
	To      Phase
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s (%s -> %s)", e.Code, e.Message, e.From, e.To)
}

// NewTransitionError creates a RuntimeError for an out-of-order phase.
func NewTransitionError(from, to Phase) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidTransition,
		Message: "phase not reachable from current phase",
		From:    from,
		To:      to,
	}
}

// NewDestroyedError creates a RuntimeError for a phase after Destroyed.
func NewDestroyedError(to Phase) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeSessionDestroyed,
		Message: "session already destroyed",
		From:    Destroyed,
		To:      to,
	}
}

// IsTransitionError reports whether err is an out-of-order phase.
func IsTransitionError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInvalidTransition
	}
	return false
}

// IsDestroyedError reports whether err is a phase after Destroyed.
func IsDestroyedError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeSessionDestroyed
	}
	return false
}

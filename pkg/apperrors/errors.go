// Package apperrors holds the caller-facing error taxonomy of the engine.
// Callers match with errors.Is; details travel in the wrapped message.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrNoCandidate         = errors.New("no candidate worker available")
	ErrAlreadyAssigned     = errors.New("project already assigned")
	ErrPaymentsAlreadyMade = errors.New("payments already made for project")
	ErrPhaseMismatch       = errors.New("payment phase mismatch")
	ErrCapacityExceeded    = errors.New("worker capacity exceeded")
	ErrDuplicatePayment    = errors.New("duplicate payment reference")

	ErrNotFound          = errors.New("not found")
	ErrAmountMismatch    = errors.New("payment amount mismatch")
	ErrNotProjectParty   = errors.New("actor is not a party of the project")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrAssignmentExpired = errors.New("assignment acceptance deadline expired")
	ErrConcurrentUpdate  = errors.New("concurrent update detected")
)

// TransitionError describes a rejected lifecycle event.
type TransitionError struct {
	From  string
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: event %q not allowed from status %q", e.Event, e.From)
}

// Unwrap lets errors.Is(err, ErrInvalidTransition) succeed.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// NotFound wraps ErrNotFound with the entity kind and id.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// Invalid wraps ErrInvalidArgument with a reason.
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

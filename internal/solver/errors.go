package solver

import (
	"errors"
	"fmt"

	isamerrors "github.com/isam2go/isam2/internal/errors"
)

// Sentinel errors for the failure kinds of spec.md 7. Every non-nil error
// Update returns wraps one of these (errors.Is against the sentinel
// continues to work) composed with a call-specific message via
// isamerrors.With, adapted from the teacher's error-composition helper.
var (
	// ErrPreconditionViolation is returned when the caller's input
	// violates an Update precondition (duplicate key, missing key,
	// unknown removal index), surfaced before any state is mutated.
	ErrPreconditionViolation = errors.New("solver: precondition violation")

	// ErrIndefiniteLinearSystem is returned when LDL elimination hits a
	// non-positive pivot and the QR retry also fails.
	ErrIndefiniteLinearSystem = errors.New("solver: indefinite linear system")

	// ErrNumericalOverflow is returned when back-substitution produces a
	// non-finite delta.
	ErrNumericalOverflow = errors.New("solver: numerical overflow in linear delta")

	// ErrInvariantViolation is returned when a structural Bayes-tree
	// invariant (running intersection, coverage) is found broken after
	// reattach. This is a fatal, unrecoverable condition.
	ErrInvariantViolation = errors.New("solver: internal invariant violation")
)

func preconditionErr(format string, args ...any) error {
	return isamerrors.With(ErrPreconditionViolation, fmt.Errorf(format, args...))
}

func indefiniteErr(format string, args ...any) error {
	return isamerrors.With(ErrIndefiniteLinearSystem, fmt.Errorf(format, args...))
}

func overflowErr(format string, args ...any) error {
	return isamerrors.With(ErrNumericalOverflow, fmt.Errorf(format, args...))
}

func invariantErr(format string, args ...any) error {
	return isamerrors.With(ErrInvariantViolation, fmt.Errorf(format, args...))
}

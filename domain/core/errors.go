package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input errors
	ErrMissingInput = errors.New("missing input table")
	ErrMalformedRow = errors.New("malformed row")

	// Estimator errors; these degrade to undefined values and are never fatal
	ErrInsufficientData = errors.New("insufficient data for analysis")
	ErrDegenerate       = errors.New("degenerate computation")

	// Archive errors
	ErrNotFound          = errors.New("resource not found")
	ErrInvocationMissing = fmt.Errorf("%w: invocation", ErrNotFound)
)

// Error constructors with context
func NewMissingInputError(metric, path string) error {
	return fmt.Errorf("%w: metric %s (%s)", ErrMissingInput, metric, path)
}

func NewMalformedRowError(path string, line int, reason string) error {
	return fmt.Errorf("%w: %s:%d: %s", ErrMalformedRow, path, line, reason)
}

func NewInsufficientDataError(what string, have, need int) error {
	return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientData, what, have, need)
}

func NewDegenerateError(what string) error {
	return fmt.Errorf("%w: %s", ErrDegenerate, what)
}

// Error checking helpers
func IsMissingInput(err error) bool {
	return errors.Is(err, ErrMissingInput)
}

func IsMalformedRow(err error) bool {
	return errors.Is(err, ErrMalformedRow)
}

// IsSoftFailure reports errors that disable a single check without failing the invocation.
func IsSoftFailure(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrDegenerate)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

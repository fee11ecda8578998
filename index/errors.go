package index

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDataset is returned when building over zero vectors.
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrInvalidArgument is returned for nil indexes or query batches.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCoverage is returned when a built partition does not hold every id
	// exactly once.
	ErrCoverage = errors.New("partition coverage violated")
)

// ErrDimensionMismatch is a named error type for dimension mismatch
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidParameter reports a build or search parameter outside its domain.
type ErrInvalidParameter struct {
	Name   string
	Value  any
	Reason string
}

func (e *ErrInvalidParameter) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Name, e.Value, e.Reason)
}

package vecann

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecann/index"
	"github.com/hupe1980/vecann/internal/kmeans"
	"github.com/hupe1980/vecann/matrix"
	"github.com/hupe1980/vecann/resource"
)

var (
	// ErrEmptyDataset is returned when building over zero vectors.
	ErrEmptyDataset = index.ErrEmptyDataset

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = index.ErrInvalidK

	// ErrInvalidArgument is returned for nil or malformed inputs.
	ErrInvalidArgument = index.ErrInvalidArgument

	// ErrResourceExhausted is returned when the execution context cannot
	// satisfy a memory reservation.
	ErrResourceExhausted = resource.ErrResourceExhausted
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch = index.ErrDimensionMismatch

// ErrInvalidParameter indicates an index or search parameter out of range.
type ErrInvalidParameter = index.ErrInvalidParameter

// translateError normalizes errors of the lower layers so that callers can
// match them with errors.Is and errors.As against this package's values.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, matrix.ErrShape) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if errors.Is(err, kmeans.ErrTooFewVectors) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return err
}

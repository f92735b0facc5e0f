package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTarget is returned by ParseTarget for an unknown name.
	ErrInvalidTarget = errors.New("dispatch: invalid target")

	// ErrNotSingleTile indicates a triangular operand spanning several tiles.
	ErrNotSingleTile = errors.New("dispatch: operand must be a single tile")

	// ErrDimensionMismatch indicates tile grids that do not conform.
	ErrDimensionMismatch = errors.New("dispatch: operand tile grids do not conform")
)

// dispatchErrorf wraps err with the kernel name.
func dispatchErrorf(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

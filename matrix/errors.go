// SPDX-License-Identifier: MIT

package matrix

import (
	"errors"
	"fmt"
)

// Sentinel errors of package matrix; match with errors.Is.
var (
	// ErrBadShape is returned for non-positive sizes or tile sizes.
	ErrBadShape = errors.New("matrix: invalid shape")

	// ErrBadGrid indicates a process grid that does not fit the communicator.
	ErrBadGrid = errors.New("matrix: invalid process grid")

	// ErrOutOfRange indicates a tile index outside the view.
	ErrOutOfRange = errors.New("matrix: tile index out of range")

	// ErrTileExists is returned when inserting over an existing instance.
	ErrTileExists = errors.New("matrix: tile already exists")

	// ErrTileMissing is returned when no instance of a coordinate exists.
	ErrTileMissing = errors.New("matrix: tile missing")

	// ErrNoValidCopy indicates that every instance of a tile is invalid.
	ErrNoValidCopy = errors.New("matrix: no valid tile instance")

	// ErrNoDevice indicates a device id that is not attached.
	ErrNoDevice = errors.New("matrix: device not attached")

	// ErrNotSingleTile indicates a reduction root view with more than one tile.
	ErrNotSingleTile = errors.New("matrix: root must be a single tile")

	// ErrBufferTooSmall indicates a LAPACK / ScaLAPACK array that cannot hold
	// the matrix.
	ErrBufferTooSmall = errors.New("matrix: buffer too small")
)

// matrixErrorf wraps err with an operation tag and tile coordinates.
func matrixErrorf(op string, i, j int, err error) error {
	return fmt.Errorf("%s(%d,%d): %w", op, i, j, err)
}

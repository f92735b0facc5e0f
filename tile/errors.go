// SPDX-License-Identifier: MIT

package tile

import (
	"errors"
	"fmt"
)

// Sentinel errors of package tile. Callers match them with errors.Is.
var (
	// ErrBadShape is returned for negative extents or a stride smaller than
	// the leading dimension of the chosen layout.
	ErrBadShape = errors.New("tile: invalid shape")

	// ErrShortBuffer is returned when a data slice cannot hold the tile.
	ErrShortBuffer = errors.New("tile: buffer too short")

	// ErrDimensionMismatch indicates incompatible operand extents in a kernel.
	ErrDimensionMismatch = errors.New("tile: dimension mismatch")

	// ErrNonSquare signals that a square tile was required.
	ErrNonSquare = errors.New("tile: tile is not square")

	// ErrNotTriangular signals that a kernel needs a Lower or Upper tile but
	// got a General one.
	ErrNotTriangular = errors.New("tile: tile is not triangular")

	// ErrOutOfRange indicates an element index outside the logical extent.
	ErrOutOfRange = errors.New("tile: index out of range")
)

// tileErrorf wraps err with the kernel or method tag.
func tileErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}

// SPDX-License-Identifier: MIT

package linalg

import "errors"

var (
	// ErrNotSquare indicates a matrix or diagonal tile that is not square.
	ErrNotSquare = errors.New("linalg: matrix is not square")

	// ErrNoTriangle indicates a General view where a Hermitian or
	// triangular one is required.
	ErrNoTriangle = errors.New("linalg: matrix view has no triangle")

	// ErrDimensionMismatch indicates operands whose tile grids do not conform.
	ErrDimensionMismatch = errors.New("linalg: dimension mismatch")

	// ErrInvalidNorm is returned by Norm for an unknown norm.
	ErrInvalidNorm = errors.New("linalg: invalid norm")

	// ErrNotFinite indicates Inf or NaN in an eigensolver input.
	ErrNotFinite = errors.New("linalg: input contains Inf or NaN")

	// ErrNoConvergence indicates an eigensolver iteration that did not
	// converge.
	ErrNoConvergence = errors.New("linalg: eigensolver did not converge")
)

// SPDX-License-Identifier: MIT

package linalg

import (
	"context"
	"fmt"

	"github.com/katalvlaran/tilegrid/matrix"
	"github.com/katalvlaran/tilegrid/tile"
)

// Posv solves A*X = B for Hermitian positive definite A. A is overwritten
// by its Cholesky factor, B by X.
//
// Returns:
//   - info from Potrf. When info > 0 B is left untouched.
//
// Errors:
//   - ErrDimensionMismatch when B does not have the rows of A, plus every
//     error of Potrf and TrsmA.
func Posv(ctx context.Context, a, b matrix.Matrix, opts ...Option) (int, error) {
	if a.Mt() != b.Mt() || a.M() != b.M() {
		return 0, fmt.Errorf("Posv: %w", ErrDimensionMismatch)
	}
	info, err := Potrf(ctx, a, opts...)
	if err != nil || info > 0 {
		return info, err
	}

	// L*L^H*X = B: solve with L, then with L^H. Upper storage holds U = L^H.
	f := a.AsTriangular(a.Uplo(), tile.NonUnit)
	first, second := f, matrix.ConjTranspose(f)
	if a.Uplo() == tile.Upper {
		first, second = second, first
	}
	if err := TrsmA(ctx, tile.Left, 1, first, b, opts...); err != nil {
		return 0, fmt.Errorf("Posv: %w", err)
	}
	if err := TrsmA(ctx, tile.Left, 1, second, b, opts...); err != nil {
		return 0, fmt.Errorf("Posv: %w", err)
	}
	return 0, nil
}

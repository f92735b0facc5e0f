// SPDX-License-Identifier: MIT

// Package tile - single-tile kernels over gonum BLAS / LAPACK.
//
// Every kernel works on logical operands: the op / uplo tags of the tiles
// decide what is computed, the layout only decides how gonum is called.
// When the output tile is seen by gonum as a transpose, the whole operation
// is transposed instead of the data.

package tile

import (
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/lapack"
	"gonum.org/v1/gonum/lapack/gonum"
)

var lapack64 gonum.Implementation

// Gemm computes C = alpha*A*B + beta*C on logical operands.
//
// Errors:
//   - ErrDimensionMismatch.
//
// Complexity:
//   - Time O(m*n*k).
func Gemm(alpha float64, a, b Tile, beta float64, c Tile) error {
	// 1. Validate extents.
	m, n, k := c.Mb(), c.Nb(), a.Nb()
	if a.Mb() != m || b.Nb() != n || b.Mb() != k {
		return tileErrorf("Gemm", ErrDimensionMismatch)
	}
	if m == 0 || n == 0 {
		return nil
	}
	if k == 0 {
		Scale(beta, c)
		return nil
	}

	// 2. Dispatch on how gonum sees C.
	ga, ta, _ := a.general()
	gb, tb, _ := b.general()
	gc, tc, _ := c.general()
	if !tc {
		blas64.Gemm(blasTrans(ta), blasTrans(tb), alpha, ga, gb, beta, gc)
		return nil
	}
	// C^T = alpha*B^T*A^T + beta*C^T
	blas64.Gemm(blasTrans(!tb), blasTrans(!ta), alpha, gb, ga, beta, gc)
	return nil
}

// Herk computes C = alpha*A*A^H + beta*C on the stored triangle of C.
// For real data this is a symmetric rank-k update.
//
// Errors:
//   - ErrNonSquare, ErrNotTriangular, ErrDimensionMismatch.
func Herk(alpha float64, a Tile, beta float64, c Tile) error {
	// 1. Validate.
	n, k := c.Mb(), a.Nb()
	if c.Nb() != n {
		return tileErrorf("Herk", ErrNonSquare)
	}
	if c.Uplo() == General {
		return tileErrorf("Herk", ErrNotTriangular)
	}
	if a.Mb() != n {
		return tileErrorf("Herk", ErrDimensionMismatch)
	}
	if n == 0 {
		return nil
	}
	if k == 0 {
		scaleTriangle(beta, c)
		return nil
	}

	// 2. C is symmetric, so updating gonum's view (C or C^T) is the same
	// as long as the triangle seen by gonum is passed.
	ga, ta, _ := a.general()
	gc, _, cu := c.general()
	sc := blas64.Symmetric{Uplo: blasUplo(cu), N: n, Stride: gc.Stride, Data: gc.Data}
	blas64.Syrk(blasTrans(ta), alpha, ga, beta, sc)
	return nil
}

// Trsm solves op(A)*X = alpha*B (Left) or X*op(A) = alpha*B (Right) where A
// is triangular; X overwrites B. The op of A is read from its tag.
//
// Errors:
//   - ErrNonSquare, ErrNotTriangular, ErrDimensionMismatch.
func Trsm(side Side, diag Diag, alpha float64, a, b Tile) error {
	// 1. Validate.
	n := a.Mb()
	if a.Nb() != n {
		return tileErrorf("Trsm", ErrNonSquare)
	}
	if a.Uplo() == General {
		return tileErrorf("Trsm", ErrNotTriangular)
	}
	if (side == Left && b.Mb() != n) || (side == Right && b.Nb() != n) {
		return tileErrorf("Trsm", ErrDimensionMismatch)
	}
	if b.Empty() {
		return nil
	}

	// 2. Solve on gonum's view of B.
	ga, ta, au := a.general()
	tri := blas64.Triangular{Uplo: blasUplo(au), Diag: blasDiag(diag), N: n, Stride: ga.Stride, Data: ga.Data}
	gb, tb, _ := b.general()
	if !tb {
		blas64.Trsm(blasSide(side), blasTrans(ta), alpha, tri, gb)
		return nil
	}
	// X^T op(A)^T = alpha*B^T and the mirror for Right.
	blas64.Trsm(blasSide(side.Flip()), blasTrans(!ta), alpha, tri, gb)
	return nil
}

// Potrf computes the Cholesky factor of the stored triangle of A in place:
// A = L*L^H for Lower, A = U^H*U for Upper. ib is the inner blocking size.
//
// Returns:
//   - info: 0 on success, else the 1-based index of the first leading minor
//     that is not positive definite. The factor is valid before that column.
//
// Errors:
//   - ErrNonSquare, ErrNotTriangular.
//
// Complexity:
//   - Time O(n^3/3).
func Potrf(a Tile, ib int) (info int, err error) {
	n := a.Mb()
	if a.Nb() != n {
		return 0, tileErrorf("Potrf", ErrNonSquare)
	}
	if a.Uplo() == General {
		return 0, tileErrorf("Potrf", ErrNotTriangular)
	}
	if n == 0 {
		return 0, nil
	}
	ib = max(1, ib)

	// A is symmetric; factor gonum's view with the triangle it sees.
	g, _, u := a.general()
	return potrfBlocked(u, n, g.Data, g.Stride, ib), nil
}

// potrfBlocked is a right-looking blocked Cholesky on row-major storage.
func potrfBlocked(u Uplo, n int, a []float64, ld, ib int) int {
	for k := 0; k < n; k += ib {
		kb := min(ib, n-k)
		if info := potf2(u, kb, a[k*ld+k:], ld); info > 0 {
			return k + info
		}
		r := n - k - kb
		if r == 0 {
			break
		}
		diag := blas64.Triangular{Uplo: blasUplo(u), Diag: blas.NonUnit, N: kb, Stride: ld, Data: a[k*ld+k:]}
		if u == Lower {
			// A21 = A21 * L11^-T ; A22 -= A21 * A21^T
			a21 := blas64.General{Rows: r, Cols: kb, Stride: ld, Data: a[(k+kb)*ld+k:]}
			blas64.Trsm(blas.Right, blas.Trans, 1, diag, a21)
			blas64.Syrk(blas.NoTrans, -1, a21, 1,
				blas64.Symmetric{Uplo: blas.Lower, N: r, Stride: ld, Data: a[(k+kb)*ld+k+kb:]})
			continue
		}
		// A12 = U11^-T * A12 ; A22 -= A12^T * A12
		a12 := blas64.General{Rows: kb, Cols: r, Stride: ld, Data: a[k*ld+k+kb:]}
		blas64.Trsm(blas.Left, blas.Trans, 1, diag, a12)
		blas64.Syrk(blas.Trans, -1, a12, 1,
			blas64.Symmetric{Uplo: blas.Upper, N: r, Stride: ld, Data: a[(k+kb)*ld+k+kb:]})
	}
	return 0
}

// potf2 is the unblocked Cholesky on row-major storage.
func potf2(u Uplo, n int, a []float64, ld int) int {
	for j := 0; j < n; j++ {
		var prev blas64.Vector // already computed part of row / column j
		if u == Lower {
			prev = blas64.Vector{N: j, Inc: 1, Data: a[j*ld:]}
		} else {
			prev = blas64.Vector{N: j, Inc: ld, Data: a[j:]}
		}
		ajj := a[j*ld+j]
		if j > 0 {
			ajj -= blas64.Dot(prev, prev)
		}
		if ajj <= 0 || math.IsNaN(ajj) {
			a[j*ld+j] = ajj
			return j + 1
		}
		ajj = math.Sqrt(ajj)
		a[j*ld+j] = ajj

		r := n - j - 1
		if r == 0 {
			continue
		}
		if u == Lower {
			col := blas64.Vector{N: r, Inc: ld, Data: a[(j+1)*ld+j:]}
			if j > 0 {
				blas64.Gemv(blas.NoTrans, -1,
					blas64.General{Rows: r, Cols: j, Stride: ld, Data: a[(j+1)*ld:]}, prev, 1, col)
			}
			blas64.Scal(1/ajj, col)
			continue
		}
		row := blas64.Vector{N: r, Inc: 1, Data: a[j*ld+j+1:]}
		if j > 0 {
			blas64.Gemv(blas.Trans, -1,
				blas64.General{Rows: j, Cols: r, Stride: ld, Data: a[j+1:]}, prev, 1, row)
		}
		blas64.Scal(1/ajj, row)
	}
	return 0
}

// Scale computes A = alpha*A over the whole physical extent.
func Scale(alpha float64, a Tile) {
	if alpha == 1 || a.Empty() {
		return
	}
	g, _, _ := a.general()
	if alpha == 0 {
		for r := 0; r < g.Rows; r++ {
			clear(g.Data[r*g.Stride : r*g.Stride+g.Cols])
		}
		return
	}
	lapack64.Dlascl(lapack.General, 0, 0, 1, alpha, g.Rows, g.Cols, g.Data, g.Stride)
}

// scaleTriangle scales only the stored triangle of a symmetric tile.
func scaleTriangle(alpha float64, a Tile) {
	for j := 0; j < a.Nb(); j++ {
		for i := 0; i < a.Mb(); i++ {
			if a.inTriangle(i, j) {
				a.Set(i, j, alpha*a.At(i, j))
			}
		}
	}
}

// Set writes offdiag to every off-diagonal element and diag to the diagonal
// of the logical tile, restricted to its stored triangle.
func Set(offdiag, diag float64, a Tile) {
	for j := 0; j < a.Nb(); j++ {
		for i := 0; i < a.Mb(); i++ {
			switch {
			case i == j:
				a.Set(i, j, diag)
			case a.inTriangle(i, j):
				a.Set(i, j, offdiag)
			}
		}
	}
}

// Add computes B = alpha*A + beta*B elementwise on logical operands.
func Add(alpha float64, a Tile, beta float64, b Tile) error {
	if a.Mb() != b.Mb() || a.Nb() != b.Nb() {
		return tileErrorf("Add", ErrDimensionMismatch)
	}
	for j := 0; j < b.Nb(); j++ {
		for i := 0; i < b.Mb(); i++ {
			b.Set(i, j, alpha*a.At(i, j)+beta*b.At(i, j))
		}
	}
	return nil
}

// Copy writes the logical contents of src into dst.
func Copy(src, dst Tile) error {
	if src.Mb() != dst.Mb() || src.Nb() != dst.Nb() {
		return tileErrorf("Copy", ErrDimensionMismatch)
	}
	if src.op == dst.op && src.layout == dst.layout {
		// same orientation: copy physical columns / rows
		g, _, _ := src.general()
		h, _, _ := dst.general()
		for r := 0; r < g.Rows; r++ {
			copy(h.Data[r*h.Stride:r*h.Stride+g.Cols], g.Data[r*g.Stride:r*g.Stride+g.Cols])
		}
		return nil
	}
	for j := 0; j < dst.Nb(); j++ {
		for i := 0; i < dst.Mb(); i++ {
			dst.Set(i, j, src.At(i, j))
		}
	}
	return nil
}

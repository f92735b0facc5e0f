// SPDX-License-Identifier: MIT

package tile

import (
	"math"

	"gonum.org/v1/gonum/lapack"
)

// MaxAbs returns max |a_ij| over the stored part of the logical tile.
// Unit-diagonal tiles count their diagonal as 1.
func MaxAbs(a Tile) float64 {
	if a.Empty() {
		return 0
	}
	g, _, u := a.general()
	switch {
	case a.Uplo() == General:
		return lapack64.Dlange(lapack.MaxAbs, g.Rows, g.Cols, g.Data, g.Stride, nil)
	case a.Mb() == a.Nb() && a.diag == NonUnit:
		return lapack64.Dlantr(lapack.MaxAbs, blasUplo(u), blasDiag(a.diag), g.Rows, g.Cols, g.Data, g.Stride, nil)
	}
	// rectangular triangle or unit diagonal
	v := 0.0
	visit(a, func(_, _ int, x float64) { v = math.Max(v, math.Abs(x)) })
	return v
}

// SumSquares returns the sum of squares over the stored part of the tile.
func SumSquares(a Tile) float64 {
	if a.Empty() {
		return 0
	}
	if a.Uplo() == General {
		g, _, _ := a.general()
		f := lapack64.Dlange(lapack.Frobenius, g.Rows, g.Cols, g.Data, g.Stride, nil)
		return f * f
	}
	s := 0.0
	visit(a, func(_, _ int, x float64) { s += x * x })
	return s
}

// ColSums adds sum_i |a_ij| for the stored part of the tile into out[j].
func ColSums(a Tile, out []float64) {
	visit(a, func(_, j int, x float64) { out[j] += math.Abs(x) })
}

// RowSums adds sum_j |a_ij| for the stored part of the tile into out[i].
func RowSums(a Tile, out []float64) {
	visit(a, func(i, _ int, x float64) { out[i] += math.Abs(x) })
}

// visit calls fn on every logical element in the stored part of a.
func visit(a Tile, fn func(i, j int, x float64)) {
	for j := 0; j < a.Nb(); j++ {
		for i := 0; i < a.Mb(); i++ {
			if !a.inTriangle(i, j) {
				continue
			}
			x := a.At(i, j)
			if i == j && a.diag == Unit && a.Uplo() != General {
				x = 1
			}
			fn(i, j, x)
		}
	}
}

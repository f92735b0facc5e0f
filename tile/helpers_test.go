package tile_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/tilegrid/tile"
)

const eps = 1e-12

// MustNew builds a tile over a fresh buffer with the given padding of the
// leading stride, filled with deterministic values.
func MustNew(t *testing.T, rng *rand.Rand, mb, nb, pad int, layout tile.Layout) tile.Tile {
	t.Helper()
	lead := mb
	if layout == tile.RowMajor {
		lead = nb
	}
	stride := max(1, lead) + pad
	n := max(mb, 1) * stride
	if layout == tile.ColMajor {
		n = max(nb, 1) * stride
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	a, err := tile.New(mb, nb, data, stride, layout, tile.HostNum, tile.Owned)
	require.NoError(t, err)
	return a
}

// MustSPD builds an n×n symmetric positive definite tile.
func MustSPD(t *testing.T, rng *rand.Rand, n int, layout tile.Layout) tile.Tile {
	t.Helper()
	a := tile.Alloc(n, n, layout, tile.HostNum, tile.Owned)
	b := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			b.Set(i, j, rng.Float64()-0.5)
		}
	}
	var s mat.Dense
	s.Mul(b, b.T())
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := s.At(i, j)
			if i == j {
				v += float64(n)
			}
			a.Set(i, j, v)
		}
	}
	return a
}

// toDense copies the logical tile into a gonum matrix.
func toDense(a tile.Tile) *mat.Dense {
	d := mat.NewDense(max(a.Mb(), 1), max(a.Nb(), 1), nil)
	for i := 0; i < a.Mb(); i++ {
		for j := 0; j < a.Nb(); j++ {
			d.Set(i, j, a.At(i, j))
		}
	}
	return d
}

// requireClose compares two gonum matrices elementwise relative to the
// largest magnitude.
func requireClose(t *testing.T, want, got mat.Matrix, tol float64) {
	t.Helper()
	r, c := want.Dims()
	gr, gc := got.Dims()
	require.Equal(t, r, gr)
	require.Equal(t, c, gc)
	scale := math.Max(1, mat.Norm(want, math.Inf(1)))
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			require.InDelta(t, want.At(i, j), got.At(i, j), tol*scale, "(%d,%d)", i, j)
		}
	}
}

// triangle zeroes the part of d outside uplo.
func triangle(d *mat.Dense, uplo tile.Uplo) *mat.Dense {
	r, c := d.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if (uplo == tile.Lower && i >= j) || (uplo == tile.Upper && i <= j) || uplo == tile.General {
				out.Set(i, j, d.At(i, j))
			}
		}
	}
	return out
}

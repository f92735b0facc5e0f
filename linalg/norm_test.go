package linalg_test

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/tilegrid/comm"
	"github.com/katalvlaran/tilegrid/dispatch"
	"github.com/katalvlaran/tilegrid/linalg"
	"github.com/katalvlaran/tilegrid/matrix"
	"github.com/katalvlaran/tilegrid/tile"
)

// reference norms of a dense matrix
func referenceNorm(n tile.Norm, a mat.Matrix) float64 {
	switch n {
	case tile.NormOne:
		return mat.Norm(a, 1)
	case tile.NormInf:
		return mat.Norm(a, math.Inf(1))
	case tile.NormFro:
		return mat.Norm(a, 2)
	}
	r, c := a.Dims()
	m := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m = math.Max(m, math.Abs(a.At(i, j)))
		}
	}
	return m
}

var norms = []tile.Norm{tile.NormMax, tile.NormOne, tile.NormInf, tile.NormFro}

func TestNorm_Views(t *testing.T) {
	rng := rand.New(rand.NewSource(51))
	G := randomDense(rng, 10, 7)

	// S is symmetric; H stores its lower triangle over junk
	R := randomDense(rng, 9, 9)
	var S mat.Dense
	S.Add(R, R.T())
	H := mat.DenseCopyOf(&S)
	for i := 0; i < 9; i++ {
		for j := i + 1; j < 9; j++ {
			H.Set(i, j, 1e3)
		}
	}

	// T is unit lower triangular with a junk diagonal and upper part
	T := mat.DenseCopyOf(H)
	unit := triangle(&S, true)
	for i := 0; i < 9; i++ {
		T.Set(i, i, 1e3)
		unit.Set(i, i, 1)
	}

	cases := []struct {
		name string
		src  *mat.Dense
		view func(matrix.Matrix) matrix.Matrix
		want mat.Matrix
	}{
		{"general", G, func(a matrix.Matrix) matrix.Matrix { return a }, G},
		{"transposed", G, matrix.Transpose, G.T()},
		{"hermitian", H, func(a matrix.Matrix) matrix.Matrix { return a.AsHermitian(tile.Lower) }, &S},
		{"triangular", T, func(a matrix.Matrix) matrix.Matrix { return a.AsTriangular(tile.Lower, tile.Unit) }, unit},
	}
	for _, tc := range cases {
		for _, n := range norms {
			t.Run(fmt.Sprintf("%s/%d", tc.name, n), func(t *testing.T) {
				want := referenceNorm(n, tc.want)
				runRanks(t, 4, func(ctx context.Context, c comm.Communicator) error {
					a, err := distribute(c, tc.src, 3, 2, 2, nil)
					if err != nil {
						return err
					}
					got, err := linalg.Norm(ctx, n, tc.view(a), opts(dispatch.HostTask)...)
					if err != nil {
						return err
					}
					if math.Abs(got-want) > tol*math.Max(1, want) {
						return fmt.Errorf("rank %d: got %g, want %g", c.Rank(), got, want)
					}
					return nil
				})
			})
		}
	}
}

func TestNorm_ReadsDeviceResults(t *testing.T) {
	rng := rand.New(rand.NewSource(52))
	G := randomDense(rng, 6, 6)
	devs, closeDevs := rankDevices(dispatch.Devices)
	defer closeDevs()
	ctx := context.Background()
	a, err := distribute(comm.NewLocalWorld(1).Comm(0), G, 2, 1, 1, devs)
	require.NoError(t, err)

	// scale on the devices, then read back through the norm
	d := dispatch.New(dispatch.Devices, 1)
	defer d.Close()
	a.AllocateBatchArrays(1)
	require.NoError(t, d.Scale(ctx, -2, a, 0))

	got, err := linalg.Norm(ctx, tile.NormMax, a, opts(dispatch.Devices)...)
	require.NoError(t, err)
	assert.InDelta(t, 2*referenceNorm(tile.NormMax, G), got, tol)
}

func TestNorm_CanceledContext(t *testing.T) {
	c := comm.NewLocalWorld(1).Comm(0)
	a, err := distribute(c, randomDense(rand.New(rand.NewSource(53)), 4, 4), 2, 1, 1, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = linalg.Norm(ctx, tile.NormFro, a, opts(linalg.DefaultTarget)...)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNorm_Invalid(t *testing.T) {
	a, err := matrix.New(2, 2, 1, 1, 1, 1, comm.NewLocalWorld(1).Comm(0))
	require.NoError(t, err)
	_, err = linalg.Norm(context.Background(), tile.Norm(42), a)
	assert.ErrorIs(t, err, linalg.ErrInvalidNorm)
}

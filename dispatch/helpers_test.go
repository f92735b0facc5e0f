package dispatch_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/tilegrid/comm"
	"github.com/katalvlaran/tilegrid/matrix"
)

const tol = 1e-12

// runRanks runs fn once per rank of a fresh world and fails on the first
// error.
func runRanks(t *testing.T, n int, fn func(ctx context.Context, c comm.Communicator) error) *comm.World {
	t.Helper()
	w := comm.NewLocalWorld(n)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < n; r++ {
		c := w.Comm(r)
		g.Go(func() error { return fn(gctx, c) })
	}
	require.NoError(t, g.Wait())
	return w
}

func randomDense(rng *rand.Rand, r, c int) *mat.Dense {
	d := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d.Set(i, j, rng.Float64()-0.5)
		}
	}
	return d
}

// lowerTriangle returns an n×n well conditioned lower triangular matrix.
func lowerTriangle(rng *rand.Rand, n int) *mat.Dense {
	d := randomDense(rng, n, n)
	for i := 0; i < n; i++ {
		d.Set(i, i, 4+d.At(i, i))
		for j := i + 1; j < n; j++ {
			d.Set(i, j, 0)
		}
	}
	return d
}

// load allocates the local origins of a and copies src into them.
func load(a matrix.Matrix, src mat.Matrix) error {
	if err := a.InsertLocalTiles(false); err != nil {
		return err
	}
	return a.ForEachLocal(func(i, j int) error {
		t, err := a.Tile(i, j)
		if err != nil {
			return err
		}
		r0, c0 := offset(a.TileMb, i), offset(a.TileNb, j)
		for jj := 0; jj < t.Nb(); jj++ {
			for ii := 0; ii < t.Mb(); ii++ {
				t.Set(ii, jj, src.At(r0+ii, c0+jj))
			}
		}
		return nil
	})
}

func offset(size func(int) int, k int) int {
	o := 0
	for x := 0; x < k; x++ {
		o += size(x)
	}
	return o
}

// gather assembles a on every rank as a dense matrix.
func gather(ctx context.Context, a matrix.Matrix) (*mat.Dense, error) {
	flat, err := a.Gather(ctx)
	if err != nil {
		return nil, err
	}
	m, n := a.M(), a.N()
	d := mat.NewDense(m, n, nil)
	for j := 0; j < n; j++ {
		for i := 0; i < m; i++ {
			d.Set(i, j, flat[i+j*m])
		}
	}
	return d, nil
}

// triangle keeps the lower (lower=true) or upper triangle of d.
func triangle(d *mat.Dense, lower bool) *mat.Dense {
	r, c := d.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if (lower && i >= j) || (!lower && i <= j) {
				out.Set(i, j, d.At(i, j))
			}
		}
	}
	return out
}

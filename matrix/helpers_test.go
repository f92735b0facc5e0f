package matrix_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/tilegrid/comm"
	"github.com/katalvlaran/tilegrid/matrix"
	"github.com/katalvlaran/tilegrid/tile"
)

// runRanks runs fn once per rank of a fresh world and fails on the first
// error. It returns the world so callers can check for stray messages.
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

// value is the deterministic element (r, c) used to fill test matrices.
func value(r, c int) float64 { return float64(r*100 + c) }

// fill allocates the local origins of a storage-level view and writes
// value(r, c) at every global element.
func fill(a matrix.Matrix) error {
	if err := a.InsertLocalTiles(false); err != nil {
		return err
	}
	return a.ForEachLocal(func(i, j int) error {
		t, err := a.Tile(i, j)
		if err != nil {
			return err
		}
		r0, c0 := rowOffset(a, i), colOffset(a, j)
		for jj := 0; jj < t.Nb(); jj++ {
			for ii := 0; ii < t.Mb(); ii++ {
				t.Set(ii, jj, value(r0+ii, c0+jj))
			}
		}
		return nil
	})
}

func rowOffset(a matrix.Matrix, i int) int {
	r := 0
	for k := 0; k < i; k++ {
		r += a.TileMb(k)
	}
	return r
}

func colOffset(a matrix.Matrix, j int) int {
	c := 0
	for k := 0; k < j; k++ {
		c += a.TileNb(k)
	}
	return c
}

// MustSingle builds a filled matrix on a one-rank world.
func MustSingle(t *testing.T, m, n, mb, nb int, opts ...matrix.Option) matrix.Matrix {
	t.Helper()
	a, err := matrix.New(m, n, mb, nb, 1, 1, comm.NewLocalWorld(1).Comm(0), opts...)
	require.NoError(t, err)
	require.NoError(t, fill(a))
	return a
}

// sameTile reports whether two tiles hold equal logical values.
func sameTile(a, b tile.Tile) bool {
	if a.Mb() != b.Mb() || a.Nb() != b.Nb() {
		return false
	}
	for j := 0; j < a.Nb(); j++ {
		for i := 0; i < a.Mb(); i++ {
			if a.At(i, j) != b.At(i, j) {
				return false
			}
		}
	}
	return true
}

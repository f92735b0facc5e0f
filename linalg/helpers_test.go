package linalg_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/tilegrid/comm"
	"github.com/katalvlaran/tilegrid/device"
	"github.com/katalvlaran/tilegrid/dispatch"
	"github.com/katalvlaran/tilegrid/linalg"
	"github.com/katalvlaran/tilegrid/matrix"
)

const tol = 1e-10

var targets = []dispatch.Target{dispatch.HostTask, dispatch.HostNest, dispatch.HostBatch, dispatch.Devices}

// runRanks runs fn once per rank of a fresh world and fails on the first
// error. It returns the world so callers can check for stray messages.
func runRanks(t *testing.T, n int, fn func(ctx context.Context, c comm.Communicator) error) *comm.World {
	t.Helper()
	w := comm.NewLocalWorld(n)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < n; r++ {
		c := w.Comm(r)
		g.Go(func() error { return fn(gctx, c) })
	}
	require.NoError(t, g.Wait())
	return w
}

// opts are the options every test call passes: a fatal handler that keeps
// the test binary alive plus the target.
func opts(target dispatch.Target, extra ...linalg.Option) []linalg.Option {
	return append([]linalg.Option{
		linalg.WithTarget(target),
		linalg.WithWorkers(2),
		linalg.WithFatalHandler(func(error) {}),
	}, extra...)
}

// rankDevices gives one rank its own devices when the target needs them.
// The returned func closes them.
func rankDevices(target dispatch.Target) ([]*device.Device, func()) {
	if target != dispatch.Devices {
		return nil, func() {}
	}
	devs := device.Enumerate(2, device.WithCapacity(1<<20))
	return devs, func() {
		for _, d := range devs {
			_ = d.Close()
		}
	}
}

// distribute builds src over a p×q grid of nb×nb tiles and loads it.
func distribute(c comm.Communicator, src mat.Matrix, nb, p, q int, devs []*device.Device) (matrix.Matrix, error) {
	r, cols := src.Dims()
	a, err := matrix.New(r, cols, nb, nb, p, q, c, matrix.WithDevices(devs...))
	if err != nil {
		return matrix.Matrix{}, err
	}
	return a, load(a, src)
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

// spd returns an n×n symmetric positive definite matrix.
func spd(rng *rand.Rand, n int) *mat.SymDense {
	var s mat.SymDense
	s.SymOuterK(1, randomDense(rng, n, n))
	for i := 0; i < n; i++ {
		s.SetSym(i, i, s.At(i, i)+float64(n))
	}
	return &s
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
func triangle(d mat.Matrix, lower bool) *mat.Dense {
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

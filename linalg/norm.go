// SPDX-License-Identifier: MIT

package linalg

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/tilegrid/comm"
	"github.com/katalvlaran/tilegrid/matrix"
	"github.com/katalvlaran/tilegrid/tile"
)

// Norm returns the norm n of a on every rank. Hermitian views count the
// implied triangle; triangular views count only the stored one, with a
// Unit diagonal read as ones. Every rank of a's communicator must call it.
//
// Errors:
//   - ErrInvalidNorm for an unknown n.
//   - Tile access and transport errors.
func Norm(ctx context.Context, n tile.Norm, a matrix.Matrix, opts ...Option) (float64, error) {
	o := gatherOptions(opts...)
	var (
		acc  []float64 // one slot for Max and Fro, one per row or column otherwise
		fold func(t tile.Tile, i, j int)
	)
	herm := a.Kind() == matrix.Hermitian
	roff, coff := offsets(a.Mt(), a.TileMb), offsets(a.Nt(), a.TileNb)

	// 1. Pick the local accumulation.
	switch n {
	case tile.NormMax:
		acc = []float64{0}
		fold = func(t tile.Tile, _, _ int) { acc[0] = math.Max(acc[0], tile.MaxAbs(t)) }
	case tile.NormFro:
		acc = []float64{0}
		fold = func(t tile.Tile, i, j int) {
			s := tile.SumSquares(t)
			if herm {
				// mirrored elements count twice, the diagonal once
				s *= 2
				if i == j {
					for d := 0; d < min(t.Mb(), t.Nb()); d++ {
						s -= t.At(d, d) * t.At(d, d)
					}
				}
			}
			acc[0] += s
		}
	case tile.NormOne, tile.NormInf:
		sums, mirror := tile.ColSums, tile.RowSums
		off, moff := coff, roff
		size := a.N()
		if n == tile.NormInf {
			sums, mirror = mirror, sums
			off, moff = moff, off
			size = a.M()
		}
		acc = make([]float64, size)
		fold = func(t tile.Tile, i, j int) {
			at, mi := j, i
			if n == tile.NormInf {
				at, mi = i, j
			}
			sums(t, acc[off[at]:off[at+1]])
			if !herm {
				return
			}
			mirror(t, acc[moff[mi]:moff[mi+1]])
			if i == j {
				for d := 0; d < min(t.Mb(), t.Nb()); d++ {
					acc[off[at]+d] -= math.Abs(t.At(d, d))
				}
			}
		}
	default:
		return 0, fmt.Errorf("Norm(%d): %w", n, ErrInvalidNorm)
	}

	// 2. Read local tiles concurrently, fold them one at a time.
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(o.Workers)
	err := a.ForEachLocal(func(i, j int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		g.Go(func() error {
			t, err := a.TileGetForReading(i, j, tile.HostNum, tile.ConvertNone)
			if err != nil {
				return err
			}
			mu.Lock()
			fold(t, i, j)
			mu.Unlock()
			return nil
		})
		return nil
	})
	if werr := g.Wait(); err == nil {
		err = werr
	}
	if err != nil {
		return 0, fmt.Errorf("Norm: %w", err)
	}

	// 3. Combine across ranks.
	c := a.Comm()
	tag := comm.Tag{Stream: c.NextStream()}
	if c.Size() > 1 {
		if n == tile.NormMax {
			err = comm.AllreduceMax(ctx, c, tag, acc)
		} else {
			err = comm.AllreduceSum(ctx, c, tag, acc)
		}
		if err != nil {
			return 0, fmt.Errorf("Norm: %w", err)
		}
	}
	switch n {
	case tile.NormFro:
		return math.Sqrt(acc[0]), nil
	case tile.NormMax:
		return acc[0], nil
	}
	if len(acc) == 0 {
		return 0, nil
	}
	return slices.Max(acc), nil
}

// offsets returns the prefix sums of size(0..n-1), starting at 0.
func offsets(n int, size func(int) int) []int {
	off := make([]int, n+1)
	for k := 0; k < n; k++ {
		off[k+1] = off[k] + size(k)
	}
	return off
}

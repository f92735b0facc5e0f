// SPDX-License-Identifier: MIT

package linalg

import (
	"context"
	"fmt"
	"sync/atomic"

	"k8s.io/klog/v2"

	"github.com/katalvlaran/tilegrid/comm"
	"github.com/katalvlaran/tilegrid/dispatch"
	"github.com/katalvlaran/tilegrid/matrix"
	"github.com/katalvlaran/tilegrid/sched"
	"github.com/katalvlaran/tilegrid/tile"
)

// Potrf computes the Cholesky factorization of the Hermitian positive
// definite matrix a in place: A = L*L^H for Lower storage, A = U^H*U for
// Upper. Every rank of a's communicator must call it.
//
// Steps per column k:
//  1. Panel (high priority): factor a(k, k), share the status with every
//     rank, broadcast a(k, k) down the column, solve the panel and
//     broadcast each panel tile a(i, k) to row i and column i.
//  2. Lookahead (high priority): update columns k+1..k+la.
//  3. Trailing (normal priority): update the rest with one Herk.
//  4. Cleanup: commit column k to its origins, release the holds on its
//     shared device copies and drop its remote copies.
//
// Returns:
//   - info: 0 on success, else the 1-based global index of the first
//     leading minor that is not positive definite. The factor is valid
//     before that column.
//
// Errors:
//   - ErrNoTriangle, ErrNotSquare before any work.
//   - The first task error; the fatal handler has run by then.
func Potrf(ctx context.Context, a matrix.Matrix, opts ...Option) (int, error) {
	o := gatherOptions(opts...)

	// 1. Validate and normalize to Lower.
	if a.Uplo() == tile.General {
		return 0, fmt.Errorf("Potrf: %w", ErrNoTriangle)
	}
	if a.Mt() != a.Nt() || a.M() != a.N() {
		return 0, fmt.Errorf("Potrf: %w", ErrNotSquare)
	}
	if a.Uplo() == tile.Upper {
		a = matrix.ConjTranspose(a)
	}
	a = a.AsHermitian(tile.Lower)
	mt := a.Mt()
	if mt == 0 {
		return 0, nil
	}
	for k := 0; k < mt; k++ {
		if a.TileMb(k) != a.TileNb(k) {
			return 0, fmt.Errorf("Potrf: tile %d: %w", k, ErrNotSquare)
		}
	}

	// 2. Graph, tokens and a comm stream for the status broadcasts.
	p, err := newPlan(ctx, "Potrf", o, a)
	if err != nil {
		return 0, err
	}
	c := a.Comm()
	status := c.NextStream()
	ranks := comm.Ranks(c.Size())
	layout := a.Layout()
	cols := p.g.Tokens(mt)
	var info atomic.Int64

	// Panel tiles go out in parallel. With lookahead on devices they also
	// stay resident and held there until the column is cleaned up.
	bcastOpts := []matrix.BcastOption{matrix.WithConcurrentEntries()}
	shared := o.Target == dispatch.Devices && o.Lookahead > 0
	if shared {
		bcastOpts = append(bcastOpts, matrix.WithDeviceCopies())
	}

	// 3. Sweep.
	for _, st := range sched.Sweep(mt, o.Lookahead, sched.Forward) {
		k := st.K
		p.submit(sched.Task{
			Name:     fmt.Sprintf("potrf.panel(%d)", k),
			Priority: sched.High,
			InOut:    []*sched.Token{cols[k]},
			Run: func(ctx context.Context) error {
				if info.Load() > 0 {
					return nil
				}
				// 3.1 Factor and share the status.
				akk := a.Sub(k, k, k, k)
				local, err := p.d.Potrf(ctx, akk, o.InnerBlocking)
				if err != nil {
					return err
				}
				buf := []float64{float64(local)}
				tag := comm.Tag{Stream: status, Seq: int64(k)}
				if err := comm.Bcast(ctx, c, a.TileRank(k, k), ranks, tag, buf); err != nil {
					return err
				}
				if buf[0] > 0 {
					info.Store(int64(rowOffset(a, k) + int(buf[0])))
					return nil
				}
				if k == mt-1 {
					return nil
				}

				// 3.2 Panel solve: A(k+1:, k) = A(k+1:, k) * L(k, k)^-H.
				panel := a.Sub(k+1, mt-1, k, k)
				if err := a.TileBcast(ctx, k, k, panel, layout, k); err != nil {
					return err
				}
				if err := p.d.Trsm(ctx, tile.Right, tile.NonUnit, 1, matrix.ConjTranspose(akk), panel, p.panelQueue()); err != nil {
					return err
				}

				// 3.3 a(i, k) feeds row i left of the diagonal and column i.
				list := make(matrix.BcastList, 0, mt-k-1)
				for i := k + 1; i < mt; i++ {
					list = append(list, matrix.BcastEntry{
						I: i, J: k,
						Dests: []matrix.Matrix{a.Sub(i, i, k+1, i), a.Sub(i, mt-1, i, i)},
						Tag:   i,
					})
				}
				return a.ListBcast(ctx, list, layout, bcastOpts...)
			},
		})

		for l, j := range st.Lookahead {
			p.submit(sched.Task{
				Name:     fmt.Sprintf("potrf.lookahead(%d,%d)", k, j),
				Priority: sched.High,
				In:       []*sched.Token{cols[k]},
				InOut:    []*sched.Token{cols[j]},
				Run: func(ctx context.Context) error {
					if info.Load() > 0 {
						return nil
					}
					q := p.lookaheadQueue(l)
					ajk := a.Sub(j, j, k, k)
					if err := p.d.Herk(ctx, -1, ajk, 1, a.Sub(j, j, j, j), q); err != nil {
						return err
					}
					if j == mt-1 {
						return nil
					}
					return p.d.Gemm(ctx, -1, a.Sub(j+1, mt-1, k, k), matrix.ConjTranspose(ajk), 1, a.Sub(j+1, mt-1, j, j), q)
				},
			})
		}

		if len(st.Trailing) > 0 {
			first, last := st.First(), st.Last()
			p.submit(sched.Task{
				Name:  fmt.Sprintf("potrf.trailing(%d)", k),
				In:    []*sched.Token{cols[k]},
				InOut: []*sched.Token{cols[first], cols[last]},
				Run: func(ctx context.Context) error {
					if info.Load() > 0 {
						return nil
					}
					return p.d.Herk(ctx, -1, a.Sub(first, mt-1, k, k), 1, a.Sub(first, mt-1, first, mt-1), p.trailingQueue())
				},
			})
		}

		p.submit(sched.Task{
			Name:  fmt.Sprintf("potrf.cleanup(%d)", k),
			InOut: []*sched.Token{cols[k]},
			Run: func(context.Context) error {
				col := a.Sub(k, mt-1, k, k)
				if shared {
					col.UnsetAllHolds()
				}
				col.EraseRemoteWorkspace()
				return col.TileUpdateAllOrigin()
			},
		})
	}

	// 4. Wait and release.
	if err := p.finish(); err != nil {
		return 0, err
	}
	if n := int(info.Load()); n > 0 {
		klog.Warningf("linalg: Potrf: leading minor %d is not positive definite", n)
		return n, nil
	}
	return 0, nil
}

// SPDX-License-Identifier: MIT

package linalg

import (
	"context"
	"fmt"
	"slices"

	"github.com/katalvlaran/tilegrid/matrix"
	"github.com/katalvlaran/tilegrid/sched"
	"github.com/katalvlaran/tilegrid/tile"
)

// solve is the normalized form of a triangular solve: always Left, with
// the sweep direction taken from the triangle of a.
type solve struct {
	a, b  matrix.Matrix
	alpha float64
	dir   sched.Direction
}

// newSolve validates op(a)*X = alpha*b (Left) or X*op(a) = alpha*b (Right)
// and rewrites Right as the Left solve of the transposed problem.
func newSolve(op string, side tile.Side, alpha float64, a, b matrix.Matrix) (solve, error) {
	if a.Uplo() == tile.General {
		return solve{}, fmt.Errorf("%s: %w", op, ErrNoTriangle)
	}
	if a.Mt() != a.Nt() || a.M() != a.N() {
		return solve{}, fmt.Errorf("%s: %w", op, ErrNotSquare)
	}
	if side == tile.Right {
		a, b = matrix.Transpose(a), matrix.Transpose(b)
	}
	if a.Mt() != b.Mt() || a.M() != b.M() {
		return solve{}, fmt.Errorf("%s: %w", op, ErrDimensionMismatch)
	}
	s := solve{a: a, b: b, alpha: alpha, dir: sched.Forward}
	if a.Uplo() == tile.Upper {
		s.dir = sched.Backward
	}
	return s, nil
}

// done returns the columns of row k of a already eliminated before step k.
func (s solve) done(k int) matrix.Matrix {
	if s.dir == sched.Forward {
		return s.a.Sub(k, k, 0, k-1)
	}
	return s.a.Sub(k, k, k+1, s.a.Mt()-1)
}

// TrsmA solves op(A)*X = alpha*B (Left) or X*op(A) = alpha*B (Right) with A
// triangular, overwriting B with X. The right-hand side moves: each row of
// B is summed onto the owner of the diagonal tile of A, solved there, sent
// back to its owners and broadcast to the owners of the rest of the column
// of A, who compute their partial updates in place (A-stationary).
//
// Lower A sweeps forward, Upper A backward. B is scaled by alpha once, in
// the first step.
//
// Errors:
//   - ErrNoTriangle, ErrNotSquare, ErrDimensionMismatch before any work.
//   - The first task error; the fatal handler has run by then.
func TrsmA(ctx context.Context, side tile.Side, alpha float64, a, b matrix.Matrix, opts ...Option) error {
	o := gatherOptions(opts...)
	s, err := newSolve("TrsmA", side, alpha, a, b)
	if err != nil {
		return err
	}
	a, b = s.a, s.b
	mt, nt := b.Mt(), b.Nt()
	if mt == 0 || nt == 0 {
		return nil
	}

	p, err := newPlan(ctx, "TrsmA", o, a, b)
	if err != nil {
		return err
	}
	me := b.Comm().Rank()
	layout := b.Layout()
	rows := p.g.Tokens(mt)

	for step, st := range sched.Sweep(mt, o.Lookahead, s.dir) {
		k := st.K
		rest := slices.Concat(st.Lookahead, st.Trailing)
		p.submit(sched.Task{
			Name:     fmt.Sprintf("trsmA.solve(%d)", k),
			Priority: sched.High,
			InOut:    []*sched.Token{rows[k]},
			Run: func(ctx context.Context) error {
				// 1. Scale once, before any partial update lands in B.
				if step == 0 && alpha != 1 {
					if err := p.d.Scale(ctx, alpha, b, p.panelQueue()); err != nil {
						return err
					}
				}

				// 2. Sum row k onto the owner of a(k, k).
				akk := a.Sub(k, k, k, k)
				root := a.TileRank(k, k)
				reduce := make(matrix.ReduceList, 0, nt)
				for j := 0; j < nt; j++ {
					srcs := []matrix.Matrix{b.Sub(k, k, j, j)}
					if step > 0 {
						srcs = append(srcs, s.done(k))
					}
					reduce = append(reduce, matrix.ReduceEntry{I: k, J: j, Root: akk, Srcs: srcs, Tag: k})
				}
				if err := b.ListReduce(ctx, reduce, layout); err != nil {
					return err
				}

				// 3. Solve there.
				bk := b.Sub(k, k, 0, nt-1)
				if err := p.d.TrsmA(ctx, tile.Left, a.Diag(), 1, akk, bk, p.panelQueue()); err != nil {
					return err
				}

				// 4. Return the solution to the owners of B.
				for j := 0; j < nt; j++ {
					owner := b.TileRank(k, j)
					switch {
					case owner == root:
					case me == root:
						if err := b.TileSend(ctx, k, j, owner, k); err != nil {
							return err
						}
						b.TileErase(k, j, matrix.AllDevices)
					case me == owner:
						if err := b.TileRecv(ctx, k, j, root, layout, k); err != nil {
							return err
						}
					}
				}
				if len(rest) == 0 {
					return nil
				}

				// 5. Share it with the owners of the rest of column k of A.
				lo, hi := bounds(rest)
				list := make(matrix.BcastList, 0, nt)
				for j := 0; j < nt; j++ {
					list = append(list, matrix.BcastEntry{I: k, J: j, Dests: []matrix.Matrix{a.Sub(lo, hi, k, k)}, Tag: k})
				}
				return b.ListBcast(ctx, list, layout)
			},
		})

		bk := b.Sub(k, k, 0, nt-1)
		for l, i := range st.Lookahead {
			p.submit(sched.Task{
				Name:     fmt.Sprintf("trsmA.lookahead(%d,%d)", k, i),
				Priority: sched.High,
				In:       []*sched.Token{rows[k]},
				InOut:    []*sched.Token{rows[i]},
				Run: func(ctx context.Context) error {
					return p.d.GemmA(ctx, -1, a.Sub(i, i, k, k), bk, 1, b.Sub(i, i, 0, nt-1), p.lookaheadQueue(l))
				},
			})
		}
		if len(st.Trailing) > 0 {
			first, last := st.First(), st.Last()
			lo, hi := bounds(st.Trailing)
			p.submit(sched.Task{
				Name:  fmt.Sprintf("trsmA.trailing(%d)", k),
				In:    []*sched.Token{rows[k]},
				InOut: []*sched.Token{rows[first], rows[last]},
				Run: func(ctx context.Context) error {
					return p.d.GemmA(ctx, -1, a.Sub(lo, hi, k, k), bk, 1, b.Sub(lo, hi, 0, nt-1), p.trailingQueue())
				},
			})
		}
	}
	return p.finish()
}

// Trsm solves op(A)*X = alpha*B (Left) or X*op(A) = alpha*B (Right) with A
// triangular, overwriting B with X. A moves: each diagonal tile is
// broadcast to the owners of its row of B, and the solved row together
// with the column of A is broadcast to the owners of the remaining rows of
// B, which update in place (B-stationary).
//
// Errors:
//   - ErrNoTriangle, ErrNotSquare, ErrDimensionMismatch before any work.
//   - The first task error; the fatal handler has run by then.
func Trsm(ctx context.Context, side tile.Side, alpha float64, a, b matrix.Matrix, opts ...Option) error {
	o := gatherOptions(opts...)
	s, err := newSolve("Trsm", side, alpha, a, b)
	if err != nil {
		return err
	}
	a, b = s.a, s.b
	mt, nt := b.Mt(), b.Nt()
	if mt == 0 || nt == 0 {
		return nil
	}

	p, err := newPlan(ctx, "Trsm", o, a, b)
	if err != nil {
		return err
	}
	rows := p.g.Tokens(mt)

	for step, st := range sched.Sweep(mt, o.Lookahead, s.dir) {
		k := st.K
		rest := slices.Concat(st.Lookahead, st.Trailing)
		// alpha enters through the first solve and the first update of
		// every other row
		alph := 1.0
		if step == 0 {
			alph = alpha
		}
		bk := b.Sub(k, k, 0, nt-1)

		p.submit(sched.Task{
			Name:     fmt.Sprintf("trsm.panel(%d)", k),
			Priority: sched.High,
			InOut:    []*sched.Token{rows[k]},
			Run: func(ctx context.Context) error {
				// 1. a(k, k) to the owners of row k; solve the row.
				akk := a.Sub(k, k, k, k)
				if err := a.TileBcast(ctx, k, k, bk, a.Layout(), k); err != nil {
					return err
				}
				if err := p.d.Trsm(ctx, tile.Left, a.Diag(), alph, akk, bk, p.panelQueue()); err != nil {
					return err
				}
				if len(rest) == 0 {
					return nil
				}

				// 2. a(i, k) to row i of B, b(k, j) to the rest of column j.
				lo, hi := bounds(rest)
				alist := make(matrix.BcastList, 0, len(rest))
				for _, i := range rest {
					alist = append(alist, matrix.BcastEntry{I: i, J: k, Dests: []matrix.Matrix{b.Sub(i, i, 0, nt-1)}, Tag: i})
				}
				if err := a.ListBcast(ctx, alist, a.Layout()); err != nil {
					return err
				}
				blist := make(matrix.BcastList, 0, nt)
				for j := 0; j < nt; j++ {
					blist = append(blist, matrix.BcastEntry{I: k, J: j, Dests: []matrix.Matrix{b.Sub(lo, hi, j, j)}, Tag: j})
				}
				return b.ListBcast(ctx, blist, b.Layout())
			},
		})

		for l, i := range st.Lookahead {
			p.submit(sched.Task{
				Name:     fmt.Sprintf("trsm.lookahead(%d,%d)", k, i),
				Priority: sched.High,
				In:       []*sched.Token{rows[k]},
				InOut:    []*sched.Token{rows[i]},
				Run: func(ctx context.Context) error {
					return p.d.Gemm(ctx, -1, a.Sub(i, i, k, k), bk, alph, b.Sub(i, i, 0, nt-1), p.lookaheadQueue(l))
				},
			})
		}
		if len(st.Trailing) > 0 {
			first, last := st.First(), st.Last()
			lo, hi := bounds(st.Trailing)
			p.submit(sched.Task{
				Name:  fmt.Sprintf("trsm.trailing(%d)", k),
				In:    []*sched.Token{rows[k]},
				InOut: []*sched.Token{rows[first], rows[last]},
				Run: func(ctx context.Context) error {
					return p.d.Gemm(ctx, -1, a.Sub(lo, hi, k, k), bk, alph, b.Sub(lo, hi, 0, nt-1), p.trailingQueue())
				},
			})
		}
	}
	return p.finish()
}

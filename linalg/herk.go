// SPDX-License-Identifier: MIT

package linalg

import (
	"context"
	"fmt"

	"github.com/katalvlaran/tilegrid/matrix"
	"github.com/katalvlaran/tilegrid/sched"
	"github.com/katalvlaran/tilegrid/tile"
)

// Herk computes the rank-k update C = alpha*A*A^H + beta*C on the stored
// triangle of the Hermitian matrix c. a has as many tile rows as c and any
// number of tile columns.
//
// Column k of A is broadcast up to la columns ahead of the update that
// consumes it; each update is one local Herk over all of C.
//
// Errors:
//   - ErrNoTriangle, ErrNotSquare, ErrDimensionMismatch before any work.
//   - The first task error; the fatal handler has run by then.
func Herk(ctx context.Context, alpha float64, a matrix.Matrix, beta float64, c matrix.Matrix, opts ...Option) error {
	o := gatherOptions(opts...)
	if c.Uplo() == tile.General {
		return fmt.Errorf("Herk: %w", ErrNoTriangle)
	}
	if c.Mt() != c.Nt() || c.M() != c.N() {
		return fmt.Errorf("Herk: %w", ErrNotSquare)
	}
	if a.Mt() != c.Mt() || a.M() != c.M() {
		return fmt.Errorf("Herk: %w", ErrDimensionMismatch)
	}
	mt, kt := c.Mt(), a.Nt()
	if mt == 0 {
		return nil
	}

	p, err := newPlan(ctx, "Herk", o, a, c)
	if err != nil {
		return err
	}
	if kt == 0 {
		p.submit(sched.Task{
			Name: "herk.scale",
			Run: func(ctx context.Context) error {
				return p.d.Scale(ctx, beta, c, p.trailingQueue())
			},
		})
		return p.finish()
	}

	// chain orders the broadcasts identically on every rank; bc[k] marks
	// column k as delivered; ct serializes the updates of C.
	chain := p.g.Tokens(1)[0]
	ct := p.g.Tokens(1)[0]
	bc := p.g.Tokens(kt)
	layout := a.Layout()

	bcast := func(k int) {
		inout := []*sched.Token{chain, bc[k]}
		if back := k - o.Lookahead - 1; back >= 0 {
			// wait for the update that consumed column back
			inout = append(inout, bc[back])
		}
		p.submit(sched.Task{
			Name:     fmt.Sprintf("herk.bcast(%d)", k),
			Priority: sched.High,
			InOut:    inout,
			Run: func(ctx context.Context) error {
				list := make(matrix.BcastList, 0, mt)
				for i := 0; i < mt; i++ {
					list = append(list, matrix.BcastEntry{I: i, J: k, Dests: consumers(c, i), Tag: i})
				}
				return a.ListBcast(ctx, list, layout)
			},
		})
	}

	for k := 0; k <= min(o.Lookahead, kt-1); k++ {
		bcast(k)
	}
	for k := 0; k < kt; k++ {
		b := 1.0
		if k == 0 {
			b = beta
		}
		p.submit(sched.Task{
			Name:  fmt.Sprintf("herk.update(%d)", k),
			In:    []*sched.Token{bc[k]},
			InOut: []*sched.Token{ct},
			Run: func(ctx context.Context) error {
				return p.d.Herk(ctx, alpha, a.Sub(0, mt-1, k, k), b, c, p.trailingQueue())
			},
		})
		if next := k + o.Lookahead + 1; next < kt {
			bcast(next)
		}
	}
	return p.finish()
}

// consumers returns the tiles of c that read row i of A: row i and column
// i of the stored triangle.
func consumers(c matrix.Matrix, i int) []matrix.Matrix {
	mt := c.Mt()
	if c.Uplo() == tile.Lower {
		return []matrix.Matrix{c.Sub(i, i, 0, i), c.Sub(i, mt-1, i, i)}
	}
	return []matrix.Matrix{c.Sub(i, i, i, mt-1), c.Sub(0, i, i, i)}
}

package dispatch

import (
	"context"

	"github.com/katalvlaran/tilegrid/matrix"
	"github.com/katalvlaran/tilegrid/tile"
)

// Potrf factors the single diagonal tile a in place when it is local and
// returns the tile-local info. It always runs on the host.
//
// Errors:
//   - ErrNotSingleTile, tile.ErrNotTriangular.
func (d *Dispatcher) Potrf(ctx context.Context, a matrix.Matrix, ib int) (int, error) {
	if a.Mt() != 1 || a.Nt() != 1 {
		return 0, dispatchErrorf("Potrf", ErrNotSingleTile)
	}
	if !a.TileIsLocal(0, 0) {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, dispatchErrorf("Potrf", err)
	}
	var info int
	j := job{
		dev: tile.HostNum,
		ops: []operand{{m: a, write: true}},
		run: func(t []tile.Tile) (err error) {
			info, err = tile.Potrf(t[0], ib)
			return err
		},
	}
	if err := runHost(j); err != nil {
		return 0, dispatchErrorf("Potrf", err)
	}
	return info, nil
}

// Herk updates the stored triangle of the Hermitian view c with
// alpha*a*a^H + beta*c, where a is one block column conforming to c.
// Diagonal tiles use a rank-k update, off-diagonal tiles a Gemm.
//
// Ticks: a(i, 0) once per diagonal tile, a(i, 0) and a(j, 0) per
// off-diagonal tile.
//
// Errors:
//   - ErrDimensionMismatch, tile kernel errors.
func (d *Dispatcher) Herk(ctx context.Context, alpha float64, a matrix.Matrix, beta float64, c matrix.Matrix, queue int) error {
	if a.Nt() != 1 || a.Mt() != c.Mt() || c.Mt() != c.Nt() {
		return dispatchErrorf("Herk", ErrDimensionMismatch)
	}
	var jobs []job
	err := c.ForEachLocal(func(i, j int) error {
		out := operand{m: c, i: i, j: j, write: true}
		if i == j {
			ai := operand{m: a, i: i}
			jobs = append(jobs, job{
				dev:  d.devOf(c, i, j),
				ops:  []operand{ai, out},
				tick: []operand{ai},
				run: func(t []tile.Tile) error {
					return tile.Herk(alpha, t[0], beta, t[1])
				},
			})
			return nil
		}
		ai, aj := operand{m: a, i: i}, operand{m: a, i: j}
		jobs = append(jobs, job{
			dev:  d.devOf(c, i, j),
			ops:  []operand{ai, aj, out},
			tick: []operand{ai, aj},
			run: func(t []tile.Tile) error {
				return tile.Gemm(alpha, t[0], tile.ConjTranspose(t[1]), beta, t[2])
			},
		})
		return nil
	})
	if err != nil {
		return dispatchErrorf("Herk", err)
	}
	return d.execute(ctx, "Herk", jobs, queue)
}

// Gemm computes c = alpha*a*b + beta*c on the local tiles of c, where a is
// one block column and b one block row.
//
// Ticks: a(i, 0) and b(0, j) per output tile.
//
// Errors:
//   - ErrDimensionMismatch, tile kernel errors.
func (d *Dispatcher) Gemm(ctx context.Context, alpha float64, a, b matrix.Matrix, beta float64, c matrix.Matrix, queue int) error {
	if a.Nt() != 1 || b.Mt() != 1 || a.Mt() != c.Mt() || b.Nt() != c.Nt() {
		return dispatchErrorf("Gemm", ErrDimensionMismatch)
	}
	var jobs []job
	for j := 0; j < c.Nt(); j++ {
		for i := 0; i < c.Mt(); i++ {
			if !c.TileIsLocal(i, j) {
				continue
			}
			ai, bj := operand{m: a, i: i}, operand{m: b, j: j}
			jobs = append(jobs, job{
				dev:  d.devOf(c, i, j),
				ops:  []operand{ai, bj, {m: c, i: i, j: j, write: true}},
				tick: []operand{ai, bj},
				run: func(t []tile.Tile) error {
					return tile.Gemm(alpha, t[0], t[1], beta, t[2])
				},
			})
		}
	}
	return d.execute(ctx, "Gemm", jobs, queue)
}

// GemmA is the A-stationary Gemm: every rank owning a(i, 0) computes
// c(i, j) = alpha*a(i, 0)*b(0, j) + beta*c(i, j) for all j, into a zeroed
// workspace tile when it does not hold c(i, j). The partial products are
// summed onto the owners of c by a later ListReduce.
//
// Ticks: b(0, j) per output tile.
//
// Errors:
//   - ErrDimensionMismatch, tile kernel errors.
func (d *Dispatcher) GemmA(ctx context.Context, alpha float64, a, b matrix.Matrix, beta float64, c matrix.Matrix, queue int) error {
	if a.Nt() != 1 || b.Mt() != 1 || a.Mt() != c.Mt() || b.Nt() != c.Nt() {
		return dispatchErrorf("GemmA", ErrDimensionMismatch)
	}
	var jobs []job
	for i := 0; i < a.Mt(); i++ {
		if !a.TileIsLocal(i, 0) {
			continue
		}
		for j := 0; j < c.Nt(); j++ {
			if !c.TileExistsAnywhere(i, j) {
				if _, err := c.TileInsertWorkspace(i, j, tile.HostNum); err != nil {
					return dispatchErrorf("GemmA", err)
				}
			}
			bj := operand{m: b, j: j}
			jobs = append(jobs, job{
				dev:  d.devOf(a, i, 0),
				ops:  []operand{{m: a, i: i}, bj, {m: c, i: i, j: j, write: true}},
				tick: []operand{bj},
				run: func(t []tile.Tile) error {
					return tile.Gemm(alpha, t[0], t[1], beta, t[2])
				},
			})
		}
	}
	return d.execute(ctx, "GemmA", jobs, queue)
}

// Trsm solves op(a)*X = alpha*b (Left, b one block row) or
// X*op(a) = alpha*b (Right, b one block column) on the local tiles of b.
// a is a single triangular tile.
//
// Ticks: a(0, 0) per solved tile.
//
// Errors:
//   - ErrNotSingleTile, ErrDimensionMismatch, tile kernel errors.
func (d *Dispatcher) Trsm(ctx context.Context, side tile.Side, diag tile.Diag, alpha float64, a, b matrix.Matrix, queue int) error {
	if a.Mt() != 1 || a.Nt() != 1 {
		return dispatchErrorf("Trsm", ErrNotSingleTile)
	}
	if (side == tile.Left && b.Mt() != 1) || (side == tile.Right && b.Nt() != 1) {
		return dispatchErrorf("Trsm", ErrDimensionMismatch)
	}
	a00 := operand{m: a}
	var jobs []job
	for j := 0; j < b.Nt(); j++ {
		for i := 0; i < b.Mt(); i++ {
			if !b.TileIsLocal(i, j) {
				continue
			}
			jobs = append(jobs, job{
				dev:  d.devOf(b, i, j),
				ops:  []operand{a00, {m: b, i: i, j: j, write: true}},
				tick: []operand{a00},
				run: func(t []tile.Tile) error {
					return tile.Trsm(side, diag, alpha, t[0], t[1])
				},
			})
		}
	}
	return d.execute(ctx, "Trsm", jobs, queue)
}

// TrsmA is the A-stationary Trsm: only the owner of a(0, 0) solves, for
// every tile of b it holds, whoever owns b. The owner is expected to have
// gathered b beforehand.
//
// Errors:
//   - ErrNotSingleTile, ErrDimensionMismatch, tile kernel errors.
func (d *Dispatcher) TrsmA(ctx context.Context, side tile.Side, diag tile.Diag, alpha float64, a, b matrix.Matrix, queue int) error {
	if a.Mt() != 1 || a.Nt() != 1 {
		return dispatchErrorf("TrsmA", ErrNotSingleTile)
	}
	if (side == tile.Left && b.Mt() != 1) || (side == tile.Right && b.Nt() != 1) {
		return dispatchErrorf("TrsmA", ErrDimensionMismatch)
	}
	if !a.TileIsLocal(0, 0) {
		return nil
	}
	var jobs []job
	for j := 0; j < b.Nt(); j++ {
		for i := 0; i < b.Mt(); i++ {
			if !b.TileExistsAnywhere(i, j) {
				continue
			}
			jobs = append(jobs, job{
				dev: d.devOf(a, 0, 0),
				ops: []operand{{m: a}, {m: b, i: i, j: j, write: true}},
				run: func(t []tile.Tile) error {
					return tile.Trsm(side, diag, alpha, t[0], t[1])
				},
			})
		}
	}
	return d.execute(ctx, "TrsmA", jobs, queue)
}

// Scale computes a = alpha*a on the local tiles of a.
func (d *Dispatcher) Scale(ctx context.Context, alpha float64, a matrix.Matrix, queue int) error {
	var jobs []job
	err := a.ForEachLocal(func(i, j int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		jobs = append(jobs, job{
			dev: d.devOf(a, i, j),
			ops: []operand{{m: a, i: i, j: j, write: true}},
			run: func(t []tile.Tile) error {
				tile.Scale(alpha, t[0])
				return nil
			},
		})
		return nil
	})
	if err != nil {
		return dispatchErrorf("Scale", err)
	}
	return d.execute(ctx, "Scale", jobs, queue)
}

// Set writes diag on the diagonal of a and offdiag everywhere else, on the
// local tiles of a.
func (d *Dispatcher) Set(ctx context.Context, offdiag, diag float64, a matrix.Matrix, queue int) error {
	var jobs []job
	err := a.ForEachLocal(func(i, j int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		dv := offdiag
		if i == j {
			dv = diag
		}
		jobs = append(jobs, job{
			dev: d.devOf(a, i, j),
			ops: []operand{{m: a, i: i, j: j, write: true}},
			run: func(t []tile.Tile) error {
				tile.Set(offdiag, dv, t[0])
				return nil
			},
		})
		return nil
	})
	if err != nil {
		return dispatchErrorf("Set", err)
	}
	return d.execute(ctx, "Set", jobs, queue)
}

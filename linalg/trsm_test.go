package linalg_test

import (
	"context"
	"fmt"
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

type solver func(ctx context.Context, side tile.Side, alpha float64, a, b matrix.Matrix, opts ...linalg.Option) error

var solvers = map[string]solver{"TrsmA": linalg.TrsmA, "Trsm": linalg.Trsm}

// solveCase is one triangular solve on a 2×2 grid of four ranks.
type solveCase struct {
	side  tile.Side
	uplo  tile.Uplo
	trans bool
	diag  tile.Diag
}

func (sc solveCase) String() string {
	side := "Left"
	if sc.side == tile.Right {
		side = "Right"
	}
	op := "N"
	if sc.trans {
		op = "T"
	}
	return fmt.Sprintf("%s/%s/%s/diag%d", side, sc.uplo, op, sc.diag)
}

// operands returns the stored triangle T, the logical op(A) with the
// diagonal as the solver sees it, and B.
func (sc solveCase) operands(rng *rand.Rand, n, nrhs int) (T, opA, B *mat.Dense) {
	T = lowerTriangle(rng, n)
	if sc.uplo == tile.Upper {
		T = mat.DenseCopyOf(T.T())
	}
	opA = mat.DenseCopyOf(T)
	if sc.diag == tile.Unit {
		for i := 0; i < n; i++ {
			opA.Set(i, i, 1)
		}
	}
	if sc.trans {
		opA = mat.DenseCopyOf(opA.T())
	}
	if sc.side == tile.Left {
		return T, opA, randomDense(rng, n, nrhs)
	}
	return T, opA, randomDense(rng, nrhs, n)
}

// residual is op(A)*X - alpha*B (Left) or X*op(A) - alpha*B (Right).
func (sc solveCase) residual(opA, X, B *mat.Dense, alpha float64) *mat.Dense {
	var r, ab mat.Dense
	if sc.side == tile.Left {
		r.Mul(opA, X)
	} else {
		r.Mul(X, opA)
	}
	ab.Scale(alpha, B)
	r.Sub(&r, &ab)
	return &r
}

func (sc solveCase) run(t *testing.T, solve solver, target dispatch.Target, la int) {
	const (
		n     = 8
		nrhs  = 5
		alpha = 2.0
	)
	T, opA, B := sc.operands(rand.New(rand.NewSource(21)), n, nrhs)
	w := runRanks(t, 4, func(ctx context.Context, c comm.Communicator) error {
		devs, closeDevs := rankDevices(target)
		defer closeDevs()
		a, err := distribute(c, T, 3, 2, 2, devs)
		if err != nil {
			return err
		}
		b, err := distribute(c, B, 3, 2, 2, devs)
		if err != nil {
			return err
		}
		av := a.AsTriangular(sc.uplo, sc.diag)
		if sc.trans {
			av = matrix.Transpose(av)
		}

		if err := solve(ctx, sc.side, alpha, av, b, opts(target, linalg.WithLookahead(la))...); err != nil {
			return err
		}
		for _, m := range []matrix.Matrix{a, b} {
			if live := m.CheckTileLives(); len(live) != 0 {
				return fmt.Errorf("rank %d: live tiles %v", c.Rank(), live)
			}
		}
		X, err := gather(ctx, b)
		if err != nil {
			return err
		}
		if r := sc.residual(opA, X, B, alpha); mat.Norm(r, 1) > tol {
			return fmt.Errorf("rank %d: residual %g", c.Rank(), mat.Norm(r, 1))
		}
		return nil
	})
	assert.Zero(t, w.Pending())
}

func TestTriangularSolve_AllShapes(t *testing.T) {
	for name, solve := range solvers {
		for _, side := range []tile.Side{tile.Left, tile.Right} {
			for _, uplo := range []tile.Uplo{tile.Lower, tile.Upper} {
				for _, trans := range []bool{false, true} {
					sc := solveCase{side: side, uplo: uplo, trans: trans, diag: tile.NonUnit}
					t.Run(name+"/"+sc.String(), func(t *testing.T) {
						sc.run(t, solve, dispatch.HostTask, 1)
					})
				}
			}
		}
	}
}

func TestTriangularSolve_Targets(t *testing.T) {
	cases := []solveCase{
		{side: tile.Left, uplo: tile.Lower, diag: tile.Unit},
		{side: tile.Right, uplo: tile.Upper, trans: true, diag: tile.NonUnit},
	}
	for name, solve := range solvers {
		for _, target := range targets {
			for _, sc := range cases {
				for _, la := range []int{0, 2} {
					t.Run(fmt.Sprintf("%s/%s/%s/la%d", name, target, sc, la), func(t *testing.T) {
						sc.run(t, solve, target, la)
					})
				}
			}
		}
	}
}

func TestTrsmA_MovesOnlyRightHandSide(t *testing.T) {
	// A lives on rank 0 only; every rank owns a row of B
	rng := rand.New(rand.NewSource(22))
	L, B := lowerTriangle(rng, 6), randomDense(rng, 6, 4)
	runRanks(t, 3, func(ctx context.Context, c comm.Communicator) error {
		a, err := distribute(c, L, 2, 1, 1, nil)
		if err != nil {
			return err
		}
		b, err := distribute(c, B, 2, 3, 1, nil)
		if err != nil {
			return err
		}
		av := a.AsTriangular(tile.Lower, tile.NonUnit)
		if err := linalg.TrsmA(ctx, tile.Left, 1, av, b, opts(dispatch.HostTask)...); err != nil {
			return err
		}
		if st := a.Stats(); st.Workspace != 0 {
			return fmt.Errorf("rank %d: %d copies of A", c.Rank(), st.Workspace)
		}
		X, err := gather(ctx, b)
		if err != nil {
			return err
		}
		var check mat.Dense
		check.Mul(L, X)
		if !mat.EqualApprox(&check, B, tol) {
			return fmt.Errorf("rank %d: wrong solution", c.Rank())
		}
		return nil
	})
}

func TestTriangularSolve_Errors(t *testing.T) {
	c := comm.NewLocalWorld(1).Comm(0)
	ctx := context.Background()
	a, err := matrix.New(6, 6, 3, 3, 1, 1, c)
	require.NoError(t, err)
	b, err := matrix.New(6, 4, 3, 2, 1, 1, c)
	require.NoError(t, err)
	wide, err := matrix.New(6, 9, 3, 3, 1, 1, c)
	require.NoError(t, err)
	short, err := matrix.New(3, 4, 3, 2, 1, 1, c)
	require.NoError(t, err)

	for name, solve := range solvers {
		t.Run(name, func(t *testing.T) {
			o := opts(linalg.DefaultTarget)
			assert.ErrorIs(t, solve(ctx, tile.Left, 1, a, b, o...), linalg.ErrNoTriangle)
			assert.ErrorIs(t, solve(ctx, tile.Left, 1, wide.AsTriangular(tile.Lower, tile.NonUnit), b, o...), linalg.ErrNotSquare)
			tri := a.AsTriangular(tile.Lower, tile.NonUnit)
			assert.ErrorIs(t, solve(ctx, tile.Left, 1, tri, short, o...), linalg.ErrDimensionMismatch)
			// 6×4 B cannot be solved from the right by a 6×6 A
			assert.ErrorIs(t, solve(ctx, tile.Right, 1, tri, b, o...), linalg.ErrDimensionMismatch)
		})
	}
}

// SPDX-License-Identifier: MIT

// Package linalg - symmetric tridiagonal eigensolvers.
//
// The tridiagonal matrix is given by its diagonal d and off-diagonal e,
// replicated on every rank. Every rank solves the same problem with the
// same kernels, so the results agree bit for bit without communication.

package linalg

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/lapack"
	"gonum.org/v1/gonum/lapack/gonum"

	"github.com/katalvlaran/tilegrid/matrix"
	"github.com/katalvlaran/tilegrid/tile"
)

var lapack64 gonum.Implementation

// Sterf computes every eigenvalue of the symmetric tridiagonal matrix
// (d, e). On return d holds the eigenvalues in ascending order and e is
// destroyed.
//
// Errors:
//   - ErrDimensionMismatch when len(e) < len(d)-1.
//   - ErrNotFinite when d or e holds Inf or NaN.
//   - ErrNoConvergence when the QL/QR iteration does not converge.
func Sterf(d, e []float64) error {
	n := len(d)
	if _, err := tridiagonalNorm("Sterf", d, e); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	if !lapack64.Dsterf(n, d, e) {
		return fmt.Errorf("Sterf: %w", ErrNoConvergence)
	}
	return nil
}

// Stedc computes every eigenvalue and eigenvector of the symmetric
// tridiagonal matrix (d, e). On return d holds the eigenvalues in
// ascending order, e is destroyed and column k of z is the eigenvector of
// d[k]. z is an n×n distributed matrix whose local tiles exist; every rank
// of its communicator must call Stedc with the same d and e.
//
// The input is always scaled by its max norm before the solve and the
// eigenvalues are scaled back afterwards.
//
// Errors:
//   - ErrDimensionMismatch for a short e or a z that is not n×n.
//   - ErrNotFinite, ErrNoConvergence.
//   - Registry errors from writing z.
func Stedc(ctx context.Context, d, e []float64, z matrix.Matrix, opts ...Option) error {
	o := gatherOptions(opts...)
	n := len(d)

	// 1. Validate.
	anorm, err := tridiagonalNorm("Stedc", d, e)
	if err != nil {
		return err
	}
	if z.M() != n || z.N() != n {
		return fmt.Errorf("Stedc: z is %d×%d, want %d×%d: %w", z.M(), z.N(), n, n, ErrDimensionMismatch)
	}
	if n == 0 {
		return nil
	}

	// 2. Eigenvectors in row-major order; a zero matrix has the identity.
	vecs := make([]float64, n*n)
	if anorm == 0 {
		for i := 0; i < n; i++ {
			vecs[i*n+i] = 1
		}
	} else {
		lapack64.Dlascl(lapack.General, 0, 0, anorm, 1, n, 1, d, 1)
		lapack64.Dlascl(lapack.General, 0, 0, anorm, 1, n-1, 1, e, 1)
		work := make([]float64, max(1, 2*n-2))
		if !lapack64.Dsteqr(lapack.EVTridiag, n, d, e, vecs, n, work) {
			return fmt.Errorf("Stedc: %w", ErrNoConvergence)
		}
		lapack64.Dlascl(lapack.General, 0, 0, 1, anorm, n, 1, d, 1)
	}

	// 3. Every rank writes its own tiles of z.
	return scatterRowMajor(ctx, z, vecs, o.Workers)
}

// tridiagonalNorm checks the shape of (d, e) and returns its max norm.
func tridiagonalNorm(op string, d, e []float64) (float64, error) {
	n := len(d)
	if n > 0 && len(e) < n-1 {
		return 0, fmt.Errorf("%s: len(e) = %d, want %d: %w", op, len(e), n-1, ErrDimensionMismatch)
	}
	anorm := lapack64.Dlanst(lapack.MaxAbs, n, d, e)
	if math.IsInf(anorm, 0) || math.IsNaN(anorm) {
		return 0, fmt.Errorf("%s: %w", op, ErrNotFinite)
	}
	return anorm, nil
}

// scatterRowMajor copies the dense row-major buffer src into the local
// tiles of a.
func scatterRowMajor(ctx context.Context, a matrix.Matrix, src []float64, workers int) error {
	n := a.N()
	rows, cols := offsets(a.Mt(), a.TileMb), offsets(a.Nt(), a.TileNb)
	var g errgroup.Group
	g.SetLimit(workers)
	err := a.ForEachLocal(func(i, j int) error {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := a.TileGetForWriting(i, j, tile.HostNum, tile.ConvertNone)
			if err != nil {
				return err
			}
			r0, c0 := rows[i], cols[j]
			for jj := 0; jj < t.Nb(); jj++ {
				for ii := 0; ii < t.Mb(); ii++ {
					t.Set(ii, jj, src[(r0+ii)*n+c0+jj])
				}
			}
			return nil
		})
		return nil
	})
	if werr := g.Wait(); err == nil {
		err = werr
	}
	if err != nil {
		return fmt.Errorf("Stedc: %w", err)
	}
	return nil
}

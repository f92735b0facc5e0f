// SPDX-License-Identifier: MIT

// Package linalg holds the distributed tile algorithms of tilegrid.
//
// What:
//   - Potrf: blocked right-looking Cholesky factorization A = L*L^H of a
//     Hermitian positive definite matrix, with a lookahead pipeline.
//   - TrsmA: triangular solve where the right-hand side moves to the owners
//     of the triangular matrix ("A-stationary"). Rows of B are summed onto
//     the owner of each diagonal tile, solved there and sent back.
//   - Trsm: the classic triangular solve where A moves to the owners of B.
//   - Posv: Cholesky solve, Potrf then two TrsmA sweeps.
//   - Herk: rank-k update C = alpha*A*A^H + beta*C of a Hermitian matrix.
//   - Norm: Max, One, Inf and Frobenius norms.
//
// How:
//
//	Every algorithm walks tile columns (or rows) with sched.Sweep. Each step
//	is a panel task, up to la lookahead tasks and one trailing task on a
//	sched.Graph, ordered by one token per column. Only panel tasks talk to
//	other ranks, and every rank submits the same tasks in the same order,
//	so panels meet in the same sequence everywhere. Kernels run through a
//	dispatch.Dispatcher bound to one target for the whole call.
//
// Errors:
//
//	Shape problems are returned before any work starts. A failing task is
//	fatal: the scheduler calls the fatal handler (klog.Exitf unless
//	replaced with WithFatalHandler) and the error is returned. A matrix
//	that is not positive definite is not an error: Potrf returns the
//	1-based index of the failing leading minor as info and leaves the
//	factor valid before that column.
package linalg

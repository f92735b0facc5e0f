// SPDX-License-Identifier: MIT

// Package tile is the unit of storage of the tilegrid engine: a small dense
// block of float64 values plus the metadata needed to reinterpret it without
// copying.
//
// What:
//   - Tile carries a physical mb×nb extent, a leading stride, a storage
//     Layout (ColMajor or RowMajor) and three tags: Op (transpose), Uplo
//     (which triangle holds data) and Diag (unit diagonal).
//   - Transpose / ConjTranspose / WithUplo / WithDiag are value transforms.
//     They remap indices and never touch the buffer.
//   - ConvertLayout flips the storage layout in place when possible.
//   - Gemm, Herk, Trsm, Potrf, Scale, Set, Add and Copy are single-tile
//     kernels on top of gonum BLAS / LAPACK.
//
// Why:
//   - Distributed algorithms move and compute on whole tiles; every
//     reinterpretation a tile algorithm needs (A^T, lower triangle of a
//     symmetric block, unit-diagonal factor) must be free.
//
// Element type:
//
//	The engine is real-valued (float64). ConjTrans and Trans coincide for
//	real data; both tags are kept so call sites read like their complex
//	counterparts.
//
// Layouts:
//
//	gonum's blas64 is row-major. A ColMajor tile is handed to gonum as the
//	row-major storage of its transpose and the operation is rewritten
//	accordingly (see general). No physical conversion is done by kernels.
//
// Complexity:
//   - Accessors and transforms: O(1).
//   - ConvertLayout: O(1) extra space for square or contiguous tiles,
//     O(mb*nb) otherwise; see ConvertLayout for time.
//   - Kernels: the cost of the underlying BLAS / LAPACK routine.
package tile

// SPDX-License-Identifier: MIT

// Package matrix - Matrix views: constructors, index translation, transforms.
//
// Purpose:
//   - Give algorithms a value type that can be sliced (Sub), transposed and
//     restricted to a triangle in O(1) while all views share one Storage.
//   - Translate view tile coordinates to storage coordinates in one place.

package matrix

import (
	"fmt"

	"github.com/katalvlaran/tilegrid/comm"
	"github.com/katalvlaran/tilegrid/tile"
)

// Kind is the structural interpretation of a view.
type Kind uint8

const (
	General    Kind = iota // every tile is meaningful
	Hermitian              // one triangle stored, the other implied
	Triangular             // one triangle stored, the other zero
)

// Matrix is a view of a distributed tiled matrix.
// The zero value is not usable; build one with New, FromLAPACK or
// FromScaLAPACK.
type Matrix struct {
	st         *Storage
	ioff, joff int // tile offset in storage coordinates
	mt, nt     int // tile counts in storage orientation
	op         tile.Op
	uplo       tile.Uplo // logical triangle
	diag       tile.Diag
	kind       Kind
}

// New creates an empty m×n matrix of mb×nb tiles over a p×q grid. No tile
// is allocated; call InsertLocalTiles.
//
// Errors:
//   - ErrBadShape for non-positive sizes, ErrBadGrid if p*q exceeds the
//     communicator size.
func New(m, n, mb, nb, p, q int, c comm.Communicator, opts ...Option) (Matrix, error) {
	// 1. Validate shape and grid.
	if m < 0 || n < 0 || mb <= 0 || nb <= 0 {
		return Matrix{}, fmt.Errorf("New(%d,%d,%d,%d): %w", m, n, mb, nb, ErrBadShape)
	}
	if p <= 0 || q <= 0 || p*q > c.Size() {
		return Matrix{}, fmt.Errorf("New: grid %dx%d on %d ranks: %w", p, q, c.Size(), ErrBadGrid)
	}

	// 2. Build the storage and the full view.
	st := newStorage(m, n, mb, nb, p, q, c, gatherOptions(opts...))
	return Matrix{st: st, mt: st.mt, nt: st.nt}, nil
}

// EmptyLike creates a new storage with the same shape, tiling, grid and
// devices as a, viewed like a (op, uplo, kind). No tile is allocated.
func EmptyLike(a Matrix) Matrix {
	s := a.st
	o := Options{Layout: s.layout, BaseRank: s.base, Devices: s.devices}
	st := newStorage(s.m, s.n, s.mb, s.nb, s.p, s.q, s.comm, o)
	b := a
	b.st = st
	return b
}

// ---------- index translation ----------

// global maps view tile (i, j) to storage coordinates.
func (a Matrix) global(i, j int) (int, int) {
	if a.op != tile.NoTrans {
		i, j = j, i
	}
	return a.ioff + i, a.joff + j
}

func (a Matrix) check(op string, i, j int) error {
	if i < 0 || j < 0 || i >= a.Mt() || j >= a.Nt() {
		return matrixErrorf(op, i, j, ErrOutOfRange)
	}
	return nil
}

// ---------- shape ----------

// Mt returns the number of tile rows of the view.
func (a Matrix) Mt() int {
	if a.op == tile.NoTrans {
		return a.mt
	}
	return a.nt
}

// Nt returns the number of tile columns of the view.
func (a Matrix) Nt() int {
	if a.op == tile.NoTrans {
		return a.nt
	}
	return a.mt
}

// M returns the number of rows of the view.
func (a Matrix) M() int {
	m := 0
	for i := 0; i < a.Mt(); i++ {
		m += a.TileMb(i)
	}
	return m
}

// N returns the number of columns of the view.
func (a Matrix) N() int {
	n := 0
	for j := 0; j < a.Nt(); j++ {
		n += a.TileNb(j)
	}
	return n
}

func (a Matrix) Op() tile.Op         { return a.op }
func (a Matrix) Uplo() tile.Uplo     { return a.uplo }
func (a Matrix) Diag() tile.Diag     { return a.diag }
func (a Matrix) Kind() Kind          { return a.kind }
func (a Matrix) Layout() tile.Layout { return a.st.layout }

// Comm returns the communicator of the storage.
func (a Matrix) Comm() comm.Communicator { return a.st.comm }

// Storage returns the shared storage handle.
func (a Matrix) Storage() *Storage { return a.st }

// GridSize returns the process grid p×q.
func (a Matrix) GridSize() (p, q int) { return a.st.p, a.st.q }

// TileMb returns the rows of tile row i of the view.
func (a Matrix) TileMb(i int) int {
	if a.op == tile.NoTrans {
		return a.st.tileMb(a.ioff + i)
	}
	return a.st.tileNb(a.joff + i)
}

// TileNb returns the columns of tile column j of the view.
func (a Matrix) TileNb(j int) int {
	if a.op == tile.NoTrans {
		return a.st.tileNb(a.joff + j)
	}
	return a.st.tileMb(a.ioff + j)
}

// TileRank returns the owner of view tile (i, j).
func (a Matrix) TileRank(i, j int) int {
	gi, gj := a.global(i, j)
	return a.st.tileRank(gi, gj)
}

// TileDevice returns the device of view tile (i, j), or tile.HostNum.
func (a Matrix) TileDevice(i, j int) int {
	gi, gj := a.global(i, j)
	return a.st.tileDevice(gi, gj)
}

// TileIsLocal reports whether this rank owns view tile (i, j).
func (a Matrix) TileIsLocal(i, j int) bool {
	return a.TileRank(i, j) == a.st.comm.Rank()
}

// LocalDevices returns the ids of attached devices.
func (a Matrix) LocalDevices() []int {
	ids := make([]int, len(a.st.devices))
	for d := range ids {
		ids[d] = d
	}
	return ids
}

// ---------- transforms ----------

// Sub returns tiles i1..i2 × j1..j2 (inclusive) of a. An empty range
// (i2 < i1 or j2 < j1) yields an empty view.
func (a Matrix) Sub(i1, i2, j1, j2 int) Matrix {
	b := a
	rows, cols := max(0, i2-i1+1), max(0, j2-j1+1)
	if a.op == tile.NoTrans {
		b.ioff, b.joff = a.ioff+i1, a.joff+j1
		b.mt, b.nt = rows, cols
	} else {
		b.ioff, b.joff = a.ioff+j1, a.joff+i1
		b.mt, b.nt = cols, rows
	}
	// off-diagonal blocks of a structured matrix are general
	if i1 != j1 {
		b.kind, b.uplo, b.diag = General, tile.General, tile.NonUnit
	}
	return b
}

// Transpose returns a viewed as a^T.
func Transpose(a Matrix) Matrix {
	a.op = tile.Trans.Compose(a.op)
	a.uplo = a.uplo.Flip()
	return a
}

// ConjTranspose returns a viewed as a^H.
func ConjTranspose(a Matrix) Matrix {
	a.op = tile.ConjTrans.Compose(a.op)
	a.uplo = a.uplo.Flip()
	return a
}

// AsHermitian returns a viewed as a symmetric matrix stored in uplo.
func (a Matrix) AsHermitian(uplo tile.Uplo) Matrix {
	a.kind, a.uplo, a.diag = Hermitian, uplo, tile.NonUnit
	return a
}

// AsTriangular returns a viewed as a triangular matrix.
func (a Matrix) AsTriangular(uplo tile.Uplo, diag tile.Diag) Matrix {
	a.kind, a.uplo, a.diag = Triangular, uplo, diag
	return a
}

// AsGeneral drops the triangle tags.
func (a Matrix) AsGeneral() Matrix {
	a.kind, a.uplo, a.diag = General, tile.General, tile.NonUnit
	return a
}

// decorate applies the view tags to a storage tile at view (i, j).
func (a Matrix) decorate(t tile.Tile, i, j int) tile.Tile {
	if a.op != tile.NoTrans {
		t = tile.Transpose(t)
	}
	if i == j && a.kind != General {
		return t.WithUplo(a.uplo).WithDiag(a.diag)
	}
	return t.WithUplo(tile.General).WithDiag(tile.NonUnit)
}

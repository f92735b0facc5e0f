// SPDX-License-Identifier: MIT

// Package matrix - adapters over caller-owned flat arrays.
//
// FromLAPACK and FromScaLAPACK build a distributed matrix whose local origin
// tiles are UserOwned views into the caller's array: no element is copied
// and results written by algorithms land in the caller's memory once the
// origins are updated.

package matrix

import (
	"context"
	"fmt"

	"github.com/katalvlaran/tilegrid/comm"
	"github.com/katalvlaran/tilegrid/tile"
)

// gatherSeq is the sequence number reserved for Gather on a storage stream.
const gatherSeq = -1

// FromLAPACK wraps an m×n array that every rank holds in full. With the
// default column-major layout element (r, c) is data[r + c*ld]; with
// WithLayout(tile.RowMajor) it is data[r*ld + c]. Only local tiles are
// registered.
//
// Errors:
//   - ErrBadShape, ErrBadGrid, ErrBufferTooSmall.
func FromLAPACK(m, n int, data []float64, ld, mb, nb, p, q int, c comm.Communicator, opts ...Option) (Matrix, error) {
	// 1. Validate the caller array.
	a, err := New(m, n, mb, nb, p, q, c, opts...)
	if err != nil {
		return Matrix{}, err
	}
	s := a.st
	lead := m
	if s.layout == tile.RowMajor {
		lead = n
	}
	if ld < max(1, lead) {
		return Matrix{}, fmt.Errorf("FromLAPACK: ld %d < %d: %w", ld, lead, ErrBadShape)
	}
	if m > 0 && n > 0 && len(data) < flatLen(m, n, ld, s.layout) {
		return Matrix{}, fmt.Errorf("FromLAPACK: len %d: %w", len(data), ErrBufferTooSmall)
	}

	// 2. Adopt every local tile as a view.
	s.mu.Lock()
	defer s.mu.Unlock()
	for j := 0; j < s.nt; j++ {
		for i := 0; i < s.mt; i++ {
			if !s.tileIsLocal(i, j) {
				continue
			}
			off := i*mb + j*nb*ld
			if s.layout == tile.RowMajor {
				off = i*mb*ld + j*nb
			}
			t, err := tile.New(s.tileMb(i), s.tileNb(j), data[off:], ld, s.layout, tile.HostNum, tile.UserOwned)
			if err != nil {
				return Matrix{}, matrixErrorf("FromLAPACK", i, j, err)
			}
			s.adopt(i, j, t)
		}
	}
	return a, nil
}

// FromScaLAPACK wraps the local part of a 2-D block-cyclic column-major
// array with local leading dimension lld. Local tile (i, j) starts at local
// block row i/p and block column j/q. The grid is column-major with tile
// (0, 0) on the base rank, as in ScaLAPACK.
//
// Errors:
//   - ErrBadShape, ErrBadGrid, ErrBufferTooSmall.
func FromScaLAPACK(m, n int, data []float64, lld, mb, nb, p, q int, c comm.Communicator, opts ...Option) (Matrix, error) {
	a, err := New(m, n, mb, nb, p, q, c, append(opts, WithLayout(tile.ColMajor))...)
	if err != nil {
		return Matrix{}, err
	}
	s := a.st

	// 1. Size of the local array.
	rows, cols := 0, 0
	for j := 0; j < s.nt; j++ {
		for i := 0; i < s.mt; i++ {
			if s.tileIsLocal(i, j) {
				rows = max(rows, (i/p)*mb+s.tileMb(i))
				cols = max(cols, (j/q)*nb+s.tileNb(j))
			}
		}
	}
	if lld < max(1, rows) {
		return Matrix{}, fmt.Errorf("FromScaLAPACK: lld %d < %d: %w", lld, rows, ErrBadShape)
	}
	if rows > 0 && cols > 0 && len(data) < flatLen(rows, cols, lld, tile.ColMajor) {
		return Matrix{}, fmt.Errorf("FromScaLAPACK: len %d: %w", len(data), ErrBufferTooSmall)
	}

	// 2. Adopt local tiles.
	s.mu.Lock()
	defer s.mu.Unlock()
	for j := 0; j < s.nt; j++ {
		for i := 0; i < s.mt; i++ {
			if !s.tileIsLocal(i, j) {
				continue
			}
			off := (i/p)*mb + (j/q)*nb*lld
			t, err := tile.New(s.tileMb(i), s.tileNb(j), data[off:], lld, tile.ColMajor, tile.HostNum, tile.UserOwned)
			if err != nil {
				return Matrix{}, matrixErrorf("FromScaLAPACK", i, j, err)
			}
			s.adopt(i, j, t)
		}
	}
	return a, nil
}

func flatLen(m, n, ld int, l tile.Layout) int {
	if l == tile.RowMajor {
		return (m-1)*ld + n
	}
	return (n-1)*ld + m
}

// Gather returns the whole view as a column-major M×N array on every rank.
// Each owner contributes the origin value of its tiles; structured views
// contribute their stored triangle of tiles only. Every rank must call it.
func (a Matrix) Gather(ctx context.Context) ([]float64, error) {
	m := a.M()
	out := make([]float64, m*a.N())

	// 1. Row and column offsets of view tiles.
	roff := make([]int, a.Mt()+1)
	for i := 0; i < a.Mt(); i++ {
		roff[i+1] = roff[i] + a.TileMb(i)
	}
	coff := make([]int, a.Nt()+1)
	for j := 0; j < a.Nt(); j++ {
		coff[j+1] = coff[j] + a.TileNb(j)
	}

	// 2. Local contributions.
	err := a.ForEachLocal(func(i, j int) error {
		t, err := a.TileGetForReading(i, j, tile.HostNum, tile.ConvertNone)
		if err != nil {
			return err
		}
		for jj := 0; jj < t.Nb(); jj++ {
			for ii := 0; ii < t.Mb(); ii++ {
				if !stored(t.Uplo(), ii, jj) {
					continue
				}
				out[roff[i]+ii+(coff[j]+jj)*m] = t.At(ii, jj)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 3. Every element has one owner, so a sum assembles the matrix.
	if a.st.comm.Size() > 1 {
		tag := comm.Tag{Stream: a.st.stream, Seq: gatherSeq}
		if err := comm.AllreduceSum(ctx, a.st.comm, tag, out); err != nil {
			return nil, fmt.Errorf("Gather: %w", err)
		}
	}
	return out, nil
}

// stored reports whether (i, j) lies in triangle u of a tile.
func stored(u tile.Uplo, i, j int) bool {
	switch u {
	case tile.Lower:
		return i >= j
	case tile.Upper:
		return i <= j
	}
	return true
}

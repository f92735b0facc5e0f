// SPDX-License-Identifier: MIT

// Package tile - Tile value type, constructors, accessors and transforms.
//
// Purpose:
//   - Keep the physical description (mb, nb, stride, layout, buffer) apart from
//     the logical tags (op, uplo, diag) so transforms are O(1) value copies.
//   - Expose a single index formula used by At/Set and by the copy kernels.
//
// Complexity quicksheet:
//   - New/Alloc: O(1)/O(mb*nb); At/Set: O(1); Transpose & co: O(1).

package tile

import "gonum.org/v1/gonum/blas/blas64"

// Tile is a dense block viewed through transform and triangle tags.
// The zero value is an empty 0×0 host tile.
type Tile struct {
	mb, nb int       // physical rows and columns (before op)
	stride int       // leading stride of the physical layout
	data   []float64 // backing buffer
	layout Layout    // physical storage order
	op     Op        // logical transform
	uplo   Uplo      // triangle of the physical matrix holding data
	diag   Diag      // unit diagonal flag
	device int       // HostNum or device id
	kind   Kind      // ownership
	origin bool      // true for the authoritative instance of a coordinate

	// home is the caller buffer of a UserOwned tile whose layout was
	// converted through an extended buffer; converting back restores it.
	home *home
}

type home struct {
	data   []float64
	stride int
	layout Layout
}

// New wraps data as an mb×nb tile stored in layout with the given stride.
// Implementation:
//   - Stage 1: validate extents and stride against the layout.
//   - Stage 2: check the buffer can hold the last element.
//
// Errors:
//   - ErrBadShape, ErrShortBuffer.
//
// Complexity:
//   - Time O(1), Space O(1).
func New(mb, nb int, data []float64, stride int, layout Layout, device int, kind Kind) (Tile, error) {
	// 1. Validate shape.
	if mb < 0 || nb < 0 {
		return Tile{}, tileErrorf("New", ErrBadShape)
	}
	lead := mb
	if layout == RowMajor {
		lead = nb
	}
	if stride < max(1, lead) {
		return Tile{}, tileErrorf("New", ErrBadShape)
	}

	// 2. Validate buffer length.
	if need := required(mb, nb, stride, layout); len(data) < need {
		return Tile{}, tileErrorf("New", ErrShortBuffer)
	}

	return Tile{
		mb:     mb,
		nb:     nb,
		stride: stride,
		data:   data,
		layout: layout,
		device: device,
		kind:   kind,
	}, nil
}

// Alloc returns a zeroed mb×nb tile with a natural stride.
func Alloc(mb, nb int, layout Layout, device int, kind Kind) Tile {
	stride := max(1, mb)
	if layout == RowMajor {
		stride = max(1, nb)
	}
	return Tile{
		mb:     mb,
		nb:     nb,
		stride: stride,
		data:   make([]float64, mb*nb),
		layout: layout,
		device: device,
		kind:   kind,
	}
}

// required is the minimal buffer length of an mb×nb layout with stride.
func required(mb, nb, stride int, layout Layout) int {
	if mb == 0 || nb == 0 {
		return 0
	}
	if layout == RowMajor {
		return (mb-1)*stride + nb
	}
	return (nb-1)*stride + mb
}

// ---------- accessors ----------

// Mb returns the logical number of rows.
func (t Tile) Mb() int {
	if t.op == NoTrans {
		return t.mb
	}
	return t.nb
}

// Nb returns the logical number of columns.
func (t Tile) Nb() int {
	if t.op == NoTrans {
		return t.nb
	}
	return t.mb
}

// Stride returns the leading stride of the physical buffer.
func (t Tile) Stride() int { return t.stride }

// Data returns the physical buffer.
func (t Tile) Data() []float64 { return t.data }

func (t Tile) Op() Op         { return t.op }
func (t Tile) Diag() Diag     { return t.diag }
func (t Tile) Layout() Layout { return t.layout }
func (t Tile) Device() int    { return t.device }
func (t Tile) Kind() Kind     { return t.kind }
func (t Tile) Origin() bool   { return t.origin }

// Uplo returns the logical triangle, i.e. after op.
func (t Tile) Uplo() Uplo {
	if t.op == NoTrans {
		return t.uplo
	}
	return t.uplo.Flip()
}

// UploPhysical returns the triangle of the stored (untransposed) matrix.
func (t Tile) UploPhysical() Uplo { return t.uplo }

// Size is the number of elements of the physical extent.
func (t Tile) Size() int { return t.mb * t.nb }

// Empty reports a tile with no elements.
func (t Tile) Empty() bool { return t.mb == 0 || t.nb == 0 }

// ---------- transforms (O(1), buffer shared) ----------

// Transpose returns t viewed as t^T.
func Transpose(t Tile) Tile {
	t.op = Trans.Compose(t.op)
	return t
}

// ConjTranspose returns t viewed as t^H.
func ConjTranspose(t Tile) Tile {
	t.op = ConjTrans.Compose(t.op)
	return t
}

// WithUplo returns t with its logical triangle set to u.
func (t Tile) WithUplo(u Uplo) Tile {
	if t.op == NoTrans {
		t.uplo = u
	} else {
		t.uplo = u.Flip()
	}
	return t
}

// WithDiag returns t with diagonal tag d.
func (t Tile) WithDiag(d Diag) Tile {
	t.diag = d
	return t
}

// WithOrigin returns t with the origin flag set to o.
func (t Tile) WithOrigin(o bool) Tile {
	t.origin = o
	return t
}

// WithDevice returns t relabelled as living on dev.
func (t Tile) WithDevice(dev int) Tile {
	t.device = dev
	return t
}

// ---------- element access ----------

// index maps logical (i, j) to a buffer offset.
func (t Tile) index(i, j int) int {
	if t.op != NoTrans {
		i, j = j, i
	}
	if t.layout == ColMajor {
		return i + j*t.stride
	}
	return i*t.stride + j
}

// At returns logical element (i, j). It ignores uplo and diag.
func (t Tile) At(i, j int) float64 {
	if i < 0 || j < 0 || i >= t.Mb() || j >= t.Nb() {
		panic(tileErrorf("At", ErrOutOfRange))
	}
	return t.data[t.index(i, j)]
}

// Set writes logical element (i, j).
func (t Tile) Set(i, j int, v float64) {
	if i < 0 || j < 0 || i >= t.Mb() || j >= t.Nb() {
		panic(tileErrorf("Set", ErrOutOfRange))
	}
	t.data[t.index(i, j)] = v
}

// inTriangle reports whether logical (i, j) belongs to the stored part.
func (t Tile) inTriangle(i, j int) bool {
	switch t.Uplo() {
	case Lower:
		return i >= j
	case Upper:
		return i <= j
	default:
		return true
	}
}

// general returns the row-major gonum view of the physical buffer, whether
// the logical tile is the transpose of that view, and the stored triangle
// as seen by the view.
func (t Tile) general() (g blas64.General, trans bool, uplo Uplo) {
	if t.layout == RowMajor {
		g = blas64.General{Rows: t.mb, Cols: t.nb, Stride: t.stride, Data: t.data}
		return g, t.op != NoTrans, t.uplo
	}
	g = blas64.General{Rows: t.nb, Cols: t.mb, Stride: t.stride, Data: t.data}
	return g, t.op == NoTrans, t.uplo.Flip()
}

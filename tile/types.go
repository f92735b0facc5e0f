// SPDX-License-Identifier: MIT

package tile

import "gonum.org/v1/gonum/blas"

// HostNum is the location id of host memory; devices are numbered from 0.
const HostNum = -1

// Op is the transform tag of a tile or matrix view.
type Op uint8

const (
	NoTrans   Op = iota // as stored
	Trans               // transposed
	ConjTrans           // conjugate-transposed; equal to Trans for real data
)

// Uplo tells which triangle of a tile holds meaningful data.
type Uplo uint8

const (
	General Uplo = iota // full tile
	Lower               // lower triangle incl. diagonal
	Upper               // upper triangle incl. diagonal
)

// Diag marks an implicit unit diagonal for triangular tiles.
type Diag uint8

const (
	NonUnit Diag = iota
	Unit
)

// Side selects which side a triangular operand multiplies from.
type Side uint8

const (
	Left Side = iota
	Right
)

// Layout is the physical storage order of a tile buffer.
type Layout uint8

const (
	ColMajor Layout = iota
	RowMajor
)

// LayoutConvert is the layout a tile accessor must deliver.
type LayoutConvert uint8

const (
	ConvertNone     LayoutConvert = iota // keep whatever is stored
	ConvertColMajor                      // deliver column-major
	ConvertRowMajor                      // deliver row-major
)

// Kind records who owns a tile buffer.
type Kind uint8

const (
	Owned     Kind = iota // allocated by the registry
	Workspace             // scratch from a workspace arena
	UserOwned             // view over caller memory
)

// Norm selects a matrix norm.
type Norm uint8

const (
	NormMax Norm = iota // max |a_ij|
	NormOne             // max column sum
	NormInf             // max row sum
	NormFro             // Frobenius
)

// ConvertTo returns the LayoutConvert that delivers layout l.
func ConvertTo(l Layout) LayoutConvert {
	if l == RowMajor {
		return ConvertRowMajor
	}
	return ConvertColMajor
}

// Flip returns the opposite layout.
func (l Layout) Flip() Layout {
	if l == ColMajor {
		return RowMajor
	}
	return ColMajor
}

// Flip swaps Lower and Upper; General is unchanged.
func (u Uplo) Flip() Uplo {
	switch u {
	case Lower:
		return Upper
	case Upper:
		return Lower
	default:
		return General
	}
}

// Flip swaps Left and Right.
func (s Side) Flip() Side {
	if s == Left {
		return Right
	}
	return Left
}

// Compose returns the tag of applying o on top of a view tagged base.
func (o Op) Compose(base Op) Op {
	if o == NoTrans {
		return base
	}
	if base == NoTrans {
		return o
	}
	return NoTrans
}

func (o Op) String() string {
	switch o {
	case NoTrans:
		return "NoTrans"
	case Trans:
		return "Trans"
	case ConjTrans:
		return "ConjTrans"
	default:
		return "Op(?)"
	}
}

func (u Uplo) String() string {
	switch u {
	case General:
		return "General"
	case Lower:
		return "Lower"
	case Upper:
		return "Upper"
	default:
		return "Uplo(?)"
	}
}

func (l Layout) String() string {
	if l == RowMajor {
		return "RowMajor"
	}
	return "ColMajor"
}

// ---------- gonum adapters ----------

func blasUplo(u Uplo) blas.Uplo {
	switch u {
	case Lower:
		return blas.Lower
	case Upper:
		return blas.Upper
	default:
		return blas.All
	}
}

func blasTrans(t bool) blas.Transpose {
	if t {
		return blas.Trans
	}
	return blas.NoTrans
}

func blasDiag(d Diag) blas.Diag {
	if d == Unit {
		return blas.Unit
	}
	return blas.NonUnit
}

func blasSide(s Side) blas.Side {
	if s == Right {
		return blas.Right
	}
	return blas.Left
}

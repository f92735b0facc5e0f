// SPDX-License-Identifier: MIT

package tile

// ConvertLayout flips the physical storage order of t.
// Implementation:
//   - Square tiles: swap (i,j) with (j,i) in place, stride unchanged.
//   - Contiguous rectangular tiles: in-place cycle-following transpose, the
//     stride becomes the natural stride of the new layout.
//   - Otherwise: transpose into an extended buffer. A UserOwned tile
//     remembers its caller buffer and gets it back, with the data copied in,
//     when converted back to the original layout.
//
// Uplo is a property of the physical matrix and is preserved.
//
// Complexity:
//   - Square and strided tiles: time O(mb*nb). The contiguous rectangle
//     walks each cycle once more to find its leader, so its time grows with
//     the cycle lengths, at most O((mb*nb)^2).
//   - Space O(1) for the first two cases, O(mb*nb) otherwise.
func (t *Tile) ConvertLayout() {
	if t.Empty() {
		t.layout = t.layout.Flip()
		return
	}

	// 1. Returning to a remembered caller buffer.
	if t.home != nil && t.home.layout == t.layout.Flip() {
		h := t.home
		transposeCopy(t.data, t.stride, h.data, h.stride, t.mb, t.nb, t.layout)
		t.data, t.stride, t.layout, t.home = h.data, h.stride, h.layout, nil
		return
	}

	// 2. Square: in-place swap.
	if t.mb == t.nb {
		n, s := t.mb, t.stride
		for j := 0; j < n; j++ {
			for i := j + 1; i < n; i++ {
				t.data[i+j*s], t.data[j+i*s] = t.data[j+i*s], t.data[i+j*s]
			}
		}
		t.layout = t.layout.Flip()
		return
	}

	// 3. Contiguous rectangle: cycle-following transpose.
	rows, cols := t.mb, t.nb // source viewed row-major
	if t.layout == ColMajor {
		rows, cols = t.nb, t.mb
	}
	if t.stride == cols {
		transposeInPlace(t.data[:rows*cols], rows, cols)
		t.stride = rows
		t.layout = t.layout.Flip()
		return
	}

	// 4. Strided rectangle: extended buffer.
	natural := t.mb
	if t.layout == ColMajor {
		natural = t.nb
	}
	buf := make([]float64, t.mb*t.nb)
	transposeCopy(t.data, t.stride, buf, natural, t.mb, t.nb, t.layout)
	if t.kind == UserOwned && t.home == nil {
		t.home = &home{data: t.data, stride: t.stride, layout: t.layout}
	}
	t.data, t.stride, t.layout = buf, natural, t.layout.Flip()
}

// SetLayout converts t to l if it is stored otherwise.
func (t *Tile) SetLayout(l Layout) {
	if t.layout != l {
		t.ConvertLayout()
	}
}

// Deliver applies a LayoutConvert request.
func (t *Tile) Deliver(c LayoutConvert) {
	switch c {
	case ConvertColMajor:
		t.SetLayout(ColMajor)
	case ConvertRowMajor:
		t.SetLayout(RowMajor)
	}
}

// transposeInPlace transposes a contiguous rows×cols row-major array into its
// cols×rows row-major form by following permutation cycles. A cycle is moved
// only from its smallest index, so no marks are kept.
func transposeInPlace(a []float64, rows, cols int) {
	n := rows * cols
	next := func(k int) int { return (k%cols)*rows + k/cols }
	for start := 1; start < n-1; start++ {
		k := next(start)
		for k > start {
			k = next(k)
		}
		if k < start {
			continue
		}
		cur, val := start, a[start]
		for {
			cur = next(cur)
			a[cur], val = val, a[cur]
			if cur == start {
				break
			}
		}
	}
}

// transposeCopy writes the mb×nb matrix stored in src (layout from) into dst
// stored in the opposite layout.
func transposeCopy(src []float64, ss int, dst []float64, ds int, mb, nb int, from Layout) {
	for j := 0; j < nb; j++ {
		for i := 0; i < mb; i++ {
			if from == ColMajor {
				dst[i*ds+j] = src[i+j*ss]
			} else {
				dst[i+j*ds] = src[i*ss+j]
			}
		}
	}
}

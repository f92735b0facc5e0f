package matrix_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/tilegrid/comm"
	"github.com/katalvlaran/tilegrid/matrix"
	"github.com/katalvlaran/tilegrid/tile"
)

func TestFromLAPACK_ColMajorViews(t *testing.T) {
	const m, n, ld = 5, 4, 6
	data := make([]float64, ld*n)
	for c := 0; c < n; c++ {
		for r := 0; r < m; r++ {
			data[r+c*ld] = value(r, c)
		}
	}
	a, err := matrix.FromLAPACK(m, n, data, ld, 2, 2, 1, 1, comm.NewLocalWorld(1).Comm(0))
	require.NoError(t, err)
	require.Equal(t, 3, a.Mt())

	tl, err := a.Tile(2, 1)
	require.NoError(t, err)
	assert.Equal(t, tile.UserOwned, tl.Kind())
	assert.True(t, tl.Origin())
	assert.Equal(t, 1, tl.Mb())
	assert.Equal(t, value(4, 3), tl.At(0, 1))

	// writes land in the caller array
	tl.Set(0, 0, -1)
	assert.Equal(t, -1.0, data[4+2*ld])

	// releasing workspace never frees caller memory
	require.NoError(t, a.ReleaseWorkspace())
	assert.True(t, a.TileExists(2, 1, tile.HostNum))
}

func TestFromLAPACK_RowMajor(t *testing.T) {
	const m, n, ld = 3, 5, 5
	data := make([]float64, m*ld)
	for r := 0; r < m; r++ {
		for c := 0; c < n; c++ {
			data[r*ld+c] = value(r, c)
		}
	}
	a, err := matrix.FromLAPACK(m, n, data, ld, 2, 2, 1, 1, comm.NewLocalWorld(1).Comm(0), matrix.WithLayout(tile.RowMajor))
	require.NoError(t, err)
	tl, err := a.Tile(1, 2)
	require.NoError(t, err)
	assert.Equal(t, tile.RowMajor, tl.Layout())
	assert.Equal(t, value(2, 4), tl.At(0, 0))
}

func TestFromLAPACK_Errors(t *testing.T) {
	c := comm.NewLocalWorld(1).Comm(0)
	_, err := matrix.FromLAPACK(4, 4, make([]float64, 15), 4, 2, 2, 1, 1, c)
	require.ErrorIs(t, err, matrix.ErrBufferTooSmall)
	_, err = matrix.FromLAPACK(4, 4, make([]float64, 16), 3, 2, 2, 1, 1, c)
	require.ErrorIs(t, err, matrix.ErrBadShape)
	_, err = matrix.FromScaLAPACK(4, 4, make([]float64, 4), 4, 2, 2, 1, 1, c)
	require.ErrorIs(t, err, matrix.ErrBufferTooSmall)
}

// localScaLAPACK returns the local block-cyclic array of rank r on a p×1
// grid for an m×n matrix of mb×nb blocks.
func localScaLAPACK(m, n, mb, nb, p, r int) ([]float64, int) {
	rows := 0
	for i := 0; i*mb < m; i++ {
		if i%p == r {
			rows += min(mb, m-i*mb)
		}
	}
	lld := max(1, rows)
	data := make([]float64, lld*n)
	lr := 0
	for i := 0; i*mb < m; i++ {
		if i%p != r {
			continue
		}
		for ii := 0; ii < min(mb, m-i*mb); ii++ {
			for c := 0; c < n; c++ {
				data[lr+c*lld] = value(i*mb+ii, c)
			}
			lr++
		}
	}
	return data, lld
}

func TestFromScaLAPACK_GatherRoundTrip(t *testing.T) {
	const m, n, mb, nb = 5, 3, 2, 2
	want := make([]float64, m*n)
	for c := 0; c < n; c++ {
		for r := 0; r < m; r++ {
			want[r+c*m] = value(r, c)
		}
	}
	w := runRanks(t, 2, func(ctx context.Context, c comm.Communicator) error {
		data, lld := localScaLAPACK(m, n, mb, nb, 2, c.Rank())
		a, err := matrix.FromScaLAPACK(m, n, data, lld, mb, nb, 2, 1, c)
		if err != nil {
			return err
		}
		got, err := a.Gather(ctx)
		if err != nil {
			return err
		}
		if diff := cmp.Diff(want, got); diff != "" {
			return fmt.Errorf("rank %d gather (-want +got):\n%s", c.Rank(), diff)
		}
		return nil
	})
	assert.Zero(t, w.Pending())
}

func TestGather_StructuredViews(t *testing.T) {
	a := MustSingle(t, 4, 4, 2, 2)
	got, err := a.AsHermitian(tile.Lower).Gather(context.Background())
	require.NoError(t, err)
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			want := value(r, c)
			if r < c {
				want = 0
			}
			assert.Equal(t, want, got[r+4*c], "(%d,%d)", r, c)
		}
	}

	gt, err := matrix.Transpose(a.Sub(0, 1, 1, 1)).Gather(context.Background())
	require.NoError(t, err)
	// 2×4 view: row 0 is column 2 of a
	assert.Equal(t, value(3, 2), gt[0+2*3])
}

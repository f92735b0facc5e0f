package matrix_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/tilegrid/comm"
	"github.com/katalvlaran/tilegrid/matrix"
	"github.com/katalvlaran/tilegrid/tile"
)

// remoteView returns the rank-1 view of a 2×1 grid: tile rows 0 and 2 are
// remote, tile rows 1 and 3 are local.
func remoteView(t *testing.T, opts ...matrix.Option) matrix.Matrix {
	t.Helper()
	a, err := matrix.New(8, 4, 2, 2, 2, 1, comm.NewLocalWorld(2).Comm(1), opts...)
	require.NoError(t, err)
	require.NoError(t, a.InsertLocalTiles(false))
	return a
}

func TestTileTick_ErasesAtZero(t *testing.T) {
	a := remoteView(t)
	require.False(t, a.TileIsLocal(0, 0))

	_, err := a.TileInsertWorkspace(0, 0, tile.HostNum)
	require.NoError(t, err)
	a.SetTileLife(0, 0, 2)

	a.TileTick(0, 0)
	assert.Equal(t, 1, a.TileLife(0, 0))
	assert.True(t, a.TileExists(0, 0, tile.HostNum))

	a.TileTick(0, 0)
	assert.False(t, a.TileExists(0, 0, tile.HostNum))
	assert.Equal(t, 0, a.TileLife(0, 0))
	assert.Empty(t, a.CheckTileLives())

	// the buffer went back to the arena
	assert.Equal(t, 1, a.Stats().ArenaIdle)
}

func TestTileTick_LocalIsNoop(t *testing.T) {
	a := remoteView(t)
	a.SetTileLife(1, 0, 1)
	a.TileTick(1, 0)
	assert.Equal(t, 1, a.TileLife(1, 0))
	assert.True(t, a.TileExists(1, 0, tile.HostNum))
}

func TestHold_DefersErase(t *testing.T) {
	a := remoteView(t)
	_, err := a.TileInsertWorkspace(2, 1, tile.HostNum)
	require.NoError(t, err)
	a.SetTileLife(2, 1, 1)
	a.TileSetHold(2, 1, tile.HostNum)
	require.True(t, a.TileIsHeld(2, 1, tile.HostNum))

	a.TileTick(2, 1)
	a.EraseRemoteWorkspace()
	a.TileErase(2, 1, matrix.AllDevices)
	assert.True(t, a.TileExists(2, 1, tile.HostNum))

	live := a.CheckTileLives()
	require.Len(t, live, 1)
	assert.Equal(t, matrix.LiveTile{I: 2, J: 1, Life: 0, Held: true}, live[0])

	a.TileUnsetHold(2, 1, tile.HostNum)
	a.EraseRemoteWorkspace()
	assert.False(t, a.TileExists(2, 1, tile.HostNum))
}

func TestOrigin_NeverErased(t *testing.T) {
	a := remoteView(t)
	a.EraseLocalWorkspace()
	a.TileErase(1, 1, matrix.AllDevices)
	require.NoError(t, a.TileRelease(3, 0, matrix.AllDevices))
	assert.True(t, a.TileExists(1, 1, tile.HostNum))
	assert.True(t, a.TileExists(3, 0, tile.HostNum))
	assert.Equal(t, 4, a.Stats().Origins)
}

func TestRelease_UpdatesOrigin(t *testing.T) {
	devs := withDevices(t, 1)
	a := remoteView(t, matrix.WithDevices(devs...))

	d, err := a.TileGetForWriting(1, 0, 0, tile.ConvertNone)
	require.NoError(t, err)
	d.Set(0, 1, 7)

	require.NoError(t, a.TileRelease(1, 0, 0))
	assert.False(t, a.TileExists(1, 0, 0))
	h, err := a.Tile(1, 0)
	require.NoError(t, err)
	assert.Equal(t, 7.0, h.At(0, 1))
	st, _ := a.TileState(1, 0, tile.HostNum)
	assert.Equal(t, matrix.Shared, st)
}

func TestUpdateAllOrigin_AndReleaseWorkspace(t *testing.T) {
	devs := withDevices(t, 1)
	a := remoteView(t, matrix.WithDevices(devs...))

	for _, i := range []int{1, 3} {
		d, err := a.TileGetForWriting(i, 1, 0, tile.ConvertNone)
		require.NoError(t, err)
		tile.Set(0, float64(i), d)
	}
	_, err := a.TileInsertWorkspace(0, 1, tile.HostNum)
	require.NoError(t, err)

	require.NoError(t, a.TileUpdateAllOrigin())
	h, err := a.Tile(3, 1)
	require.NoError(t, err)
	assert.Equal(t, 3.0, h.At(1, 1))
	assert.Equal(t, 0.0, h.At(1, 0))

	require.NoError(t, a.ReleaseWorkspace())
	st := a.Stats()
	assert.Equal(t, 0, st.Workspace)
	assert.Equal(t, 0, st.ArenaIdle)
	assert.Equal(t, 4, st.Origins)
	assert.Equal(t, int64(0), devs[0].Pool().Stats().Idle)
}

func TestTileGetAndHold(t *testing.T) {
	a := MustSingle(t, 4, 4, 2, 2)
	_, err := a.TileGetAndHold(1, 1, tile.HostNum, tile.ConvertNone)
	require.NoError(t, err)
	assert.True(t, a.TileIsHeld(1, 1, tile.HostNum))
	assert.Equal(t, 1, a.Stats().Held)
}

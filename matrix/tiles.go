// SPDX-License-Identifier: MIT

// Package matrix - per-tile registry operations in view coordinates.

package matrix

import (
	"github.com/katalvlaran/tilegrid/device"
	"github.com/katalvlaran/tilegrid/tile"
)

// TileInsert allocates an Owned instance of view tile (i, j) at dev. The
// first Owned instance of a local coordinate becomes its origin.
//
// Errors:
//   - ErrTileExists, ErrNoDevice, device.ErrOutOfMemory.
func (a Matrix) TileInsert(i, j, dev int) (tile.Tile, error) {
	return a.tileInsert(i, j, dev, tile.Owned, false)
}

// TileInsertReplace is TileInsert that frees an existing instance first.
func (a Matrix) TileInsertReplace(i, j, dev int) (tile.Tile, error) {
	return a.tileInsert(i, j, dev, tile.Owned, true)
}

// TileInsertWorkspace allocates a zeroed scratch instance from the
// workspace arena (host) or the device pool.
func (a Matrix) TileInsertWorkspace(i, j, dev int) (tile.Tile, error) {
	return a.tileInsert(i, j, dev, tile.Workspace, false)
}

func (a Matrix) tileInsert(i, j, dev int, kind tile.Kind, replace bool) (tile.Tile, error) {
	if err := a.check("TileInsert", i, j); err != nil {
		return tile.Tile{}, err
	}
	gi, gj := a.global(i, j)
	s := a.st
	s.mu.Lock()
	defer s.mu.Unlock()
	in, err := s.insert(gi, gj, dev, kind, replace)
	if err != nil {
		return tile.Tile{}, err
	}
	return a.decorate(in.t, i, j), nil
}

// TileExists reports whether an instance of (i, j) exists at dev.
func (a Matrix) TileExists(i, j, dev int) bool {
	gi, gj := a.global(i, j)
	s := a.st
	s.mu.Lock()
	defer s.mu.Unlock()
	nd := s.node(gi, gj, false)
	if nd == nil {
		return false
	}
	_, ok := nd.inst[dev]
	return ok
}

// TileExistsAnywhere reports whether any instance of (i, j) exists.
func (a Matrix) TileExistsAnywhere(i, j int) bool {
	gi, gj := a.global(i, j)
	s := a.st
	s.mu.Lock()
	defer s.mu.Unlock()
	nd := s.node(gi, gj, false)
	return nd != nil && len(nd.inst) > 0
}

// TileGetForReading makes (i, j) valid at dev and returns it in the
// requested layout.
//
// Errors:
//   - ErrTileMissing, ErrNoValidCopy, a failed device queue.
func (a Matrix) TileGetForReading(i, j, dev int, conv tile.LayoutConvert) (tile.Tile, error) {
	return a.TileAcquire(i, j, dev, false, conv, nil)
}

// TileGetForWriting makes (i, j) valid at dev, invalidates every other
// instance and returns it in the requested layout.
func (a Matrix) TileGetForWriting(i, j, dev int, conv tile.LayoutConvert) (tile.Tile, error) {
	return a.TileAcquire(i, j, dev, true, conv, nil)
}

// TileGetAndHold is TileGetForReading followed by TileSetHold.
func (a Matrix) TileGetAndHold(i, j, dev int, conv tile.LayoutConvert) (tile.Tile, error) {
	if err := a.check("TileGetAndHold", i, j); err != nil {
		return tile.Tile{}, err
	}
	gi, gj := a.global(i, j)
	t, err := a.st.getAndHold(gi, gj, dev, conv)
	if err != nil {
		return tile.Tile{}, err
	}
	return a.decorate(t, i, j), nil
}

func (s *Storage) getAndHold(i, j, dev int, conv tile.LayoutConvert) (tile.Tile, error) {
	t, err := s.acquire(i, j, dev, false, conv, nil)
	if err != nil {
		return t, err
	}
	s.setHold(i, j, dev, true)
	return t, nil
}

// TileAcquire is the coherency primitive behind the TileGet* family. A
// non-nil queue q enqueues device copies on q instead of running them
// inline; the caller is then expected to submit its own work on q.
func (a Matrix) TileAcquire(i, j, dev int, write bool, conv tile.LayoutConvert, q *device.Queue) (tile.Tile, error) {
	if err := a.check("TileAcquire", i, j); err != nil {
		return tile.Tile{}, err
	}
	gi, gj := a.global(i, j)
	t, err := a.st.acquire(gi, gj, dev, write, conv, q)
	if err != nil {
		return tile.Tile{}, err
	}
	return a.decorate(t, i, j), nil
}

// Tile returns the host instance of (i, j) as currently stored, without
// coherency work.
func (a Matrix) Tile(i, j int) (tile.Tile, error) {
	return a.TileOn(i, j, tile.HostNum)
}

// TileOn returns the instance of (i, j) at dev without coherency work.
func (a Matrix) TileOn(i, j, dev int) (tile.Tile, error) {
	if err := a.check("Tile", i, j); err != nil {
		return tile.Tile{}, err
	}
	gi, gj := a.global(i, j)
	s := a.st
	s.mu.Lock()
	defer s.mu.Unlock()
	nd := s.node(gi, gj, false)
	if nd == nil || nd.inst[dev] == nil {
		return tile.Tile{}, matrixErrorf("Tile", i, j, ErrTileMissing)
	}
	return a.decorate(nd.inst[dev].t, i, j), nil
}

// TileState returns the coherency state of (i, j) at dev.
func (a Matrix) TileState(i, j, dev int) (State, bool) {
	gi, gj := a.global(i, j)
	s := a.st
	s.mu.Lock()
	defer s.mu.Unlock()
	nd := s.node(gi, gj, false)
	if nd == nil || nd.inst[dev] == nil {
		return Invalid, false
	}
	return nd.inst[dev].state, true
}

// TileModified marks the instance at dev as the only valid one, as after an
// in-place kernel the registry did not see. q, if not nil, is the queue
// that will write it.
func (a Matrix) TileModified(i, j, dev int, q *device.Queue) error {
	gi, gj := a.global(i, j)
	s := a.st
	s.mu.Lock()
	defer s.mu.Unlock()
	nd := s.node(gi, gj, false)
	if nd == nil || nd.inst[dev] == nil {
		return matrixErrorf("TileModified", i, j, ErrTileMissing)
	}
	for d, in := range nd.inst {
		if d != dev {
			in.state = Invalid
		}
	}
	nd.inst[dev].state = Modified
	if q != nil {
		nd.inst[dev].queue = q
	}
	return nil
}

// InsertLocalTiles allocates the origin of every local tile of the view, on
// the host or, with onDevices, on the tile's device.
func (a Matrix) InsertLocalTiles(onDevices bool) error {
	for j := 0; j < a.Nt(); j++ {
		for i := 0; i < a.Mt(); i++ {
			if !a.TileIsLocal(i, j) || a.skipTriangle(i, j) {
				continue
			}
			dev := tile.HostNum
			if onDevices {
				dev = a.TileDevice(i, j)
			}
			if _, err := a.TileInsert(i, j, dev); err != nil {
				return err
			}
		}
	}
	return nil
}

// skipTriangle reports tiles outside the stored triangle of a structured view.
func (a Matrix) skipTriangle(i, j int) bool {
	switch {
	case a.kind == General:
		return false
	case a.uplo == tile.Lower:
		return i < j
	case a.uplo == tile.Upper:
		return i > j
	}
	return false
}

// ForEachLocal calls fn for every local tile of the view inside its stored
// triangle, column by column.
func (a Matrix) ForEachLocal(fn func(i, j int) error) error {
	for j := 0; j < a.Nt(); j++ {
		for i := 0; i < a.Mt(); i++ {
			if a.TileIsLocal(i, j) && !a.skipTriangle(i, j) {
				if err := fn(i, j); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

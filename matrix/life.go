// SPDX-License-Identifier: MIT

// Package matrix - tile life, hold, release and origin updates.
//
// Rules:
//   - Origin instances are never freed by Release / Erase.
//   - Held instances are skipped by Release / Erase / Tick until unheld.
//   - Release writes a Modified workspace copy back to the origin first;
//     Erase drops instances without copying.

package matrix

import (
	"context"

	"github.com/katalvlaran/tilegrid/device"
	"github.com/katalvlaran/tilegrid/tile"
)

// TileLife returns the remaining consumer count of (i, j).
func (a Matrix) TileLife(i, j int) int {
	gi, gj := a.global(i, j)
	s := a.st
	s.mu.Lock()
	defer s.mu.Unlock()
	if nd := s.node(gi, gj, false); nd != nil {
		return nd.life
	}
	return 0
}

// SetTileLife sets the consumer count of (i, j).
func (a Matrix) SetTileLife(i, j, life int) {
	gi, gj := a.global(i, j)
	s := a.st
	s.mu.Lock()
	defer s.mu.Unlock()
	s.node(gi, gj, true).life = life
}

// TileTick records one consumer of a remote (i, j) as done. When the life
// reaches zero every unheld instance of the coordinate is erased. Local
// tiles have no life and are left alone.
func (a Matrix) TileTick(i, j int) {
	gi, gj := a.global(i, j)
	s := a.st
	if s.tileIsLocal(gi, gj) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	nd := s.node(gi, gj, false)
	if nd == nil || nd.life <= 0 {
		return
	}
	if nd.life--; nd.life == 0 {
		s.eraseLocked(gi, gj, allDevices, nil)
	}
}

// TileTickOn queues TileTick on q, after the work already submitted there.
// Instances last used by q count as idle when the tick runs. The caller
// must not hold any registry lock: Submit may wait for a queue slot.
func (a Matrix) TileTickOn(ctx context.Context, i, j int, q *device.Queue) error {
	gi, gj := a.global(i, j)
	s := a.st
	if s.tileIsLocal(gi, gj) {
		return nil
	}
	return q.Submit(ctx, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		nd := s.node(gi, gj, false)
		if nd == nil || nd.life <= 0 {
			return nil
		}
		if nd.life--; nd.life == 0 {
			s.eraseLocked(gi, gj, allDevices, q)
		}
		return nil
	})
}

// TileSetHold pins the instance of (i, j) at dev.
func (a Matrix) TileSetHold(i, j, dev int) { a.setHold(i, j, dev, true) }

// TileUnsetHold unpins the instance of (i, j) at dev.
func (a Matrix) TileUnsetHold(i, j, dev int) { a.setHold(i, j, dev, false) }

func (a Matrix) setHold(i, j, dev int, hold bool) {
	gi, gj := a.global(i, j)
	a.st.setHold(gi, gj, dev, hold)
}

func (s *Storage) setHold(i, j, dev int, hold bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nd := s.node(i, j, false); nd != nil {
		for d, in := range nd.inst {
			if d == dev || dev == allDevices {
				in.hold = hold
			}
		}
	}
}

// UnsetAllHolds unpins every instance of every tile of the view.
func (a Matrix) UnsetAllHolds() {
	for j := 0; j < a.Nt(); j++ {
		for i := 0; i < a.Mt(); i++ {
			a.setHold(i, j, allDevices, false)
		}
	}
}

// TileIsHeld reports whether the instance of (i, j) at dev is held.
func (a Matrix) TileIsHeld(i, j, dev int) bool {
	gi, gj := a.global(i, j)
	s := a.st
	s.mu.Lock()
	defer s.mu.Unlock()
	nd := s.node(gi, gj, false)
	return nd != nil && nd.inst[dev] != nil && nd.inst[dev].hold
}

// allDevices selects every instance of a coordinate.
const allDevices = -2

// AllDevices is the dev argument of Release / Erase / hold calls that
// selects every instance of a coordinate.
const AllDevices = allDevices

// TileRelease drops the workspace instance of (i, j) at dev (or every
// instance for AllDevices) after writing a Modified copy back to the origin.
func (a Matrix) TileRelease(i, j, dev int) error {
	gi, gj := a.global(i, j)
	s := a.st
	if err := s.updateOrigin(gi, gj); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eraseLocked(gi, gj, dev, nil)
	return nil
}

// TileErase drops the workspace instance of (i, j) at dev without copying.
func (a Matrix) TileErase(i, j, dev int) {
	gi, gj := a.global(i, j)
	s := a.st
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eraseLocked(gi, gj, dev, nil)
}

// eraseLocked frees unheld, non-origin instances. Instances with work
// pending on a queue other than on are left for a later release. Caller
// holds s.mu.
func (s *Storage) eraseLocked(i, j, dev int, on *device.Queue) {
	nd := s.node(i, j, false)
	if nd == nil {
		return
	}
	for d, in := range nd.inst {
		if (dev != allDevices && d != dev) || in.origin || in.hold {
			continue
		}
		if in.queue != nil && in.queue != on && in.queue.Pending() {
			continue
		}
		s.free(in)
		delete(nd.inst, d)
	}
	if len(nd.inst) == 0 {
		delete(s.nodes, coord{i, j})
	}
}

// updateOrigin copies the newest valid instance of (i, j) into its origin
// if the origin is stale. Queues holding that instance are synchronized.
func (s *Storage) updateOrigin(i, j int) error {
	for {
		s.mu.Lock()
		nd := s.node(i, j, false)
		if nd == nil {
			s.mu.Unlock()
			return nil
		}
		org := s.originOf(nd)
		if org == nil || org.state != Invalid {
			s.mu.Unlock()
			return nil
		}
		src := s.validSource(nd, org.t.Device())
		if src == nil {
			s.mu.Unlock()
			return matrixErrorf("TileUpdateOrigin", i, j, ErrNoValidCopy)
		}
		if w := waitFor(src, nil); w != nil {
			s.mu.Unlock()
			if err := w.Sync(); err != nil {
				return matrixErrorf("TileUpdateOrigin", i, j, err)
			}
			continue
		}
		err := tile.Copy(src.t, org.t)
		if err == nil {
			org.state = Shared
			src.state = Shared
		}
		s.mu.Unlock()
		return err
	}
}

// TileUpdateOrigin makes the origin of (i, j) hold the newest value.
func (a Matrix) TileUpdateOrigin(i, j int) error {
	gi, gj := a.global(i, j)
	return a.st.updateOrigin(gi, gj)
}

// TileUpdateAllOrigin runs TileUpdateOrigin on every local tile of the view.
func (a Matrix) TileUpdateAllOrigin() error {
	for j := 0; j < a.Nt(); j++ {
		for i := 0; i < a.Mt(); i++ {
			if !a.TileIsLocal(i, j) {
				continue
			}
			if err := a.TileUpdateOrigin(i, j); err != nil {
				return err
			}
		}
	}
	return nil
}

// EraseRemoteWorkspace erases every unheld instance of non-local tiles of
// the view.
func (a Matrix) EraseRemoteWorkspace() {
	a.eraseWorkspace(false)
}

// EraseLocalWorkspace erases every unheld non-origin instance of local
// tiles of the view.
func (a Matrix) EraseLocalWorkspace() {
	a.eraseWorkspace(true)
}

func (a Matrix) eraseWorkspace(local bool) {
	s := a.st
	s.mu.Lock()
	defer s.mu.Unlock()
	for j := 0; j < a.Nt(); j++ {
		for i := 0; i < a.Mt(); i++ {
			gi, gj := a.global(i, j)
			if s.tileIsLocal(gi, gj) == local {
				s.eraseLocked(gi, gj, allDevices, nil)
			}
		}
	}
}

// ReleaseWorkspace writes every local tile back to its origin, drops all
// unheld workspace of the whole storage, empties the host arena and returns
// idle device memory.
func (s *Storage) ReleaseWorkspace() error {
	// 1. Finish device work so nothing is skipped as pending.
	if err := s.SyncDevices(); err != nil {
		return err
	}

	// 2. Commit and erase.
	s.mu.Lock()
	coords := make([]coord, 0, len(s.nodes))
	for c := range s.nodes {
		coords = append(coords, c)
	}
	s.mu.Unlock()
	for _, c := range coords {
		if s.tileIsLocal(c.i, c.j) {
			if err := s.updateOrigin(c.i, c.j); err != nil {
				return err
			}
		}
		s.mu.Lock()
		s.eraseLocked(c.i, c.j, allDevices, nil)
		s.mu.Unlock()
	}

	// 3. Return idle memory.
	s.mu.Lock()
	s.arena = make(map[int][][]float64)
	s.mu.Unlock()
	for _, d := range s.devices {
		d.Pool().Release()
	}
	return nil
}

// ReleaseWorkspace is Storage.ReleaseWorkspace for the storage of a.
func (a Matrix) ReleaseWorkspace() error { return a.st.ReleaseWorkspace() }

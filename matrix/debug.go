// SPDX-License-Identifier: MIT

package matrix

import (
	"slices"

	"k8s.io/klog/v2"

	"github.com/katalvlaran/tilegrid/tile"
)

// LiveTile is a remote coordinate that still has instances on this rank.
type LiveTile struct {
	I, J int // storage coordinates
	Life int
	Held bool
}

// CheckTileLives lists remote coordinates of the storage that still hold
// workspace on this rank, sorted by column then row. Each is logged at
// klog.V(1). After a completed sweep the list is empty.
func (s *Storage) CheckTileLives() []LiveTile {
	s.mu.Lock()
	defer s.mu.Unlock()
	var live []LiveTile
	for c, nd := range s.nodes {
		if s.tileIsLocal(c.i, c.j) || len(nd.inst) == 0 {
			continue
		}
		lt := LiveTile{I: c.i, J: c.j, Life: nd.life}
		for _, in := range nd.inst {
			lt.Held = lt.Held || in.hold
		}
		live = append(live, lt)
	}
	slices.SortFunc(live, func(a, b LiveTile) int {
		if a.J != b.J {
			return a.J - b.J
		}
		return a.I - b.I
	})
	for _, lt := range live {
		klog.V(1).Infof("matrix: rank %d tile (%d,%d) life %d held %t", s.comm.Rank(), lt.I, lt.J, lt.Life, lt.Held)
	}
	return live
}

// CheckTileLives is Storage.CheckTileLives for the storage of a.
func (a Matrix) CheckTileLives() []LiveTile { return a.st.CheckTileLives() }

// Stats counts instances of one storage on this rank.
type Stats struct {
	Coordinates int // coordinates with at least one instance
	Origins     int
	Workspace   int // non-origin instances
	OnDevices   int // instances not on the host
	Held        int
	ArenaIdle   int // idle host workspace buffers
}

// Stats returns a snapshot of the registry.
func (s *Storage) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st Stats
	for _, nd := range s.nodes {
		if len(nd.inst) > 0 {
			st.Coordinates++
		}
		for dev, in := range nd.inst {
			if in.origin {
				st.Origins++
			} else {
				st.Workspace++
			}
			if dev != tile.HostNum {
				st.OnDevices++
			}
			if in.hold {
				st.Held++
			}
		}
	}
	for _, bufs := range s.arena {
		st.ArenaIdle += len(bufs)
	}
	return st
}

// Stats is Storage.Stats for the storage of a.
func (a Matrix) Stats() Stats { return a.st.Stats() }

// SPDX-License-Identifier: MIT

// Package matrix - Storage: tile instances, coherency and the workspace arena.
//
// Purpose:
//   - Own every instance of every coordinate held by this rank.
//   - Keep instances coherent: a write at one location invalidates the
//     others, a read at a location without a valid copy fetches one.
//   - Lease workspace buffers from a host arena or a device pool.
//
// All methods here work in storage coordinates; Matrix views translate.

package matrix

import (
	"sync"

	"github.com/katalvlaran/tilegrid/comm"
	"github.com/katalvlaran/tilegrid/device"
	"github.com/katalvlaran/tilegrid/tile"
)

// State is the coherency state of one instance.
type State uint8

const (
	Invalid  State = iota // stale, buffer kept for reuse
	Shared                // valid, other valid copies may exist
	Modified              // valid and the only valid copy
)

type coord struct{ i, j int }

// instance is one copy of a tile at one location.
type instance struct {
	t      tile.Tile
	state  State
	hold   bool
	origin bool
	queue  *device.Queue // last queue that used this instance asynchronously
}

// node is every instance of one coordinate on this rank.
type node struct {
	inst map[int]*instance // by device, tile.HostNum for the host
	life int
}

// Storage is the per-rank registry of one distributed matrix.
type Storage struct {
	m, n   int // elements
	mb, nb int // tile size
	mt, nt int // tiles
	p, q   int // process grid
	base   int // rank owning tile (0, 0)
	layout tile.Layout

	comm    comm.Communicator
	stream  uint64
	devices []*device.Device

	mu     sync.Mutex
	nodes  map[coord]*node
	arena  map[int][][]float64 // idle host workspace buffers by size
	queues int                 // queues allocated per device
}

func newStorage(m, n, mb, nb, p, q int, c comm.Communicator, o Options) *Storage {
	return &Storage{
		m: m, n: n, mb: mb, nb: nb,
		mt:      ceilDiv(m, mb),
		nt:      ceilDiv(n, nb),
		p:       p,
		q:       q,
		base:    o.BaseRank,
		layout:  o.Layout,
		comm:    c,
		stream:  c.NextStream(),
		devices: o.Devices,
		nodes:   make(map[coord]*node),
		arena:   make(map[int][][]float64),
	}
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// ---------- distribution ----------

func (s *Storage) tileRank(i, j int) int {
	return (s.base + i%s.p + (j%s.q)*s.p) % s.comm.Size()
}

func (s *Storage) tileDevice(_, j int) int {
	if len(s.devices) == 0 {
		return tile.HostNum
	}
	return (j / s.q) % len(s.devices)
}

func (s *Storage) tileIsLocal(i, j int) bool { return s.tileRank(i, j) == s.comm.Rank() }

func (s *Storage) tileMb(i int) int { return min(s.mb, s.m-i*s.mb) }
func (s *Storage) tileNb(j int) int { return min(s.nb, s.n-j*s.nb) }

func (s *Storage) device(dev int) (*device.Device, error) {
	if dev < 0 || dev >= len(s.devices) {
		return nil, ErrNoDevice
	}
	return s.devices[dev], nil
}

// ---------- allocation (caller holds s.mu) ----------

// alloc returns an mb×nb tile at dev from the arena or the device pool.
func (s *Storage) alloc(i, j, dev int, kind tile.Kind) (tile.Tile, error) {
	mb, nb := s.tileMb(i), s.tileNb(j)
	size := mb * nb
	var buf []float64
	if dev == tile.HostNum {
		if idle := s.arena[size]; kind == tile.Workspace && len(idle) > 0 {
			buf = idle[len(idle)-1]
			s.arena[size] = idle[:len(idle)-1]
			clear(buf)
		} else {
			buf = make([]float64, size)
		}
	} else {
		d, err := s.device(dev)
		if err != nil {
			return tile.Tile{}, err
		}
		if buf, err = d.Pool().Alloc(size); err != nil {
			return tile.Tile{}, err
		}
	}
	stride := max(1, mb)
	if s.layout == tile.RowMajor {
		stride = max(1, nb)
	}
	return tile.New(mb, nb, buf, stride, s.layout, dev, kind)
}

// free returns the buffer of in to its arena or pool.
func (s *Storage) free(in *instance) {
	t := in.t
	if t.Kind() == tile.UserOwned || in.origin {
		return
	}
	buf := t.Data()[:t.Size()]
	if t.Device() == tile.HostNum {
		if t.Kind() == tile.Workspace {
			s.arena[len(buf)] = append(s.arena[len(buf)], buf)
		}
		return
	}
	if d, err := s.device(t.Device()); err == nil {
		d.Pool().Free(buf)
	}
}

// node returns the node of (i, j), creating it when create is set.
func (s *Storage) node(i, j int, create bool) *node {
	c := coord{i, j}
	nd, ok := s.nodes[c]
	if !ok && create {
		nd = &node{inst: make(map[int]*instance)}
		s.nodes[c] = nd
	}
	return nd
}

// insert adds an instance at dev. Caller holds s.mu.
func (s *Storage) insert(i, j, dev int, kind tile.Kind, replace bool) (*instance, error) {
	nd := s.node(i, j, true)
	if old, ok := nd.inst[dev]; ok {
		if !replace {
			return nil, matrixErrorf("TileInsert", i, j, ErrTileExists)
		}
		s.free(old)
		delete(nd.inst, dev)
	}
	t, err := s.alloc(i, j, dev, kind)
	if err != nil {
		return nil, matrixErrorf("TileInsert", i, j, err)
	}
	in := &instance{t: t, state: Modified}
	if s.hasValid(nd, dev) {
		in.state = Invalid
	}
	if kind == tile.Owned && s.tileIsLocal(i, j) && s.originOf(nd) == nil {
		in.origin = true
		in.t = in.t.WithOrigin(true)
	}
	nd.inst[dev] = in
	return in, nil
}

// adopt installs t as the origin instance of (i, j). Caller holds s.mu.
func (s *Storage) adopt(i, j int, t tile.Tile) {
	nd := s.node(i, j, true)
	nd.inst[t.Device()] = &instance{t: t.WithOrigin(true), state: Modified, origin: true}
}

func (s *Storage) hasValid(nd *node, except int) bool {
	for dev, in := range nd.inst {
		if dev != except && in.state != Invalid {
			return true
		}
	}
	return false
}

func (s *Storage) originOf(nd *node) *instance {
	for _, in := range nd.inst {
		if in.origin {
			return in
		}
	}
	return nil
}

// ---------- coherency ----------

// waitFor returns a queue that must be synchronized before the caller may
// touch in from queue q, or nil.
func waitFor(in *instance, q *device.Queue) *device.Queue {
	if in == nil || in.queue == nil || in.queue == q || !in.queue.Pending() {
		return nil
	}
	return in.queue
}

// acquire makes (i, j) valid at dev and returns its tile in the requested
// layout. With write set, every other instance is invalidated. With a
// device queue q, copies into a device instance are enqueued on q instead of
// run inline, and the involved instances are marked as used by q.
//
// s.mu is released while waiting for a foreign queue and the state is
// re-examined afterwards.
func (s *Storage) acquire(i, j, dev int, write bool, conv tile.LayoutConvert, q *device.Queue) (tile.Tile, error) {
	for {
		s.mu.Lock()
		t, wait, err := s.acquireLocked(i, j, dev, write, conv, q)
		s.mu.Unlock()
		if wait == nil {
			return t, err
		}
		if err := wait.Sync(); err != nil {
			return tile.Tile{}, matrixErrorf("TileAcquire", i, j, err)
		}
	}
}

func (s *Storage) acquireLocked(i, j, dev int, write bool, conv tile.LayoutConvert, q *device.Queue) (tile.Tile, *device.Queue, error) {
	// 1. Locate the coordinate.
	nd := s.node(i, j, false)
	if nd == nil || len(nd.inst) == 0 {
		return tile.Tile{}, nil, matrixErrorf("TileAcquire", i, j, ErrTileMissing)
	}
	dst := nd.inst[dev]
	if w := waitFor(dst, q); w != nil {
		return tile.Tile{}, w, nil
	}

	// 2. Fetch a valid copy when dst is missing or stale.
	if dst == nil || dst.state == Invalid {
		src := s.validSource(nd, dev)
		if src == nil {
			return tile.Tile{}, nil, matrixErrorf("TileAcquire", i, j, ErrNoValidCopy)
		}
		if w := waitFor(src, q); w != nil {
			return tile.Tile{}, w, nil
		}
		if dst == nil {
			t, err := s.alloc(i, j, dev, tile.Workspace)
			if err != nil {
				return tile.Tile{}, nil, matrixErrorf("TileAcquire", i, j, err)
			}
			dst = &instance{t: t}
			nd.inst[dev] = dst
		}
		srcTile, dstTile := src.t, dst.t
		if q != nil && (dev != tile.HostNum || src.t.Device() != tile.HostNum) {
			// s.mu is held and tick tasks on q take it, so never wait for a slot
			if err := q.Post(func() error { return tile.Copy(srcTile, dstTile) }); err != nil {
				return tile.Tile{}, nil, matrixErrorf("TileAcquire", i, j, err)
			}
			src.queue, dst.queue = q, q
		} else if err := tile.Copy(srcTile, dstTile); err != nil {
			return tile.Tile{}, nil, matrixErrorf("TileAcquire", i, j, err)
		}
		dst.state = Shared
		if src.state == Modified {
			src.state = Shared
		}
	}

	// 3. Writes own the only valid copy.
	if write {
		for d, in := range nd.inst {
			if d == dev {
				continue
			}
			if w := waitFor(in, q); w != nil {
				return tile.Tile{}, w, nil
			}
			in.state = Invalid
		}
		dst.state = Modified
		if q != nil {
			dst.queue = q
		}
	}

	// 4. Deliver the layout; a tile with queued work is converted after it.
	if conv != tile.ConvertNone && dst.t.Layout() != layoutOf(conv) {
		if dst.queue != nil && dst.queue.Pending() {
			return tile.Tile{}, dst.queue, nil
		}
		dst.t.Deliver(conv)
	}
	if q != nil && dev != tile.HostNum {
		dst.queue = q
	}
	return dst.t, nil, nil
}

func layoutOf(c tile.LayoutConvert) tile.Layout {
	if c == tile.ConvertRowMajor {
		return tile.RowMajor
	}
	return tile.ColMajor
}

// validSource picks a valid instance other than dev, preferring the host.
func (s *Storage) validSource(nd *node, dev int) *instance {
	if in, ok := nd.inst[tile.HostNum]; ok && dev != tile.HostNum && in.state != Invalid {
		return in
	}
	var best *instance
	for d, in := range nd.inst {
		if d == dev || in.state == Invalid {
			continue
		}
		if best == nil || in.state == Modified {
			best = in
		}
	}
	return best
}

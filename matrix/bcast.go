// SPDX-License-Identifier: MIT

// Package matrix - broadcast and reduction lists, point-to-point tile moves.
//
// Purpose:
//   - Describe one-to-many and many-to-one tile movements as data
//     (BcastList, ReduceList) instead of per-pair message loops.
//   - Derive every participant from the block-cyclic map, so all ranks agree
//     on the rank set of each collective without talking.
//
// Tags:
//   - Every message of a storage travels on the storage stream; the sequence
//     number mixes the entry tag, the coordinate and the movement kind, so
//     concurrent entries never share a mailbox.
//
// Failure policy:
//   - Transport errors are returned wrapped with the coordinate; callers
//     running inside sched tasks turn them into fatal errors.

package matrix

import (
	"context"
	"slices"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/tilegrid/comm"
	"github.com/katalvlaran/tilegrid/device"
	"github.com/katalvlaran/tilegrid/tile"
)

// BcastEntry sends view tile (I, J) to the owners of every tile in Dests.
type BcastEntry struct {
	I, J  int
	Dests []Matrix
	Tag   int
}

// BcastList is a batch of broadcasts.
type BcastList []BcastEntry

// ReduceEntry sums the copies of view tile (I, J) held by the owners of
// Srcs onto the owner of the single tile of Root.
type ReduceEntry struct {
	I, J int
	Root Matrix
	Srcs []Matrix
	Tag  int
}

// ReduceList is a batch of reductions.
type ReduceList []ReduceEntry

// movement kinds mixed into message sequence numbers
const (
	moveBcast = iota
	moveReduce
	movePointToPoint
	moveKinds
)

// seq returns the message sequence number of a storage coordinate.
func (s *Storage) seq(tag, i, j, kind int) int64 {
	return ((int64(tag)*int64(s.mt)+int64(i))*int64(s.nt)+int64(j))*moveKinds + int64(kind)
}

func (s *Storage) tag(tag, i, j, kind int) comm.Tag {
	return comm.Tag{Stream: s.stream, Seq: s.seq(tag, i, j, kind)}
}

// destKey identifies a destination tile across storages.
type destKey struct {
	st   *Storage
	i, j int
}

// participants returns the sorted owners of every tile of views plus extra,
// and the distinct local tiles among them.
func participants(me int, views []Matrix, extra ...int) (ranks []int, local int) {
	ranks = append(ranks, extra...)
	var mine []destKey
	for _, d := range views {
		for j := 0; j < d.Nt(); j++ {
			for i := 0; i < d.Mt(); i++ {
				if d.skipTriangle(i, j) {
					continue
				}
				r := d.TileRank(i, j)
				ranks = append(ranks, r)
				if r == me {
					gi, gj := d.global(i, j)
					mine = append(mine, destKey{d.st, gi, gj})
				}
			}
		}
	}
	ranks = lo.Uniq(ranks)
	slices.Sort(ranks)
	return ranks, len(lo.Uniq(mine))
}

// ListBcast runs every entry of list. On each receiving rank the tile is
// stored on the host in layout and its life grows by the number of distinct
// local destination tiles.
//
// Errors:
//   - ErrOutOfRange for an entry outside a, ErrNoValidCopy on the source,
//     transport errors.
func (a Matrix) ListBcast(ctx context.Context, list BcastList, layout tile.Layout, opts ...BcastOption) error {
	o := gatherBcastOptions(opts...)
	if !o.concurrent {
		for _, e := range list {
			if err := a.bcastEntry(ctx, e, layout, o); err != nil {
				return err
			}
		}
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, e := range list {
		g.Go(func() error { return a.bcastEntry(gctx, e, layout, o) })
	}
	return g.Wait()
}

// TileBcast sends view tile (i, j) to the owners of dest.
func (a Matrix) TileBcast(ctx context.Context, i, j int, dest Matrix, layout tile.Layout, tag int) error {
	return a.ListBcast(ctx, BcastList{{I: i, J: j, Dests: []Matrix{dest}, Tag: tag}}, layout)
}

func (a Matrix) bcastEntry(ctx context.Context, e BcastEntry, layout tile.Layout, o bcastOptions) error {
	if err := a.check("ListBcast", e.I, e.J); err != nil {
		return err
	}
	s := a.st
	me := s.comm.Rank()
	gi, gj := a.global(e.I, e.J)
	root := s.tileRank(gi, gj)

	// 1. Rank set: source owner plus every destination owner.
	ranks, local := participants(me, e.Dests, root)
	if _, ok := slices.BinarySearch(ranks, me); !ok || len(ranks) == 1 {
		return nil
	}

	// 2. Pack on the root, receive elsewhere.
	mb, nb := s.tileMb(gi), s.tileNb(gj)
	var buf []float64
	if me == root {
		t, err := s.acquire(gi, gj, tile.HostNum, false, tile.ConvertNone, nil)
		if err != nil {
			return matrixErrorf("ListBcast", e.I, e.J, err)
		}
		if buf, err = pack(t, layout); err != nil {
			return matrixErrorf("ListBcast", e.I, e.J, err)
		}
	} else {
		buf = make([]float64, mb*nb)
	}
	if err := comm.Bcast(ctx, s.comm, root, ranks, s.tag(e.Tag, gi, gj, moveBcast), buf); err != nil {
		return matrixErrorf("ListBcast", e.I, e.J, err)
	}
	if me == root {
		return nil
	}

	// 3. Store the copy and count its consumers.
	if err := s.store(gi, gj, buf, layout); err != nil {
		return matrixErrorf("ListBcast", e.I, e.J, err)
	}
	s.mu.Lock()
	s.node(gi, gj, true).life += local
	s.mu.Unlock()

	// 4. Shared copies: resident and held where the consumers run.
	if o.shared {
		for _, dev := range consumerDevices(me, e.Dests) {
			if _, err := s.getAndHold(gi, gj, dev, tile.ConvertNone); err != nil {
				return matrixErrorf("ListBcast", e.I, e.J, err)
			}
		}
	}
	return nil
}

// consumerDevices lists the devices of local destination tiles.
func consumerDevices(me int, views []Matrix) []int {
	var devs []int
	for _, d := range views {
		for j := 0; j < d.Nt(); j++ {
			for i := 0; i < d.Mt(); i++ {
				if d.TileRank(i, j) == me && !d.skipTriangle(i, j) {
					if dev := d.TileDevice(i, j); dev != tile.HostNum {
						devs = append(devs, dev)
					}
				}
			}
		}
	}
	return lo.Uniq(devs)
}

// ListReduce runs every entry of list. Participants without a copy of the
// tile contribute zeros. The root stores the sum on the host in layout;
// other ranks not owning the tile drop their copy after sending it.
//
// Errors:
//   - ErrNotSingleTile when a Root spans more than one tile, transport errors.
func (a Matrix) ListReduce(ctx context.Context, list ReduceList, layout tile.Layout) error {
	for _, e := range list {
		if err := a.reduceEntry(ctx, e, layout); err != nil {
			return err
		}
	}
	return nil
}

func (a Matrix) reduceEntry(ctx context.Context, e ReduceEntry, layout tile.Layout) error {
	if err := a.check("ListReduce", e.I, e.J); err != nil {
		return err
	}
	if e.Root.Mt() != 1 || e.Root.Nt() != 1 {
		return matrixErrorf("ListReduce", e.I, e.J, ErrNotSingleTile)
	}
	s := a.st
	me := s.comm.Rank()
	gi, gj := a.global(e.I, e.J)
	root := e.Root.TileRank(0, 0)

	// 1. Rank set: root plus every source owner.
	ranks, _ := participants(me, e.Srcs, root)
	if _, ok := slices.BinarySearch(ranks, me); !ok {
		return nil
	}

	// 2. Contribution of this rank.
	mb, nb := s.tileMb(gi), s.tileNb(gj)
	buf := make([]float64, mb*nb)
	if s.hasAnyValid(gi, gj) {
		t, err := s.acquire(gi, gj, tile.HostNum, false, tile.ConvertNone, nil)
		if err != nil {
			return matrixErrorf("ListReduce", e.I, e.J, err)
		}
		if err := packInto(t, layout, buf); err != nil {
			return matrixErrorf("ListReduce", e.I, e.J, err)
		}
	}

	// 3. Tree sum.
	if len(ranks) > 1 {
		if err := comm.Reduce(ctx, s.comm, root, ranks, s.tag(e.Tag, gi, gj, moveReduce), buf, comm.Sum); err != nil {
			return matrixErrorf("ListReduce", e.I, e.J, err)
		}
	}

	// 4. Root keeps the sum, remote senders drop their partial copy.
	if me == root {
		if err := s.store(gi, gj, buf, layout); err != nil {
			return matrixErrorf("ListReduce", e.I, e.J, err)
		}
		return nil
	}
	if !s.tileIsLocal(gi, gj) {
		s.mu.Lock()
		s.eraseLocked(gi, gj, allDevices, nil)
		s.mu.Unlock()
	}
	return nil
}

// TileSend sends the current value of view tile (i, j) to rank dst in the
// storage layout. Sending to self is a no-op.
func (a Matrix) TileSend(ctx context.Context, i, j, dst, tag int) error {
	if err := a.check("TileSend", i, j); err != nil {
		return err
	}
	s := a.st
	if dst == s.comm.Rank() {
		return nil
	}
	gi, gj := a.global(i, j)
	t, err := s.acquire(gi, gj, tile.HostNum, false, tile.ConvertNone, nil)
	if err != nil {
		return matrixErrorf("TileSend", i, j, err)
	}
	buf, err := pack(t, s.layout)
	if err != nil {
		return matrixErrorf("TileSend", i, j, err)
	}
	if err := s.comm.Send(ctx, dst, s.tag(tag, gi, gj, movePointToPoint), buf); err != nil {
		return matrixErrorf("TileSend", i, j, err)
	}
	return nil
}

// TileRecv receives view tile (i, j) from rank src into the host instance,
// inserting a workspace instance when none exists, and stores it in layout.
// Receiving from self is a no-op.
func (a Matrix) TileRecv(ctx context.Context, i, j, src int, layout tile.Layout, tag int) error {
	if err := a.check("TileRecv", i, j); err != nil {
		return err
	}
	s := a.st
	if src == s.comm.Rank() {
		return nil
	}
	gi, gj := a.global(i, j)
	buf := make([]float64, s.tileMb(gi)*s.tileNb(gj))
	if err := s.comm.Recv(ctx, src, s.tag(tag, gi, gj, movePointToPoint), buf); err != nil {
		return matrixErrorf("TileRecv", i, j, err)
	}
	if s.layout != layout {
		// wire format is the storage layout
		t, err := tile.New(s.tileMb(gi), s.tileNb(gj), buf, natural(s.tileMb(gi), s.tileNb(gj), s.layout), s.layout, tile.HostNum, tile.Workspace)
		if err != nil {
			return matrixErrorf("TileRecv", i, j, err)
		}
		if buf, err = pack(t, layout); err != nil {
			return matrixErrorf("TileRecv", i, j, err)
		}
	}
	if err := s.store(gi, gj, buf, layout); err != nil {
		return matrixErrorf("TileRecv", i, j, err)
	}
	return nil
}

// ---------- wire helpers ----------

func natural(mb, nb int, l tile.Layout) int {
	if l == tile.RowMajor {
		return max(1, nb)
	}
	return max(1, mb)
}

// pack copies t into a new contiguous buffer stored in layout.
func pack(t tile.Tile, layout tile.Layout) ([]float64, error) {
	buf := make([]float64, t.Size())
	return buf, packInto(t, layout, buf)
}

func packInto(t tile.Tile, layout tile.Layout, buf []float64) error {
	w, err := tile.New(t.Mb(), t.Nb(), buf, natural(t.Mb(), t.Nb(), layout), layout, tile.HostNum, tile.Workspace)
	if err != nil {
		return err
	}
	return tile.Copy(t, w)
}

// store writes a packed buffer into the host instance of (i, j), inserting
// workspace when needed, and makes that instance the only valid one.
func (s *Storage) store(i, j int, buf []float64, layout tile.Layout) error {
	for {
		s.mu.Lock()
		nd := s.node(i, j, true)
		var wait *device.Queue
		for _, in := range nd.inst {
			if wait = waitFor(in, nil); wait != nil {
				break
			}
		}
		if wait != nil {
			s.mu.Unlock()
			if err := wait.Sync(); err != nil {
				return err
			}
			continue
		}
		err := s.storeLocked(nd, i, j, buf, layout)
		s.mu.Unlock()
		return err
	}
}

func (s *Storage) storeLocked(nd *node, i, j int, buf []float64, layout tile.Layout) error {
	in := nd.inst[tile.HostNum]
	if in == nil {
		var err error
		if in, err = s.insert(i, j, tile.HostNum, tile.Workspace, false); err != nil {
			return err
		}
	}
	in.t.SetLayout(layout)
	src, err := tile.New(in.t.Mb(), in.t.Nb(), buf, natural(in.t.Mb(), in.t.Nb(), layout), layout, tile.HostNum, tile.Workspace)
	if err != nil {
		return err
	}
	if err := tile.Copy(src, in.t); err != nil {
		return err
	}
	for d, o := range nd.inst {
		if d != tile.HostNum {
			o.state = Invalid
		}
	}
	in.state = Modified
	return nil
}

// hasAnyValid reports whether some instance of (i, j) holds a valid value.
func (s *Storage) hasAnyValid(i, j int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	nd := s.node(i, j, false)
	return nd != nil && s.hasValid(nd, allDevices)
}

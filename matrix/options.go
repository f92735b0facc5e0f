// SPDX-License-Identifier: MIT

// Package matrix - functional options for storages and communication lists.

package matrix

import (
	"github.com/katalvlaran/tilegrid/device"
	"github.com/katalvlaran/tilegrid/tile"
)

// ---------- Defaults (single source of truth) ----------

const (
	// DefaultLayout is the layout of newly allocated tiles.
	DefaultLayout = tile.ColMajor

	// DefaultBaseRank is the rank owning tile (0, 0).
	DefaultBaseRank = 0
)

const (
	panicBaseRankInvalid = "matrix: WithBaseRank: rank must be >= 0"
	panicLayoutInvalid   = "matrix: WithLayout: unknown layout"
)

// ---------- storage options ----------

// Option configures a Storage.
type Option func(*Options)

// Options holds Storage configuration.
type Options struct {
	Layout   tile.Layout
	BaseRank int
	Devices  []*device.Device
}

// WithLayout sets the layout of tiles allocated by the registry.
func WithLayout(l tile.Layout) Option {
	if l != tile.ColMajor && l != tile.RowMajor {
		panic(panicLayoutInvalid)
	}
	return func(o *Options) { o.Layout = l }
}

// WithBaseRank shifts the block-cyclic map so tile (0, 0) lives on rank r.
func WithBaseRank(r int) Option {
	if r < 0 {
		panic(panicBaseRankInvalid)
	}
	return func(o *Options) { o.BaseRank = r }
}

// WithDevices attaches devices; tile column j maps to device (j/q) mod len(devs).
func WithDevices(devs ...*device.Device) Option {
	return func(o *Options) { o.Devices = append(o.Devices[:0:0], devs...) }
}

func gatherOptions(opts ...Option) Options {
	o := Options{Layout: DefaultLayout, BaseRank: DefaultBaseRank}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// ---------- broadcast options ----------

// BcastOption configures ListBcast.
type BcastOption func(*bcastOptions)

type bcastOptions struct {
	shared     bool
	concurrent bool
}

// WithDeviceCopies also makes received tiles resident on the devices of
// the local destination tiles and holds those copies. Life ticks then free
// only the host copy; the caller unsets the holds once every consumer on
// the devices is done.
func WithDeviceCopies() BcastOption {
	return func(o *bcastOptions) { o.shared = true }
}

// WithConcurrentEntries runs the entries of a list in parallel.
func WithConcurrentEntries() BcastOption {
	return func(o *bcastOptions) { o.concurrent = true }
}

func gatherBcastOptions(opts ...BcastOption) bcastOptions {
	var o bcastOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

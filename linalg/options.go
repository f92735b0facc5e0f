// SPDX-License-Identifier: MIT

// Package linalg - functional options shared by the algorithms.

package linalg

import (
	"runtime"

	"github.com/katalvlaran/tilegrid/dispatch"
	"github.com/katalvlaran/tilegrid/sched"
)

// ---------- Defaults (single source of truth) ----------

const (
	// DefaultLookahead is the number of columns updated ahead of the
	// trailing matrix.
	DefaultLookahead = 1

	// DefaultTarget runs kernels as one goroutine per tile.
	DefaultTarget = dispatch.HostTask

	// DefaultInnerBlocking is the block size inside a diagonal tile
	// factorization.
	DefaultInnerBlocking = 16
)

const (
	panicLookaheadInvalid = "linalg: WithLookahead: lookahead must be >= 0"
	panicTargetInvalid    = "linalg: WithTarget: unknown target"
	panicBlockingInvalid  = "linalg: WithInnerBlocking: ib must be >= 1"
	panicWorkersInvalid   = "linalg: WithWorkers: workers must be >= 1"
	panicFatalNil         = "linalg: WithFatalHandler: handler must be non-nil"
)

// Option configures one algorithm call.
type Option func(*Options)

// Options holds the configuration of one algorithm call.
type Options struct {
	Lookahead     int
	Target        dispatch.Target
	InnerBlocking int
	Workers       int
	Fatal         sched.FatalHandler
}

// WithLookahead sets the lookahead depth; 0 is a plain right-looking sweep.
func WithLookahead(la int) Option {
	if la < 0 {
		panic(panicLookaheadInvalid)
	}
	return func(o *Options) { o.Lookahead = la }
}

// WithTarget selects where kernels run.
func WithTarget(t dispatch.Target) Option {
	if !t.Valid() {
		panic(panicTargetInvalid)
	}
	return func(o *Options) { o.Target = t }
}

// WithInnerBlocking sets the inner block size of the diagonal
// factorization.
func WithInnerBlocking(ib int) Option {
	if ib < 1 {
		panic(panicBlockingInvalid)
	}
	return func(o *Options) { o.InnerBlocking = ib }
}

// WithWorkers bounds both the task workers and the host kernel parallelism.
func WithWorkers(n int) Option {
	if n < 1 {
		panic(panicWorkersInvalid)
	}
	return func(o *Options) { o.Workers = n }
}

// WithFatalHandler replaces sched.DefaultFatal for the task graph.
func WithFatalHandler(fn sched.FatalHandler) Option {
	if fn == nil {
		panic(panicFatalNil)
	}
	return func(o *Options) { o.Fatal = fn }
}

func gatherOptions(opts ...Option) Options {
	o := Options{
		Lookahead:     DefaultLookahead,
		Target:        DefaultTarget,
		InnerBlocking: DefaultInnerBlocking,
		Workers:       runtime.GOMAXPROCS(0),
		Fatal:         sched.DefaultFatal,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// SPDX-License-Identifier: MIT

// Package linalg - per-call machinery shared by the sweeps.

package linalg

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/katalvlaran/tilegrid/dispatch"
	"github.com/katalvlaran/tilegrid/matrix"
	"github.com/katalvlaran/tilegrid/sched"
)

// plan bundles the graph and dispatcher of one algorithm call together
// with the matrices whose workspace it must release at the end.
type plan struct {
	name   string
	o      Options
	g      *sched.Graph
	d      *dispatch.Dispatcher
	mats   []matrix.Matrix
	start  time.Time
	queues int
	err    error // first submission failure
}

// newPlan starts the graph of one call. With the Devices target every
// matrix gets lookahead+2 queues per device: one per lookahead slot, one
// for the trailing update and one for the panel.
func newPlan(ctx context.Context, name string, o Options, mats ...matrix.Matrix) (*plan, error) {
	p := &plan{
		name:   name,
		o:      o,
		d:      dispatch.New(o.Target, o.Workers),
		mats:   mats,
		start:  time.Now(),
		queues: o.Lookahead + 2,
	}
	if o.Target == dispatch.Devices {
		for _, m := range mats {
			m.AllocateBatchArrays(p.queues)
			if err := m.ReserveDeviceWorkspace(); err != nil {
				p.d.Close()
				return nil, err
			}
		}
	}
	p.g = sched.New(ctx, sched.WithWorkers(o.Workers), sched.WithFatalHandler(o.Fatal))
	klog.V(1).Infof("linalg: %s start, lookahead %d, target %s", name, o.Lookahead, o.Target)
	return p, nil
}

// lookaheadQueue is the device queue of lookahead slot l.
func (p *plan) lookaheadQueue(l int) int { return l }

// trailingQueue is the device queue of the trailing update.
func (p *plan) trailingQueue() int { return p.o.Lookahead }

// panelQueue is the device queue of the panel.
func (p *plan) panelQueue() int { return p.o.Lookahead + 1 }

// submit adds t to the graph.
func (p *plan) submit(t sched.Task) {
	if err := p.g.Go(t); err != nil && p.err == nil {
		p.err = err
	}
}

// finish waits for every task, then commits device results to the origins
// and drops all remaining workspace.
func (p *plan) finish() error {
	defer p.d.Close()
	err := p.g.Wait()
	if err == nil {
		err = p.err
	}
	for _, m := range p.mats {
		if p.o.Target == dispatch.Devices {
			if rerr := m.ReleaseWorkspace(); rerr != nil && err == nil {
				err = rerr
			}
			continue
		}
		m.EraseRemoteWorkspace()
	}
	klog.V(1).Infof("linalg: %s done in %v", p.name, time.Since(p.start))
	return err
}

// bounds returns the smallest and largest index of rows.
func bounds(rows []int) (lo, hi int) {
	lo, hi = rows[0], rows[0]
	for _, r := range rows[1:] {
		lo, hi = min(lo, r), max(hi, r)
	}
	return lo, hi
}

// rowOffset is the global row of the first element of view tile row i.
func rowOffset(a matrix.Matrix, i int) int {
	r := 0
	for k := 0; k < i; k++ {
		r += a.TileMb(k)
	}
	return r
}

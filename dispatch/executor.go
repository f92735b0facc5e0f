package dispatch

import (
	"context"
	"slices"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/katalvlaran/tilegrid/device"
	"github.com/katalvlaran/tilegrid/matrix"
	"github.com/katalvlaran/tilegrid/tile"
)

// operand is one tile of a kernel call.
type operand struct {
	m     matrix.Matrix
	i, j  int
	write bool
}

// job is the unit every executor runs: acquire ops at dev, call run with
// the tiles in the same order, then tick the remote inputs listed in tick.
type job struct {
	dev  int
	ops  []operand
	run  func(t []tile.Tile) error
	tick []operand
}

// executor runs the jobs of one kernel stage. queue is the device queue
// index the stage was assigned to; host executors ignore it.
type executor interface {
	execute(ctx context.Context, jobs []job, queue int) error
}

// acquire makes every operand of j valid at dev; q queues device copies.
func (j job) acquire(dev int, q *device.Queue) ([]tile.Tile, error) {
	tiles := make([]tile.Tile, len(j.ops))
	for k, op := range j.ops {
		t, err := op.m.TileAcquire(op.i, op.j, dev, op.write, tile.ConvertNone, q)
		if err != nil {
			return nil, err
		}
		tiles[k] = t
	}
	return tiles, nil
}

// runHost runs j on the host and ticks its inputs.
func runHost(j job) error {
	tiles, err := j.acquire(tile.HostNum, nil)
	if err != nil {
		return err
	}
	if err := j.run(tiles); err != nil {
		return err
	}
	for _, op := range j.tick {
		op.m.TileTick(op.i, op.j)
	}
	return nil
}

// ---------- host executors ----------

// taskExec runs one goroutine per job.
type taskExec struct{ workers int }

func (e taskExec) execute(ctx context.Context, jobs []job, _ int) error {
	g, ctx := errgroup.WithContext(ctx)
	if e.workers > 0 {
		g.SetLimit(e.workers)
	}
	for _, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return runHost(j)
		})
	}
	return g.Wait()
}

// nestExec splits the jobs over the persistent pool.
type nestExec struct{ pool *pool }

func (e nestExec) execute(ctx context.Context, jobs []job, _ int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var (
		mu    sync.Mutex
		first error
	)
	e.pool.parallelFor(len(jobs), func(start, end int) {
		for _, j := range jobs[start:end] {
			if err := runHost(j); err != nil {
				mu.Lock()
				if first == nil {
					first = err
				}
				mu.Unlock()
				return
			}
		}
	})
	return first
}

// batchExec walks every job in one loop.
type batchExec struct{}

func (batchExec) execute(ctx context.Context, jobs []job, _ int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, j := range jobs {
		if err := runHost(j); err != nil {
			return err
		}
	}
	return nil
}

// ---------- devices ----------

// deviceExec groups the jobs by device and queues each group on the
// device's queue. Jobs placed on the host fall back to batchExec.
type deviceExec struct{}

func (deviceExec) execute(ctx context.Context, jobs []job, queue int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	groups := lo.GroupBy(jobs, func(j job) int { return j.dev })
	devs := lo.Keys(groups)
	slices.Sort(devs)
	for _, dev := range devs {
		group := groups[dev]
		if dev == tile.HostNum {
			if err := (batchExec{}).execute(ctx, group, queue); err != nil {
				return err
			}
			continue
		}
		if err := submitGroup(ctx, dev, group, queue); err != nil {
			return err
		}
	}
	return nil
}

// submitGroup acquires every operand of group on dev with copies queued on
// the compute queue, queues the whole batch behind them and queues the
// ticks last. Outputs stay Modified on dev with the queue pending.
func submitGroup(ctx context.Context, dev int, group []job, queue int) error {
	// 1. Resolve the compute queue from the first output's matrix.
	q, err := group[0].ops[0].m.ComputeQueue(dev, queue)
	if err != nil {
		return err
	}

	// 2. Make operands resident.
	operands := make([][]tile.Tile, len(group))
	for k, j := range group {
		if operands[k], err = j.acquire(dev, q); err != nil {
			return err
		}
	}

	// 3. One submission for the batch.
	err = q.Submit(ctx, func() error {
		for k, j := range group {
			if err := j.run(operands[k]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	klog.V(4).Infof("dispatch: queued %d jobs on device %d queue %d", len(group), dev, queue)

	// 4. Ticks run after the batch in queue order.
	for _, j := range group {
		for _, op := range j.tick {
			if err := op.m.TileTickOn(ctx, op.i, op.j, q); err != nil {
				return err
			}
		}
	}
	return nil
}

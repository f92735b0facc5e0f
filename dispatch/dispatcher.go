package dispatch

import (
	"context"

	"github.com/katalvlaran/tilegrid/matrix"
	"github.com/katalvlaran/tilegrid/tile"
)

const panicUnknownTarget = "dispatch: New: unknown target"

// Dispatcher runs kernels on one target. It is safe for concurrent use by
// the tasks of one algorithm call; Close releases the HostNest pool.
type Dispatcher struct {
	target Target
	exec   executor
	pool   *pool
}

// New returns a Dispatcher for t. workers bounds host parallelism; <= 0
// means GOMAXPROCS for HostNest and unbounded for HostTask.
//
// Panics on an invalid target.
func New(t Target, workers int) *Dispatcher {
	d := &Dispatcher{target: t}
	switch t {
	case HostTask:
		d.exec = taskExec{workers: workers}
	case HostNest:
		d.pool = newPool(workers)
		d.exec = nestExec{pool: d.pool}
	case HostBatch:
		d.exec = batchExec{}
	case Devices:
		d.exec = deviceExec{}
	default:
		panic(panicUnknownTarget)
	}
	return d
}

// Target returns the target d was built for.
func (d *Dispatcher) Target() Target { return d.target }

// Close stops the worker pool, if any. Safe to call twice.
func (d *Dispatcher) Close() {
	if d.pool != nil {
		d.pool.close()
	}
}

// devOf places the job writing m(i, j).
func (d *Dispatcher) devOf(m matrix.Matrix, i, j int) int {
	if d.target != Devices {
		return tile.HostNum
	}
	return m.TileDevice(i, j)
}

func (d *Dispatcher) execute(ctx context.Context, op string, jobs []job, queue int) error {
	if len(jobs) == 0 {
		return nil
	}
	if err := d.exec.execute(ctx, jobs, queue); err != nil {
		return dispatchErrorf(op, err)
	}
	return nil
}

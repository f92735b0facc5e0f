package dispatch

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// pool is a persistent set of workers for nested parallel loops. It lives
// as long as its Dispatcher, so one algorithm call spawns its goroutines
// once.
type pool struct {
	workers int
	work    chan chunk
	once    sync.Once
	closed  atomic.Bool
}

type chunk struct {
	fn   func()
	done *sync.WaitGroup
}

func newPool(workers int) *pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &pool{workers: workers, work: make(chan chunk, workers*2)}
	for range workers {
		go p.worker()
	}
	return p
}

func (p *pool) worker() {
	for c := range p.work {
		c.fn()
		c.done.Done()
	}
}

// parallelFor calls fn on contiguous chunks covering [0, n) and waits.
// A closed pool or a single chunk runs inline.
func (p *pool) parallelFor(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := min(p.workers, n)
	if workers == 1 || p.closed.Load() {
		fn(0, n)
		return
	}
	size := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		wg.Add(1)
		p.work <- chunk{fn: func() { fn(start, end) }, done: &wg}
	}
	wg.Wait()
}

func (p *pool) close() {
	p.once.Do(func() {
		p.closed.Store(true)
		close(p.work)
	})
}

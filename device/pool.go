package device

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool hands out float64 buffers against a fixed capacity.
// Freed buffers are kept on a per-size free list until Release.
type Pool struct {
	capacity int64
	sem      *semaphore.Weighted

	mu    sync.Mutex
	free  map[int][][]float64 // size -> idle buffers
	inUse int64
	idle  int64
	peak  int64
}

// Stats is a snapshot of pool usage in elements.
type Stats struct {
	Capacity int64
	InUse    int64
	Idle     int64
	Peak     int64
}

func newPool(capacity int64) *Pool {
	return &Pool{
		capacity: capacity,
		sem:      semaphore.NewWeighted(capacity),
		free:     make(map[int][][]float64),
	}
}

// Alloc returns a zeroed buffer of n elements.
//
// Errors:
//   - ErrOutOfMemory when neither the free list nor the capacity can serve n.
func (p *Pool) Alloc(n int) ([]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 1. Reuse an idle buffer of the same size.
	if bufs := p.free[n]; len(bufs) > 0 {
		buf := bufs[len(bufs)-1]
		p.free[n] = bufs[:len(bufs)-1]
		p.idle -= int64(n)
		p.use(int64(n))
		clear(buf)
		return buf, nil
	}

	// 2. Grow within capacity.
	if !p.sem.TryAcquire(int64(n)) {
		return nil, ErrOutOfMemory
	}
	p.use(int64(n))
	return make([]float64, n), nil
}

func (p *Pool) use(n int64) {
	p.inUse += n
	p.peak = max(p.peak, p.inUse)
}

// Free returns buf to the free list.
func (p *Pool) Free(buf []float64) {
	n := len(buf)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free[n] = append(p.free[n], buf[:n:n])
	p.inUse -= int64(n)
	p.idle += int64(n)
}

// Reserve pre-allocates count idle buffers of size n elements.
func (p *Pool) Reserve(count, n int) error {
	if count <= 0 || n <= 0 {
		return nil
	}
	if !p.sem.TryAcquire(int64(count * n)) {
		return ErrOutOfMemory
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < count; i++ {
		p.free[n] = append(p.free[n], make([]float64, n))
	}
	p.idle += int64(count * n)
	return nil
}

// Release drops every idle buffer and gives its memory back.
func (p *Pool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idle > 0 {
		p.sem.Release(p.idle)
	}
	p.idle = 0
	p.free = make(map[int][][]float64)
}

// Stats returns current usage.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Capacity: p.capacity, InUse: p.inUse, Idle: p.idle, Peak: p.peak}
}

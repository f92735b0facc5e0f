package dispatch

// Test hooks for the HostNest pool.

type Pool = pool

func NewPool(workers int) *Pool                           { return newPool(workers) }
func (p *pool) ParallelFor(n int, fn func(start, end int)) { p.parallelFor(n, fn) }
func (p *pool) Close()                                     { p.close() }

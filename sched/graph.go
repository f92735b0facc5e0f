package sched

import (
	"container/heap"
	"context"
	"fmt"
	"sync"

	"k8s.io/klog/v2"
)

// Priority orders ready tasks; higher runs first.
type Priority int8

const (
	Normal Priority = 0
	High   Priority = 1
)

// Token is a dependency handle. It holds no data.
type Token struct {
	id     int
	writer *node   // last writer
	reads  []*node // readers since the last writer
}

// ID returns the index of the token in its Tokens batch.
func (t *Token) ID() int { return t.id }

// Task is one unit of work.
type Task struct {
	Name     string
	Priority Priority
	In       []*Token // read dependencies
	InOut    []*Token // write dependencies
	Run      func(ctx context.Context) error
}

type node struct {
	id   int
	task Task
	deps int // unfinished predecessors
	succ []*node
	done bool
}

// Graph schedules tasks onto a bounded worker pool.
type Graph struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	cond    *sync.Cond
	ready   readyQueue
	nextID  int
	pending int // submitted, not finished
	err     error
	closed  bool
	workers sync.WaitGroup

	trace *DAG
}

// New starts the worker pool of a new graph. Tasks receive a context
// derived from ctx that is cancelled on the first task error.
func New(ctx context.Context, opts ...Option) *Graph {
	o := gatherOptions(opts...)
	g := &Graph{opts: o}
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.cond = sync.NewCond(&g.mu)
	if o.Trace {
		g.trace = NewDAG()
	}
	g.workers.Add(o.Workers)
	for i := 0; i < o.Workers; i++ {
		go g.worker()
	}
	return g
}

// Tokens returns n fresh tokens.
func (g *Graph) Tokens(n int) []*Token {
	toks := make([]*Token, n)
	for i := range toks {
		toks[i] = &Token{id: i}
	}
	return toks
}

// Trace returns the recorded DAG, or nil without WithTrace.
func (g *Graph) Trace() *DAG { return g.trace }

// Go submits t. Its dependencies are resolved against earlier submissions.
//
// Errors:
//   - ErrGraphClosed after Wait.
func (g *Graph) Go(t Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return fmt.Errorf("Go(%s): %w", t.Name, ErrGraphClosed)
	}

	// 1. Create the node.
	n := &node{id: g.nextID, task: t}
	g.nextID++
	g.pending++
	if g.trace != nil {
		g.trace.addTask(n.id, t.Name, t.Priority)
	}

	// 2. Readers wait for the last writer.
	for _, tok := range t.In {
		g.link(tok.writer, n)
		tok.reads = append(tok.reads, n)
	}

	// 3. Writers wait for the last writer and every reader since.
	for _, tok := range t.InOut {
		g.link(tok.writer, n)
		for _, r := range tok.reads {
			g.link(r, n)
		}
		tok.writer = n
		tok.reads = nil
	}

	// 4. Ready now?
	if n.deps == 0 {
		heap.Push(&g.ready, n)
		g.cond.Broadcast()
	}
	return nil
}

// link records p -> n once. Caller holds g.mu.
func (g *Graph) link(p, n *node) {
	if p == nil || p == n {
		return
	}
	if g.trace != nil {
		g.trace.addEdge(p.id, n.id)
	}
	if p.done {
		return // order holds already
	}
	if k := len(p.succ); k > 0 && p.succ[k-1] == n {
		return // linked through another token
	}
	p.succ = append(p.succ, n)
	n.deps++
}

// Wait blocks until every submitted task finished or was skipped, stops
// the workers and returns the first task error.
func (g *Graph) Wait() error {
	g.mu.Lock()
	for g.pending > 0 {
		g.cond.Wait()
	}
	g.closed = true
	err := g.err
	g.cond.Broadcast()
	g.mu.Unlock()

	g.workers.Wait()
	g.cancel()
	return err
}

func (g *Graph) worker() {
	defer g.workers.Done()
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		for g.ready.Len() == 0 && !g.closed {
			g.cond.Wait()
		}
		if g.ready.Len() == 0 {
			return
		}
		n := heap.Pop(&g.ready).(*node)
		skip := g.err != nil
		g.mu.Unlock()

		var err error
		if !skip {
			klog.V(4).Infof("sched: run task %d %s", n.id, n.task.Name)
			err = n.task.Run(g.ctx)
		}

		g.mu.Lock()
		if err != nil && g.err == nil {
			g.err = fmt.Errorf("task %s: %w", n.task.Name, err)
			g.cancel()
			fatal := g.err
			g.mu.Unlock()
			g.opts.Fatal(fatal)
			g.mu.Lock()
		}
		g.finish(n, skip)
	}
}

// finish releases the successors of n. Caller holds g.mu.
func (g *Graph) finish(n *node, skipped bool) {
	n.done = true
	if g.trace != nil && !skipped {
		g.trace.addFinished(n.id)
	}
	for _, s := range n.succ {
		if s.deps--; s.deps == 0 {
			heap.Push(&g.ready, s)
		}
	}
	n.succ = nil
	g.pending--
	g.cond.Broadcast()
}

// readyQueue is a heap of ready nodes: higher priority first, then lower id.
type readyQueue []*node

func (q readyQueue) Len() int { return len(q) }
func (q readyQueue) Less(i, j int) bool {
	if q[i].task.Priority != q[j].task.Priority {
		return q[i].task.Priority > q[j].task.Priority
	}
	return q[i].id < q[j].id
}
func (q readyQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x any)   { *q = append(*q, x.(*node)) }
func (q *readyQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return n
}

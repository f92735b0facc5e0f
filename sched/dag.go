package sched

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// TaskInfo is a recorded task.
type TaskInfo struct {
	ID       int
	Name     string
	Priority Priority
}

// DAG is a thread-safe record of tasks and causal edges.
type DAG struct {
	mu       sync.RWMutex
	tasks    map[int]TaskInfo
	succ     map[int][]int
	edges    map[[2]int]struct{}
	finished []int
}

// NewDAG returns an empty DAG.
func NewDAG() *DAG {
	return &DAG{
		tasks: make(map[int]TaskInfo),
		succ:  make(map[int][]int),
		edges: make(map[[2]int]struct{}),
	}
}

func (d *DAG) addTask(id int, name string, p Priority) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks[id] = TaskInfo{ID: id, Name: name, Priority: p}
}

func (d *DAG) addEdge(from, to int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := [2]int{from, to}
	if _, ok := d.edges[k]; ok {
		return
	}
	d.edges[k] = struct{}{}
	d.succ[from] = append(d.succ[from], to)
}

func (d *DAG) addFinished(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finished = append(d.finished, id)
}

// Tasks returns the recorded tasks sorted by id.
func (d *DAG) Tasks() []TaskInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]TaskInfo, 0, len(d.tasks))
	for _, t := range d.tasks {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b TaskInfo) int { return a.ID - b.ID })
	return out
}

// HasEdge reports whether from -> to was recorded.
func (d *DAG) HasEdge(from, to int) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.edges[[2]int{from, to}]
	return ok
}

// Successors returns the direct successors of id in ascending order.
func (d *DAG) Successors(id int) ([]int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if _, ok := d.tasks[id]; !ok {
		return nil, fmt.Errorf("Successors(%d): %w", id, ErrUnknownTask)
	}
	out := slices.Clone(d.succ[id])
	slices.Sort(out)
	return out, nil
}

// Finished returns the ids of tasks that ran, in completion order.
func (d *DAG) Finished() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.finished)
}

// Validate checks that order lists every edge source before its target.
// Tasks missing from order are ignored.
func (d *DAG) Validate(order []int) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pos := make(map[int]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for e := range d.edges {
		pf, okf := pos[e[0]]
		pt, okt := pos[e[1]]
		if okf && okt && pf > pt {
			return fmt.Errorf("sched: task %d ran before its predecessor %d", e[1], e[0])
		}
	}
	return nil
}

// visit states
const (
	white = iota
	gray
	black
)

// TopologicalOrder returns all recorded tasks in an order compatible with
// every edge, visiting roots by ascending id.
//
// Errors:
//   - ErrCycleDetected, ctx.Err() on cancellation.
//
// Complexity:
//   - Time O(V + E), Space O(V).
func (d *DAG) TopologicalOrder(ctx context.Context) ([]int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	// 1. Deterministic root order.
	ids := make([]int, 0, len(d.tasks))
	for id := range d.tasks {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	// 2. DFS post-order from every unvisited task.
	state := make(map[int]int, len(ids))
	order := make([]int, 0, len(ids))
	var visit func(id int) error
	visit = func(id int) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		switch state[id] {
		case gray:
			return ErrCycleDetected
		case black:
			return nil
		}
		state[id] = gray
		for _, s := range d.succ[id] {
			if err := visit(s); err != nil {
				return err
			}
		}
		state[id] = black
		order = append(order, id)
		return nil
	}
	for _, id := range ids {
		if state[id] == white {
			if err := visit(id); err != nil {
				return nil, err
			}
		}
	}

	// 3. Reverse post-order.
	slices.Reverse(order)
	return order, nil
}

package device

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Queue runs submitted work in order on its own goroutine.
//
// Submit takes one of depth slots and waits, honoring ctx, while all are
// in use. Post never waits; it is for callers that hold a lock queued tasks
// may also take. Both feed the same FIFO.
type Queue struct {
	id    int
	slots *semaphore.Weighted

	mu        sync.Mutex
	cond      *sync.Cond // signals new work, completions and close
	tasks     []entry
	submitted uint64 // tasks accepted
	completed uint64 // tasks finished
	err       error  // first failure not yet reported by Sync
	closed    bool
	done      chan struct{}
}

type entry struct {
	run  func() error
	slot bool // holds a depth slot until it finishes
}

func newQueue(id, depth int) *Queue {
	q := &Queue{
		id:    id,
		slots: semaphore.NewWeighted(int64(depth)),
		done:  make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.worker()
	return q
}

func (q *Queue) worker() {
	defer close(q.done)
	q.mu.Lock()
	for {
		for len(q.tasks) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		e := q.tasks[0]
		q.tasks[0] = entry{}
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		err := e.run()
		if e.slot {
			q.slots.Release(1)
		}

		q.mu.Lock()
		if err != nil && q.err == nil {
			q.err = err
		}
		q.completed++
		q.cond.Broadcast()
	}
}

// ID returns the queue index on its device.
func (q *Queue) ID() int { return q.id }

// Submit enqueues task once a depth slot is free. Tasks after a failure
// still run; Sync reports the first failure.
//
// Errors:
//   - ErrQueueClosed, ctx.Err() while waiting for a slot.
func (q *Queue) Submit(ctx context.Context, task func() error) error {
	if err := q.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("Submit on queue %d: %w", q.id, err)
	}
	if err := q.enqueue(task, true); err != nil {
		q.slots.Release(1)
		return err
	}
	return nil
}

// Post enqueues task without waiting for a depth slot.
//
// Errors:
//   - ErrQueueClosed.
func (q *Queue) Post(task func() error) error {
	return q.enqueue(task, false)
}

func (q *Queue) enqueue(task func() error, slot bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.tasks = append(q.tasks, entry{run: task, slot: slot})
	q.submitted++
	q.cond.Broadcast()
	return nil
}

// Pending reports whether submitted work has not finished yet.
func (q *Queue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed < q.submitted
}

// Sync waits for every task submitted before the call and returns, then
// clears, the first failure recorded so far.
func (q *Queue) Sync() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	target := q.submitted
	for q.completed < target {
		q.cond.Wait()
	}
	err := q.err
	q.err = nil
	return err
}

// Close drains the queue and stops its goroutine. Safe to call twice.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.done

	q.mu.Lock()
	defer q.mu.Unlock()
	err := q.err
	q.err = nil
	return err
}

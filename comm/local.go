package comm

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// World is an in-process set of ranks connected by unbounded mailboxes.
type World struct {
	size int

	mu      sync.Mutex
	boxes   map[mailKey]*mailbox
	barrier *generation
	closed  chan struct{}
	once    sync.Once

	ends []*endpoint
}

type mailKey struct {
	src, dst int
	tag      Tag
}

// mailbox is a FIFO with a wake-up channel replaced on every push.
type mailbox struct {
	queue  [][]float64
	notify chan struct{}
}

type generation struct {
	arrived int
	done    chan struct{}
}

type endpoint struct {
	w       *World
	rank    int
	streams atomic.Uint64
}

// NewLocalWorld creates size connected ranks. It panics if size < 1.
func NewLocalWorld(size int) *World {
	if size < 1 {
		panic("comm: NewLocalWorld: size must be >= 1")
	}
	w := &World{
		size:    size,
		boxes:   make(map[mailKey]*mailbox),
		barrier: &generation{done: make(chan struct{})},
		closed:  make(chan struct{}),
	}
	w.ends = make([]*endpoint, size)
	for r := range w.ends {
		w.ends[r] = &endpoint{w: w, rank: r}
	}
	return w
}

// Comm returns the endpoint of rank r.
func (w *World) Comm(r int) Communicator { return w.ends[r] }

// Size returns the number of ranks.
func (w *World) Size() int { return w.size }

// Close wakes every blocked call with ErrClosed. Safe to call twice.
func (w *World) Close() {
	w.once.Do(func() { close(w.closed) })
}

// Pending counts undelivered messages; a finished SPMD program leaves none.
func (w *World) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, b := range w.boxes {
		n += len(b.queue)
	}
	return n
}

// box returns the mailbox of k, creating it. Caller holds w.mu.
func (w *World) box(k mailKey) *mailbox {
	b, ok := w.boxes[k]
	if !ok {
		b = &mailbox{notify: make(chan struct{})}
		w.boxes[k] = b
	}
	return b
}

func (e *endpoint) Rank() int          { return e.rank }
func (e *endpoint) Size() int          { return e.w.size }
func (e *endpoint) NextStream() uint64 { return e.streams.Add(1) }

func (e *endpoint) Send(ctx context.Context, dst int, tag Tag, buf []float64) error {
	w := e.w
	if dst < 0 || dst >= w.size {
		return errors.Wrapf(ErrRankOutOfRange, "comm: send %d->%d", e.rank, dst)
	}
	select {
	case <-w.closed:
		return errors.Wrapf(ErrClosed, "comm: send %d->%d", e.rank, dst)
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "comm: send %d->%d", e.rank, dst)
	default:
	}

	msg := append([]float64(nil), buf...)
	w.mu.Lock()
	b := w.box(mailKey{src: e.rank, dst: dst, tag: tag})
	b.queue = append(b.queue, msg)
	close(b.notify)
	b.notify = make(chan struct{})
	w.mu.Unlock()
	return nil
}

func (e *endpoint) Recv(ctx context.Context, src int, tag Tag, buf []float64) error {
	w := e.w
	if src < 0 || src >= w.size {
		return errors.Wrapf(ErrRankOutOfRange, "comm: recv %d<-%d", e.rank, src)
	}
	k := mailKey{src: src, dst: e.rank, tag: tag}
	for {
		w.mu.Lock()
		b := w.box(k)
		if len(b.queue) > 0 {
			msg := b.queue[0]
			b.queue[0] = nil
			b.queue = b.queue[1:]
			if len(b.queue) == 0 {
				close(b.notify) // other waiters re-check against a fresh box
				delete(w.boxes, k)
			}
			w.mu.Unlock()
			if len(msg) != len(buf) {
				return errors.Wrapf(ErrSizeMismatch, "comm: recv %d<-%d: got %d want %d",
					e.rank, src, len(msg), len(buf))
			}
			copy(buf, msg)
			return nil
		}
		wake := b.notify
		w.mu.Unlock()

		select {
		case <-wake:
		case <-w.closed:
			return errors.Wrapf(ErrClosed, "comm: recv %d<-%d", e.rank, src)
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "comm: recv %d<-%d", e.rank, src)
		}
	}
}

func (e *endpoint) Barrier(ctx context.Context) error {
	w := e.w
	w.mu.Lock()
	g := w.barrier
	g.arrived++
	if g.arrived == w.size {
		close(g.done)
		w.barrier = &generation{done: make(chan struct{})}
	}
	w.mu.Unlock()

	select {
	case <-g.done:
		return nil
	case <-w.closed:
		return errors.Wrapf(ErrClosed, "comm: barrier rank %d", e.rank)
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "comm: barrier rank %d", e.rank)
	}
}

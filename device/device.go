package device

import (
	"fmt"
	"sync"

	"k8s.io/klog/v2"
)

// Device is one simulated accelerator.
type Device struct {
	id    int
	name  string
	depth int
	pool  *Pool

	mu     sync.Mutex
	queues []*Queue
}

// New creates device id.
func New(id int, opts ...Option) *Device {
	o := gatherOptions(opts...)
	d := &Device{
		id:    id,
		name:  fmt.Sprintf("sim:%d (%s)", id, HostFeatures()),
		depth: o.QueueDepth,
		pool:  newPool(o.Capacity),
	}
	klog.V(2).Infof("device: created %s, capacity %d elements", d.name, o.Capacity)
	return d
}

// Enumerate creates devices 0..n-1 with the same options.
func Enumerate(n int, opts ...Option) []*Device {
	devs := make([]*Device, n)
	for i := range devs {
		devs[i] = New(i, opts...)
	}
	return devs
}

func (d *Device) ID() int      { return d.id }
func (d *Device) Name() string { return d.name }
func (d *Device) Pool() *Pool  { return d.pool }

// AllocateQueues makes sure at least n queues exist.
func (d *Device) AllocateQueues(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.queues) < n {
		d.queues = append(d.queues, newQueue(len(d.queues), d.depth))
	}
}

// NumQueues returns the number of allocated queues.
func (d *Device) NumQueues() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// Queue returns queue i.
func (d *Device) Queue(i int) (*Queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.queues) {
		return nil, fmt.Errorf("Queue(%d) on %s: %w", i, d.name, ErrNoQueue)
	}
	return d.queues[i], nil
}

// Sync waits for all queues and returns the first failure.
func (d *Device) Sync() error {
	d.mu.Lock()
	qs := append([]*Queue(nil), d.queues...)
	d.mu.Unlock()
	var first error
	for _, q := range qs {
		if err := q.Sync(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close drains and stops every queue and releases idle memory.
func (d *Device) Close() error {
	d.mu.Lock()
	qs := d.queues
	d.queues = nil
	d.mu.Unlock()
	var first error
	for _, q := range qs {
		if err := q.Close(); err != nil && first == nil {
			first = err
		}
	}
	d.pool.Release()
	return first
}

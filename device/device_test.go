package device_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/tilegrid/device"
)

func TestQueue_OrderAndSync(t *testing.T) {
	d := device.New(0)
	defer d.Close()
	d.AllocateQueues(2)
	require.Equal(t, 2, d.NumQueues())
	d.AllocateQueues(1)
	require.Equal(t, 2, d.NumQueues())

	q, err := d.Queue(1)
	require.NoError(t, err)
	var order []int
	for i := 0; i < 100; i++ {
		require.NoError(t, q.Submit(context.Background(), func() error {
			order = append(order, i)
			return nil
		}))
	}
	require.NoError(t, q.Sync())
	require.Len(t, order, 100)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
	assert.False(t, q.Pending())

	_, err = d.Queue(5)
	assert.ErrorIs(t, err, device.ErrNoQueue)
}

func TestQueue_FirstErrorReported(t *testing.T) {
	d := device.New(1)
	d.AllocateQueues(1)
	q, _ := d.Queue(0)
	boom := errors.New("boom")
	var ran atomic.Int32
	_ = q.Submit(context.Background(), func() error { ran.Add(1); return boom })
	_ = q.Submit(context.Background(), func() error { ran.Add(1); return errors.New("second") })
	assert.ErrorIs(t, d.Sync(), boom)
	assert.Equal(t, int32(2), ran.Load())
	assert.NoError(t, q.Sync(), "error cleared after report")

	require.NoError(t, d.Close())
	assert.ErrorIs(t, q.Submit(context.Background(), func() error { return nil }), device.ErrQueueClosed)
	assert.NoError(t, q.Close())
}

func TestQueue_ConcurrentSubmitAndSync(t *testing.T) {
	d := device.New(0, device.WithQueueDepth(2))
	defer d.Close()
	d.AllocateQueues(1)
	q, _ := d.Queue(0)

	var n atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = q.Submit(context.Background(), func() error { n.Add(1); return nil })
				if i%7 == 0 {
					_ = q.Sync()
				}
			}
		}()
	}
	wg.Wait()
	require.NoError(t, q.Sync())
	assert.Equal(t, int64(200), n.Load())
}

func TestQueue_SubmitWaitsForSlot(t *testing.T) {
	d := device.New(0, device.WithQueueDepth(1))
	defer d.Close()
	d.AllocateQueues(1)
	q, _ := d.Queue(0)

	release := make(chan struct{})
	require.NoError(t, q.Submit(context.Background(), func() error { <-release; return nil }))

	// the only slot is taken: Submit gives up with ctx, Post goes through
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Submit(ctx, func() error { return nil }), context.DeadlineExceeded)
	var posted atomic.Bool
	require.NoError(t, q.Post(func() error { posted.Store(true); return nil }))

	close(release)
	require.NoError(t, q.Sync())
	assert.True(t, posted.Load())
	require.NoError(t, q.Submit(context.Background(), func() error { return nil }), "slot returned")
	require.NoError(t, q.Sync())
}

func TestQueue_PostWhileHoldingLockTakenByQueuedTask(t *testing.T) {
	d := device.New(0, device.WithQueueDepth(1))
	defer d.Close()
	d.AllocateQueues(1)
	q, _ := d.Queue(0)

	// a queued task needs mu while the submitter holds mu and keeps queueing
	var mu sync.Mutex
	var n atomic.Int32
	mu.Lock()
	require.NoError(t, q.Submit(context.Background(), func() error {
		mu.Lock()
		defer mu.Unlock()
		n.Add(1)
		return nil
	}))
	for i := 0; i < 16; i++ {
		require.NoError(t, q.Post(func() error { n.Add(1); return nil }))
	}
	mu.Unlock()
	require.NoError(t, q.Sync())
	assert.Equal(t, int32(17), n.Load())
}

func TestPool(t *testing.T) {
	d := device.New(0, device.WithCapacity(100))
	p := d.Pool()

	a, err := p.Alloc(60)
	require.NoError(t, err)
	_, err = p.Alloc(50)
	assert.ErrorIs(t, err, device.ErrOutOfMemory)

	a[0] = 3
	p.Free(a)
	b, err := p.Alloc(60)
	require.NoError(t, err)
	assert.Zero(t, b[0], "reused buffers are zeroed")

	st := p.Stats()
	assert.Equal(t, device.Stats{Capacity: 100, InUse: 60, Idle: 0, Peak: 60}, st)

	p.Free(b)
	p.Release()
	assert.Equal(t, int64(0), p.Stats().Idle)

	require.NoError(t, p.Reserve(4, 25))
	assert.ErrorIs(t, p.Reserve(1, 1), device.ErrOutOfMemory)
	c, err := p.Alloc(25)
	require.NoError(t, err)
	assert.Len(t, c, 25)
	assert.Equal(t, int64(75), p.Stats().Idle)
	require.NoError(t, d.Close())
}

func TestOptions_Panic(t *testing.T) {
	assert.PanicsWithValue(t, "device: WithCapacity: capacity must be > 0", func() { device.WithCapacity(0) })
	assert.PanicsWithValue(t, "device: WithQueueDepth: depth must be > 0", func() { device.WithQueueDepth(-1) })
}

func TestEnumerateAndFeatures(t *testing.T) {
	devs := device.Enumerate(3)
	require.Len(t, devs, 3)
	for i, d := range devs {
		assert.Equal(t, i, d.ID())
		assert.Contains(t, d.Name(), device.HostFeatures())
	}
	assert.NotEmpty(t, device.HostFeatures())
}

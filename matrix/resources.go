// SPDX-License-Identifier: MIT

package matrix

import (
	"github.com/katalvlaran/tilegrid/device"
	"github.com/katalvlaran/tilegrid/tile"
)

// AllocateBatchArrays makes sure every attached device has at least n
// command queues. Algorithms ask for lookahead+2: one per lookahead column,
// one for the trailing update and one for the panel.
func (s *Storage) AllocateBatchArrays(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		d.AllocateQueues(n)
	}
	s.queues = max(s.queues, n)
}

// AllocateBatchArrays is Storage.AllocateBatchArrays for the storage of a.
func (a Matrix) AllocateBatchArrays(n int) { a.st.AllocateBatchArrays(n) }

// BatchQueues returns the number of queues reserved per device.
func (a Matrix) BatchQueues() int {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	return a.st.queues
}

// ComputeQueue returns queue q of device dev.
//
// Errors:
//   - ErrNoDevice, device.ErrNoQueue.
func (a Matrix) ComputeQueue(dev, q int) (*device.Queue, error) {
	d, err := a.st.device(dev)
	if err != nil {
		return nil, err
	}
	return d.Queue(q)
}

// ReserveDeviceWorkspace pre-allocates, on every device, one tile buffer
// per local tile mapped to it, so a sweep does not grow the pools.
//
// Errors:
//   - device.ErrOutOfMemory.
func (a Matrix) ReserveDeviceWorkspace() error {
	s := a.st
	if len(s.devices) == 0 {
		return nil
	}
	count := make([]int, len(s.devices))
	for j := 0; j < s.nt; j++ {
		for i := 0; i < s.mt; i++ {
			if dev := s.tileDevice(i, j); s.tileIsLocal(i, j) && dev != tile.HostNum {
				count[dev]++
			}
		}
	}
	for dev, d := range s.devices {
		if err := d.Pool().Reserve(count[dev], s.mb*s.nb); err != nil {
			return err
		}
	}
	return nil
}

// SyncDevices waits for every queue of every attached device.
func (s *Storage) SyncDevices() error {
	for _, d := range s.devices {
		if err := d.Sync(); err != nil {
			return err
		}
	}
	return nil
}

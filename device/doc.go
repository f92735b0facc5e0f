// Package device models accelerators as host-memory devices with
// asynchronous command queues and a bounded memory pool.
//
// A Device owns:
//   - a Pool of float64 buffers bounded by a capacity (in elements),
//     accounted with golang.org/x/sync/semaphore; running out is
//     ErrOutOfMemory,
//   - a set of Queues. A Queue is a goroutine fed by a channel; Submit
//     enqueues work and returns at once, Sync waits for everything enqueued
//     so far and reports the first failure.
//
// Work on one queue runs in submission order. Nothing is synchronized
// implicitly; consumers that need a result on another location call Sync.
//
// HostFeatures reports the instruction-set extensions of the host
// (golang.org/x/sys/cpu); simulated devices carry it in their Name.
package device

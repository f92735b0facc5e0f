package device

import "errors"

var (
	// ErrOutOfMemory is returned when a Pool cannot grant an allocation.
	ErrOutOfMemory = errors.New("device: out of memory")

	// ErrQueueClosed is returned when submitting to a closed queue.
	ErrQueueClosed = errors.New("device: queue closed")

	// ErrNoQueue indicates a queue index that was never allocated.
	ErrNoQueue = errors.New("device: queue not allocated")
)

package sched

import "errors"

var (
	// ErrCycleDetected is returned by TopologicalOrder when the recorded
	// graph is not acyclic.
	ErrCycleDetected = errors.New("sched: cycle detected")

	// ErrUnknownTask indicates a task id that was never recorded.
	ErrUnknownTask = errors.New("sched: unknown task")

	// ErrGraphClosed is returned by Go after Wait has returned.
	ErrGraphClosed = errors.New("sched: graph closed")
)

// Package sched runs tile tasks as a dependency graph and plans the
// lookahead sweeps of the tile algorithms.
//
// Graph:
//
//	Tasks declare the Tokens they read (In) and write (InOut). Tokens carry
//	no data, only order: a reader waits for the last writer of each of its
//	tokens; a writer waits for the last writer and for every reader since.
//	Tasks whose predecessors are done are run by a bounded worker pool,
//	High priority first, then in submission order.
//
//	A task error is fatal to the graph. The fatal handler runs once
//	(klog.Exitf unless replaced), the graph context is cancelled, every
//	task that has not started yet is skipped, and Wait returns the first
//	error.
//
// Sweep:
//
//	Sweep splits the columns after k into a lookahead window of la columns
//	and a trailing range, forward (k = 0..nt-1) or backward
//	(k = nt-1..0). With la = 0 the plan is a plain right-looking sweep.
//
// DAG:
//
//	With WithTrace the graph records every task and causal edge into a DAG,
//	together with the completion order. TopologicalOrder returns a
//	dependency-respecting order of the recorded tasks.
//
// Complexity:
//   - Go: O(number of token edges) under one mutex.
//   - Scheduling: O(log R) per task, R = ready tasks.
package sched

// Package tilegrid is a distributed dense linear algebra engine built on
// tiles: matrices are cut into mb×nb tiles, the tiles are spread 2-D
// block-cyclically over the ranks of a communicator, and algorithms run as
// task graphs whose tasks move and update whole tiles.
//
// What is in the box?
//
//	• Tiles: single-tile BLAS / LAPACK kernels over gonum
//	• Registry: per-rank tile instances on the host and on devices, with
//	  MOSI coherency, life counts for received copies and workspace arenas
//	• Communication: tile broadcast and reduction over any Communicator,
//	  with an in-process world for tests
//	• Dispatch: HostTask, HostNest, HostBatch and Devices execution targets
//	• Scheduling: token-ordered task graphs with priorities and lookahead
//	• Algorithms: Cholesky (Potrf), triangular solves (TrsmA, Trsm),
//	  Cholesky solve (Posv), Herk and norms
//
// Under the hood, everything is organized under these subpackages:
//
//	tile/     - tile views, layouts and kernels
//	comm/     - communicator interface, collectives, LocalWorld
//	device/   - simulated accelerators: memory pools and command queues
//	matrix/   - distributed matrix views and the tile registry
//	dispatch/ - execution targets for tile kernels
//	sched/    - task graph, sweeps and DAG tracing
//	linalg/   - distributed algorithms
//
// Quick example, one rank:
//
//	c := comm.NewLocalWorld(1).Comm(0)
//	a, _ := matrix.FromLAPACK(n, n, data, n, nb, nb, 1, 1, c)
//	info, err := linalg.Potrf(ctx, a.AsHermitian(tile.Lower))
//
// With more ranks every rank builds the same matrices and calls the same
// algorithms in the same order.
package tilegrid

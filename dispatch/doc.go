// Package dispatch runs the distributed tile kernels of tilegrid on one of
// four execution targets.
//
// Targets:
//
//	HostTask   one goroutine per output tile.
//	HostNest   a persistent worker pool walking the output tiles in chunks.
//	HostBatch  one sequential loop over every output tile of the stage.
//	Devices    per device, operands are made resident by copies queued on a
//	           command queue, the whole batch is queued behind them, and the
//	           outputs are left Modified on the device with the queue
//	           pending. Nothing waits: a consumer elsewhere synchronizes the
//	           queue on first access.
//
// A Dispatcher is bound to one target for the whole algorithm call. The
// diagonal factorization (Potrf) always runs on the host, whatever the
// target.
//
// Kernels:
//
//	Every kernel takes matrix views and touches only tiles owned by the
//	calling rank, except GemmA which computes on the owners of A and leaves
//	partial products in workspace for a later ListReduce. Remote input tiles
//	are ticked once per use so broadcast workspace is released as soon as
//	its last consumer ran.
package dispatch

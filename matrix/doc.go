// SPDX-License-Identifier: MIT

// Package matrix is the distributed tile registry of tilegrid.
//
// What:
//   - A Storage holds the tiles of one m×n matrix cut into mb×nb tiles and
//     spread 2-D block-cyclically over a p×q grid of ranks: tile (i, j) lives
//     on rank base + (i mod p) + (j mod q)*p and, when devices are attached,
//     on device (j / q) mod len(devices).
//   - A Matrix is a value view of a Storage: a tile sub-range plus
//     transpose, triangle (uplo / diag) and kind tags. Views never copy.
//   - Every coordinate may have several instances: at most one origin on the
//     owning rank, and workspace copies on the host or on devices. Instances
//     are kept coherent with Modified / Shared / Invalid states.
//   - ListBcast / ListReduce / TileSend / TileRecv move tiles between ranks
//     over a comm.Communicator.
//
// Life and hold:
//
//	A received workspace tile carries a life counter: the number of local
//	consumers that still need it. TileTick decrements it; at zero every
//	unheld instance of that remote coordinate is erased. Hold pins an
//	instance across overlapping consumers until TileUnsetHold.
//
// Devices:
//
//	Instances on a device may be produced asynchronously on a device.Queue.
//	A consumer on another location synchronizes that queue on first access.
//
// Concurrency:
//
//	Registry metadata is guarded by one mutex per Storage. Tile buffers are
//	not locked: the task graph guarantees that a writer never overlaps other
//	users of the same tile.
//
// Complexity quicksheet:
//   - Views and index math: O(1).
//   - Coherency copies and layout conversion: O(mb*nb) per tile.
//   - ListBcast / ListReduce: O(log P) messages per entry.
package matrix

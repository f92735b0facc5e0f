// Package comm is the point-to-point and collective message layer between
// processes (ranks) of a tilegrid computation.
//
// Communicator is the transport contract: rank identity, tagged Send / Recv
// of float64 buffers, and a Barrier. A Tag is a (Stream, Seq) pair; each
// distributed matrix owns a stream so concurrent broadcasts of different
// matrices and tiles never match each other's messages.
//
// Matching rule: messages between one (src, dst, tag) triple are delivered
// in send order. Sends are eager and never wait for the receiver.
//
// LocalWorld runs every rank as a goroutine of one process. It is the
// transport used by tests and by single-node runs.
//
// Collectives (Bcast, Reduce, AllreduceSum, AllreduceMax) are binomial trees
// over an explicit, sorted rank set built on top of Send / Recv, so any
// Communicator gets them for free.
//
// Errors:
//
//	Transport failures are wrapped with github.com/pkg/errors, so "%+v"
//	prints the stack of the failing call. Callers in this module treat them
//	as fatal.
package comm

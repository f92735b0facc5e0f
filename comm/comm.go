package comm

import "context"

// Tag disambiguates concurrent messages between the same pair of ranks.
type Tag struct {
	Stream uint64 // owner of the message family, e.g. one distributed matrix
	Seq    int64  // message id inside the stream
}

// Communicator is one rank's endpoint.
//
// Send copies buf before returning. Recv blocks until a matching message
// arrives or ctx is done, and fails with ErrSizeMismatch if the message
// length differs from len(buf).
type Communicator interface {
	Rank() int
	Size() int
	Send(ctx context.Context, dst int, tag Tag, buf []float64) error
	Recv(ctx context.Context, src int, tag Tag, buf []float64) error
	Barrier(ctx context.Context) error

	// NextStream returns a fresh tag stream. Every rank calls it in the
	// same order, so equal calls return equal ids on all ranks.
	NextStream() uint64
}

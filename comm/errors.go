package comm

import "errors"

var (
	// ErrClosed is returned by operations on a closed world.
	ErrClosed = errors.New("comm: world closed")

	// ErrRankOutOfRange indicates a peer rank outside [0, Size).
	ErrRankOutOfRange = errors.New("comm: rank out of range")

	// ErrSizeMismatch indicates a received message of unexpected length.
	ErrSizeMismatch = errors.New("comm: message size mismatch")

	// ErrNotMember indicates a root that is not part of the rank set.
	ErrNotMember = errors.New("comm: root not in rank set")
)

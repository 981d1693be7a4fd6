package memstream

import "github.com/pkg/errors"

var (
	// ErrInvalidArgument reports a malformed seek origin, chunk size or size.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAllocationFailure reports that the stream could not grow to hold a
	// write. Nothing is written when it is returned.
	ErrAllocationFailure = errors.New("allocation failure")

	// ErrNotSupported is returned by operations outside the stream contract.
	ErrNotSupported = errors.New("operation not supported")
)

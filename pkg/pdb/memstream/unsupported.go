package memstream

import (
	"io"

	"github.com/pkg/errors"
)

// Commit has nothing to flush for a memory stream and always succeeds.
func (s *Stream) Commit(flags uint32) error {
	return nil
}

// Clone is not supported; a stream is never shared.
func (s *Stream) Clone() (*Stream, error) {
	return nil, errors.Wrap(ErrNotSupported, "clone")
}

// CopyToStream is not supported. Use CopyTo or Chunks to drain the stream.
func (s *Stream) CopyToStream(dst io.Writer, n int64) (read, written int64, err error) {
	return 0, 0, errors.Wrap(ErrNotSupported, "copy to stream")
}

// LockRegion is not supported.
func (s *Stream) LockRegion(offset, n int64, lockType uint32) error {
	return errors.Wrap(ErrNotSupported, "lock region")
}

// UnlockRegion is not supported.
func (s *Stream) UnlockRegion(offset, n int64, lockType uint32) error {
	return errors.Wrap(ErrNotSupported, "unlock region")
}

// Revert is not supported; writes are never transacted.
func (s *Stream) Revert() error {
	return errors.Wrap(ErrNotSupported, "revert")
}

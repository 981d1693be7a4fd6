// Package memstream implements a seekable, growable in-memory byte stream
// backed by fixed-size chunks.
//
// A Stream is the buffer a symbol writer emits a PDB into. Storage grows one
// chunk at a time and existing chunks are never copied or released, so
// SetSize and seeking past the end are cheap: the logical length moves, and
// the bytes it exposes beyond the last written chunk read as zero.
//
// A Stream is not safe for concurrent use.
package memstream

import (
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/jtang613/pdbstream/pkg/utils"
)

// DefaultChunkSize is the chunk size used by New.
const DefaultChunkSize = 32768

var logger = utils.GetLogger("memstream")

// Stream is an in-memory byte stream addressed by chunk index and offset
// within the chunk.
type Stream struct {
	chunkSize int
	chunks    [][]byte
	position  int64
	length    int64
	limit     int64 // 0 means unlimited
}

// Stat describes a stream. Only the size is meaningful.
type Stat struct {
	Size int64
}

// New creates an empty stream with DefaultChunkSize chunks.
func New() *Stream {
	return &Stream{chunkSize: DefaultChunkSize}
}

// NewWithChunkSize creates an empty stream whose chunks are chunkSize bytes.
func NewWithChunkSize(chunkSize int) (*Stream, error) {
	if chunkSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "chunk size must be positive, got %d", chunkSize)
	}
	return &Stream{chunkSize: chunkSize}, nil
}

// ChunkSize returns the size of every chunk.
func (s *Stream) ChunkSize() int {
	return s.chunkSize
}

// ChunkCount returns the number of chunks allocated so far.
func (s *Stream) ChunkCount() int {
	return len(s.chunks)
}

// Len returns the logical length of the stream.
func (s *Stream) Len() int64 {
	return s.length
}

// Position returns the offset of the next Read or Write.
func (s *Stream) Position() int64 {
	return s.position
}

// SetLimit caps the logical length Write may grow the stream to.
// Zero removes the cap. Seek and SetSize are not affected.
func (s *Stream) SetLimit(n int64) {
	if n < 0 {
		n = 0
	}
	s.limit = n
}

// Stat returns the current logical length.
func (s *Stream) Stat() Stat {
	return Stat{Size: s.length}
}

// locate splits a logical offset into a chunk index and an offset inside it.
func (s *Stream) locate(off int64) (int, int) {
	size := int64(s.chunkSize)
	return int(off / size), int(off % size)
}

// Read reads up to len(p) bytes from the current position. Bytes that lie
// in chunks never written read as zero. At or past the end of the stream it
// returns 0, io.EOF. Read never allocates chunk storage.
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.readAt(p, s.position)
	s.position += int64(n)
	return n, err
}

// ReadAt reads len(p) bytes starting at off without moving the position.
// A short read returns io.EOF.
func (s *Stream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.Wrapf(ErrInvalidArgument, "negative offset %d", off)
	}
	n, err := s.readAt(p, off)
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

func (s *Stream) readAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off >= s.length {
		return 0, io.EOF
	}

	remaining := s.length - off
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	chunkIndex, chunkOffset := s.locate(off)
	read := 0
	for read < len(p) {
		dst := p[read:]
		if avail := s.chunkSize - chunkOffset; len(dst) > avail {
			dst = dst[:avail]
		}
		if chunkIndex < len(s.chunks) {
			copy(dst, s.chunks[chunkIndex][chunkOffset:])
		} else {
			clear(dst)
		}
		read += len(dst)
		chunkIndex++
		chunkOffset = 0
	}
	return read, nil
}

// Write writes all of p at the current position, allocating the chunks it
// touches, and advances the position. The length grows to the new position
// if it was exceeded. Write either writes len(p) bytes or nothing.
func (s *Stream) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.position > math.MaxInt64-int64(len(p)) {
		return 0, errors.Wrapf(ErrAllocationFailure, "write of %d bytes at %d overflows", len(p), s.position)
	}
	end := s.position + int64(len(p))
	if s.limit > 0 && end > s.limit {
		return 0, errors.Wrapf(ErrAllocationFailure, "write to offset %d exceeds limit %d", end, s.limit)
	}

	chunkIndex, chunkOffset := s.locate(s.position)
	s.grow(chunkIndex + (chunkOffset+len(p)-1)/s.chunkSize + 1)

	written := 0
	for written < len(p) {
		n := copy(s.chunks[chunkIndex][chunkOffset:], p[written:])
		written += n
		chunkIndex++
		chunkOffset = 0
	}

	s.setPosition(end)
	return written, nil
}

// grow allocates zeroed chunks until count chunks exist.
func (s *Stream) grow(count int) {
	if count <= len(s.chunks) {
		return
	}
	before := len(s.chunks)
	for len(s.chunks) < count {
		s.chunks = append(s.chunks, make([]byte, s.chunkSize))
	}
	logger.Tracef("allocated chunks %d..%d of %d bytes", before, count-1, s.chunkSize)
}

// setPosition moves the cursor, clamping at zero and extending the length
// when the cursor passes it.
func (s *Stream) setPosition(pos int64) int64 {
	if pos < 0 {
		pos = 0
	}
	s.position = pos
	if pos > s.length {
		s.length = pos
	}
	return pos
}

// Seek sets the position for the next Read or Write. Negative results clamp
// to zero. Seeking past the end extends the length with zero bytes without
// allocating storage.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = s.position
	case io.SeekEnd:
		base = s.length
	default:
		return s.position, errors.Wrapf(ErrInvalidArgument, "whence (%d) is invalid", whence)
	}
	if offset > 0 && base > math.MaxInt64-offset {
		return s.position, errors.Wrapf(ErrInvalidArgument, "seek offset %d from %d overflows", offset, base)
	}
	return s.setPosition(base + offset), nil
}

// SetSize sets the logical length to n. The position and chunk storage are
// left untouched: shrinking does not clear bytes and growing does not
// allocate.
func (s *Stream) SetSize(n int64) error {
	if n < 0 {
		return errors.Wrapf(ErrInvalidArgument, "negative size %d", n)
	}
	s.length = n
	return nil
}

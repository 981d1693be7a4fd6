package memstream

import (
	"io"
	"iter"

	"github.com/pkg/errors"
)

// presizer is a sink that can be extended to its final size up front,
// such as *os.File.
type presizer interface {
	io.Seeker
	Truncate(size int64) error
}

// CopyTo writes the whole logical content of the stream, from offset 0 to
// Len, to w. The position is neither used nor updated. When w can be
// pre-sized it is extended to its current offset plus Len first, which lets
// the file system allocate the final size at once.
func (s *Stream) CopyTo(w io.Writer) (int64, error) {
	if p, ok := w.(presizer); ok {
		cur, err := p.Seek(0, io.SeekCurrent)
		if err == nil {
			err = p.Truncate(cur + s.length)
		}
		if err != nil {
			logger.Debugf("pre-size of sink failed, continuing without hint: %s", err)
		}
	}

	var written int64
	for chunk := range s.Chunks() {
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, errors.Wrapf(err, "failed to copy stream at offset %d", written)
		}
		if n != len(chunk) {
			return written, io.ErrShortWrite
		}
	}
	logger.Debugf("copied %d bytes from %d chunks", written, len(s.chunks))
	return written, nil
}

// Chunks returns a single-pass sequence of byte ranges that together cover
// the stream from offset 0 to Len, one range per allocated chunk followed by
// one zero-filled range for any tail that was never written. A yielded
// slice aliases the stream's storage and is only valid until the next step;
// callers that keep data must copy it. The stream must not be modified while
// the sequence is being iterated.
func (s *Stream) Chunks() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		remaining := s.length
		for chunkIndex := 0; remaining > 0; chunkIndex++ {
			var chunk []byte
			if chunkIndex < len(s.chunks) {
				chunk = s.chunks[chunkIndex]
				if int64(len(chunk)) > remaining {
					chunk = chunk[:remaining]
				}
			} else {
				// Seeked or sized past the last write; the tail was never stored.
				chunk = make([]byte, remaining)
			}
			if !yield(chunk) {
				return
			}
			remaining -= int64(len(chunk))
		}
	}
}

// ReadFrom reads from r until EOF, storing the data at the current position
// as Write would. It reads directly into chunk storage.
func (s *Stream) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	for {
		if s.limit > 0 && s.position >= s.limit {
			// Full; succeed only if r has nothing left.
			var scratch [1]byte
			n, err := r.Read(scratch[:])
			if n > 0 {
				return total, errors.Wrapf(ErrAllocationFailure, "read at offset %d exceeds limit %d", s.position, s.limit)
			}
			if err == io.EOF {
				return total, nil
			}
			if err != nil {
				return total, errors.Wrap(err, "failed to fill stream")
			}
			continue
		}
		chunkIndex, chunkOffset := s.locate(s.position)
		allocated := len(s.chunks)
		s.grow(chunkIndex + 1)

		buf := s.chunks[chunkIndex][chunkOffset:]
		if s.limit > 0 && int64(len(buf)) > s.limit-s.position {
			buf = buf[:s.limit-s.position]
		}
		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			s.setPosition(s.position + int64(n))
		} else {
			// Nothing landed in the chunks grown for this read.
			s.chunks = s.chunks[:allocated]
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, errors.Wrap(err, "failed to fill stream")
		}
	}
}

// Load creates a stream with the given chunk size holding the content of r,
// positioned at the start.
func Load(r io.Reader, chunkSize int) (*Stream, error) {
	s, err := NewWithChunkSize(chunkSize)
	if err != nil {
		return nil, err
	}
	if _, err := s.ReadFrom(r); err != nil {
		return nil, err
	}
	s.position = 0
	return s, nil
}

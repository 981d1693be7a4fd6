package msf

import (
	"fmt"
	"io"

	"github.com/jtang613/pdbstream/pkg/pdb/memstream"
)

// Stream is one stream of an MSF container, stored in a chain of
// possibly non-contiguous blocks.
type Stream struct {
	msf    *MSF
	size   uint32
	blocks []uint32
}

// Size returns the stream size in bytes.
func (s *Stream) Size() uint32 {
	return s.size
}

// Blocks returns the block chain of the stream.
func (s *Stream) Blocks() []uint32 {
	return s.blocks
}

// ReadAt implements io.ReaderAt over the block chain.
func (s *Stream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= int64(s.size) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	blockSize := int64(s.msf.BlockSize())
	want := len(p)
	if rest := int64(s.size) - off; int64(want) > rest {
		want = int(rest)
	}

	read := 0
	for read < want {
		pos := off + int64(read)
		inBlock := int(pos % blockSize)
		n := min(want-read, int(blockSize)-inBlock)
		if err := s.msf.readBlock(p[read:read+n], s.blocks[pos/blockSize], inBlock); err != nil {
			return read, err
		}
		read += n
	}
	if read < len(p) {
		return read, io.EOF
	}
	return read, nil
}

// CopyTo appends the stream content to dst at its current position.
func (s *Stream) CopyTo(dst *memstream.Stream) error {
	buf := make([]byte, s.msf.BlockSize())
	for off := int64(0); off < int64(s.size); {
		n, err := s.ReadAt(buf, off)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("failed to buffer stream: %w", werr)
			}
			off += int64(n)
		}
		if err != nil && err != io.EOF {
			return err
		}
	}
	return nil
}

// Materialize copies the stream into a new memory stream with the given
// chunk size, positioned at the start.
func (s *Stream) Materialize(chunkSize int) (*memstream.Stream, error) {
	out, err := memstream.NewWithChunkSize(chunkSize)
	if err != nil {
		return nil, err
	}
	if err := s.CopyTo(out); err != nil {
		return nil, err
	}
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadAll returns the whole stream content.
func (s *Stream) ReadAll() ([]byte, error) {
	data := make([]byte, s.size)
	if _, err := s.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return data, nil
}

// StreamReader reads a stream sequentially.
type StreamReader struct {
	stream *Stream
	offset int64
}

// NewStreamReader creates a reader at the start of s.
func NewStreamReader(s *Stream) *StreamReader {
	return &StreamReader{stream: s}
}

// Read implements io.Reader.
func (sr *StreamReader) Read(p []byte) (int, error) {
	n, err := sr.stream.ReadAt(p, sr.offset)
	sr.offset += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// Seek implements io.Seeker. The offset is clamped to [0, Size].
func (sr *StreamReader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += sr.offset
	case io.SeekEnd:
		offset += int64(sr.stream.size)
	default:
		return sr.offset, fmt.Errorf("invalid whence %d", whence)
	}
	sr.offset = max(0, min(offset, int64(sr.stream.size)))
	return sr.offset, nil
}

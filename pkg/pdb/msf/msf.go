package msf

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/jtang613/pdbstream/pkg/pdb/memstream"
)

// NilStreamSize marks an unused stream in the stream directory.
const NilStreamSize = 0xFFFFFFFF

// MSF is a parsed MSF container.
type MSF struct {
	src        io.ReaderAt
	superBlock *SuperBlock
	directory  *StreamDirectory
	streams    []*Stream
}

// StreamDirectory lists the size and block chain of every stream.
type StreamDirectory struct {
	NumStreams   uint32
	StreamSizes  []uint32
	StreamBlocks [][]uint32
}

// Open reads the file at path into memory and parses it.
func Open(path string) (*MSF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return Load(f, memstream.New())
}

// Load copies r into image, which should be empty, and parses the result.
func Load(r io.Reader, image *memstream.Stream) (*MSF, error) {
	if _, err := image.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to buffer MSF image: %w", err)
	}
	return New(image)
}

// New parses the container held by src.
func New(src io.ReaderAt) (*MSF, error) {
	m := &MSF{src: src}

	var err error
	m.superBlock, err = ReadSuperBlock(io.NewSectionReader(src, 0, SuperBlockSize))
	if err != nil {
		return nil, err
	}

	dir, err := m.readDirectoryBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read stream directory: %w", err)
	}
	if m.directory, err = parseStreamDirectory(dir, m.superBlock.BlockSize); err != nil {
		return nil, fmt.Errorf("failed to parse stream directory: %w", err)
	}

	m.streams = make([]*Stream, m.directory.NumStreams)
	for i := range m.streams {
		size := m.directory.StreamSizes[i]
		if size == NilStreamSize {
			size = 0
		}
		m.streams[i] = &Stream{msf: m, size: size, blocks: m.directory.StreamBlocks[i]}
	}
	return m, nil
}

// SuperBlock returns the container header.
func (m *MSF) SuperBlock() *SuperBlock {
	return m.superBlock
}

// BlockSize returns the block size of the container.
func (m *MSF) BlockSize() uint32 {
	return m.superBlock.BlockSize
}

// NumStreams returns the number of streams in the directory.
func (m *MSF) NumStreams() int {
	return len(m.streams)
}

// Stream returns the stream at index.
func (m *MSF) Stream(index int) (*Stream, error) {
	if index < 0 || index >= len(m.streams) {
		return nil, fmt.Errorf("stream index %d out of range [0, %d)", index, len(m.streams))
	}
	return m.streams[index], nil
}

// StreamReader returns a reader positioned at the start of stream index.
func (m *MSF) StreamReader(index int) (*StreamReader, error) {
	s, err := m.Stream(index)
	if err != nil {
		return nil, err
	}
	return NewStreamReader(s), nil
}

// readBlock reads len(p) bytes at offset off inside block.
func (m *MSF) readBlock(p []byte, block uint32, off int) error {
	if block >= m.superBlock.NumBlocks {
		return fmt.Errorf("block %d outside of %d blocks", block, m.superBlock.NumBlocks)
	}
	at := int64(block)*int64(m.superBlock.BlockSize) + int64(off)
	if _, err := m.src.ReadAt(p, at); err != nil {
		return fmt.Errorf("failed to read block %d: %w", block, err)
	}
	return nil
}

// readDirectoryBytes follows the block map to collect the raw directory.
func (m *MSF) readDirectoryBytes() ([]byte, error) {
	sb := m.superBlock
	mapBytes := make([]byte, 4*sb.NumDirectoryBlocks())
	if uint32(len(mapBytes)) > sb.BlockSize {
		return nil, fmt.Errorf("directory block map of %d bytes exceeds one block", len(mapBytes))
	}
	if err := m.readBlock(mapBytes, sb.BlockMapAddr, 0); err != nil {
		return nil, fmt.Errorf("failed to read block map: %w", err)
	}

	dir := make([]byte, sb.NumDirectoryBytes)
	for i, rest := 0, dir; len(rest) > 0; i++ {
		n := min(len(rest), int(sb.BlockSize))
		block := binary.LittleEndian.Uint32(mapBytes[4*i:])
		if err := m.readBlock(rest[:n], block, 0); err != nil {
			return nil, err
		}
		rest = rest[n:]
	}
	return dir, nil
}

func parseStreamDirectory(data []byte, blockSize uint32) (*StreamDirectory, error) {
	words := func(n uint32) ([]uint32, error) {
		if uint64(len(data)) < 4*uint64(n) {
			return nil, io.ErrUnexpectedEOF
		}
		out := make([]uint32, n)
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(data[4*i:])
		}
		data = data[4*n:]
		return out, nil
	}

	head, err := words(1)
	if err != nil {
		return nil, fmt.Errorf("failed to read NumStreams: %w", err)
	}
	dir := &StreamDirectory{NumStreams: head[0]}

	if dir.StreamSizes, err = words(dir.NumStreams); err != nil {
		return nil, fmt.Errorf("failed to read stream sizes: %w", err)
	}

	dir.StreamBlocks = make([][]uint32, dir.NumStreams)
	for i, size := range dir.StreamSizes {
		if size == NilStreamSize {
			continue
		}
		blocks := (uint64(size) + uint64(blockSize) - 1) / uint64(blockSize)
		if dir.StreamBlocks[i], err = words(uint32(blocks)); err != nil {
			return nil, fmt.Errorf("failed to read block list of stream %d: %w", i, err)
		}
	}
	return dir, nil
}

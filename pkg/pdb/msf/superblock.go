// Package msf reads Microsoft's Multi-Stream Format (MSF), the block
// container PDB files are stored in. Containers are parsed from any
// io.ReaderAt; Open and Load buffer the whole file in a memstream.Stream
// first so block lookups never touch the disk again.
package msf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"slices"
)

// Magic is the MSF 7.00 signature at offset 0.
var Magic = []byte("Microsoft C/C++ MSF 7.00\r\n\x1aDS\x00\x00\x00")

// SuperBlockSize is the encoded size of a SuperBlock.
const SuperBlockSize = 56

// ValidBlockSizes are the block sizes an MSF file may use.
var ValidBlockSizes = []uint32{512, 1024, 2048, 4096}

// SuperBlock is the header at the start of an MSF file.
type SuperBlock struct {
	Magic             [32]byte
	BlockSize         uint32
	FreeBlockMapBlock uint32 // active FPM block, 1 or 2
	NumBlocks         uint32
	NumDirectoryBytes uint32
	Unknown           uint32
	BlockMapAddr      uint32 // block holding the directory block map
}

// ReadSuperBlock decodes and validates a SuperBlock from r.
func ReadSuperBlock(r io.Reader) (*SuperBlock, error) {
	var raw [SuperBlockSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, fmt.Errorf("failed to read superblock: %w", err)
	}
	var sb SuperBlock
	if err := sb.UnmarshalBinary(raw[:]); err != nil {
		return nil, err
	}
	if err := sb.Validate(); err != nil {
		return nil, err
	}
	return &sb, nil
}

// UnmarshalBinary decodes the little-endian on-disk form.
func (sb *SuperBlock) UnmarshalBinary(data []byte) error {
	if len(data) < SuperBlockSize {
		return fmt.Errorf("superblock needs %d bytes, got %d", SuperBlockSize, len(data))
	}
	copy(sb.Magic[:], data[:32])
	le := binary.LittleEndian
	sb.BlockSize = le.Uint32(data[32:])
	sb.FreeBlockMapBlock = le.Uint32(data[36:])
	sb.NumBlocks = le.Uint32(data[40:])
	sb.NumDirectoryBytes = le.Uint32(data[44:])
	sb.Unknown = le.Uint32(data[48:])
	sb.BlockMapAddr = le.Uint32(data[52:])
	return nil
}

// MarshalBinary encodes the superblock in its on-disk form.
func (sb *SuperBlock) MarshalBinary() ([]byte, error) {
	data := make([]byte, SuperBlockSize)
	copy(data, sb.Magic[:])
	le := binary.LittleEndian
	le.PutUint32(data[32:], sb.BlockSize)
	le.PutUint32(data[36:], sb.FreeBlockMapBlock)
	le.PutUint32(data[40:], sb.NumBlocks)
	le.PutUint32(data[44:], sb.NumDirectoryBytes)
	le.PutUint32(data[48:], sb.Unknown)
	le.PutUint32(data[52:], sb.BlockMapAddr)
	return data, nil
}

// Validate checks the magic, block size and FPM block.
func (sb *SuperBlock) Validate() error {
	if !bytes.Equal(sb.Magic[:], Magic) {
		return fmt.Errorf("invalid MSF magic: not a valid PDB file")
	}
	if !slices.Contains(ValidBlockSizes, sb.BlockSize) {
		return fmt.Errorf("invalid block size: %d", sb.BlockSize)
	}
	if sb.FreeBlockMapBlock != 1 && sb.FreeBlockMapBlock != 2 {
		return fmt.Errorf("invalid FreeBlockMapBlock: %d (must be 1 or 2)", sb.FreeBlockMapBlock)
	}
	if sb.BlockMapAddr >= sb.NumBlocks {
		return fmt.Errorf("block map address %d outside of %d blocks", sb.BlockMapAddr, sb.NumBlocks)
	}
	return nil
}

// NumDirectoryBlocks returns the number of blocks the stream directory spans.
func (sb *SuperBlock) NumDirectoryBlocks() uint32 {
	return (sb.NumDirectoryBytes + sb.BlockSize - 1) / sb.BlockSize
}

// FileSize returns the file size implied by the block count.
func (sb *SuperBlock) FileSize() int64 {
	return int64(sb.NumBlocks) * int64(sb.BlockSize)
}

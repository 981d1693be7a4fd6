// Package msftest assembles MSF containers in memory for tests.
package msftest

import (
	"encoding/binary"
	"io"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jtang613/pdbstream/pkg/pdb/memstream"
	"github.com/jtang613/pdbstream/pkg/pdb/msf"
)

// Image lays out an MSF container in a memory stream. A nil entry in
// streams becomes an unused directory slot. Block chains are stored in
// reverse order so readers have to follow them rather than read linearly.
func Image(t testing.TB, blockSize uint32, streams [][]byte) *memstream.Stream {
	t.Helper()
	img, err := memstream.NewWithChunkSize(1024)
	require.NoError(t, err)

	const blockMapBlock = 3
	next := uint32(blockMapBlock + 1)
	writeAt := func(block uint32, data []byte) {
		_, err := img.Seek(int64(block)*int64(blockSize), io.SeekStart)
		require.NoError(t, err)
		_, err = img.Write(data)
		require.NoError(t, err)
	}

	dir := binary.LittleEndian.AppendUint32(nil, uint32(len(streams)))
	var chains [][]uint32
	for _, data := range streams {
		if data == nil {
			dir = binary.LittleEndian.AppendUint32(dir, msf.NilStreamSize)
			chains = append(chains, nil)
			continue
		}
		dir = binary.LittleEndian.AppendUint32(dir, uint32(len(data)))
		n := (uint32(len(data)) + blockSize - 1) / blockSize
		chain := make([]uint32, n)
		for i := range chain {
			chain[i] = next + uint32(i)
		}
		slices.Reverse(chain)
		next += n
		for i, block := range chain {
			end := min(len(data), (i+1)*int(blockSize))
			writeAt(block, data[i*int(blockSize):end])
		}
		chains = append(chains, chain)
	}
	for _, chain := range chains {
		for _, block := range chain {
			dir = binary.LittleEndian.AppendUint32(dir, block)
		}
	}

	var blockMap []byte
	for off := 0; off < len(dir); off += int(blockSize) {
		writeAt(next, dir[off:min(len(dir), off+int(blockSize))])
		blockMap = binary.LittleEndian.AppendUint32(blockMap, next)
		next++
	}
	writeAt(blockMapBlock, blockMap)

	sb := msf.SuperBlock{
		BlockSize:         blockSize,
		FreeBlockMapBlock: 1,
		NumBlocks:         next,
		NumDirectoryBytes: uint32(len(dir)),
		BlockMapAddr:      blockMapBlock,
	}
	copy(sb.Magic[:], msf.Magic)
	header, err := sb.MarshalBinary()
	require.NoError(t, err)
	writeAt(0, header)

	// Pad to whole blocks without writing the tail.
	_, err = img.Seek(sb.FileSize(), io.SeekStart)
	require.NoError(t, err)
	_, err = img.Seek(0, io.SeekStart)
	require.NoError(t, err)
	return img
}

// InfoStream encodes a PDB info stream with a named stream map holding
// names in the order given.
func InfoStream(version, signature, age uint32, guid [16]byte, names []string, indices []uint32) []byte {
	le := binary.LittleEndian
	out := le.AppendUint32(nil, version)
	out = le.AppendUint32(out, signature)
	out = le.AppendUint32(out, age)
	out = append(out, guid[:]...)

	var strBuf []byte
	offsets := make([]uint32, len(names))
	for i, name := range names {
		offsets[i] = uint32(len(strBuf))
		strBuf = append(strBuf, name...)
		strBuf = append(strBuf, 0)
	}
	out = le.AppendUint32(out, uint32(len(strBuf)))
	out = append(out, strBuf...)

	// One bucket per name, all present.
	capacity := uint32(len(names))
	out = le.AppendUint32(out, uint32(len(names)))
	out = le.AppendUint32(out, capacity)
	var present uint32
	for i := range names {
		present |= 1 << i
	}
	out = le.AppendUint32(out, 1)
	out = le.AppendUint32(out, present)
	out = le.AppendUint32(out, 0)
	for i := range names {
		out = le.AppendUint32(out, offsets[i])
		out = le.AppendUint32(out, indices[i])
	}
	return out
}

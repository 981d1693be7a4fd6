package pdb

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtang613/pdbstream/pkg/config"
	"github.com/jtang613/pdbstream/pkg/pdb/memstream"
	"github.com/jtang613/pdbstream/pkg/pdb/msf/msftest"
	"github.com/jtang613/pdbstream/pkg/pdb/streams"
)

var guid = [16]byte{0x10, 0x32, 0x54, 0x76, 0x98, 0xBA, 0xDC, 0xFE, 1, 2, 3, 4, 5, 6, 7, 8}

func testFile(t *testing.T) (string, []byte) {
	t.Helper()
	names := bytes.Repeat([]byte("main.cpp\x00"), 300)
	info := msftest.InfoStream(streams.PDBStreamVersionVC70, 0x61000000, 2, guid,
		[]string{"/names"}, []uint32{5})
	img := msftest.Image(t, 1024, [][]byte{nil, info, {}, {}, {}, names})

	path := filepath.Join(t.TempDir(), "app.pdb")
	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = img.CopyTo(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return path, names
}

func TestOpenInfo(t *testing.T) {
	path, _ := testFile(t)
	p, err := Open(path, config.Default())
	require.NoError(t, err)
	defer p.Close()

	st, err := os.Stat(path)
	require.NoError(t, err)

	info := p.Info()
	assert.Equal(t, st.Size(), info.Size)
	assert.Equal(t, uint32(1024), info.BlockSize)
	assert.Equal(t, 6, info.Streams)
	assert.Equal(t, "76543210BA98FEDC0102030405060708", info.GUID)
	assert.Equal(t, "76543210BA98FEDC01020304050607082", info.SymbolKey)
	assert.Equal(t, uint32(2), info.Age)
	assert.Equal(t, uint32(streams.PDBStreamVersionVC70), info.Version)
	assert.Equal(t, map[string]uint32{"/names": 5}, info.NamedStreams)
}

func TestStreams(t *testing.T) {
	path, names := testFile(t)
	p, err := Open(path, config.Default())
	require.NoError(t, err)

	list := p.Streams()
	require.Len(t, list, 6)
	assert.Equal(t, StreamInfo{Index: 0, Name: "<old directory>"}, list[0])
	assert.Equal(t, "<pdb>", list[1].Name)
	assert.Equal(t, StreamInfo{Index: 5, Name: "/names", Size: uint32(len(names)), Blocks: 3}, list[5])

	i, ok := p.StreamIndex("/names")
	assert.True(t, ok)
	assert.Equal(t, 5, i)
	_, ok = p.StreamIndex("/missing")
	assert.False(t, ok)
}

func TestExtractStream(t *testing.T) {
	path, names := testFile(t)
	cfg := config.Default()
	cfg.ChunkSize = 512
	p, err := Open(path, cfg)
	require.NoError(t, err)
	assert.Equal(t, 512, p.Image().ChunkSize())

	s, err := p.ExtractStream(5)
	require.NoError(t, err)
	assert.Equal(t, 512, s.ChunkSize())
	assert.Zero(t, s.Position())

	var buf bytes.Buffer
	_, err = s.CopyTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, names, buf.Bytes())

	_, err = p.ExtractStream(42)
	assert.Error(t, err)
}

func TestOpenHonoursMaxSize(t *testing.T) {
	path, _ := testFile(t)
	cfg := config.Default()
	cfg.MaxSize = 2048
	_, err := Open(path, cfg)
	assert.ErrorIs(t, err, memstream.ErrAllocationFailure)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "none.pdb"), config.Default())
	assert.ErrorContains(t, err, "failed to open PDB")

	_, err = Load(bytes.NewReader([]byte("not a pdb at all")), config.Default())
	assert.Error(t, err)

	cfg := config.Default()
	cfg.ChunkSize = 0
	_, err = Load(bytes.NewReader(nil), cfg)
	assert.ErrorIs(t, err, memstream.ErrInvalidArgument)
}

func TestCloseDropsImage(t *testing.T) {
	path, names := testFile(t)
	p, err := Open(path, config.Default())
	require.NoError(t, err)
	s, err := p.ExtractStream(5)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	assert.Nil(t, p.Image())

	// Streams extracted before Close stay usable.
	var buf bytes.Buffer
	_, err = s.CopyTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, names, buf.Bytes())
}

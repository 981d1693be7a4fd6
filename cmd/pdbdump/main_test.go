package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtang613/pdbstream/pkg/pdb"
	"github.com/jtang613/pdbstream/pkg/pdb/artifact"
	"github.com/jtang613/pdbstream/pkg/pdb/msf/msftest"
)

func writeTestPDB(t *testing.T) (string, []byte) {
	t.Helper()
	names := bytes.Repeat([]byte("dllmain.c\x00"), 120)
	var guid [16]byte
	guid[0] = 0x42
	info := msftest.InfoStream(20000404, 7, 1, guid, []string{"/names"}, []uint32{5})
	img := msftest.Image(t, 512, [][]byte{nil, info, {}, {}, {}, names})

	path := filepath.Join(t.TempDir(), "dll.pdb")
	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = img.CopyTo(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return path, names
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"pdbdump"}, args...))
	return out.String(), err
}

func TestInfoCommand(t *testing.T) {
	path, _ := writeTestPDB(t)
	out, err := run(t, "info", path)
	require.NoError(t, err)

	var info pdb.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, 6, info.Streams)
	assert.Equal(t, uint32(512), info.BlockSize)
	assert.Equal(t, "00000042000000000000000000000000", info.GUID)
}

func TestStreamsCommand(t *testing.T) {
	path, names := writeTestPDB(t)
	out, err := run(t, "--chunk-size", "128", "streams", "--pretty", path)
	require.NoError(t, err)
	assert.Contains(t, out, "\n  {")

	var list []pdb.StreamInfo
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 6)
	assert.Equal(t, "/names", list[5].Name)
	assert.Equal(t, uint32(len(names)), list[5].Size)
}

func TestExtractByName(t *testing.T) {
	path, names := writeTestPDB(t)
	dir := t.TempDir()
	outPath := filepath.Join(dir, "names.zst")
	manifest := filepath.Join(dir, "names.json")

	_, err := run(t, "extract", "--stream", "/names", "--out", outPath,
		"--compress", "zstd", "--digest", "--manifest", manifest, path)
	require.NoError(t, err)

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()
	r, err := artifact.NewReader(f, artifact.CompressionZstd)
	require.NoError(t, err)
	defer r.Close()
	var got bytes.Buffer
	_, err = got.ReadFrom(r)
	require.NoError(t, err)
	assert.Equal(t, names, got.Bytes())

	raw, err := os.ReadFile(manifest)
	require.NoError(t, err)
	var res artifact.Result
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.Equal(t, int64(len(names)), res.Size)
	assert.Equal(t, "zstd", res.Compression)
	assert.Len(t, res.Digest, 64)
}

func TestExtractUnknownStream(t *testing.T) {
	path, _ := writeTestPDB(t)
	_, err := run(t, "extract", "--stream", "/missing", "--out", filepath.Join(t.TempDir(), "x"), path)
	assert.ErrorContains(t, err, `no stream named "/missing"`)
}

func TestRepackIsByteExact(t *testing.T) {
	path, _ := writeTestPDB(t)
	outPath := filepath.Join(t.TempDir(), "copy.pdb")
	_, err := run(t, "--chunk-size", "100", "repack", "--out", outPath, path)
	require.NoError(t, err)

	want, err := os.ReadFile(path)
	require.NoError(t, err)
	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestConfigFile(t *testing.T) {
	path, _ := writeTestPDB(t)
	cfgPath := filepath.Join(t.TempDir(), "pdbstream.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("max_size: 1024\n"), 0o644))

	_, err := run(t, "--config", cfgPath, "info", path)
	assert.ErrorContains(t, err, "allocation failure")

	require.NoError(t, os.WriteFile(cfgPath, []byte("compression: brotli\n"), 0o644))
	_, err = run(t, "--config", cfgPath, "info", path)
	assert.ErrorContains(t, err, "unknown compression")
}

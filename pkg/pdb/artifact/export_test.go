package artifact

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/jtang613/pdbstream/pkg/pdb/memstream"
)

// sparseStream holds some text, a gap that was never written, and more
// text, so exports cover allocated chunks and the zero tail.
func sparseStream(t *testing.T) (*memstream.Stream, []byte) {
	t.Helper()
	s, err := memstream.NewWithChunkSize(64)
	require.NoError(t, err)
	head := bytes.Repeat([]byte("symbol record "), 20)
	_, err = s.Write(head)
	require.NoError(t, err)
	_, err = s.Seek(1000, io.SeekCurrent)
	require.NoError(t, err)

	want := append(bytes.Clone(head), make([]byte, 1000)...)
	return s, want
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4, CompressionXZ} {
		t.Run(c.String(), func(t *testing.T) {
			got, err := ParseCompression(c.String())
			require.NoError(t, err)
			assert.Equal(t, c, got)
		})
	}
	got, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, got)

	_, err = ParseCompression("gzip")
	assert.Error(t, err)
	assert.Equal(t, "unknown(9)", Compression(9).String())
	assert.Equal(t, ".zst", CompressionZstd.Extension())
}

func TestExportPlain(t *testing.T) {
	s, want := sparseStream(t)
	var buf bytes.Buffer
	res, err := Export(context.Background(), s, &buf, Options{})
	require.NoError(t, err)
	assert.Equal(t, want, buf.Bytes())
	assert.Equal(t, &Result{Size: int64(len(want)), Written: int64(len(want)), Compression: "none"}, res)
}

func TestExportCompressedRoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4, CompressionXZ} {
		t.Run(c.String(), func(t *testing.T) {
			s, want := sparseStream(t)
			var buf bytes.Buffer
			res, err := Export(context.Background(), s, &buf, Options{Compression: c, Digest: true})
			require.NoError(t, err)
			assert.Equal(t, int64(len(want)), res.Size)
			assert.Equal(t, int64(buf.Len()), res.Written)

			sum := blake3.Sum256(want)
			assert.Equal(t, hex.EncodeToString(sum[:]), res.Digest)

			r, err := NewReader(&buf, c)
			require.NoError(t, err)
			defer r.Close()
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestExportWrapSeesUncompressedBytes(t *testing.T) {
	s, want := sparseStream(t)
	var seen bytes.Buffer
	var total int64
	opts := Options{
		Compression: CompressionZstd,
		Wrap: func(w io.Writer, n int64) io.Writer {
			total = n
			return io.MultiWriter(w, &seen)
		},
	}
	_, err := Export(context.Background(), s, io.Discard, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(len(want)), total)
	assert.Equal(t, want, seen.Bytes())
}

func TestExportBandwidthLimit(t *testing.T) {
	s, want := sparseStream(t)
	var buf bytes.Buffer
	// The bucket starts full, so a limit above the artifact size never waits.
	res, err := Export(context.Background(), s, &buf, Options{BandwidthLimit: 1 << 20})
	require.NoError(t, err)
	assert.Equal(t, int64(len(want)), res.Written)
	assert.Equal(t, want, buf.Bytes())
}

func TestExportCancelled(t *testing.T) {
	s, _ := sparseStream(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Export(ctx, s, io.Discard, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExportFile(t *testing.T) {
	s, want := sparseStream(t)
	path := filepath.Join(t.TempDir(), "out.pdb")
	res, err := ExportFile(context.Background(), s, path, Options{Digest: true})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Digest)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExportFileRemovesOnFailure(t *testing.T) {
	s, _ := sparseStream(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := filepath.Join(t.TempDir(), "out.pdb")
	_, err := ExportFile(ctx, s, path, Options{})
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	_, err = ExportFile(context.Background(), s, filepath.Join(t.TempDir(), "missing", "out.pdb"), Options{})
	assert.ErrorContains(t, err, "failed to create artifact")
}

func TestWriteManifest(t *testing.T) {
	res := &Result{Size: 10, Written: 4, Compression: "zstd", Digest: "ab"}

	var js bytes.Buffer
	require.NoError(t, WriteManifest(&js, res, FormatJSON))
	var fromJSON Result
	require.NoError(t, json.Unmarshal(js.Bytes(), &fromJSON))
	assert.Equal(t, *res, fromJSON)

	var cb bytes.Buffer
	require.NoError(t, WriteManifest(&cb, res, FormatCBOR))
	var fromCBOR Result
	require.NoError(t, cbor.Unmarshal(cb.Bytes(), &fromCBOR))
	assert.Equal(t, *res, fromCBOR)

	assert.Error(t, WriteManifest(io.Discard, res, Format("xml")))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	f, err = ParseFormat("cbor")
	require.NoError(t, err)
	assert.Equal(t, FormatCBOR, f)
	_, err = ParseFormat("yaml")
	assert.Error(t, err)
}

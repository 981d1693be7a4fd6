package artifact

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

// Compression selects how an exported artifact is encoded.
type Compression uint8

const (
	// CompressionNone writes the stream bytes unchanged.
	CompressionNone Compression = iota
	// CompressionZstd writes a zstd frame.
	CompressionZstd
	// CompressionLZ4 writes an LZ4 frame.
	CompressionLZ4
	// CompressionXZ writes an xz stream.
	CompressionXZ
)

// String returns the name used in configuration and manifests.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionXZ:
		return "xz"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// Extension returns the file suffix conventionally used for c.
func (c Compression) Extension() string {
	switch c {
	case CompressionZstd:
		return ".zst"
	case CompressionLZ4:
		return ".lz4"
	case CompressionXZ:
		return ".xz"
	default:
		return ""
	}
}

// ParseCompression parses a compression name. The empty string means none.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "xz":
		return CompressionXZ, nil
	default:
		return 0, errors.Errorf("unknown compression %q", name)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// newCompressor returns a writer encoding into w. Closing it flushes the
// frame but leaves w open.
func newCompressor(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create zstd encoder")
		}
		return enc, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionXZ:
		enc, err := xz.NewWriter(w)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create xz encoder")
		}
		return enc, nil
	default:
		return nil, errors.Errorf("unsupported compression %s", c)
	}
}

// NewReader returns a reader decoding an artifact written with c.
func NewReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionNone:
		return io.NopCloser(r), nil
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create zstd decoder")
		}
		return dec.IOReadCloser(), nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CompressionXZ:
		dec, err := xz.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read xz header")
		}
		return io.NopCloser(dec), nil
	default:
		return nil, errors.Errorf("unsupported compression %s", c)
	}
}

// Package artifact drains a finished memory stream into its final
// destination, optionally compressed, rate limited and digested.
package artifact

import (
	"context"
	"encoding/hex"
	"hash"
	"io"
	"os"

	"github.com/juju/ratelimit"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"

	"github.com/jtang613/pdbstream/pkg/pdb/memstream"
	"github.com/jtang613/pdbstream/pkg/utils"
)

var logger = utils.GetLogger("artifact")

// Options controls an export.
type Options struct {
	Compression Compression
	// BandwidthLimit caps output bytes per second. Zero is unlimited.
	BandwidthLimit int64
	// Digest computes a BLAKE3 digest of the uncompressed content.
	Digest bool
	// Wrap, when set, wraps the writer that receives the uncompressed
	// content. total is the number of bytes that will pass through it.
	Wrap func(w io.Writer, total int64) io.Writer
}

// Result describes a finished export.
type Result struct {
	Size        int64  `json:"size" cbor:"size"`
	Written     int64  `json:"written" cbor:"written"`
	Compression string `json:"compression" cbor:"compression"`
	Digest      string `json:"digest,omitempty" cbor:"digest,omitempty"`
}

type limitedWriter struct {
	io.Writer
	bucket *ratelimit.Bucket
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	n, err := l.Writer.Write(p)
	l.bucket.Wait(int64(n))
	return n, err
}

type countingWriter struct {
	io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.Writer.Write(p)
	c.n += int64(n)
	return n, err
}

// Export drains src into dst exactly once. src is read from offset 0 to
// its length regardless of its position. The context is checked between
// chunks.
func Export(ctx context.Context, src *memstream.Stream, dst io.Writer, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := &Result{Size: src.Len(), Compression: opts.Compression.String()}

	plain := opts.Compression == CompressionNone && opts.BandwidthLimit <= 0 &&
		!opts.Digest && opts.Wrap == nil && ctx.Done() == nil
	if plain {
		n, err := src.CopyTo(dst)
		res.Written = n
		if err != nil {
			return res, errors.Wrap(err, "failed to export stream")
		}
		return res, nil
	}

	out := &countingWriter{Writer: dst}
	var sink io.Writer = out
	if opts.BandwidthLimit > 0 {
		sink = &limitedWriter{
			Writer: sink,
			bucket: ratelimit.NewBucketWithRate(float64(opts.BandwidthLimit), opts.BandwidthLimit),
		}
	}

	comp, err := newCompressor(sink, opts.Compression)
	if err != nil {
		return nil, err
	}
	var in io.Writer = comp
	var digest hash.Hash
	if opts.Digest {
		digest = blake3.New()
		in = io.MultiWriter(in, digest)
	}
	if opts.Wrap != nil {
		in = opts.Wrap(in, src.Len())
	}

	for chunk := range src.Chunks() {
		if err := ctx.Err(); err != nil {
			comp.Close()
			return res, err
		}
		if _, err := in.Write(chunk); err != nil {
			comp.Close()
			res.Written = out.n
			return res, errors.Wrap(err, "failed to export stream")
		}
	}
	if err := comp.Close(); err != nil {
		return res, errors.Wrapf(err, "failed to finish %s frame", opts.Compression)
	}

	res.Written = out.n
	if digest != nil {
		res.Digest = hex.EncodeToString(digest.Sum(nil))
	}
	logger.Debugf("exported %d bytes as %d %s bytes", res.Size, res.Written, res.Compression)
	return res, nil
}

// ExportFile exports src into a new file at path. Uncompressed files are
// pre-sized to the stream length. The file is synced before returning and
// removed if the export fails.
func ExportFile(ctx context.Context, src *memstream.Stream, path string, opts Options) (res *Result, err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create artifact")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "failed to close artifact")
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	if opts.Compression == CompressionNone {
		if terr := f.Truncate(src.Len()); terr != nil {
			logger.Debugf("pre-size of %s failed: %s", path, terr)
		}
	}
	if res, err = Export(ctx, src, f, opts); err != nil {
		return nil, err
	}
	if err = f.Sync(); err != nil {
		return nil, errors.Wrap(err, "failed to sync artifact")
	}
	logger.Infof("wrote %s (%d bytes)", path, res.Written)
	return res, nil
}

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/jtang613/pdbstream/pkg/config"
	"github.com/jtang613/pdbstream/pkg/pdb"
	"github.com/jtang613/pdbstream/pkg/pdb/artifact"
	"github.com/jtang613/pdbstream/pkg/pdb/memstream"
)

func exportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "out",
			Aliases:  []string{"o"},
			Usage:    "output file",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "compress",
			Usage: "compression: none, zstd, lz4 or xz",
		},
		&cli.Int64Flag{
			Name:  "bwlimit",
			Usage: "limit output to this many bytes per second (0 = unlimited)",
		},
		&cli.BoolFlag{
			Name:  "digest",
			Usage: "record a BLAKE3 digest of the content",
		},
		&cli.StringFlag{
			Name:  "manifest",
			Usage: "write an export manifest to this file",
		},
		&cli.StringFlag{
			Name:  "format",
			Value: "json",
			Usage: "manifest format: json or cbor",
		},
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "show a progress bar when stderr is a terminal",
		},
	}
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "export one stream of a PDB",
		ArgsUsage: "PDB",
		Action:    extract,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "stream",
				Aliases:  []string{"s"},
				Usage:    "stream index or name (e.g. 5 or /names)",
				Required: true,
			},
		}, exportFlags()...),
	}
}

func extract(c *cli.Context) error {
	p, cfg, err := openPDB(c)
	if err != nil {
		return err
	}
	defer p.Close()

	index, err := resolveStream(p, c.String("stream"))
	if err != nil {
		return err
	}
	s, err := p.ExtractStream(index)
	if err != nil {
		return err
	}
	return export(c, cfg, s)
}

func repackCommand() *cli.Command {
	return &cli.Command{
		Name:      "repack",
		Usage:     "load a whole PDB into memory and export it",
		ArgsUsage: "PDB",
		Action:    repack,
		Flags:     exportFlags(),
	}
}

func repack(c *cli.Context) error {
	p, cfg, err := openPDB(c)
	if err != nil {
		return err
	}
	defer p.Close()
	return export(c, cfg, p.Image())
}

func resolveStream(p *pdb.PDB, ref string) (int, error) {
	if i, err := strconv.Atoi(ref); err == nil {
		return i, nil
	}
	if i, ok := p.StreamIndex(ref); ok {
		return i, nil
	}
	return 0, fmt.Errorf("no stream named %q", ref)
}

// export drains s into --out and writes the manifest if one was requested.
func export(c *cli.Context, cfg config.Config, s *memstream.Stream) error {
	comp, err := artifact.ParseCompression(cfg.Compression)
	if err != nil {
		return err
	}
	opts := artifact.Options{
		Compression:    comp,
		BandwidthLimit: cfg.BandwidthLimit,
		Digest:         cfg.Digest,
	}

	var bars *progress
	if c.Bool("progress") && isatty.IsTerminal(os.Stderr.Fd()) {
		bars = newProgress(os.Stderr)
		opts.Wrap = bars.wrap
	}
	res, err := artifact.ExportFile(c.Context, s, c.String("out"), opts)
	if bars != nil {
		bars.finish(err == nil)
	}
	if err != nil {
		return err
	}

	if path := c.String("manifest"); path != "" {
		format, err := artifact.ParseFormat(c.String("format"))
		if err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create manifest: %w", err)
		}
		if err := artifact.WriteManifest(f, res, format); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return nil
}

// progress renders one bar per exported artifact.
type progress struct {
	p    *mpb.Progress
	bars []*mpb.Bar
}

func newProgress(w io.Writer) *progress {
	return &progress{p: mpb.New(mpb.WithOutput(w), mpb.WithWidth(48))}
}

func (pr *progress) wrap(w io.Writer, total int64) io.Writer {
	if total <= 0 {
		return w
	}
	bar := pr.p.AddBar(total,
		mpb.PrependDecorators(
			decor.Name("export "),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)
	pr.bars = append(pr.bars, bar)
	return bar.ProxyWriter(w)
}

func (pr *progress) finish(ok bool) {
	for _, bar := range pr.bars {
		if !ok || !bar.Completed() {
			bar.Abort(false)
		}
	}
	pr.p.Wait()
}

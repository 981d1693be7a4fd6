// pdbdump inspects Microsoft PDB files and exports their streams, buffering
// every file in a chunked memory stream.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/jtang613/pdbstream/pkg/config"
	"github.com/jtang613/pdbstream/pkg/pdb"
	"github.com/jtang613/pdbstream/pkg/pdb/artifact"
	"github.com/jtang613/pdbstream/pkg/utils"
)

var logger = utils.GetLogger("pdbdump")

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Errorf("%s", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "pdbdump",
		Usage: "inspect and export Microsoft PDB files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "memory stream chunk size in bytes",
			},
			&cli.Int64Flag{
				Name:  "max-size",
				Usage: "refuse to buffer more than this many bytes (0 = unlimited)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug log",
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "enable trace log",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			infoCommand(),
			streamsCommand(),
			extractCommand(),
			repackCommand(),
		},
	}
}

// setup applies the log level before any command runs.
func setup(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log_level %q: %w", cfg.LogLevel, err)
	}
	switch {
	case c.Bool("trace"):
		lvl = logrus.TraceLevel
	case c.Bool("verbose"):
		lvl = logrus.DebugLevel
	}
	utils.SetLogLevel(lvl)
	return nil
}

// loadConfig reads --config and applies flag overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if c.IsSet("chunk-size") {
		cfg.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("max-size") {
		cfg.MaxSize = c.Int64("max-size")
	}
	if c.IsSet("compress") {
		cfg.Compression = c.String("compress")
	}
	if c.IsSet("bwlimit") {
		cfg.BandwidthLimit = c.Int64("bwlimit")
	}
	if c.Bool("digest") {
		cfg.Digest = true
	}
	return cfg, cfg.Validate()
}

// openPDB loads the PDB named by the first argument.
func openPDB(c *cli.Context) (*pdb.PDB, config.Config, error) {
	if c.Args().Len() < 1 {
		return nil, config.Config{}, cli.Exit("PDB file is needed", 1)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, cfg, err
	}
	p, err := pdb.Open(c.Args().First(), cfg)
	if err != nil {
		return nil, cfg, err
	}
	return p, cfg, nil
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "format",
			Value: "json",
			Usage: "output format: json or cbor",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "indent JSON output (default when stdout is a terminal)",
		},
	}
}

// output encodes v to stdout in the format selected by the command flags.
func output(c *cli.Context, w io.Writer, v any) error {
	format, err := artifact.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}
	pretty := c.Bool("pretty")
	if f, ok := w.(*os.File); ok && !c.IsSet("pretty") {
		pretty = isatty.IsTerminal(f.Fd())
	}
	return artifact.Encode(w, v, format, pretty)
}

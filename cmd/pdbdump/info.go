package main

import (
	"github.com/urfave/cli/v2"
)

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "show PDB identity and container layout",
		ArgsUsage: "PDB",
		Action:    info,
		Flags:     outputFlags(),
	}
}

func info(c *cli.Context) error {
	p, _, err := openPDB(c)
	if err != nil {
		return err
	}
	defer p.Close()
	return output(c, c.App.Writer, p.Info())
}

func streamsCommand() *cli.Command {
	return &cli.Command{
		Name:      "streams",
		Usage:     "list the streams of a PDB",
		ArgsUsage: "PDB",
		Action:    listStreams,
		Flags:     outputFlags(),
	}
}

func listStreams(c *cli.Context) error {
	p, _, err := openPDB(c)
	if err != nil {
		return err
	}
	defer p.Close()
	return output(c, c.App.Writer, p.Streams())
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/streamgen/internal/version"
)

func versionCmd() *cli.Command {
	var short bool
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "short", Usage: "print only the version string", Destination: &short},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			writeVersion(os.Stdout, version.Resolve(), short)
			return nil
		},
	}
}

func writeVersion(w io.Writer, info version.Info, short bool) {
	if short {
		_, _ = fmt.Fprintln(w, info.Version)
		return
	}
	rows := [][2]string{
		{"version", info.Version},
		{"commit", info.Commit},
		{"built", info.BuildTime},
		{"go", info.GoVersion},
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		_, _ = fmt.Fprintf(w, "%-8s %s\n", r[0]+":", r[1])
	}
}

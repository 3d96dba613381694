package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/streamgen/internal/logger"
)

// fileConfig is the config file loaded by the root command.
var fileConfig Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "streamgen",
		Usage: "Stream text from a GPT-2 checkpoint to the console or over HTTP",
		Flags: logOpts.flags(),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := LoadConfig(logOpts.configPath)
			if err != nil {
				return ctx, err
			}
			fileConfig = cfg
			logOpts.applyConfig(cmd, cfg)
			log, err := logOpts.logger()
			if err != nil {
				return ctx, err
			}
			return logger.WithContext(ctx, log), nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			runCmd(),
			serveCmd(),
			frontendCmd(),
			inspectCmd(),
			toyCmd(),
			versionCmd(),
		},
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/streamgen/internal/logger"
	"github.com/samcharles93/streamgen/internal/toy"
)

func toyCmd() *cli.Command {
	var (
		out  string
		opts = toy.DefaultOptions()
	)
	layers := int64(opts.Layers)
	heads := int64(opts.Heads)
	embd := int64(opts.Embd)
	positions := int64(opts.Positions)

	return &cli.Command{
		Name:  "toy",
		Usage: "Write a tiny random GPT-2 checkpoint for demos and smoke tests",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output directory",
				Required:    true,
				Destination: &out,
			},
			&cli.Int64Flag{Name: "layers", Usage: "transformer blocks", Value: layers, Destination: &layers},
			&cli.Int64Flag{Name: "heads", Usage: "attention heads", Value: heads, Destination: &heads},
			&cli.Int64Flag{Name: "embd", Usage: "embedding width", Value: embd, Destination: &embd},
			&cli.Int64Flag{Name: "positions", Usage: "context window", Value: positions, Destination: &positions},
			&cli.Int64Flag{Name: "seed", Usage: "weight seed", Value: opts.Seed, Destination: &opts.Seed},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts.Layers = int(layers)
			opts.Heads = int(heads)
			opts.Embd = int(embd)
			opts.Positions = int(positions)
			if err := toy.Write(out, opts); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			logger.FromContext(ctx).Info("wrote toy checkpoint", "path", out, "layers", opts.Layers, "embd", opts.Embd)
			return nil
		},
	}
}

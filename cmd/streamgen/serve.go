package main

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/streamgen/internal/api"
	"github.com/samcharles93/streamgen/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr              string
		readTimeout       time.Duration
		pace              time.Duration
		indexMaxTokens    int64
		generateMaxTokens int64
		buffer            int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve streaming generation over HTTP",
		Flags: append(ckpt.flags(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "0.0.0.0:8000",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.DurationFlag{
				Name:        "pace",
				Usage:       "delay between fragments streamed by GET /",
				Value:       200 * time.Millisecond,
				Destination: &pace,
			},
			&cli.Int64Flag{
				Name:        "index-max-tokens",
				Usage:       "new tokens generated by GET /",
				Value:       50,
				Destination: &indexMaxTokens,
			},
			&cli.Int64Flag{
				Name:        "generate-max-tokens",
				Usage:       "new tokens generated by GET /generate",
				Value:       20,
				Destination: &generateMaxTokens,
			},
			&cli.Int64Flag{
				Name:        "buffer",
				Usage:       "fragments a worker may run ahead of a slow client",
				Value:       64,
				Destination: &buffer,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyServeConfig(cmd, fileConfig, &addr, &pace)
			log := logger.FromContext(ctx)

			res, dir, err := loadModel(ctx)
			if err != nil {
				return cli.Exit("error: load model: "+err.Error(), 1)
			}
			defer func() { _ = res.Engine.Close() }()

			cfg := api.DefaultConfig()
			cfg.ModelName = filepath.Base(dir)
			cfg.IndexPace = pace
			cfg.IndexMaxTokens = int(indexMaxTokens)
			cfg.GenerateMaxTokens = int(generateMaxTokens)
			cfg.Buffer = int(buffer)

			e := api.NewEcho(api.NewServer(res.Engine, res.GenerationDefaults, cfg, log))
			log.Info("starting server", "address", addr, "model", cfg.ModelName)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

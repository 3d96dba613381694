package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/streamgen/internal/frontend"
	"github.com/samcharles93/streamgen/internal/logger"
)

func frontendCmd() *cli.Command {
	var (
		addr       string
		backendURL string
		timeout    time.Duration
	)

	return &cli.Command{
		Name:  "frontend",
		Usage: "Serve the browser page and relay a generation service as Server-Sent Events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "0.0.0.0:8080",
				Destination: &addr,
			},
			&cli.StringFlag{
				Name:        "backend",
				Usage:       "base URL of the generation service",
				Value:       "http://127.0.0.1:8000",
				Destination: &backendURL,
			},
			&cli.DurationFlag{
				Name:        "backend-timeout",
				Usage:       "overall timeout of one backend stream (0 = none)",
				Destination: &timeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyFrontendConfig(cmd, fileConfig, &addr, &backendURL)
			log := logger.FromContext(ctx)

			backend, err := frontend.NewBackend(backendURL, &http.Client{Timeout: timeout})
			if err != nil {
				return cli.Exit("error: "+err.Error(), 1)
			}
			e := frontend.NewEcho(frontend.NewServer(backend, 0, log))
			log.Info("starting frontend", "address", addr, "backend", backendURL)
			sc := echo.StartConfig{Address: addr}
			return sc.Start(ctx, e)
		},
	}
}

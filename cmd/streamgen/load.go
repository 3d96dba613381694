package main

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/samcharles93/streamgen/internal/inference"
	"github.com/samcharles93/streamgen/internal/logger"
)

// loadModel resolves the checkpoint directory from the common model flags
// and loads it. Any error is fatal for the calling command.
func loadModel(ctx context.Context) (*inference.LoadResult, string, error) {
	log := logger.FromContext(ctx)

	dir, err := ckpt.resolve()
	if err != nil {
		return nil, "", err
	}

	start := time.Now()
	res, err := ckpt.loader().Load(dir)
	if err != nil {
		return nil, "", err
	}
	log.Info("model loaded",
		"path", dir,
		"arch", res.Arch,
		"params", humanize.Comma(int64(res.Model.ParamCount)),
		"weights", humanize.IBytes(uint64(res.WeightsBytes)),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return res, dir, nil
}

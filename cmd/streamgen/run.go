package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/streamgen/internal/inference"
	"github.com/samcharles93/streamgen/internal/logger"
	"github.com/samcharles93/streamgen/internal/stream"
)

type runOptions struct {
	prompt        string
	maxNewTokens  int64
	skipPrompt    bool
	temp          float64
	topK          int64
	topP          float64
	repeatPenalty float64
	seed          int64
	mode          string
	pace          time.Duration
	showStats     bool

	// fromConfig records flags filled in from the config file.
	fromConfig map[string]bool
	// explicit reports whether the user chose a value for a flag on the
	// command line or in the config file.
	explicit func(name string) bool
}

func runCmd() *cli.Command {
	var o runOptions

	return &cli.Command{
		Name:  "run",
		Usage: "Generate a continuation and print it as it streams",
		Flags: append(ckpt.flags(),
			&cli.StringFlag{
				Name:        "prompt",
				Aliases:     []string{"p"},
				Usage:       "prompt text (omit for an interactive session)",
				Destination: &o.prompt,
			},
			&cli.Int64Flag{
				Name:        "max-new-tokens",
				Aliases:     []string{"n"},
				Usage:       "number of tokens to generate",
				Value:       inference.DefaultMaxNewTokens,
				Destination: &o.maxNewTokens,
			},
			&cli.BoolFlag{
				Name:        "skip-prompt",
				Usage:       "do not echo the prompt as the first fragment",
				Destination: &o.skipPrompt,
			},
			&cli.Float64Flag{
				Name:        "temp",
				Aliases:     []string{"temperature", "t"},
				Usage:       "sampling temperature (0 = greedy)",
				Destination: &o.temp,
			},
			&cli.Int64Flag{
				Name:        "top-k",
				Usage:       "top-k sampling",
				Value:       50,
				Destination: &o.topK,
			},
			&cli.Float64Flag{
				Name:        "top-p",
				Usage:       "nucleus sampling threshold",
				Value:       1.0,
				Destination: &o.topP,
			},
			&cli.Float64Flag{
				Name:        "repeat-penalty",
				Usage:       "repetition penalty (1 = off)",
				Value:       1.0,
				Destination: &o.repeatPenalty,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "sampling seed (-1 = time based)",
				Value:       -1,
				Destination: &o.seed,
			},
			&cli.StringFlag{
				Name:        "mode",
				Usage:       "output mode (lines, instant, quiet)",
				Value:       string(StreamLines),
				Destination: &o.mode,
			},
			&cli.DurationFlag{
				Name:        "pace",
				Usage:       "minimum delay between printed fragments",
				Destination: &o.pace,
			},
			&cli.BoolFlag{
				Name:        "stats",
				Usage:       "print generation statistics to stderr",
				Destination: &o.showStats,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyRunConfig(c, fileConfig, &o)
			o.explicit = func(name string) bool { return c.IsSet(name) || o.fromConfig[name] }
			mode, err := ParseStreamMode(o.mode)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			res, _, err := loadModel(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load model: %v", err), 1)
			}
			defer func() { _ = res.Engine.Close() }()

			if o.prompt != "" {
				return generateOnce(ctx, res, o, mode, os.Stdout)
			}
			return interactive(ctx, res, o, mode)
		},
	}
}

func (o runOptions) request(defaults inference.GenDefaults) inference.Request {
	maxNew := int(o.maxNewTokens)
	opts := inference.RequestOptions{
		Prompt:       o.prompt,
		MaxNewTokens: &maxNew,
		SkipPrompt:   &o.skipPrompt,
		Seed:         &o.seed,
	}
	// Sampling flags left at their defaults defer to generation_config.json.
	if o.isExplicit("temp") {
		opts.Temperature = &o.temp
	}
	if o.isExplicit("top-k") {
		k := int(o.topK)
		opts.TopK = &k
	}
	if o.isExplicit("top-p") {
		opts.TopP = &o.topP
	}
	if o.isExplicit("repeat-penalty") {
		opts.RepeatPenalty = &o.repeatPenalty
	}
	return inference.ResolveRequest(opts, defaults)
}

func (o runOptions) isExplicit(name string) bool {
	return o.explicit != nil && o.explicit(name)
}

// generateOnce runs one generation on a worker and prints its fragments in
// the foreground until the worker closes the stream.
func generateOnce(ctx context.Context, res *inference.LoadResult, o runOptions, mode StreamMode, out io.Writer) error {
	log := logger.FromContext(ctx)
	req := o.request(res.GenerationDefaults)

	var result *inference.Result
	st := stream.Start(ctx, func(ctx context.Context, emit func(string) error) error {
		r, err := res.Engine.Generate(ctx, &req, emit)
		result = r
		return err
	}, stream.Options{})

	w := NewStreamWriter(mode, out)
	n, err := stream.Relay(ctx, st, w.Write, stream.RelayOptions{Delay: o.pace})
	if _, flushErr := w.Flush(); flushErr != nil && err == nil {
		err = flushErr
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("generation interrupted", "fragments", n)
			return nil
		}
		return cli.Exit(fmt.Sprintf("error: generate: %v", err), 1)
	}

	if o.showStats && result != nil {
		s := result.Stats
		_, _ = fmt.Fprintf(os.Stderr, "prompt tokens: %d, generated: %d, fragments: %d, %.2f tok/s (%s)\n",
			s.PromptTokens, s.TokensGenerated, n, s.TPS, s.Duration.Round(time.Millisecond))
	}
	log.Debug("generation finished", "fragments", n, "finish_reason", finishReason(result))
	return nil
}

func finishReason(r *inference.Result) string {
	if r == nil {
		return ""
	}
	return string(r.FinishReason)
}

// interactive reads prompts from stdin until EOF or an empty line.
func interactive(ctx context.Context, res *inference.LoadResult, o runOptions, mode StreamMode) error {
	_, _ = fmt.Fprintln(os.Stderr, "enter a prompt (empty line or Ctrl-D to quit)")
	for {
		line, err := readInteractiveLine("> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		prompt := strings.TrimSpace(line)
		if prompt == "" {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		o.prompt = line
		if err := generateOnce(ctx, res, o, mode, os.Stdout); err != nil {
			return err
		}
	}
}

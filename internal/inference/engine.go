package inference

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/samcharles93/streamgen/internal/logits"
	"github.com/samcharles93/streamgen/internal/model"
)

type Stats struct {
	PromptTokens    int
	TokensGenerated int
	Duration        time.Duration
	TPS             float64
}

// Generator runs the token loop of one generation. It is single use and
// owns Model for its lifetime.
type Generator struct {
	Model      model.Model
	Sampler    *logits.Sampler
	StopTokens []int
	// MaxContext bounds the number of positions the model may consume.
	// Zero disables the check.
	MaxContext int
}

// RunWithContext prefills prompt and samples up to maxNew tokens, calling
// onToken for each accepted id. The context is checked before every step.
func (g *Generator) RunWithContext(ctx context.Context, prompt []int, maxNew int, onToken func(id int) error) ([]int, Stats, FinishReason, error) {
	stats := Stats{PromptTokens: len(prompt)}
	start := time.Now()

	var logitsVec []float32
	var err error
	for _, id := range prompt {
		if err := ctx.Err(); err != nil {
			return nil, stats, "", err
		}
		logitsVec, err = g.forward(id)
		if err != nil {
			return nil, stats, "", fmt.Errorf("forward error during prefill: %w", err)
		}
	}

	toks := append([]int(nil), prompt...)
	var out []int
	finish := FinishLength
	pos := len(prompt)

	for i := 0; i < maxNew; i++ {
		if err := ctx.Err(); err != nil {
			return out, stats, "", err
		}
		next, err := g.sample(logitsVec, toks)
		if err != nil {
			return out, stats, "", err
		}
		if slices.Contains(g.StopTokens, next) {
			finish = FinishStop
			break
		}

		toks = append(toks, next)
		out = append(out, next)
		stats.TokensGenerated++
		if onToken != nil {
			if err := onToken(next); err != nil {
				return out, stats, "", err
			}
		}

		if i+1 == maxNew {
			break
		}
		if g.MaxContext > 0 && pos >= g.MaxContext {
			// The window is full; stop as if the length limit was hit.
			break
		}
		logitsVec, err = g.forward(next)
		if err != nil {
			return out, stats, "", fmt.Errorf("forward error during generation step %d: %w", i, err)
		}
		pos++
	}

	stats.Duration = time.Since(start)
	if stats.Duration.Seconds() > 0 {
		stats.TPS = float64(stats.TokensGenerated) / stats.Duration.Seconds()
	}
	return out, stats, finish, nil
}

func (g *Generator) forward(id int) (out []float32, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in ForwardToken: %v", rec)
		}
	}()
	return g.Model.ForwardToken(id)
}

func (g *Generator) sample(logitsVec []float32, history []int) (id int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Sample: %v", rec)
		}
	}()
	if len(logitsVec) == 0 {
		return 0, fmt.Errorf("no logits to sample from")
	}
	return g.Sampler.Sample(logitsVec, history), nil
}

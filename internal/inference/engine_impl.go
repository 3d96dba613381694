package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samcharles93/streamgen/internal/logits"
	"github.com/samcharles93/streamgen/internal/model"
	"github.com/samcharles93/streamgen/internal/tokenizer"
)

// ErrPromptTooLong is returned when the encoded prompt does not fit the
// model's context window.
var ErrPromptTooLong = errors.New("prompt exceeds context window")

// EngineImpl generates with a shared, read-only model and tokenizer. Each
// Generate call gets its own session, so calls may run concurrently.
type EngineImpl struct {
	newSession func() model.Model
	tokenizer  tokenizer.Tokenizer
	bosID      int
	eosID      int
	maxContext int
}

// NewEngine wires a loaded model and tokenizer together. eosID and bosID
// may be -1.
func NewEngine(m *model.GPT2, tok tokenizer.Tokenizer, bosID, eosID, maxContext int) *EngineImpl {
	if maxContext <= 0 || maxContext > m.Config.NPositions {
		maxContext = m.Config.NPositions
	}
	return &EngineImpl{
		newSession: func() model.Model { return m.NewSession() },
		tokenizer:  tok,
		bosID:      bosID,
		eosID:      eosID,
		maxContext: maxContext,
	}
}

// Close is a no-op; the weights are owned by the garbage collector once
// loaded.
func (e *EngineImpl) Close() error {
	return nil
}

func (e *EngineImpl) Generate(ctx context.Context, req *Request, stream StreamFunc) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if req.MaxNewTokens < 0 {
		return nil, fmt.Errorf("max new tokens must be non-negative, got %d", req.MaxNewTokens)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, err := safeEncode(e.tokenizer, req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("encode prompt: %w", err)
	}
	if len(ids) == 0 {
		if e.bosID < 0 {
			return nil, fmt.Errorf("encode prompt: empty prompt and no BOS token")
		}
		ids = []int{e.bosID}
	}
	if e.maxContext > 0 && len(ids) > e.maxContext {
		return nil, fmt.Errorf("%w: %d tokens, window is %d", ErrPromptTooLong, len(ids), e.maxContext)
	}

	emit := func(s string) error {
		if stream == nil || s == "" {
			return nil
		}
		return stream(s)
	}
	if !req.SkipPrompt {
		if err := emit(req.Prompt); err != nil {
			return nil, err
		}
	}

	eos := e.eosID
	if req.EOSTokenID >= 0 {
		eos = req.EOSTokenID
	}
	var stop []int
	if eos >= 0 {
		stop = []int{eos}
	}

	seed := req.Seed
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	gen := &Generator{
		Model: e.newSession(),
		Sampler: logits.NewSampler(logits.Config{
			Seed:          seed,
			Temperature:   req.Temperature,
			TopK:          req.TopK,
			TopP:          req.TopP,
			RepeatPenalty: req.RepeatPenalty,
		}),
		StopTokens: stop,
		MaxContext: e.maxContext,
	}

	var sb strings.Builder
	streamer := NewTextStreamer(e.tokenizer)
	_, stats, finish, err := gen.RunWithContext(ctx, ids, req.MaxNewTokens, func(id int) error {
		frag, err := streamer.Put(id)
		if err != nil {
			return fmt.Errorf("decode token %d: %w", id, err)
		}
		sb.WriteString(frag)
		return emit(frag)
	})
	if err != nil {
		return nil, err
	}
	tail := streamer.Flush()
	sb.WriteString(tail)
	if err := emit(tail); err != nil {
		return nil, err
	}

	return &Result{
		Text:         sb.String(),
		Stats:        stats,
		FinishReason: finish,
	}, nil
}

func safeEncode(tok tokenizer.Tokenizer, prompt string) (ids []int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Encode: %v", rec)
		}
	}()
	return tok.Encode(prompt)
}

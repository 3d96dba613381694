package inference

import "context"

// StreamFunc receives each newly decoded fragment in order. A non-nil
// return aborts the generation with that error.
type StreamFunc func(fragment string) error

// Engine runs blocking generations against a loaded model. Implementations
// must allow concurrent Generate calls.
type Engine interface {
	Generate(ctx context.Context, req *Request, stream StreamFunc) (*Result, error)
	Close() error
}

type Request struct {
	Prompt string

	MaxNewTokens int
	// EOSTokenID overrides the model's end-of-sequence id when >= 0.
	EOSTokenID int
	// SkipPrompt suppresses the prompt echo that otherwise precedes the
	// generated fragments.
	SkipPrompt bool

	Seed int64

	Temperature float64
	TopK        int
	TopP        float64

	// RepeatPenalty divides the logits of every token already in the
	// context, prompt included.
	RepeatPenalty float64
}

type FinishReason string

const (
	FinishStop   FinishReason = "stop"
	FinishLength FinishReason = "length"
)

type Result struct {
	// Text is the generated continuation, without the prompt.
	Text         string
	Stats        Stats
	FinishReason FinishReason
}

package inference

// DefaultMaxNewTokens matches the Hugging Face generate default.
const DefaultMaxNewTokens = 20

// RequestOptions carries caller overrides. Nil fields fall back to the
// checkpoint's generation defaults and then to package defaults.
type RequestOptions struct {
	Prompt string

	MaxNewTokens *int
	EOSTokenID   *int
	SkipPrompt   *bool

	Seed *int64

	Temperature   *float64
	TopK          *int
	TopP          *float64
	RepeatPenalty *float64
}

// ResolveRequest builds a Request. Decoding is greedy unless the checkpoint
// sets do_sample or the caller passes a positive temperature.
func ResolveRequest(opts RequestOptions, defaults GenDefaults) Request {
	req := Request{
		Prompt:        opts.Prompt,
		MaxNewTokens:  DefaultMaxNewTokens,
		EOSTokenID:    -1,
		Seed:          -1,
		Temperature:   0,
		TopK:          50,
		TopP:          1.0,
		RepeatPenalty: 1.0,
	}

	if defaults.DoSample != nil && *defaults.DoSample {
		req.Temperature = 1.0
		if defaults.Temperature != nil && *defaults.Temperature > 0 {
			req.Temperature = *defaults.Temperature
		}
	}
	if defaults.TopK != nil && *defaults.TopK > 0 {
		req.TopK = *defaults.TopK
	}
	if defaults.TopP != nil && *defaults.TopP > 0 && *defaults.TopP <= 1 {
		req.TopP = *defaults.TopP
	}
	if defaults.RepetitionPenalty != nil && *defaults.RepetitionPenalty > 0 {
		req.RepeatPenalty = *defaults.RepetitionPenalty
	}
	if defaults.MaxNewTokens != nil && *defaults.MaxNewTokens > 0 {
		req.MaxNewTokens = *defaults.MaxNewTokens
	}

	if opts.MaxNewTokens != nil {
		req.MaxNewTokens = *opts.MaxNewTokens
	}
	if opts.EOSTokenID != nil {
		req.EOSTokenID = *opts.EOSTokenID
	}
	if opts.SkipPrompt != nil {
		req.SkipPrompt = *opts.SkipPrompt
	}
	if opts.Seed != nil {
		req.Seed = *opts.Seed
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.TopK != nil {
		req.TopK = *opts.TopK
	}
	if opts.TopP != nil {
		req.TopP = *opts.TopP
	}
	if opts.RepeatPenalty != nil {
		req.RepeatPenalty = *opts.RepeatPenalty
	}

	return req
}

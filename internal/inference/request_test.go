package inference

import "testing"

func TestResolveRequestDefaults(t *testing.T) {
	t.Parallel()

	req := ResolveRequest(RequestOptions{Prompt: "hi"}, GenDefaults{})
	if req.Prompt != "hi" || req.MaxNewTokens != DefaultMaxNewTokens {
		t.Fatalf("unexpected defaults: %+v", req)
	}
	if req.Temperature != 0 {
		t.Fatalf("decoding should be greedy by default, temperature %v", req.Temperature)
	}
	if req.EOSTokenID != -1 || req.SkipPrompt {
		t.Fatalf("unexpected defaults: %+v", req)
	}
}

func TestResolveRequestPrecedence(t *testing.T) {
	t.Parallel()

	doSample := true
	genTemp := 0.7
	genTopK := 20
	genMax := 64
	defaults := GenDefaults{DoSample: &doSample, Temperature: &genTemp, TopK: &genTopK, MaxNewTokens: &genMax}

	req := ResolveRequest(RequestOptions{}, defaults)
	if req.Temperature != 0.7 || req.TopK != 20 || req.MaxNewTokens != 64 {
		t.Fatalf("checkpoint defaults not applied: %+v", req)
	}

	temp := 0.0
	maxNew := 5
	skip := true
	req = ResolveRequest(RequestOptions{Temperature: &temp, MaxNewTokens: &maxNew, SkipPrompt: &skip}, defaults)
	if req.Temperature != 0 || req.MaxNewTokens != 5 || !req.SkipPrompt {
		t.Fatalf("caller overrides not applied: %+v", req)
	}
}

func TestParseHFGenerationDefaults(t *testing.T) {
	t.Parallel()

	got := parseHFGenerationDefaults([]byte(`{"do_sample": true, "top_k": 30, "temperature": 0.6}`))
	if got.DoSample == nil || !*got.DoSample || got.TopK == nil || *got.TopK != 30 {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if empty := parseHFGenerationDefaults([]byte(`not json`)); empty.TopK != nil {
		t.Fatalf("invalid JSON should yield empty defaults")
	}
}

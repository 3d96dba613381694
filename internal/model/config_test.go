package model

import (
	"strings"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfig([]byte(`{"n_layer":2,"n_head":2,"n_embd":8,"n_ctx":16,"vocab_size":10}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.ModelType != "gpt2" {
		t.Fatalf("model_type: got %q", cfg.ModelType)
	}
	if cfg.NPositions != 16 {
		t.Fatalf("n_positions should fall back to n_ctx, got %d", cfg.NPositions)
	}
	if cfg.LayerNormEps != 1e-5 {
		t.Fatalf("layer_norm_epsilon default: got %v", cfg.LayerNormEps)
	}
	if cfg.InnerDim() != 32 || cfg.HeadDim() != 4 {
		t.Fatalf("derived dims: inner=%d head=%d", cfg.InnerDim(), cfg.HeadDim())
	}
	if cfg.EOSTokenID != -1 || cfg.BOSTokenID != -1 {
		t.Fatalf("missing special ids should be -1, got bos=%d eos=%d", cfg.BOSTokenID, cfg.EOSTokenID)
	}
}

func TestParseConfigRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"other arch", `{"model_type":"llama","n_layer":1,"n_head":1,"n_embd":4,"n_positions":4,"vocab_size":4}`, "unsupported model_type"},
		{"head split", `{"n_layer":1,"n_head":3,"n_embd":8,"n_positions":4,"vocab_size":4}`, "not divisible"},
		{"no layers", `{"n_layer":0,"n_head":1,"n_embd":4,"n_positions":4,"vocab_size":4}`, "n_layer"},
		{"activation", `{"n_layer":1,"n_head":1,"n_embd":4,"n_positions":4,"vocab_size":4,"activation_function":"relu"}`, "activation_function"},
		{"untied", `{"n_layer":1,"n_head":1,"n_embd":4,"n_positions":4,"vocab_size":4,"tie_word_embeddings":false}`, "untied"},
		{"bad json", `{`, "parse config"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tc.raw))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

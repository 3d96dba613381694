// Package toy writes tiny randomly initialised GPT-2 checkpoints in the
// Hugging Face directory layout. They exercise the full load and generate
// path without downloading real weights.
package toy

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/samcharles93/streamgen/internal/safetensors"
	"github.com/samcharles93/streamgen/internal/tokenizer"
)

// EndOfText is the special token appended after the 256 byte symbols.
const EndOfText = "<|endoftext|>"

// VocabSize is the size of the byte-level vocabulary written by Write.
const VocabSize = 257

// EOSID is the id of EndOfText.
const EOSID = VocabSize - 1

// Options controls the shape of the generated checkpoint.
type Options struct {
	Layers    int
	Heads     int
	Embd      int
	Positions int
	Seed      int64

	// Scale is the half-width of the uniform weight distribution.
	Scale float32

	// Prefix is prepended to every tensor name, e.g. "transformer.".
	Prefix string

	// AddBOS sets add_bos_token in tokenizer_config.json.
	AddBOS bool
}

// DefaultOptions is a two layer model with a 64 token window.
func DefaultOptions() Options {
	return Options{
		Layers:    2,
		Heads:     2,
		Embd:      16,
		Positions: 64,
		Seed:      1,
		Scale:     0.5,
	}
}

// Write creates dir if needed and writes config.json, model.safetensors,
// tokenizer.json, tokenizer_config.json and generation_config.json.
func Write(dir string, opts Options) error {
	if opts.Layers <= 0 || opts.Heads <= 0 || opts.Embd <= 0 || opts.Positions <= 0 {
		return fmt.Errorf("toy: invalid options %+v", opts)
	}
	if opts.Embd%opts.Heads != 0 {
		return fmt.Errorf("toy: embd %d not divisible by heads %d", opts.Embd, opts.Heads)
	}
	if opts.Scale == 0 {
		opts.Scale = 0.5
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	config := map[string]any{
		"model_type":          "gpt2",
		"architectures":       []string{"GPT2LMHeadModel"},
		"n_layer":             opts.Layers,
		"n_head":              opts.Heads,
		"n_embd":              opts.Embd,
		"n_positions":         opts.Positions,
		"n_ctx":               opts.Positions,
		"vocab_size":          VocabSize,
		"layer_norm_epsilon":  1e-5,
		"activation_function": "gelu_new",
		"bos_token_id":        EOSID,
		"eos_token_id":        EOSID,
	}
	if err := writeJSON(filepath.Join(dir, "config.json"), config); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "generation_config.json"), map[string]any{
		"bos_token_id": EOSID,
		"eos_token_id": EOSID,
	}); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "tokenizer.json"), tokenizerJSON()); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "tokenizer_config.json"), map[string]any{
		"add_bos_token": opts.AddBOS,
		"bos_token":     EndOfText,
		"eos_token":     EndOfText,
	}); err != nil {
		return err
	}
	return safetensors.WriteFileF32(filepath.Join(dir, "model.safetensors"), weights(opts), map[string]string{"format": "pt"})
}

func tokenizerJSON() map[string]any {
	vocab := make(map[string]int, VocabSize-1)
	for id, sym := range tokenizer.ByteLevelAlphabet() {
		vocab[sym] = id
	}
	return map[string]any{
		"version": "1.0",
		"model": map[string]any{
			"type":   "BPE",
			"vocab":  vocab,
			"merges": []string{},
		},
		"pre_tokenizer": map[string]any{"type": "ByteLevel", "add_prefix_space": false},
		"added_tokens": []map[string]any{
			{"id": EOSID, "content": EndOfText, "special": true},
		},
	}
}

func weights(opts Options) []safetensors.Tensor {
	rng := rand.New(rand.NewSource(opts.Seed))
	e, inner := opts.Embd, 4*opts.Embd
	randn := func(n int) []float32 {
		out := make([]float32, n)
		for i := range out {
			out[i] = (rng.Float32()*2 - 1) * opts.Scale
		}
		return out
	}
	fill := func(n int, v float32) []float32 {
		out := make([]float32, n)
		for i := range out {
			out[i] = v
		}
		return out
	}
	t := func(name string, data []float32, shape ...int) safetensors.Tensor {
		return safetensors.Tensor{Name: opts.Prefix + name, Shape: shape, Data: data}
	}

	out := []safetensors.Tensor{
		t("wte.weight", randn(VocabSize*e), VocabSize, e),
		t("wpe.weight", randn(opts.Positions*e), opts.Positions, e),
	}
	for i := 0; i < opts.Layers; i++ {
		h := func(s string) string { return fmt.Sprintf("h.%d.%s", i, s) }
		out = append(out,
			t(h("ln_1.weight"), fill(e, 1), e),
			t(h("ln_1.bias"), fill(e, 0), e),
			t(h("attn.c_attn.weight"), randn(e*3*e), e, 3*e),
			t(h("attn.c_attn.bias"), randn(3*e), 3*e),
			t(h("attn.c_proj.weight"), randn(e*e), e, e),
			t(h("attn.c_proj.bias"), randn(e), e),
			t(h("ln_2.weight"), fill(e, 1), e),
			t(h("ln_2.bias"), fill(e, 0), e),
			t(h("mlp.c_fc.weight"), randn(e*inner), e, inner),
			t(h("mlp.c_fc.bias"), randn(inner), inner),
			t(h("mlp.c_proj.weight"), randn(inner*e), inner, e),
			t(h("mlp.c_proj.bias"), randn(e), e),
		)
	}
	out = append(out,
		t("ln_f.weight", fill(e, 1), e),
		t("ln_f.bias", fill(e, 0), e),
	)
	return out
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

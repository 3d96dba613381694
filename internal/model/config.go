package model

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// Config holds the GPT-2 hyperparameters read from config.json.
type Config struct {
	ModelType     string  `json:"model_type"`
	NLayer        int     `json:"n_layer"`
	NHead         int     `json:"n_head"`
	NEmbd         int     `json:"n_embd"`
	NInner        int     `json:"n_inner"`
	NPositions    int     `json:"n_positions"`
	NCtx          int     `json:"n_ctx"`
	VocabSize     int     `json:"vocab_size"`
	LayerNormEps  float64 `json:"layer_norm_epsilon"`
	Activation    string  `json:"activation_function"`
	BOSTokenID    int     `json:"bos_token_id"`
	EOSTokenID    int     `json:"eos_token_id"`
	TieEmbeddings *bool   `json:"tie_word_embeddings"`
}

// HeadDim is the per-head width of the attention projections.
func (c Config) HeadDim() int { return c.NEmbd / c.NHead }

// InnerDim is the hidden width of the MLP block.
func (c Config) InnerDim() int {
	if c.NInner > 0 {
		return c.NInner
	}
	return 4 * c.NEmbd
}

// LoadConfig reads and validates a config.json file.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(raw)
}

// ParseConfig decodes config.json bytes and fills GPT-2 defaults for the
// optional fields.
func ParseConfig(raw []byte) (Config, error) {
	cfg := Config{
		BOSTokenID: -1,
		EOSTokenID: -1,
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.ModelType == "" {
		cfg.ModelType = "gpt2"
	}
	if cfg.NPositions == 0 {
		cfg.NPositions = cfg.NCtx
	}
	if cfg.LayerNormEps == 0 {
		cfg.LayerNormEps = 1e-5
	}
	if cfg.Activation == "" {
		cfg.Activation = "gelu_new"
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ModelType != "gpt2" {
		return fmt.Errorf("unsupported model_type %q (only gpt2)", c.ModelType)
	}
	switch {
	case c.NLayer <= 0:
		return fmt.Errorf("config: n_layer must be positive, got %d", c.NLayer)
	case c.NHead <= 0:
		return fmt.Errorf("config: n_head must be positive, got %d", c.NHead)
	case c.NEmbd <= 0 || c.NEmbd%c.NHead != 0:
		return fmt.Errorf("config: n_embd %d is not divisible by n_head %d", c.NEmbd, c.NHead)
	case c.NPositions <= 0:
		return fmt.Errorf("config: n_positions must be positive, got %d", c.NPositions)
	case c.VocabSize <= 0:
		return fmt.Errorf("config: vocab_size must be positive, got %d", c.VocabSize)
	}
	switch c.Activation {
	case "gelu_new", "gelu", "gelu_pytorch_tanh":
	default:
		return fmt.Errorf("config: unsupported activation_function %q", c.Activation)
	}
	if c.TieEmbeddings != nil && !*c.TieEmbeddings {
		return fmt.Errorf("config: untied lm_head is not supported")
	}
	return nil
}

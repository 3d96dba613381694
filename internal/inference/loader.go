package inference

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/samcharles93/streamgen/internal/model"
	"github.com/samcharles93/streamgen/internal/tokenizer"
)

// Loader reads a Hugging Face style checkpoint directory. The path fields
// override the file names inside the directory when set.
type Loader struct {
	TokenizerJSONPath   string
	TokenizerConfigPath string
	HFConfigPath        string
	MaxContext          int
}

type LoadResult struct {
	Engine             Engine
	Model              *model.GPT2
	Tokenizer          *tokenizer.HFTokenizer
	GenerationDefaults GenDefaults
	Arch               string
	// WeightsBytes is the on-disk size of model.safetensors.
	WeightsBytes int64
}

type GenDefaults struct {
	DoSample          *bool
	Temperature       *float64
	TopK              *int
	TopP              *float64
	RepetitionPenalty *float64
	MaxNewTokens      *int
}

func (l Loader) Load(modelDir string) (*LoadResult, error) {
	if strings.TrimSpace(modelDir) == "" {
		return nil, fmt.Errorf("model path is required")
	}
	info, err := os.Stat(modelDir)
	if err != nil {
		return nil, fmt.Errorf("model path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("model path %s is not a directory", modelDir)
	}

	cfgPath := pick(l.HFConfigPath, filepath.Join(modelDir, "config.json"))
	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	weightsPath := filepath.Join(modelDir, "model.safetensors")
	wInfo, err := os.Stat(weightsPath)
	if err != nil {
		return nil, fmt.Errorf("weights: %w", err)
	}
	m, err := model.LoadSafetensors(weightsPath, cfg)
	if err != nil {
		return nil, err
	}

	tok, err := tokenizer.LoadHFTokenizer(
		pick(l.TokenizerJSONPath, filepath.Join(modelDir, "tokenizer.json")),
		pick(l.TokenizerConfigPath, filepath.Join(modelDir, "tokenizer_config.json")),
	)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	genBytes, err := os.ReadFile(filepath.Join(modelDir, "generation_config.json"))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load generation_config.json: %w", err)
	}

	eos := cfg.EOSTokenID
	if eos < 0 {
		eos = tok.EOSID()
	}
	bos := cfg.BOSTokenID
	if bos < 0 {
		bos = tok.BOSID()
	}

	return &LoadResult{
		Engine:             NewEngine(m, tok, bos, eos, l.MaxContext),
		Model:              m,
		Tokenizer:          tok,
		GenerationDefaults: parseHFGenerationDefaults(genBytes),
		Arch:               cfg.ModelType,
		WeightsBytes:       wInfo.Size(),
	}, nil
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

func parseHFGenerationDefaults(genBytes []byte) GenDefaults {
	type hfGenerationConfig struct {
		DoSample          *bool    `json:"do_sample"`
		Temperature       *float64 `json:"temperature"`
		TopK              *int     `json:"top_k"`
		TopP              *float64 `json:"top_p"`
		RepetitionPenalty *float64 `json:"repetition_penalty"`
		MaxNewTokens      *int     `json:"max_new_tokens"`
	}
	if len(genBytes) == 0 {
		return GenDefaults{}
	}
	var cfg hfGenerationConfig
	if err := json.Unmarshal(genBytes, &cfg); err != nil {
		return GenDefaults{}
	}
	return GenDefaults(cfg)
}

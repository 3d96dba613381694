package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the streamgen configuration file
// (~/.config/streamgen/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	ModelsDir  string `yaml:"models_dir"`
	Model      string `yaml:"model"`
	MaxContext *int64 `yaml:"max_context"`

	// Sampling defaults
	Temperature   *float64 `yaml:"temperature"`
	TopK          *int64   `yaml:"top_k"`
	TopP          *float64 `yaml:"top_p"`
	RepeatPenalty *float64 `yaml:"repeat_penalty"`
	MaxNewTokens  *int64   `yaml:"max_new_tokens"`
	Seed          *int64   `yaml:"seed"`

	// Output
	StreamMode string `yaml:"stream_mode"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`

	// Server
	ServerAddress string         `yaml:"server_address"`
	Pace          *time.Duration `yaml:"pace"`

	// Frontend
	FrontendAddress string `yaml:"frontend_address"`
	BackendURL      string `yaml:"backend_url"`
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "streamgen", "config.yaml")
}

// LoadConfig reads the config file at path, or the default location when
// path is empty. A missing default file yields a zero Config.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath()
		if path == "" {
			return Config{}, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyRunConfig applies config file defaults to run command variables
// when the corresponding CLI flag was not explicitly set.
func applyRunConfig(c *cli.Command, cfg Config, o *runOptions) {
	ckpt.applyConfig(c, cfg)
	if cfg.Temperature != nil && !c.IsSet("temp") {
		o.temp = *cfg.Temperature
		o.markFromConfig("temp")
	}
	if cfg.TopK != nil && !c.IsSet("top-k") {
		o.topK = *cfg.TopK
		o.markFromConfig("top-k")
	}
	if cfg.TopP != nil && !c.IsSet("top-p") {
		o.topP = *cfg.TopP
		o.markFromConfig("top-p")
	}
	if cfg.RepeatPenalty != nil && !c.IsSet("repeat-penalty") {
		o.repeatPenalty = *cfg.RepeatPenalty
		o.markFromConfig("repeat-penalty")
	}
	if cfg.MaxNewTokens != nil && !c.IsSet("max-new-tokens") {
		o.maxNewTokens = *cfg.MaxNewTokens
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		o.seed = *cfg.Seed
	}
	if cfg.StreamMode != "" && !c.IsSet("mode") {
		o.mode = cfg.StreamMode
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, pace *time.Duration) {
	ckpt.applyConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.Pace != nil && !c.IsSet("pace") {
		*pace = *cfg.Pace
	}
}

// applyFrontendConfig applies config file defaults to frontend variables.
func applyFrontendConfig(c *cli.Command, cfg Config, addr, backendURL *string) {
	if cfg.FrontendAddress != "" && !c.IsSet("addr") {
		*addr = cfg.FrontendAddress
	}
	if cfg.BackendURL != "" && !c.IsSet("backend") {
		*backendURL = cfg.BackendURL
	}
}

func (o *runOptions) markFromConfig(name string) {
	if o.fromConfig == nil {
		o.fromConfig = make(map[string]bool)
	}
	o.fromConfig[name] = true
}

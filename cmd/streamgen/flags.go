package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/streamgen/internal/inference"
	"github.com/samcharles93/streamgen/internal/logger"
)

// modelFlags locates a checkpoint and optionally overrides its files.
// run, serve and inspect share the ckpt instance.
type modelFlags struct {
	dir        string
	modelsDir  string
	maxContext int64

	tokenizerJSON   string
	tokenizerConfig string
	hfConfig        string
}

var ckpt modelFlags

func (m *modelFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "checkpoint directory (config.json, model.safetensors, tokenizer.json)",
			Sources:     cli.EnvVars("STREAMGEN_MODEL"),
			Destination: &m.dir,
		},
		&cli.StringFlag{
			Name:        "models-path",
			Usage:       "directory whose subdirectories are checkpoints",
			Sources:     cli.EnvVars(envModelsDir),
			Destination: &m.modelsDir,
		},
		&cli.Int64Flag{
			Name:        "max-context",
			Aliases:     []string{"ctx"},
			Usage:       "context window in tokens (0 = n_positions)",
			Destination: &m.maxContext,
		},
		&cli.StringFlag{Name: "tokenizer-json", Usage: "tokenizer.json to use instead of the checkpoint's", Destination: &m.tokenizerJSON},
		&cli.StringFlag{Name: "tokenizer-config", Usage: "tokenizer_config.json to use instead of the checkpoint's", Destination: &m.tokenizerConfig},
		&cli.StringFlag{Name: "hf-config", Usage: "config.json to use instead of the checkpoint's", Destination: &m.hfConfig},
	}
}

// applyConfig fills settings from the config file that were not given as
// flags.
func (m *modelFlags) applyConfig(c *cli.Command, cfg Config) {
	if cfg.Model != "" && !c.IsSet("model") {
		m.dir = cfg.Model
	}
	if cfg.ModelsDir != "" && !c.IsSet("models-path") {
		m.modelsDir = cfg.ModelsDir
	}
	if cfg.MaxContext != nil && !c.IsSet("max-context") {
		m.maxContext = *cfg.MaxContext
	}
}

func (m *modelFlags) resolve() (string, error) {
	return resolveModelDir(m.dir, m.modelsDir, os.Stdin, os.Stderr)
}

func (m *modelFlags) loader() inference.Loader {
	return inference.Loader{
		TokenizerJSONPath:   m.tokenizerJSON,
		TokenizerConfigPath: m.tokenizerConfig,
		HFConfigPath:        m.hfConfig,
		MaxContext:          int(m.maxContext),
	}
}

// file returns override, or name inside dir when override is empty.
func file(dir, override, name string) string {
	if override != "" {
		return override
	}
	return filepath.Join(dir, name)
}

// logFlags are the root flags that shape logging and the config file.
type logFlags struct {
	configPath string
	level      string
	format     string
	debug      bool
}

var logOpts logFlags

func (l *logFlags) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "config file (default $XDG_CONFIG_HOME/streamgen/config.yaml)",
			Sources:     cli.EnvVars("STREAMGEN_CONFIG"),
			Destination: &l.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "debug, info, warn or error",
			Value:       "info",
			Sources:     cli.EnvVars("STREAMGEN_LOG_LEVEL"),
			Destination: &l.level,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "pretty, json or text",
			Value:       string(logger.FormatPretty),
			Destination: &l.format,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "same as --log-level=debug",
			Destination: &l.debug,
		},
	}
}

func (l *logFlags) applyConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		l.level = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		l.format = cfg.LogFormat
	}
}

// logger builds the process logger, which always writes to stderr so
// generated text on stdout stays clean.
func (l *logFlags) logger() (logger.Logger, error) {
	level := logger.ParseLevel(l.level)
	if l.debug {
		level = slog.LevelDebug
	}
	return logger.ForFormat(l.format, os.Stderr, level)
}

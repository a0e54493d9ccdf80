package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the CLI and the completion session.
// Zero values mean "unspecified"; Default() supplies the baseline and CLI
// flags override file values.
type Config struct {
	ModelsDir     string  `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DefaultModel  string  `json:"default_model" yaml:"default_model" toml:"default_model"`
	CtxWindow     int     `json:"ctx_window" yaml:"ctx_window" toml:"ctx_window"`
	Threads       int     `json:"threads" yaml:"threads" toml:"threads"`
	MaxTokens     int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Temperature   float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP          float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	Seed          int64   `json:"seed" yaml:"seed" toml:"seed"`
	RepeatPenalty float64 `json:"repeat_penalty" yaml:"repeat_penalty" toml:"repeat_penalty"`
	DiagAddr      string  `json:"diag_addr" yaml:"diag_addr" toml:"diag_addr"`
	LogLevel      string  `json:"log_level" yaml:"log_level" toml:"log_level"`
	MaxQueueDepth int     `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitMs     int     `json:"max_wait_ms" yaml:"max_wait_ms" toml:"max_wait_ms"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		ModelsDir:     "~/models/llm",
		CtxWindow:     2048,
		Threads:       0, // auto
		MaxTokens:     128,
		Temperature:   0.8,
		TopP:          0.95,
		Seed:          -1,
		LogLevel:      "info",
		MaxQueueDepth: 32,
		MaxWaitMs:     30000,
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when non-empty, otherwise returns Default().
// Loaded values fall back to the default for fields left unset.
func LoadOrDefault(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	return cfg.withDefaults(), nil
}

// Validate rejects out-of-range values. Zero means "unspecified" and is
// always accepted.
func (c Config) Validate() error {
	if c.CtxWindow < 0 {
		return fmt.Errorf("ctx_window must be >= 0, got %d", c.CtxWindow)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be >= 0, got %d", c.MaxTokens)
	}
	if c.Temperature < 0 {
		return fmt.Errorf("temperature must be >= 0, got %v", c.Temperature)
	}
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("top_p must be in [0,1], got %v", c.TopP)
	}
	if c.MaxQueueDepth < 0 {
		return fmt.Errorf("max_queue_depth must be >= 0, got %d", c.MaxQueueDepth)
	}
	if c.MaxWaitMs < 0 {
		return fmt.Errorf("max_wait_ms must be >= 0, got %d", c.MaxWaitMs)
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := Default()
	if c.ModelsDir == "" {
		c.ModelsDir = d.ModelsDir
	}
	if c.CtxWindow == 0 {
		c.CtxWindow = d.CtxWindow
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = d.Temperature
	}
	if c.TopP == 0 {
		c.TopP = d.TopP
	}
	if c.Seed == 0 {
		c.Seed = d.Seed
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.MaxQueueDepth == 0 {
		c.MaxQueueDepth = d.MaxQueueDepth
	}
	if c.MaxWaitMs == 0 {
		c.MaxWaitMs = d.MaxWaitMs
	}
	return c
}

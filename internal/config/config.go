// Package config provides layered configuration for the corpus QA service:
// defaults, then an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rgale/corpusqa/internal/chunk"
	"github.com/rgale/corpusqa/internal/index"
	"github.com/rgale/corpusqa/internal/llm"
)

// Config holds the complete application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Corpus  CorpusConfig  `yaml:"corpus"`
	Query   QueryConfig   `yaml:"query"`
	Model   ModelConfig   `yaml:"model"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// CorpusConfig controls corpus loading.
type CorpusConfig struct {
	// Dir is loaded into memory at startup when set.
	Dir string `yaml:"dir"`
	// Parallelism bounds concurrent file parsing. Zero means NumCPU.
	Parallelism int `yaml:"parallelism"`
}

// QueryConfig selects and tunes the answering strategy.
type QueryConfig struct {
	// Strategy is "mapreduce" or "select".
	Strategy string `yaml:"strategy"`
	// ChunkBudget is the character budget per map-reduce chunk.
	ChunkBudget int `yaml:"chunk_budget"`
	// Compact serializes chunk records without full bodies.
	Compact bool `yaml:"compact"`
	// ContextBudget bounds the assembled select-strategy context.
	ContextBudget int `yaml:"context_budget"`
	// MaxSelect caps how many records the model may pick.
	MaxSelect int `yaml:"max_select"`
	// FallbackK is the deterministic selection size on parse failure.
	FallbackK int `yaml:"fallback_k"`
	// PauseMS is the pause between chunk calls, in milliseconds.
	PauseMS int `yaml:"pause_ms"`
}

// ModelConfig holds the Bedrock model settings.
type ModelConfig struct {
	ID          string `yaml:"id"`
	Region      string `yaml:"region"`
	MaxTokens   int    `yaml:"max_tokens"`
	TimeoutS    int    `yaml:"timeout_s"`
	MaxAttempts int    `yaml:"max_attempts"`
	BaseDelayMS int    `yaml:"base_delay_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load builds configuration from defaults plus environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile layers a YAML file between defaults and environment
// variables. Environment variables always win.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvVars()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component could run with.
func (c *Config) Validate() error {
	switch c.Query.Strategy {
	case "mapreduce", "select":
	default:
		return fmt.Errorf("unknown query strategy %q (want mapreduce or select)", c.Query.Strategy)
	}
	if c.Query.ChunkBudget <= 0 {
		return fmt.Errorf("chunk_budget must be positive, got %d", c.Query.ChunkBudget)
	}
	if c.Query.ContextBudget <= 0 {
		return fmt.Errorf("context_budget must be positive, got %d", c.Query.ContextBudget)
	}
	if c.Model.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.Model.MaxAttempts)
	}
	return nil
}

// Pause returns the inter-chunk pause as a duration.
func (c *Config) Pause() time.Duration {
	return time.Duration(c.Query.PauseMS) * time.Millisecond
}

// BaseDelay returns the first retry delay as a duration.
func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.Model.BaseDelayMS) * time.Millisecond
}

// ModelTimeout returns the per-call model timeout as a duration.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutS) * time.Second
}

func (c *Config) applyDefaults() {
	c.Server.Listen = ":8080"
	c.Query.Strategy = "mapreduce"
	c.Query.ChunkBudget = chunk.DefaultBudget
	c.Query.ContextBudget = index.DefaultContextBudget
	c.Query.MaxSelect = index.DefaultMaxSelect
	c.Query.FallbackK = index.DefaultFallbackK
	c.Query.PauseMS = 1000
	c.Model.ID = llm.DefaultModelID
	c.Model.MaxTokens = llm.DefaultMaxTokens
	c.Model.TimeoutS = int(llm.DefaultTimeout / time.Second)
	c.Model.MaxAttempts = llm.DefaultMaxAttempts
	c.Model.BaseDelayMS = int(llm.DefaultBaseDelay / time.Millisecond)
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("CORPUSQA_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("CORPUSQA_CORPUS_DIR"); v != "" {
		c.Corpus.Dir = v
	}
	setInt(&c.Corpus.Parallelism, "CORPUSQA_PARALLELISM")

	if v := os.Getenv("CORPUSQA_STRATEGY"); v != "" {
		c.Query.Strategy = strings.ToLower(v)
	}
	setInt(&c.Query.ChunkBudget, "CORPUSQA_CHUNK_BUDGET")
	setInt(&c.Query.ContextBudget, "CORPUSQA_CONTEXT_BUDGET")
	setInt(&c.Query.MaxSelect, "CORPUSQA_MAX_SELECT")
	setInt(&c.Query.FallbackK, "CORPUSQA_FALLBACK_K")
	setInt(&c.Query.PauseMS, "CORPUSQA_PAUSE_MS")
	if v := os.Getenv("CORPUSQA_COMPACT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Query.Compact = b
		}
	}

	if v := os.Getenv("CORPUSQA_MODEL_ID"); v != "" {
		c.Model.ID = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		c.Model.Region = v
	}
	setInt(&c.Model.MaxTokens, "CORPUSQA_MAX_TOKENS")
	setInt(&c.Model.TimeoutS, "CORPUSQA_MODEL_TIMEOUT_S")
	setInt(&c.Model.MaxAttempts, "CORPUSQA_MAX_ATTEMPTS")
	setInt(&c.Model.BaseDelayMS, "CORPUSQA_BASE_DELAY_MS")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

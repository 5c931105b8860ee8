package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{
		"CORPUSQA_LISTEN", "CORPUSQA_CORPUS_DIR", "CORPUSQA_PARALLELISM",
		"CORPUSQA_STRATEGY", "CORPUSQA_CHUNK_BUDGET", "CORPUSQA_CONTEXT_BUDGET",
		"CORPUSQA_MAX_SELECT", "CORPUSQA_FALLBACK_K", "CORPUSQA_PAUSE_MS",
		"CORPUSQA_COMPACT", "CORPUSQA_MODEL_ID", "AWS_REGION",
		"CORPUSQA_MAX_TOKENS", "CORPUSQA_MODEL_TIMEOUT_S",
		"CORPUSQA_MAX_ATTEMPTS", "CORPUSQA_BASE_DELAY_MS", "LOG_LEVEL",
	} {
		t.Setenv(env, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Listen != ":8080" {
		t.Errorf("Server.Listen: got %q, want %q", cfg.Server.Listen, ":8080")
	}
	if cfg.Query.Strategy != "mapreduce" {
		t.Errorf("Query.Strategy: got %q, want %q", cfg.Query.Strategy, "mapreduce")
	}
	if cfg.Query.ChunkBudget != 80000 {
		t.Errorf("Query.ChunkBudget: got %d, want %d", cfg.Query.ChunkBudget, 80000)
	}
	if cfg.Query.ContextBudget != 60000 {
		t.Errorf("Query.ContextBudget: got %d, want %d", cfg.Query.ContextBudget, 60000)
	}
	if cfg.Model.MaxAttempts != 5 {
		t.Errorf("Model.MaxAttempts: got %d, want %d", cfg.Model.MaxAttempts, 5)
	}
	if cfg.Corpus.Dir != "" {
		t.Errorf("Corpus.Dir: got %q, want empty", cfg.Corpus.Dir)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CORPUSQA_LISTEN", ":9090")
	t.Setenv("CORPUSQA_CORPUS_DIR", "/data/mail")
	t.Setenv("CORPUSQA_STRATEGY", "SELECT")
	t.Setenv("CORPUSQA_CHUNK_BUDGET", "40000")
	t.Setenv("CORPUSQA_COMPACT", "true")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("CORPUSQA_MAX_ATTEMPTS", "3")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Listen != ":9090" {
		t.Errorf("Server.Listen: got %q, want %q", cfg.Server.Listen, ":9090")
	}
	if cfg.Corpus.Dir != "/data/mail" {
		t.Errorf("Corpus.Dir: got %q, want %q", cfg.Corpus.Dir, "/data/mail")
	}
	if cfg.Query.Strategy != "select" {
		t.Errorf("Query.Strategy: got %q, want %q", cfg.Query.Strategy, "select")
	}
	if cfg.Query.ChunkBudget != 40000 {
		t.Errorf("Query.ChunkBudget: got %d, want %d", cfg.Query.ChunkBudget, 40000)
	}
	if !cfg.Query.Compact {
		t.Error("Query.Compact: got false, want true")
	}
	if cfg.Model.Region != "eu-west-1" {
		t.Errorf("Model.Region: got %q, want %q", cfg.Model.Region, "eu-west-1")
	}
	if cfg.Model.MaxAttempts != 3 {
		t.Errorf("Model.MaxAttempts: got %d, want %d", cfg.Model.MaxAttempts, 3)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	yamlContent := `
server:
  listen: ":3000"
corpus:
  dir: "/srv/corpus"
  parallelism: 4
query:
  strategy: "select"
  chunk_budget: 50000
  pause_ms: 250
model:
  id: "anthropic.claude-haiku-4-5-20251001-v1:0"
  region: "us-west-2"
logging:
  level: "warn"
`
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Listen != ":3000" {
		t.Errorf("Server.Listen: got %q, want %q", cfg.Server.Listen, ":3000")
	}
	if cfg.Corpus.Dir != "/srv/corpus" {
		t.Errorf("Corpus.Dir: got %q, want %q", cfg.Corpus.Dir, "/srv/corpus")
	}
	if cfg.Corpus.Parallelism != 4 {
		t.Errorf("Corpus.Parallelism: got %d, want %d", cfg.Corpus.Parallelism, 4)
	}
	if cfg.Query.Strategy != "select" {
		t.Errorf("Query.Strategy: got %q, want %q", cfg.Query.Strategy, "select")
	}
	if cfg.Query.PauseMS != 250 {
		t.Errorf("Query.PauseMS: got %d, want %d", cfg.Query.PauseMS, 250)
	}
	// fields the file omits keep their defaults
	if cfg.Query.ContextBudget != 60000 {
		t.Errorf("Query.ContextBudget: got %d, want %d", cfg.Query.ContextBudget, 60000)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "warn")
	}
}

func TestLoadFromFile_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)

	yamlContent := `
server:
  listen: ":3000"
query:
  strategy: "select"
`
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	t.Setenv("CORPUSQA_LISTEN", ":4000")

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Listen != ":4000" {
		t.Errorf("Server.Listen: got %q, want %q (env should override YAML)", cfg.Server.Listen, ":4000")
	}
	// empty env var does not override the YAML value
	if cfg.Query.Strategy != "select" {
		t.Errorf("Query.Strategy: got %q, want %q", cfg.Query.Strategy, "select")
	}
}

func TestLoadFromFile_FileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoad_RejectsUnknownStrategy(t *testing.T) {
	clearEnv(t)
	t.Setenv("CORPUSQA_STRATEGY", "vector")

	if _, err := Load(); err == nil {
		t.Error("expected error for unknown strategy, got nil")
	}
}

func TestLoad_InvalidIntIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("CORPUSQA_CHUNK_BUDGET", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Query.ChunkBudget != 80000 {
		t.Errorf("Query.ChunkBudget: got %d, want default %d", cfg.Query.ChunkBudget, 80000)
	}
}

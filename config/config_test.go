package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"docqa/internal/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"CHUNK_SIZE", "CHUNK_OVERLAP", "TOP_K_RETRIEVAL", "MMR_LAMBDA", "CONFIDENCE_THRESHOLD"} {
		t.Setenv(name, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Ingest.ChunkSizeTokens != 400 {
		t.Errorf("expected ChunkSizeTokens=400, got %d", cfg.Ingest.ChunkSizeTokens)
	}
	if cfg.Ingest.OverlapTokens != 80 {
		t.Errorf("expected OverlapTokens=80, got %d", cfg.Ingest.OverlapTokens)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.MMRLambda != 0.5 {
		t.Errorf("expected MMRLambda=0.5, got %f", cfg.Retrieve.MMRLambda)
	}
	if cfg.Answer.ConfidenceThreshold != 0.5 {
		t.Errorf("expected ConfidenceThreshold=0.5, got %f", cfg.Answer.ConfidenceThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "docqa.yaml")

	content := `
ingest:
  chunk_size_tokens: 256
  overlap_tokens: 32
retrieve:
  top_k_retrieval: 8
vector_store:
  backend: qdrant
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Ingest.ChunkSizeTokens != 256 || cfg.Ingest.OverlapTokens != 32 {
		t.Errorf("unexpected ingest config: %+v", cfg.Ingest)
	}
	if cfg.Retrieve.TopK != 8 {
		t.Errorf("expected TopK=8, got %d", cfg.Retrieve.TopK)
	}
	if cfg.VectorStore.Backend != "qdrant" {
		t.Errorf("expected qdrant backend, got %s", cfg.VectorStore.Backend)
	}
	if cfg.Retrieve.MMRLambda != 0.5 {
		t.Errorf("expected unspecified values to keep defaults, got %f", cfg.Retrieve.MMRLambda)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	configPath := filepath.Join(t.TempDir(), "docqa.yaml")
	if err := os.WriteFile(configPath, []byte("ingest: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestLoadFromDir(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()

	if err := EnsureDataDir(tmpDir); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(tmpDir, DataDirName, "config.yaml")
	if err := os.WriteFile(nested, []byte("answer:\n  confidence_threshold: 0.7\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Answer.ConfidenceThreshold != 0.7 {
		t.Errorf("expected nested config to load, got %f", cfg.Answer.ConfidenceThreshold)
	}

	top := filepath.Join(tmpDir, "docqa.yaml")
	if err := os.WriteFile(top, []byte("answer:\n  confidence_threshold: 0.3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadFromDir(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Answer.ConfidenceThreshold != 0.3 {
		t.Errorf("expected docqa.yaml to take precedence, got %f", cfg.Answer.ConfidenceThreshold)
	}
}

func TestApplyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHUNK_SIZE", "200")
	t.Setenv("CHUNK_OVERLAP", "20")
	t.Setenv("TOP_K_RETRIEVAL", "3")
	t.Setenv("MMR_LAMBDA", "0.8")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.4")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ingest.ChunkSizeTokens != 200 || cfg.Ingest.OverlapTokens != 20 {
		t.Errorf("unexpected ingest overrides: %+v", cfg.Ingest)
	}
	if cfg.Retrieve.TopK != 3 || cfg.Retrieve.MMRLambda != 0.8 {
		t.Errorf("unexpected retrieve overrides: %+v", cfg.Retrieve)
	}
	if cfg.Answer.ConfidenceThreshold != 0.4 {
		t.Errorf("unexpected threshold override: %f", cfg.Answer.ConfidenceThreshold)
	}

	t.Setenv("CHUNK_SIZE", "big")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for bad env value, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap equals chunk size", func(c *Config) { c.Ingest.OverlapTokens = c.Ingest.ChunkSizeTokens }},
		{"overlap exceeds chunk size", func(c *Config) { c.Ingest.OverlapTokens = 500 }},
		{"zero chunk size", func(c *Config) { c.Ingest.ChunkSizeTokens = 0 }},
		{"negative overlap", func(c *Config) { c.Ingest.OverlapTokens = -1 }},
		{"zero top k", func(c *Config) { c.Retrieve.TopK = 0 }},
		{"lambda above one", func(c *Config) { c.Retrieve.MMRLambda = 1.5 }},
		{"negative threshold", func(c *Config) { c.Answer.ConfidenceThreshold = -0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "docqa.yaml")

	cfg := DefaultConfig()
	cfg.LLM.Provider = "openai"
	cfg.Memory.Enabled = false
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.LLM.Provider != "openai" || loaded.Memory.Enabled {
		t.Errorf("unexpected loaded config: %+v %+v", loaded.LLM, loaded.Memory)
	}
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Embedding.Timeout() != time.Minute {
		t.Errorf("unexpected embedding timeout %v", cfg.Embedding.Timeout())
	}
	cfg.Cache.TTLSeconds = 0
	if cfg.Cache.TTL() != 5*time.Minute {
		t.Errorf("expected fallback TTL, got %v", cfg.Cache.TTL())
	}
}

func TestIndexDBPath(t *testing.T) {
	got := IndexDBPath("/project")
	want := filepath.Join("/project", ".docqa", "index.db")
	if got != want {
		t.Errorf("IndexDBPath = %s, want %s", got, want)
	}
}

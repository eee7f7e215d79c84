package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"docqa/internal/domain"
	"gopkg.in/yaml.v3"
)

// DataDirName is the per-workspace directory holding the index and config.
const DataDirName = ".docqa"

// Config holds all configuration for docqa.
type Config struct {
	Ingest      IngestConfig      `yaml:"ingest"`
	Retrieve    RetrieveConfig    `yaml:"retrieve"`
	Answer      AnswerConfig      `yaml:"answer"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Memory      MemoryConfig      `yaml:"memory"`
	Cache       CacheConfig       `yaml:"cache"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// IngestConfig holds chunking and file discovery settings.
type IngestConfig struct {
	ChunkSizeTokens int      `yaml:"chunk_size_tokens"`
	OverlapTokens   int      `yaml:"overlap_tokens"`
	Includes        []string `yaml:"includes"`
	Excludes        []string `yaml:"excludes"`
	Workers         int      `yaml:"workers"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK      int     `yaml:"top_k_retrieval"`
	MMRLambda float64 `yaml:"mmr_lambda"`
	Overfetch int     `yaml:"overfetch"` // Candidate pool is TopK * Overfetch
}

// AnswerConfig holds answer synthesis settings.
type AnswerConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	MaxTokens           int     `yaml:"max_tokens"`
	Temperature         float64 `yaml:"temperature"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"` // "local", "openai", "jina", "ollama"
	Model             string  `yaml:"model"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	BaseURL           string  `yaml:"base_url"`
	Dimension         int     `yaml:"dimension"`
	BatchSize         int     `yaml:"batch_size"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// LLMConfig holds text generation configuration.
type LLMConfig struct {
	Provider          string  `yaml:"provider"` // "extractive", "openai", "deepseek", "ollama"
	Model             string  `yaml:"model"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	BaseURL           string  `yaml:"base_url"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxSentences      int     `yaml:"max_sentences"` // extractive provider only
}

// VectorStoreConfig selects the index backend.
type VectorStoreConfig struct {
	Backend        string `yaml:"backend"` // "bolt", "memory", "qdrant"
	URL            string `yaml:"url"`
	Collection     string `yaml:"collection"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// MemoryConfig holds conversation memory settings.
type MemoryConfig struct {
	Enabled         bool `yaml:"enabled"`
	MaxShortTerm    int  `yaml:"max_short_term"`
	MaxLongTerm     int  `yaml:"max_long_term"`
	HistoryMessages int  `yaml:"history_messages"`
}

// CacheConfig holds the query embedding cache settings.
type CacheConfig struct {
	Enabled    bool `yaml:"enabled"`
	Size       int  `yaml:"size"`
	TTLSeconds int  `yaml:"ttl_seconds"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr                   string `yaml:"addr"`
	MaxUploadMB            int    `yaml:"max_upload_mb"`
	RequestTimeoutSeconds  int    `yaml:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			ChunkSizeTokens: 400,
			OverlapTokens:   80,
			Includes:        []string{"**/*.pdf", "**/*.txt", "**/*.md"},
			Excludes:        []string{"**/.docqa/**", "**/.git/**", "**/node_modules/**"},
			Workers:         4,
		},
		Retrieve: RetrieveConfig{
			TopK:      5,
			MMRLambda: 0.5,
			Overfetch: 2,
		},
		Answer: AnswerConfig{
			ConfidenceThreshold: 0.5,
			MaxTokens:           1024,
			Temperature:         0.2,
		},
		Embedding: EmbeddingConfig{
			Provider:          "local",
			Model:             "local-hash",
			APIKeyEnv:         "OPENAI_API_KEY",
			Dimension:         384,
			BatchSize:         64,
			TimeoutSeconds:    60,
			RequestsPerSecond: 0,
		},
		LLM: LLMConfig{
			Provider:       "extractive",
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 60,
			MaxSentences:   3,
		},
		VectorStore: VectorStoreConfig{
			Backend:        "bolt",
			URL:            "http://localhost:6333",
			Collection:     "docqa",
			APIKeyEnv:      "QDRANT_API_KEY",
			TimeoutSeconds: 10,
		},
		Memory: MemoryConfig{
			Enabled:         true,
			MaxShortTerm:    10,
			MaxLongTerm:     100,
			HistoryMessages: 6,
		},
		Cache: CacheConfig{
			Enabled:    true,
			Size:       256,
			TTLSeconds: 300,
		},
		Server: ServerConfig{
			Addr:                   ":8000",
			MaxUploadMB:            32,
			RequestTimeoutSeconds:  120,
			ShutdownTimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrConfiguration, path, err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir looks for docqa.yaml, then .docqa/config.yaml.
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "docqa.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return Load(filepath.Join(dir, DataDirName, "config.yaml"))
}

// ApplyEnv overrides tuning knobs from the environment.
func (c *Config) ApplyEnv() error {
	ints := map[string]*int{
		"CHUNK_SIZE":      &c.Ingest.ChunkSizeTokens,
		"CHUNK_OVERLAP":   &c.Ingest.OverlapTokens,
		"TOP_K_RETRIEVAL": &c.Retrieve.TopK,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", domain.ErrConfiguration, name, v)
		}
		*dst = n
	}

	floats := map[string]*float64{
		"MMR_LAMBDA":           &c.Retrieve.MMRLambda,
		"CONFIDENCE_THRESHOLD": &c.Answer.ConfidenceThreshold,
	}
	for name, dst := range floats {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", domain.ErrConfiguration, name, v)
		}
		*dst = f
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Ingest.ChunkSizeTokens <= 0:
		return fmt.Errorf("%w: chunk_size_tokens must be positive", domain.ErrConfiguration)
	case c.Ingest.OverlapTokens < 0:
		return fmt.Errorf("%w: overlap_tokens must not be negative", domain.ErrConfiguration)
	case c.Ingest.OverlapTokens >= c.Ingest.ChunkSizeTokens:
		return fmt.Errorf("%w: overlap_tokens (%d) must be smaller than chunk_size_tokens (%d)",
			domain.ErrConfiguration, c.Ingest.OverlapTokens, c.Ingest.ChunkSizeTokens)
	case c.Retrieve.TopK < 1:
		return fmt.Errorf("%w: top_k_retrieval must be at least 1", domain.ErrConfiguration)
	case c.Retrieve.MMRLambda < 0 || c.Retrieve.MMRLambda > 1:
		return fmt.Errorf("%w: mmr_lambda must be within [0, 1]", domain.ErrConfiguration)
	case c.Answer.ConfidenceThreshold < 0 || c.Answer.ConfidenceThreshold > 1:
		return fmt.Errorf("%w: confidence_threshold must be within [0, 1]", domain.ErrConfiguration)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func seconds(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func (e EmbeddingConfig) Timeout() time.Duration {
	return seconds(e.TimeoutSeconds, 60*time.Second)
}

func (l LLMConfig) Timeout() time.Duration {
	return seconds(l.TimeoutSeconds, 60*time.Second)
}

func (v VectorStoreConfig) Timeout() time.Duration {
	return seconds(v.TimeoutSeconds, 10*time.Second)
}

func (c CacheConfig) TTL() time.Duration {
	return seconds(c.TTLSeconds, 5*time.Minute)
}

func (s ServerConfig) RequestTimeout() time.Duration {
	return seconds(s.RequestTimeoutSeconds, 2*time.Minute)
}

func (s ServerConfig) ShutdownTimeout() time.Duration {
	return seconds(s.ShutdownTimeoutSeconds, 10*time.Second)
}

// IndexDBPath returns the path to the index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, DataDirName, "index.db")
}

// EnsureDataDir ensures the .docqa directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, DataDirName), 0755)
}

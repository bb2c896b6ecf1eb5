// Package config loads engine configuration from YAML with environment
// overrides. Precedence: defaults, then config file, then CODELENS_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codelens-dev/codelens/internal/logging"
)

// Config is the complete engine configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Query      QueryConfig      `yaml:"query"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Indexing   IndexingConfig   `yaml:"indexing"`
	Logging    logging.Config   `yaml:"logging"`
}

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	// URL is a pgx connection string.
	URL string `yaml:"url"`
	// VectorDims sizes the embeddings column at schema creation.
	VectorDims int `yaml:"vector_dims"`
}

// QueryConfig tunes retrieval and response shaping.
type QueryConfig struct {
	// DefaultProfile is used when a request names none: fast, hybrid or
	// semantic.
	DefaultProfile string `yaml:"default_profile"`
	// MaxResults caps results per response.
	MaxResults int `yaml:"max_results"`
	// MaxSnippetChars caps the per-response snippet budget.
	MaxSnippetChars int `yaml:"max_snippet_chars"`
	// MaxResponseBytes caps the serialized response size.
	MaxResponseBytes int `yaml:"max_response_bytes"`
	// SparseWeight and VectorWeight blend sparse rank with cosine
	// similarity in the hybrid profile.
	SparseWeight float64 `yaml:"sparse_weight"`
	VectorWeight float64 `yaml:"vector_weight"`
}

// EmbeddingsConfig configures the embedding pipeline.
type EmbeddingsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Model names the embedding model; stored lowercase on jobs.
	Model string `yaml:"model"`
	// Endpoint is the Ollama-compatible provider base URL the worker calls.
	Endpoint string `yaml:"endpoint"`
	// BatchSize is jobs claimed per worker tick.
	BatchSize int `yaml:"batch_size"`
	// MaxAttempts before a transiently failing job is blocked.
	MaxAttempts int `yaml:"max_attempts"`
	// StaleMinutes before an abandoned Processing lock is reclaimed.
	StaleMinutes int `yaml:"stale_minutes"`
	// PurgeDays of Completed job retention.
	PurgeDays int `yaml:"purge_days"`
}

// ChunkingConfig tunes chunk extraction.
type ChunkingConfig struct {
	ContextLinesBefore int `yaml:"context_lines_before"`
	ContextLinesAfter  int `yaml:"context_lines_after"`
	MaxChunkChars      int `yaml:"max_chunk_chars"`
}

// IndexingConfig tunes the indexing pipeline.
type IndexingConfig struct {
	// FileReadConcurrency bounds parallel blob reads.
	FileReadConcurrency int `yaml:"file_read_concurrency"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:        "postgres://localhost:5432/codelens?sslmode=disable",
			VectorDims: 768,
		},
		Query: QueryConfig{
			DefaultProfile:   "fast",
			MaxResults:       20,
			MaxSnippetChars:  8000,
			MaxResponseBytes: 64 * 1024,
			SparseWeight:     0.3,
			VectorWeight:     0.7,
		},
		Embeddings: EmbeddingsConfig{
			Enabled:      false,
			Endpoint:     "http://localhost:11434",
			BatchSize:    64,
			MaxAttempts:  10,
			StaleMinutes: 10,
			PurgeDays:    7,
		},
		Chunking: ChunkingConfig{
			ContextLinesBefore: 5,
			ContextLinesAfter:  5,
			MaxChunkChars:      30000,
		},
		Indexing: IndexingConfig{
			FileReadConcurrency: runtime.NumCPU(),
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads configuration from an optional YAML file and applies
// environment overrides. A missing path is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("CODELENS_DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("CODELENS_DEFAULT_PROFILE"); v != "" {
		c.Query.DefaultProfile = v
	}
	if v := os.Getenv("CODELENS_EMBEDDING_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("CODELENS_EMBEDDINGS_ENDPOINT"); v != "" {
		c.Embeddings.Endpoint = v
	}
	if v := os.Getenv("CODELENS_EMBEDDINGS_ENABLED"); v != "" {
		c.Embeddings.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("CODELENS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CODELENS_VECTOR_DIMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Database.VectorDims = n
		}
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Query.DefaultProfile) {
	case "fast", "hybrid", "semantic":
	default:
		return fmt.Errorf("invalid default_profile %q: must be fast, hybrid or semantic", c.Query.DefaultProfile)
	}
	if c.Query.MaxResults <= 0 {
		return fmt.Errorf("max_results must be positive, got %d", c.Query.MaxResults)
	}
	if c.Query.SparseWeight < 0 || c.Query.VectorWeight < 0 {
		return fmt.Errorf("hybrid weights must be non-negative")
	}
	if sum := c.Query.SparseWeight + c.Query.VectorWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("sparse_weight and vector_weight must sum to 1.0, got %.3f", sum)
	}
	if c.Chunking.MaxChunkChars <= 0 {
		return fmt.Errorf("max_chunk_chars must be positive, got %d", c.Chunking.MaxChunkChars)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if c.Embeddings.MaxAttempts <= 0 {
		return fmt.Errorf("embeddings max_attempts must be positive, got %d", c.Embeddings.MaxAttempts)
	}
	if c.Indexing.FileReadConcurrency <= 0 {
		return fmt.Errorf("file_read_concurrency must be positive, got %d", c.Indexing.FileReadConcurrency)
	}
	return nil
}

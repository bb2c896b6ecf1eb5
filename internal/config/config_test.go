package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "fast", cfg.Query.DefaultProfile)
	assert.Equal(t, 64, cfg.Embeddings.BatchSize)
	assert.Equal(t, 10, cfg.Embeddings.MaxAttempts)
	assert.Equal(t, runtime.NumCPU(), cfg.Indexing.FileReadConcurrency)
	assert.InDelta(t, 1.0, cfg.Query.SparseWeight+cfg.Query.VectorWeight, 1e-9)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 768, cfg.Database.VectorDims)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
query:
  default_profile: hybrid
  max_results: 5
  sparse_weight: 0.4
  vector_weight: 0.6
embeddings:
  enabled: true
  model: Nomic-Embed-Text
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hybrid", cfg.Query.DefaultProfile)
	assert.Equal(t, 5, cfg.Query.MaxResults)
	assert.True(t, cfg.Embeddings.Enabled)
	assert.Equal(t, "Nomic-Embed-Text", cfg.Embeddings.Model)
	// Untouched sections keep defaults.
	assert.Equal(t, 30000, cfg.Chunking.MaxChunkChars)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("query:\n  default_profile: hybrid\n"), 0o644))
	t.Setenv("CODELENS_DEFAULT_PROFILE", "semantic")
	t.Setenv("CODELENS_DATABASE_URL", "postgres://db:5432/test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "semantic", cfg.Query.DefaultProfile)
	assert.Equal(t, "postgres://db:5432/test", cfg.Database.URL)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad profile", func(c *Config) { c.Query.DefaultProfile = "turbo" }},
		{"zero results", func(c *Config) { c.Query.MaxResults = 0 }},
		{"weights off", func(c *Config) { c.Query.SparseWeight = 0.5; c.Query.VectorWeight = 0.7 }},
		{"negative weight", func(c *Config) { c.Query.SparseWeight = -0.2; c.Query.VectorWeight = 1.2 }},
		{"zero chunk chars", func(c *Config) { c.Chunking.MaxChunkChars = 0 }},
		{"zero batch", func(c *Config) { c.Embeddings.BatchSize = 0 }},
		{"zero concurrency", func(c *Config) { c.Indexing.FileReadConcurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

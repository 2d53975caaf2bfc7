package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vecerr "github.com/vecdex/vecdex/internal/errors"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 300, cfg.ChunkSize)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, "arxiv-papers", cfg.Index.Name)
	assert.Equal(t, "hnsw", cfg.Index.Method.Name)
	assert.Equal(t, "cosine", cfg.Index.Similarity)
	assert.True(t, cfg.Embedding.Normalize)
	assert.Equal(t, 1, cfg.Pipeline.Workers)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().ChunkSize, cfg.ChunkSize)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".vecdex.yaml")
	content := []byte(`
chunk_size: 150
embedding:
  provider: static
  dimensions: 256
index:
  name: my-papers
  backend: local
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 150, cfg.ChunkSize)
	assert.Equal(t, "static", cfg.Embedding.Provider)
	assert.Equal(t, 256, cfg.Embedding.Dimensions)
	assert.Equal(t, "my-papers", cfg.Index.Name)
	// Untouched values keep their defaults
	assert.Equal(t, "cosine", cfg.Index.Similarity)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".vecdex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedding:\n  provider: openai\n"), 0o644))

	t.Setenv("VECDEX_EMBEDDER", "static")
	t.Setenv("VECDEX_INDEX_NAME", "env-index")
	t.Setenv("VECDEX_WORKERS", "4")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "static", cfg.Embedding.Provider)
	assert.Equal(t, "env-index", cfg.Index.Name)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".vecdex.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: [not an int"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, vecerr.ErrCodeConfigInvalid, vecerr.CodeOf(err))
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }},
		{"negative dimensions", func(c *Config) { c.Embedding.Dimensions = -1 }},
		{"zero batch size", func(c *Config) { c.Embedding.BatchSize = 0 }},
		{"empty index name", func(c *Config) { c.Index.Name = "" }},
		{"unknown backend", func(c *Config) { c.Index.Backend = "redis" }},
		{"unknown similarity", func(c *Config) { c.Index.Similarity = "hamming" }},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, vecerr.ErrCodeConfigInvalid, vecerr.CodeOf(err))
			assert.True(t, vecerr.Fatal(err))
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")

	cfg := Default()
	cfg.Index.Name = "saved-index"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "saved-index", loaded.Index.Name)
}

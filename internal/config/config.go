// Package config loads and validates the vecdex configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	vecerr "github.com/vecdex/vecdex/internal/errors"
)

// DefaultConfigFile is the config file looked up in the working directory.
const DefaultConfigFile = ".vecdex.yaml"

// Config represents the complete vecdex configuration.
type Config struct {
	// CorpusDir is the directory of PDF files to ingest.
	CorpusDir string `yaml:"corpus_dir"`

	// ChunkSize is the word-window size used by the chunker.
	ChunkSize int `yaml:"chunk_size"`

	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// Provider selects the backend: "openai" (any OpenAI-compatible
	// /v1/embeddings endpoint) or "static" (deterministic local hashing).
	Provider string `yaml:"provider"`

	// Model is the model name sent to remote providers.
	Model string `yaml:"model"`

	// Endpoint is the base URL of the remote provider.
	Endpoint string `yaml:"endpoint"`

	// Dimensions is the embedding dimension D. Every vector written to
	// the index must have exactly this many components.
	Dimensions int `yaml:"dimensions"`

	// BatchSize caps how many texts go into one provider call.
	BatchSize int `yaml:"batch_size"`

	// Normalize L2-normalizes every vector to unit length. Required for
	// cosine-similarity ANN methods to behave as expected.
	Normalize bool `yaml:"normalize"`

	// Cache enables the LRU embedding cache.
	Cache bool `yaml:"cache"`

	// CacheSize is the number of embeddings to keep in the cache.
	CacheSize int `yaml:"cache_size"`
}

// IndexConfig configures the vector index store.
type IndexConfig struct {
	// Backend selects the store: "local" (in-process HNSW + SQLite) or
	// "opensearch" (remote REST store).
	Backend string `yaml:"backend"`

	// Name is the index name.
	Name string `yaml:"name"`

	// Endpoint is the base URL of the remote store (opensearch backend).
	Endpoint string `yaml:"endpoint"`

	// DataDir is where the local backend keeps its files.
	DataDir string `yaml:"data_dir"`

	// Shards is the shard count declared at index creation.
	Shards int `yaml:"shards"`

	// Similarity is the metric: "cosine", "l2" or "dot".
	Similarity string `yaml:"similarity"`

	// Method configures the ANN structure.
	Method MethodConfig `yaml:"method"`

	// DeterministicIDs derives document ids from (source_file, sequence)
	// so re-running the pipeline overwrites instead of duplicating.
	// Off by default: the baseline contract is append-only.
	DeterministicIDs bool `yaml:"deterministic_ids"`
}

// MethodConfig holds the ANN method and its tuning parameters.
type MethodConfig struct {
	// Name of the ANN method (hnsw).
	Name string `yaml:"name"`

	// Engine is the remote store's ANN engine (nmslib, faiss, lucene).
	Engine string `yaml:"engine"`

	// M is the HNSW neighbor-list size.
	M int `yaml:"m"`

	// EfConstruction is the HNSW build-time beam width.
	EfConstruction int `yaml:"ef_construction"`

	// EfSearch is the HNSW query-time beam width (local backend).
	EfSearch int `yaml:"ef_search"`
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	// Workers is the number of documents processed concurrently.
	// 1 means document-at-a-time (the default, memory-bounded mode).
	Workers int `yaml:"workers"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the default configuration. The constants mirror the
// BAAI/bge-base-en setup the pipeline was built around: 300-word
// chunks, 768-dimensional vectors, cosine HNSW.
func Default() *Config {
	return &Config{
		CorpusDir: "./data/arxiv_pdfs",
		ChunkSize: 300,
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "BAAI/bge-base-en",
			Endpoint:   "http://localhost:8000",
			Dimensions: 768,
			BatchSize:  32,
			Normalize:  true,
			Cache:      true,
			CacheSize:  1000,
		},
		Index: IndexConfig{
			Backend:    "local",
			Name:       "arxiv-papers",
			Endpoint:   "http://localhost:9200",
			DataDir:    ".vecdex",
			Shards:     1,
			Similarity: "cosine",
			Method: MethodConfig{
				Name:           "hnsw",
				Engine:         "nmslib",
				M:              16,
				EfConstruction: 128,
				EfSearch:       64,
			},
		},
		Pipeline: PipelineConfig{
			Workers: 1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, falling back to defaults when the
// file does not exist. Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults + env only
	case err != nil:
		return nil, vecerr.Wrap(vecerr.ErrCodeConfigNotFound, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, vecerr.Wrap(vecerr.ErrCodeConfigInvalid, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies VECDEX_* environment overrides. Env wins over the
// config file so one-off runs don't need file edits.
func (c *Config) applyEnv() {
	if v := os.Getenv("VECDEX_CORPUS_DIR"); v != "" {
		c.CorpusDir = v
	}
	if v := os.Getenv("VECDEX_EMBEDDER"); v != "" {
		c.Embedding.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("VECDEX_EMBED_ENDPOINT"); v != "" {
		c.Embedding.Endpoint = v
	}
	if v := os.Getenv("VECDEX_INDEX_BACKEND"); v != "" {
		c.Index.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("VECDEX_INDEX_ENDPOINT"); v != "" {
		c.Index.Endpoint = v
	}
	if v := os.Getenv("VECDEX_INDEX_NAME"); v != "" {
		c.Index.Name = v
	}
	if v := os.Getenv("VECDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Pipeline.Workers = n
		}
	}
}

// Validate checks the configuration for fatal inconsistencies.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return vecerr.Newf(vecerr.ErrCodeConfigInvalid, "chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.Embedding.Dimensions <= 0 {
		return vecerr.Newf(vecerr.ErrCodeConfigInvalid, "embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize <= 0 {
		return vecerr.Newf(vecerr.ErrCodeConfigInvalid, "embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.Index.Name == "" {
		return vecerr.Newf(vecerr.ErrCodeConfigInvalid, "index.name must not be empty")
	}
	switch c.Index.Backend {
	case "local", "opensearch":
	default:
		return vecerr.Newf(vecerr.ErrCodeConfigInvalid, "index.backend must be local or opensearch, got %q", c.Index.Backend)
	}
	switch c.Index.Similarity {
	case "cosine", "l2", "dot":
	default:
		return vecerr.Newf(vecerr.ErrCodeConfigInvalid, "index.similarity must be cosine, l2 or dot, got %q", c.Index.Similarity)
	}
	if c.Pipeline.Workers <= 0 {
		return vecerr.Newf(vecerr.ErrCodeConfigInvalid, "pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	return nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

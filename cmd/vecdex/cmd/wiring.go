package cmd

import (
	"path/filepath"

	"github.com/vecdex/vecdex/internal/config"
	"github.com/vecdex/vecdex/internal/embed"
	"github.com/vecdex/vecdex/internal/store"
)

// newEmbedder builds the configured embedder stack.
func newEmbedder(cfg *config.Config) (embed.Embedder, error) {
	return embed.NewEmbedder(embed.Options{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		Endpoint:   cfg.Embedding.Endpoint,
		APIKeyEnv:  "VECDEX_API_KEY",
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
		Normalize:  cfg.Embedding.Normalize,
		Cache:      cfg.Embedding.Cache,
		CacheSize:  cfg.Embedding.CacheSize,
	})
}

// newVectorIndex builds the configured index backend.
func newVectorIndex(cfg *config.Config) store.VectorIndex {
	if cfg.Index.Backend == "opensearch" {
		return store.NewOpenSearchIndex(store.OpenSearchConfig{
			Endpoint: cfg.Index.Endpoint,
		})
	}
	return store.NewLocalIndex(store.LocalConfig{DataDir: cfg.Index.DataDir})
}

// indexSchema maps the configuration onto the index schema.
func indexSchema(cfg *config.Config) store.Schema {
	return store.Schema{
		Name:       cfg.Index.Name,
		Dimensions: cfg.Embedding.Dimensions,
		Similarity: store.Similarity(cfg.Index.Similarity),
		Shards:     cfg.Index.Shards,
		Method: store.Method{
			Name:           cfg.Index.Method.Name,
			Engine:         cfg.Index.Method.Engine,
			M:              cfg.Index.Method.M,
			EfConstruction: cfg.Index.Method.EfConstruction,
			EfSearch:       cfg.Index.Method.EfSearch,
		},
	}
}

// lockFile is the ingest run lock location for the local backend.
func lockFile(cfg *config.Config) string {
	if cfg.Index.Backend == "opensearch" {
		return ""
	}
	return filepath.Join(cfg.Index.DataDir, "ingest.lock")
}

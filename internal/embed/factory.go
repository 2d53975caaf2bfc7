package embed

import (
	"fmt"
	"os"
	"time"
)

// Options selects and tunes an embedding provider. The zero value is
// not usable; callers map their configuration onto it.
type Options struct {
	// Provider is "openai" or "static".
	Provider string

	// Model, Endpoint and APIKeyEnv configure the remote provider.
	// APIKeyEnv names the environment variable holding the key.
	Model     string
	Endpoint  string
	APIKeyEnv string

	// Dimensions is the embedding dimension D.
	Dimensions int

	// BatchSize caps texts per provider call.
	BatchSize int

	// Normalize wraps the provider with L2 normalization.
	Normalize bool

	// Cache wraps the provider with an LRU cache of CacheSize entries.
	Cache     bool
	CacheSize int

	// Timeout overrides the remote request timeout.
	Timeout time.Duration
}

// NewEmbedder builds the configured provider, applying the
// normalization and cache wrappers. Normalization sits inside the
// cache so cached vectors are already unit length.
func NewEmbedder(opts Options) (Embedder, error) {
	var embedder Embedder

	switch opts.Provider {
	case "openai":
		apiKey := ""
		if opts.APIKeyEnv != "" {
			apiKey = os.Getenv(opts.APIKeyEnv)
		}
		embedder = NewOpenAIEmbedder(OpenAIConfig{
			Endpoint:   opts.Endpoint,
			Model:      opts.Model,
			APIKey:     apiKey,
			Dimensions: opts.Dimensions,
			BatchSize:  opts.BatchSize,
			Timeout:    opts.Timeout,
		})
	case "static":
		embedder = NewStaticEmbedder(opts.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", opts.Provider)
	}

	if opts.Normalize {
		embedder = NewNormalizedEmbedder(embedder)
	}
	if opts.Cache {
		embedder = NewCachedEmbedder(embedder, opts.CacheSize)
	}

	return embedder, nil
}

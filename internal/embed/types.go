// Package embed generates dense vector embeddings for text chunks.
//
// Two realizations are provided behind one interface: an
// OpenAI-compatible remote service client and a deterministic local
// hash embedder that needs no network or model download. Both
// guarantee order-preserving batches of fixed-dimension vectors.
package embed

import (
	"context"
	"math"
	"time"
)

// Batch and dimension defaults.
const (
	// DefaultBatchSize is the default number of texts per provider call.
	DefaultBatchSize = 32

	// MaxBatchSize caps a single provider call to bound memory.
	MaxBatchSize = 256

	// DefaultDimensions matches BAAI/bge-base-en, the model the
	// pipeline defaults were tuned for.
	DefaultDimensions = 768

	// DefaultTimeout is the per-request timeout for remote providers.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the number of attempts for remote calls.
	DefaultMaxRetries = 3
)

// Embedder generates vector embeddings for text.
//
// Implementations must preserve the order between the input texts and
// the output vectors, and every vector must have exactly Dimensions()
// components. A batch either succeeds completely or fails as a whole;
// there are no partial results.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension D.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector scales a vector to unit length. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}

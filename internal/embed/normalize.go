package embed

import "context"

// NormalizedEmbedder wraps an Embedder and L2-normalizes every vector
// to unit length. Enabled by the pipeline-level normalize flag; unit
// vectors are required for cosine-similarity ANN methods to behave as
// expected.
type NormalizedEmbedder struct {
	inner Embedder
}

// Compile-time interface check.
var _ Embedder = (*NormalizedEmbedder)(nil)

// NewNormalizedEmbedder wraps inner with L2 normalization.
func NewNormalizedEmbedder(inner Embedder) *NormalizedEmbedder {
	return &NormalizedEmbedder{inner: inner}
}

// Embed generates a unit-length embedding.
func (n *NormalizedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := n.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return normalizeVector(vec), nil
}

// EmbedBatch generates unit-length embeddings, order preserved.
func (n *NormalizedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := n.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i, v := range vectors {
		vectors[i] = normalizeVector(v)
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension (passthrough).
func (n *NormalizedEmbedder) Dimensions() int { return n.inner.Dimensions() }

// ModelName returns the model identifier (passthrough).
func (n *NormalizedEmbedder) ModelName() string { return n.inner.ModelName() }

// Available checks the inner embedder.
func (n *NormalizedEmbedder) Available(ctx context.Context) bool { return n.inner.Available(ctx) }

// Close closes the inner embedder.
func (n *NormalizedEmbedder) Close() error { return n.inner.Close() }

package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestStaticEmbedder_FixedDimensions(t *testing.T) {
	e := NewStaticEmbedder(256)
	defer func() { _ = e.Close() }()

	for _, text := range []string{"short", "a considerably longer piece of text with many more words in it"} {
		vec, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Len(t, vec, 256, "dimension must not depend on input length")
	}
}

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder(128)
	defer func() { _ = e.Close() }()

	a, err := e.Embed(context.Background(), "neural retrieval over arxiv papers")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "neural retrieval over arxiv papers")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestStaticEmbedder_BatchOrderPreserved(t *testing.T) {
	e := NewStaticEmbedder(64)
	defer func() { _ = e.Close() }()

	texts := []string{"alpha beta", "gamma delta epsilon"}
	batch, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	single0, err := e.Embed(context.Background(), texts[0])
	require.NoError(t, err)
	single1, err := e.Embed(context.Background(), texts[1])
	require.NoError(t, err)

	assert.Equal(t, single0, batch[0])
	assert.Equal(t, single1, batch[1])
	assert.Len(t, batch[0], 64)
	assert.Len(t, batch[1], 64)
}

func TestStaticEmbedder_UnitNorm(t *testing.T) {
	e := NewStaticEmbedder(96)
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "vectors should come out normalized")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, vectorNorm(vec), 1e-5)
}

func TestStaticEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder(32)
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 32), vec)
}

func TestStaticEmbedder_DistinctTextsDiffer(t *testing.T) {
	e := NewStaticEmbedder(256)
	defer func() { _ = e.Close() }()

	a, err := e.Embed(context.Background(), "graph neural networks")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "protein folding dynamics")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestStaticEmbedder_ClosedRejectsEmbed(t *testing.T) {
	e := NewStaticEmbedder(16)
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "anything")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

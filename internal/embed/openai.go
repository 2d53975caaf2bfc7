package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	vecerr "github.com/vecdex/vecdex/internal/errors"
)

// OpenAIConfig configures the remote embedding client.
type OpenAIConfig struct {
	// Endpoint is the service base URL; the client posts to
	// Endpoint + "/v1/embeddings".
	Endpoint string

	// Model is the model name sent with each request.
	Model string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Dimensions is the expected vector dimension. Zero means adopt
	// the dimension of the first response.
	Dimensions int

	// BatchSize caps texts per request.
	BatchSize int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxRetries is the number of attempts per batch.
	MaxRetries int
}

// OpenAIEmbedder calls an OpenAI-compatible POST /v1/embeddings
// endpoint. Oversized or malformed batches fail the whole request;
// there are no partial results.
type OpenAIEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    OpenAIConfig

	// dims is adopted from the first response when configured as zero;
	// atomic because one embedder is shared across pipeline workers.
	dims atomic.Int64
}

// Compile-time interface check.
var _ Embedder = (*OpenAIEmbedder)(nil)

// Request and response wire types for /v1/embeddings.
type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model,omitempty"`
}

type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  embeddingUsage  `json:"usage"`
}

type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// NewOpenAIEmbedder creates a remote embedding client.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     10 * time.Second,
	}

	// No http.Client.Timeout: per-request context timeouts are applied
	// in doEmbedWithRetry so a slow batch doesn't inherit a stale limit.
	e := &OpenAIEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
	}
	e.dims.Store(int64(cfg.Dimensions))
	return e
}

// Embed generates the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts, splitting into
// provider-sized batches. Output order matches input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := e.doEmbedWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, vectors...)
	}

	return results, nil
}

// doEmbedWithRetry performs one batch with exponential backoff.
func (e *OpenAIEmbedder) doEmbedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100<<attempt) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}

			slog.Debug("retrying embedding batch",
				slog.Int("attempt", attempt+1),
				slog.Int("texts", len(texts)))
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		vectors, err := e.doEmbed(timeoutCtx, texts)
		cancel()

		if err == nil {
			return vectors, nil
		}
		lastErr = err

		// Malformed batches won't improve on retry
		if code := vecerr.CodeOf(err); code == vecerr.ErrCodeBatchMismatch {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, vecerr.Wrap(vecerr.ErrCodeEmbeddingFailed,
		fmt.Errorf("failed after %d attempts: %w", e.config.MaxRetries, lastErr))
}

// doEmbed performs a single /v1/embeddings request and validates the
// batch shape: data length must equal input length and every vector
// must have the fixed dimension.
func (e *OpenAIEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Input: texts, Model: e.config.Model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := e.config.Endpoint + "/v1/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, vecerr.Wrap(vecerr.ErrCodeEmbeddingFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, vecerr.Newf(vecerr.ErrCodeEmbeddingFailed,
			"embedding service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, vecerr.Wrap(vecerr.ErrCodeEmbeddingFailed, fmt.Errorf("failed to decode response: %w", err))
	}

	if len(result.Data) != len(texts) {
		return nil, vecerr.Newf(vecerr.ErrCodeBatchMismatch,
			"provider returned %d embeddings for %d inputs", len(result.Data), len(texts))
	}

	// Re-order by the echoed index field; the contract allows any
	// response order as long as indexes are present.
	vectors := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, vecerr.Newf(vecerr.ErrCodeBatchMismatch,
				"provider returned out-of-range index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}

	for i, v := range vectors {
		if v == nil {
			return nil, vecerr.Newf(vecerr.ErrCodeBatchMismatch,
				"provider returned no embedding for input %d", i)
		}
		e.dims.CompareAndSwap(0, int64(len(v)))
		if dims := int(e.dims.Load()); len(v) != dims {
			return nil, vecerr.Newf(vecerr.ErrCodeBatchMismatch,
				"embedding %d has %d dimensions, want %d", i, len(v), dims)
		}
	}

	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return int(e.dims.Load())
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	if e.config.Model != "" {
		return e.config.Model
	}
	return "openai-compatible"
}

// Available probes the service with a one-text request.
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := e.doEmbed(probeCtx, []string{"availability probe"})
	return err == nil
}

// Close releases idle connections.
func (e *OpenAIEmbedder) Close() error {
	e.transport.CloseIdleConnections()
	return nil
}

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	vecerr "github.com/vecdex/vecdex/internal/errors"
)

// OpenSearchConfig configures the remote index store client.
type OpenSearchConfig struct {
	// Endpoint is the store base URL, e.g. "http://localhost:9200".
	Endpoint string

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// OpenSearchIndex talks to an OpenSearch-compatible store over its
// REST API: index creation with k-NN settings, per-document writes,
// and knn search.
type OpenSearchIndex struct {
	client    *http.Client
	transport *http.Transport
	endpoint  string
	timeout   time.Duration

	// name is captured by EnsureSchema and used for writes/searches.
	name string
}

// Compile-time interface check.
var _ VectorIndex = (*OpenSearchIndex)(nil)

// Wire types for the index store REST contract.
type osIndexSettings struct {
	Settings osSettings `json:"settings"`
	Mappings osMappings `json:"mappings"`
}

type osSettings struct {
	Index osIndexOptions `json:"index"`
}

type osIndexOptions struct {
	KNN            bool `json:"knn"`
	NumberOfShards int  `json:"number_of_shards"`
}

type osMappings struct {
	Properties osProperties `json:"properties"`
}

type osProperties struct {
	ChunkText  osField       `json:"chunk_text"`
	Embedding  osVectorField `json:"embedding"`
	SourceFile osField       `json:"source_file"`
}

type osField struct {
	Type string `json:"type"`
}

type osVectorField struct {
	Type      string   `json:"type"`
	Dimension int      `json:"dimension"`
	Method    osMethod `json:"method"`
}

type osMethod struct {
	Name       string         `json:"name"`
	SpaceType  string         `json:"space_type"`
	Engine     string         `json:"engine"`
	Parameters map[string]int `json:"parameters,omitempty"`
}

type osDocument struct {
	ChunkText  string    `json:"chunk_text"`
	Embedding  []float32 `json:"embedding"`
	SourceFile string    `json:"source_file"`
}

type osSearchRequest struct {
	Size  int           `json:"size"`
	Query osSearchQuery `json:"query"`
}

type osSearchQuery struct {
	KNN map[string]osKNNQuery `json:"knn"`
}

type osKNNQuery struct {
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
}

type osSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string     `json:"_id"`
			Score  float32    `json:"_score"`
			Source osDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type osCountResponse struct {
	Count int `json:"count"`
}

// NewOpenSearchIndex creates a remote index store client.
func NewOpenSearchIndex(cfg OpenSearchConfig) *OpenSearchIndex {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     10 * time.Second,
	}

	return &OpenSearchIndex{
		client:    &http.Client{Transport: transport},
		transport: transport,
		endpoint:  cfg.Endpoint,
		timeout:   cfg.Timeout,
	}
}

// spaceType maps the similarity metric to the store's space_type name.
func spaceType(s Similarity) string {
	switch s {
	case SimilarityL2:
		return "l2"
	case SimilarityDot:
		return "innerproduct"
	default:
		return "cosinesimil"
	}
}

// EnsureSchema creates the index if absent. An existing index of the
// same name returns immediately without comparing its settings to the
// requested schema.
func (o *OpenSearchIndex) EnsureSchema(ctx context.Context, schema Schema) error {
	o.name = schema.Name

	status, _, err := o.do(ctx, http.MethodHead, "/"+url.PathEscape(schema.Name), nil)
	if err != nil {
		return vecerr.Wrap(vecerr.ErrCodeSchemaCreate, err)
	}
	if status == http.StatusOK {
		slog.Debug("index already exists", slog.String("index", schema.Name))
		return nil
	}
	if status != http.StatusNotFound {
		return vecerr.Newf(vecerr.ErrCodeSchemaCreate,
			"index existence check returned status %d", status)
	}

	shards := schema.Shards
	if shards <= 0 {
		shards = 1
	}

	params := map[string]int{}
	if schema.Method.M > 0 {
		params["m"] = schema.Method.M
	}
	if schema.Method.EfConstruction > 0 {
		params["ef_construction"] = schema.Method.EfConstruction
	}

	body := osIndexSettings{
		Settings: osSettings{
			Index: osIndexOptions{KNN: true, NumberOfShards: shards},
		},
		Mappings: osMappings{
			Properties: osProperties{
				ChunkText: osField{Type: "text"},
				Embedding: osVectorField{
					Type:      "knn_vector",
					Dimension: schema.Dimensions,
					Method: osMethod{
						Name:       schema.Method.Name,
						SpaceType:  spaceType(schema.Similarity),
						Engine:     schema.Method.Engine,
						Parameters: params,
					},
				},
				SourceFile: osField{Type: "keyword"},
			},
		},
	}

	status, respBody, err := o.do(ctx, http.MethodPut, "/"+url.PathEscape(schema.Name), body)
	if err != nil {
		return vecerr.Wrap(vecerr.ErrCodeSchemaCreate, err)
	}
	if status != http.StatusOK {
		return vecerr.Newf(vecerr.ErrCodeSchemaCreate,
			"index creation returned status %d: %s", status, respBody)
	}

	slog.Info("created index",
		slog.String("index", schema.Name),
		slog.Int("dimensions", schema.Dimensions),
		slog.String("method", schema.Method.Name))
	return nil
}

// Index writes one document keyed by its id.
func (o *OpenSearchIndex) Index(ctx context.Context, doc IndexedDocument) error {
	path := fmt.Sprintf("/%s/_doc/%s", url.PathEscape(o.name), url.PathEscape(doc.ID))
	body := osDocument{
		ChunkText:  doc.ChunkText,
		Embedding:  doc.Embedding,
		SourceFile: doc.SourceFile,
	}

	status, respBody, err := o.do(ctx, http.MethodPut, path, body)
	if err != nil {
		return vecerr.Wrap(vecerr.ErrCodeIndexWrite, err).
			WithDetail("source_file", doc.SourceFile)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return vecerr.Newf(vecerr.ErrCodeIndexWrite,
			"document write returned status %d: %s", status, respBody).
			WithDetail("source_file", doc.SourceFile)
	}
	return nil
}

// IndexBatch writes each document in turn. The contract makes no
// ordering promise across the batch, so a future change to _bulk or
// parallel writes stays compatible.
func (o *OpenSearchIndex) IndexBatch(ctx context.Context, docs []IndexedDocument) error {
	for _, doc := range docs {
		if err := o.Index(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// Search performs a knn query and returns the hits with payloads.
func (o *OpenSearchIndex) Search(ctx context.Context, vector []float32, k int) ([]SearchResult, error) {
	path := fmt.Sprintf("/%s/_search", url.PathEscape(o.name))
	body := osSearchRequest{
		Size: k,
		Query: osSearchQuery{
			KNN: map[string]osKNNQuery{
				"embedding": {Vector: vector, K: k},
			},
		},
	}

	status, respBody, err := o.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, vecerr.Wrap(vecerr.ErrCodeStoreUnreachable, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d: %s", status, respBody)
	}

	var parsed osSearchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]SearchResult, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		results = append(results, SearchResult{
			ID:         hit.ID,
			ChunkText:  hit.Source.ChunkText,
			SourceFile: hit.Source.SourceFile,
			Score:      hit.Score,
		})
	}
	return results, nil
}

// Count returns the document count.
func (o *OpenSearchIndex) Count(ctx context.Context) (int, error) {
	path := fmt.Sprintf("/%s/_count", url.PathEscape(o.name))
	status, respBody, err := o.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, vecerr.Wrap(vecerr.ErrCodeStoreUnreachable, err)
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("count returned status %d: %s", status, respBody)
	}

	var parsed osCountResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return 0, fmt.Errorf("failed to decode count response: %w", err)
	}
	return parsed.Count, nil
}

// Close releases idle connections.
func (o *OpenSearchIndex) Close() error {
	o.transport.CloseIdleConnections()
	return nil
}

// do performs one JSON request and returns status plus body.
func (o *OpenSearchIndex) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	reqCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, o.endpoint+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

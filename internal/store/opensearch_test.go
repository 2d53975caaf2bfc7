package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vecerr "github.com/vecdex/vecdex/internal/errors"
)

// fakeStore records requests and plays back canned responses.
type fakeStore struct {
	t        *testing.T
	exists   bool
	requests []recordedRequest
}

type recordedRequest struct {
	method string
	path   string
	body   map[string]any
}

func (f *fakeStore) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{method: r.Method, path: r.URL.Path}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			require.NoError(f.t, json.Unmarshal(data, &rec.body))
		}
		f.requests = append(f.requests, rec)

		switch {
		case r.Method == http.MethodHead:
			if f.exists {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
		case r.Method == http.MethodPut && r.URL.Path == "/arxiv-papers":
			_, _ = w.Write([]byte(`{"acknowledged": true}`))
		case r.Method == http.MethodPut:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"result": "created"}`))
		case r.URL.Path == "/arxiv-papers/_search":
			_, _ = w.Write([]byte(`{"hits": {"hits": [
				{"_id": "doc-1", "_score": 0.91,
				 "_source": {"chunk_text": "neural nets", "source_file": "paper.pdf"}}
			]}}`))
		case r.URL.Path == "/arxiv-papers/_count":
			_, _ = w.Write([]byte(`{"count": 42}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}
}

func newTestClient(t *testing.T, exists bool) (*OpenSearchIndex, *fakeStore) {
	fake := &fakeStore{t: t, exists: exists}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return NewOpenSearchIndex(OpenSearchConfig{Endpoint: srv.URL}), fake
}

func osSchema() Schema {
	return Schema{
		Name:       "arxiv-papers",
		Dimensions: 768,
		Similarity: SimilarityCosine,
		Shards:     1,
		Method:     Method{Name: "hnsw", Engine: "nmslib", M: 16, EfConstruction: 128},
	}
}

func TestOpenSearchEnsureSchemaCreates(t *testing.T) {
	client, fake := newTestClient(t, false)
	defer func() { _ = client.Close() }()

	require.NoError(t, client.EnsureSchema(context.Background(), osSchema()))

	require.Len(t, fake.requests, 2)
	assert.Equal(t, http.MethodHead, fake.requests[0].method)
	assert.Equal(t, "/arxiv-papers", fake.requests[0].path)
	assert.Equal(t, http.MethodPut, fake.requests[1].method)

	body := fake.requests[1].body
	settings := body["settings"].(map[string]any)["index"].(map[string]any)
	assert.Equal(t, true, settings["knn"])
	assert.Equal(t, float64(1), settings["number_of_shards"])

	props := body["mappings"].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, "text", props["chunk_text"].(map[string]any)["type"])
	assert.Equal(t, "keyword", props["source_file"].(map[string]any)["type"])

	embedding := props["embedding"].(map[string]any)
	assert.Equal(t, "knn_vector", embedding["type"])
	assert.Equal(t, float64(768), embedding["dimension"])

	method := embedding["method"].(map[string]any)
	assert.Equal(t, "hnsw", method["name"])
	assert.Equal(t, "cosinesimil", method["space_type"])
	assert.Equal(t, "nmslib", method["engine"])
}

func TestOpenSearchEnsureSchemaSkipsExisting(t *testing.T) {
	client, fake := newTestClient(t, true)
	defer func() { _ = client.Close() }()

	require.NoError(t, client.EnsureSchema(context.Background(), osSchema()))
	require.Len(t, fake.requests, 1)
	assert.Equal(t, http.MethodHead, fake.requests[0].method)
}

func TestOpenSearchSpaceTypes(t *testing.T) {
	assert.Equal(t, "cosinesimil", spaceType(SimilarityCosine))
	assert.Equal(t, "l2", spaceType(SimilarityL2))
	assert.Equal(t, "innerproduct", spaceType(SimilarityDot))
}

func TestOpenSearchIndexDocument(t *testing.T) {
	ctx := context.Background()
	client, fake := newTestClient(t, true)
	defer func() { _ = client.Close() }()
	require.NoError(t, client.EnsureSchema(ctx, osSchema()))

	err := client.Index(ctx, IndexedDocument{
		ID:         "doc-1",
		ChunkText:  "neural nets",
		Embedding:  []float32{0.1, 0.2},
		SourceFile: "paper.pdf",
	})
	require.NoError(t, err)

	last := fake.requests[len(fake.requests)-1]
	assert.Equal(t, http.MethodPut, last.method)
	assert.Equal(t, "/arxiv-papers/_doc/doc-1", last.path)
	assert.Equal(t, "neural nets", last.body["chunk_text"])
	assert.Equal(t, "paper.pdf", last.body["source_file"])
	assert.Len(t, last.body["embedding"], 2)
}

func TestOpenSearchSearch(t *testing.T) {
	ctx := context.Background()
	client, fake := newTestClient(t, true)
	defer func() { _ = client.Close() }()
	require.NoError(t, client.EnsureSchema(ctx, osSchema()))

	results, err := client.Search(ctx, []float32{0.5, 0.5}, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1", results[0].ID)
	assert.Equal(t, "neural nets", results[0].ChunkText)
	assert.Equal(t, "paper.pdf", results[0].SourceFile)
	assert.InDelta(t, 0.91, results[0].Score, 0.001)

	last := fake.requests[len(fake.requests)-1]
	assert.Equal(t, float64(3), last.body["size"])
	knn := last.body["query"].(map[string]any)["knn"].(map[string]any)["embedding"].(map[string]any)
	assert.Equal(t, float64(3), knn["k"])
	assert.Len(t, knn["vector"], 2)
}

func TestOpenSearchCount(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t, true)
	defer func() { _ = client.Close() }()
	require.NoError(t, client.EnsureSchema(ctx, osSchema()))

	n, err := client.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestOpenSearchUnreachable(t *testing.T) {
	client := NewOpenSearchIndex(OpenSearchConfig{Endpoint: "http://127.0.0.1:1"})
	defer func() { _ = client.Close() }()

	err := client.EnsureSchema(context.Background(), osSchema())
	require.Error(t, err)
	assert.Equal(t, vecerr.ErrCodeSchemaCreate, vecerr.CodeOf(err))
}

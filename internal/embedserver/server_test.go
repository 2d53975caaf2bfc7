package embedserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecdex/vecdex/internal/embed"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	embedder := embed.NewStaticEmbedder(8)
	t.Cleanup(func() { _ = embedder.Close() })

	s := New(Config{Addr: ":0"}, embedder)
	t.Cleanup(s.Close)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func postEmbeddings(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url+"/v1/embeddings", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func TestEmbeddingsEndpoint(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postEmbeddings(t, srv.URL, map[string]any{
		"input": []string{"first document text", "second document text"},
		"model": "BAAI/bge-base-en",
	})
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed embeddingsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))

	assert.Equal(t, "list", parsed.Object)
	assert.Equal(t, "BAAI/bge-base-en", parsed.Model)
	require.Len(t, parsed.Data, 2)
	for i, item := range parsed.Data {
		assert.Equal(t, "embedding", item.Object)
		assert.Equal(t, i, item.Index)
		assert.Len(t, item.Embedding, 8)
	}
	assert.Zero(t, parsed.Usage.PromptTokens)
	assert.Zero(t, parsed.Usage.TotalTokens)
}

func TestEmbeddingsRejectsMissingInput(t *testing.T) {
	_, srv := newTestServer(t)

	resp := postEmbeddings(t, srv.URL, map[string]any{"model": "x"})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEmbeddingsDeterministic(t *testing.T) {
	_, srv := newTestServer(t)

	get := func() []float32 {
		resp := postEmbeddings(t, srv.URL, map[string]any{"input": []string{"same text"}})
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var parsed embeddingsResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
		require.Len(t, parsed.Data, 1)
		return parsed.Data[0].Embedding
	}

	assert.Equal(t, get(), get())
}

func TestEmbeddingsConcurrentClients(t *testing.T) {
	_, srv := newTestServer(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := postEmbeddings(t, srv.URL, map[string]any{"input": []string{"text"}})
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		}()
	}
	wg.Wait()
}

func TestHealthEndpoint(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(8), body["dims"])
}

func TestRunShutdown(t *testing.T) {
	embedder := embed.NewStaticEmbedder(8)
	defer func() { _ = embedder.Close() }()

	s := New(Config{Addr: "127.0.0.1:0"}, embedder)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	require.NoError(t, <-done)
}

// Package embedserver serves an OpenAI-compatible /v1/embeddings
// endpoint backed by a local embedder, so the pipeline can point at
// localhost instead of a hosted model.
package embedserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vecdex/vecdex/internal/embed"
)

// Config configures the server.
type Config struct {
	// Addr is the listen address, e.g. ":8000".
	Addr string
}

// Server wraps an Embedder behind the OpenAI embeddings wire format.
// Requests are embedded one at a time: a single worker drains a queue
// so a burst of clients cannot oversubscribe the model.
type Server struct {
	embedder   embed.Embedder
	srv        *http.Server
	jobs       chan job
	stopWorker context.CancelFunc
}

type job struct {
	ctx    context.Context
	texts  []string
	result chan jobResult
}

type jobResult struct {
	vectors [][]float32
	err     error
}

// Wire types mirror the OpenAI embeddings schema.
type embeddingsRequest struct {
	Input []string `json:"input" binding:"required"`
	Model string   `json:"model"`
}

type embeddingsResponse struct {
	Object string          `json:"object"`
	Data   []embeddingItem `json:"data"`
	Model  string          `json:"model"`
	Usage  usage           `json:"usage"`
}

type embeddingItem struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// usage is reported as zeros: the local embedder has no token
// accounting.
type usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// New creates a Server around the embedder.
func New(cfg Config, embedder embed.Embedder) *Server {
	s := &Server{
		embedder: embedder,
		jobs:     make(chan job),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.POST("/v1/embeddings", s.handleEmbeddings)
	router.GET("/healthz", s.handleHealth)

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	s.stopWorker = cancel
	go s.worker(workerCtx)

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Close stops the worker. Run does this itself; callers using only
// Handler must Close when done.
func (s *Server) Close() {
	s.stopWorker()
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.stopWorker()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("embedding server listening", slog.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// worker embeds queued requests one at a time.
func (s *Server) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.jobs:
			vectors, err := s.embedder.EmbedBatch(j.ctx, j.texts)
			j.result <- jobResult{vectors: vectors, err: err}
		}
	}
}

func (s *Server) handleEmbeddings(c *gin.Context) {
	var req embeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"message": "input is required and must be an array of strings",
			"type":    "invalid_request_error",
		}})
		return
	}

	j := job{
		ctx:    c.Request.Context(),
		texts:  req.Input,
		result: make(chan jobResult, 1),
	}

	select {
	case s.jobs <- j:
	case <-c.Request.Context().Done():
		c.Status(http.StatusRequestTimeout)
		return
	}

	res := <-j.result
	if res.err != nil {
		slog.Error("embedding request failed", slog.Any("error", res.err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{
			"message": res.err.Error(),
			"type":    "server_error",
		}})
		return
	}

	data := make([]embeddingItem, len(res.vectors))
	for i, vec := range res.vectors {
		data[i] = embeddingItem{Object: "embedding", Embedding: vec, Index: i}
	}

	model := req.Model
	if model == "" {
		model = s.embedder.ModelName()
	}

	c.JSON(http.StatusOK, embeddingsResponse{
		Object: "list",
		Data:   data,
		Model:  model,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	if !s.embedder.Available(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"model":  s.embedder.ModelName(),
		"dims":   s.embedder.Dimensions(),
	})
}

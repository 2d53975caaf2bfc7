// Package pipeline orchestrates the corpus ingestion run: list the
// corpus, then per document extract, chunk, embed, and index, with
// failures isolated to the document they occur in.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/vecdex/vecdex/internal/chunk"
	"github.com/vecdex/vecdex/internal/embed"
	vecerr "github.com/vecdex/vecdex/internal/errors"
	"github.com/vecdex/vecdex/internal/extract"
	"github.com/vecdex/vecdex/internal/store"
)

// DocumentStatus is the terminal state of one document in a run.
type DocumentStatus string

const (
	StatusSucceeded DocumentStatus = "succeeded"
	StatusPartial   DocumentStatus = "partial"
	StatusFailed    DocumentStatus = "failed"
)

// Stage names the pipeline stage a failure occurred in.
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageNoContent  Stage = "no-content"
	StageEmbedding  Stage = "embedding"
	StageIndexing   Stage = "indexing"
)

// DocumentResult records what happened to one corpus document.
type DocumentResult struct {
	SourceFile  string
	Status      DocumentStatus
	FailedStage Stage
	Chunks      int
	Indexed     int
	Err         error
}

// Summary is the run report: every document accounted for exactly once.
type Summary struct {
	Total         int
	Succeeded     int
	Partial       int
	Failed        int
	FailedByStage map[Stage]int
	ChunksIndexed int
	Duration      time.Duration
	Results       []DocumentResult
}

// Config holds the run parameters.
type Config struct {
	// CorpusDir is the directory scanned for input documents.
	CorpusDir string

	// ChunkSize is the word-window size for chunking.
	ChunkSize int

	// Schema is created (if absent) before any document is processed.
	Schema store.Schema

	// Workers bounds concurrent document processing. Zero means one.
	Workers int

	// DeterministicIDs derives document ids from chunk position
	// instead of random UUIDs.
	DeterministicIDs bool

	// LockFile guards against concurrent runs over the same index.
	// Empty disables locking.
	LockFile string

	// Progress renders a terminal progress bar when stderr is a TTY.
	Progress bool
}

// Runner wires the pipeline stages together.
type Runner struct {
	cfg       Config
	extractor extract.Extractor
	embedder  embed.Embedder
	index     store.VectorIndex
	indexer   *store.Indexer
}

// NewRunner creates a Runner over the given collaborators.
func NewRunner(cfg Config, extractor extract.Extractor, embedder embed.Embedder, index store.VectorIndex) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Runner{
		cfg:       cfg,
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		indexer:   store.NewIndexer(index, cfg.DeterministicIDs),
	}
}

// Run processes the whole corpus and returns the run summary. A fatal
// error (schema creation, dimension conflict) aborts the run; any
// other failure is recorded against its document and the run
// continues.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	if r.cfg.LockFile != "" {
		if err := os.MkdirAll(filepath.Dir(r.cfg.LockFile), 0o755); err != nil {
			return nil, fmt.Errorf("failed to prepare lock directory: %w", err)
		}
		lock := flock.New(r.cfg.LockFile)
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		if !locked {
			return nil, fmt.Errorf("another run holds the lock at %s", r.cfg.LockFile)
		}
		defer func() { _ = lock.Unlock() }()
	}

	files, err := extract.ListCorpus(r.cfg.CorpusDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		slog.Warn("corpus directory has no supported documents",
			slog.String("dir", r.cfg.CorpusDir))
		return &Summary{Duration: time.Since(start)}, nil
	}

	if err := r.index.EnsureSchema(ctx, r.cfg.Schema); err != nil {
		return nil, err
	}

	if dims := r.embedder.Dimensions(); dims > 0 && r.cfg.Schema.Dimensions > 0 &&
		dims != r.cfg.Schema.Dimensions {
		return nil, vecerr.Newf(vecerr.ErrCodeDimensionMismatch,
			"embedder produces %d dimensions, index expects %d",
			dims, r.cfg.Schema.Dimensions)
	}

	slog.Info("starting ingestion",
		slog.Int("documents", len(files)),
		slog.Int("workers", r.cfg.Workers),
		slog.String("index", r.cfg.Schema.Name))

	bar := r.newProgressBar(len(files))

	results := make([]DocumentResult, len(files))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for i, name := range files {
		g.Go(func() error {
			res := r.processDocument(gctx, name)

			mu.Lock()
			results[i] = res
			mu.Unlock()

			if bar != nil {
				_ = bar.Add(1)
			}

			if res.Err != nil && vecerr.Fatal(res.Err) {
				return res.Err
			}
			return nil
		})
	}

	fatal := g.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	summary := &Summary{
		Total:         len(files),
		FailedByStage: make(map[Stage]int),
		Duration:      time.Since(start),
		Results:       results,
	}
	for _, res := range results {
		switch res.Status {
		case StatusSucceeded:
			summary.Succeeded++
		case StatusPartial:
			summary.Partial++
		case StatusFailed:
			summary.Failed++
			summary.FailedByStage[res.FailedStage]++
		}
		summary.ChunksIndexed += res.Indexed
	}

	slog.Info("ingestion finished",
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("partial", summary.Partial),
		slog.Int("failed", summary.Failed),
		slog.Int("chunks_indexed", summary.ChunksIndexed),
		slog.Duration("duration", summary.Duration))

	if fatal != nil {
		return summary, fatal
	}
	return summary, nil
}

// processDocument runs one document through every stage. The returned
// result always has a terminal status; errors never escape except
// through the Err field.
func (r *Runner) processDocument(ctx context.Context, name string) DocumentResult {
	res := DocumentResult{SourceFile: name}
	path := filepath.Join(r.cfg.CorpusDir, name)
	log := slog.With(slog.String("source_file", name))

	text, err := r.extractor.Extract(path)
	if err != nil {
		log.Error("extraction failed", slog.Any("error", err))
		res.Status = StatusFailed
		res.FailedStage = StageExtraction
		res.Err = err
		return res
	}

	if strings.TrimSpace(text) == "" {
		log.Warn("document has no extractable text")
		res.Status = StatusFailed
		res.FailedStage = StageExtraction
		res.Err = vecerr.New(vecerr.ErrCodeEmptyContent, "no extractable text").
			WithDetail("source_file", name)
		return res
	}

	chunks := chunk.Split(text, name, r.cfg.ChunkSize)
	res.Chunks = len(chunks)
	if len(chunks) == 0 {
		log.Warn("document too short to chunk")
		res.Status = StatusFailed
		res.FailedStage = StageNoContent
		res.Err = vecerr.New(vecerr.ErrCodeEmptyContent, "no chunks produced").
			WithDetail("source_file", name)
		return res
	}

	// All-or-nothing per document: no chunk is indexed unless every
	// chunk embedded.
	embeddings, err := r.embedder.EmbedBatch(ctx, chunk.Texts(chunks))
	if err != nil {
		if vecerr.CodeOf(err) == "" {
			err = vecerr.Wrap(vecerr.ErrCodeEmbeddingFailed, err).
				WithDetail("source_file", name)
		}
		log.Error("embedding failed", slog.Any("error", err))
		res.Status = StatusFailed
		res.FailedStage = StageEmbedding
		res.Err = err
		return res
	}

	if len(embeddings) != len(chunks) {
		res.Status = StatusFailed
		res.FailedStage = StageEmbedding
		res.Err = vecerr.Newf(vecerr.ErrCodeBatchMismatch,
			"%d chunks but %d embeddings", len(chunks), len(embeddings)).
			WithDetail("source_file", name)
		log.Error("embedding batch malformed", slog.Any("error", res.Err))
		return res
	}

	// Writes are per chunk and non-transactional: failed chunks are
	// counted and the rest of the document still goes in; already
	// written chunks stay.
	for i := range chunks {
		if err := r.indexer.Index(ctx, chunks[i], embeddings[i]); err != nil {
			log.Error("index write failed",
				slog.Int("chunk", i),
				slog.Any("error", err))
			res.Err = err
			if vecerr.Fatal(err) {
				break
			}
			continue
		}
		res.Indexed++
	}

	switch {
	case res.Indexed == len(chunks):
		log.Debug("document indexed", slog.Int("chunks", res.Indexed))
		res.Status = StatusSucceeded
	case res.Indexed > 0:
		log.Warn("document partially indexed",
			slog.Int("indexed", res.Indexed),
			slog.Int("chunks", len(chunks)))
		res.Status = StatusPartial
	default:
		res.Status = StatusFailed
		res.FailedStage = StageIndexing
	}
	return res
}

func (r *Runner) newProgressBar(total int) *progressbar.ProgressBar {
	if !r.cfg.Progress || !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("indexing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

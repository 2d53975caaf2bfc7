package store

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
	_ "modernc.org/sqlite"

	vecerr "github.com/vecdex/vecdex/internal/errors"
)

const (
	graphFileName = "vectors.hnsw"
	metaFileName  = "vectors.meta"
	dbFileName    = "payload.db"
)

// LocalConfig configures the embedded index store.
type LocalConfig struct {
	// DataDir holds the graph, metadata, and payload database files.
	DataDir string
}

// LocalIndex is an embedded vector index: an in-memory HNSW graph for
// similarity search plus a SQLite table for chunk payloads. The graph
// is persisted to DataDir on Close and reloaded by EnsureSchema.
type LocalIndex struct {
	mu      sync.RWMutex
	dataDir string

	graph *hnsw.Graph[uint64]
	db    *sql.DB

	schema Schema
	ready  bool

	// idMap assigns each document id a stable graph key.
	idMap   map[string]uint64
	nextKey uint64
	dirty   bool
}

var _ VectorIndex = (*LocalIndex)(nil)

// localMeta is the gob-persisted sidecar for the graph file.
type localMeta struct {
	Dimensions int
	Similarity Similarity
	IDMap      map[string]uint64
	NextKey    uint64
}

// NewLocalIndex creates an embedded index rooted at cfg.DataDir. The
// directory is created on EnsureSchema, not here.
func NewLocalIndex(cfg LocalConfig) *LocalIndex {
	return &LocalIndex{
		dataDir: cfg.DataDir,
		idMap:   make(map[string]uint64),
	}
}

// EnsureSchema prepares the data directory, opens the payload
// database, and loads any previously persisted graph. Calling it again
// with the same schema is a no-op.
func (l *LocalIndex) EnsureSchema(ctx context.Context, schema Schema) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ready {
		return nil
	}

	if err := os.MkdirAll(l.dataDir, 0o755); err != nil {
		return vecerr.Wrap(vecerr.ErrCodeSchemaCreate, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(l.dataDir, dbFileName))
	if err != nil {
		return vecerr.Wrap(vecerr.ErrCodeSchemaCreate, err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			id          TEXT PRIMARY KEY,
			chunk_text  TEXT NOT NULL,
			source_file TEXT NOT NULL
		)`); err != nil {
		_ = db.Close()
		return vecerr.Wrap(vecerr.ErrCodeSchemaCreate, err)
	}

	l.db = db
	l.schema = schema
	l.graph = newGraph(schema)

	if err := l.load(); err != nil {
		_ = db.Close()
		return vecerr.Wrap(vecerr.ErrCodeSchemaCreate, err)
	}

	l.ready = true
	slog.Info("local index ready",
		slog.String("data_dir", l.dataDir),
		slog.Int("documents", len(l.idMap)))
	return nil
}

func newGraph(schema Schema) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	switch schema.Similarity {
	case SimilarityL2:
		g.Distance = hnsw.EuclideanDistance
	default:
		// Dot product over unit vectors matches cosine ordering.
		g.Distance = hnsw.CosineDistance
	}
	if schema.Method.M > 0 {
		g.M = schema.Method.M
	}
	if schema.Method.EfSearch > 0 {
		g.EfSearch = schema.Method.EfSearch
	}
	g.Ml = 0.25
	return g
}

// Index inserts one document. A repeated id replaces the graph node
// and the payload row rather than adding a second copy.
func (l *LocalIndex) Index(ctx context.Context, doc IndexedDocument) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.ready {
		return vecerr.New(vecerr.ErrCodeIndexWrite, "index not initialized")
	}
	if l.schema.Dimensions > 0 && len(doc.Embedding) != l.schema.Dimensions {
		return vecerr.Newf(vecerr.ErrCodeDimensionMismatch,
			"embedding has %d dimensions, index expects %d",
			len(doc.Embedding), l.schema.Dimensions).
			WithDetail("source_file", doc.SourceFile)
	}

	// Lazy deletion on re-insert: never re-add an existing graph key,
	// orphan it and insert under a fresh one. Search skips keys with
	// no id mapping.
	if _, exists := l.idMap[doc.ID]; exists {
		delete(l.idMap, doc.ID)
	}
	key := l.nextKey
	l.nextKey++
	l.idMap[doc.ID] = key

	l.graph.Add(hnsw.MakeNode(key, doc.Embedding))

	if _, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO documents (id, chunk_text, source_file)
		VALUES (?, ?, ?)`,
		doc.ID, doc.ChunkText, doc.SourceFile); err != nil {
		return vecerr.Wrap(vecerr.ErrCodeIndexWrite, err).
			WithDetail("source_file", doc.SourceFile)
	}

	l.dirty = true
	return nil
}

// IndexBatch inserts each document in turn.
func (l *LocalIndex) IndexBatch(ctx context.Context, docs []IndexedDocument) error {
	for _, doc := range docs {
		if err := l.Index(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// Search returns the k nearest documents with their payloads.
func (l *LocalIndex) Search(ctx context.Context, vector []float32, k int) ([]SearchResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.ready {
		return nil, fmt.Errorf("index not initialized")
	}
	if l.graph.Len() == 0 {
		return nil, nil
	}

	keyMap := make(map[uint64]string, len(l.idMap))
	for id, key := range l.idMap {
		keyMap[key] = id
	}

	nodes := l.graph.Search(vector, k)
	results := make([]SearchResult, 0, len(nodes))
	for _, node := range nodes {
		id, ok := keyMap[node.Key]
		if !ok {
			continue
		}

		var text, source string
		err := l.db.QueryRowContext(ctx,
			`SELECT chunk_text, source_file FROM documents WHERE id = ?`, id).
			Scan(&text, &source)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load payload for %s: %w", id, err)
		}

		results = append(results, SearchResult{
			ID:         id,
			ChunkText:  text,
			SourceFile: source,
			Score:      l.distanceToScore(l.graph.Distance(vector, node.Value)),
		})
	}
	return results, nil
}

// distanceToScore converts a graph distance into a similarity score in
// (0, 1], higher meaning closer.
func (l *LocalIndex) distanceToScore(d float32) float32 {
	if l.schema.Similarity == SimilarityL2 {
		return 1.0 / (1.0 + d)
	}
	score := 1.0 - d/2.0
	if score < 0 {
		return 0
	}
	return score
}

// Count returns the payload row count.
func (l *LocalIndex) Count(ctx context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.ready {
		return 0, fmt.Errorf("index not initialized")
	}

	var n int
	if err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Flush persists the graph and id map to disk.
func (l *LocalIndex) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked()
}

// Close flushes and releases the payload database.
func (l *LocalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.ready {
		return nil
	}

	saveErr := l.saveLocked()
	closeErr := l.db.Close()
	l.ready = false

	if saveErr != nil {
		return saveErr
	}
	return closeErr
}

func (l *LocalIndex) saveLocked() error {
	if !l.dirty {
		return nil
	}

	graphPath := filepath.Join(l.dataDir, graphFileName)
	f, err := os.CreateTemp(l.dataDir, graphFileName+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create graph file: %w", err)
	}
	if err := l.graph.Export(f); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("failed to close graph file: %w", err)
	}
	if err := os.Rename(f.Name(), graphPath); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("failed to replace graph file: %w", err)
	}

	meta := localMeta{
		Dimensions: l.schema.Dimensions,
		Similarity: l.schema.Similarity,
		IDMap:      l.idMap,
		NextKey:    l.nextKey,
	}
	mf, err := os.Create(filepath.Join(l.dataDir, metaFileName))
	if err != nil {
		return fmt.Errorf("failed to create metadata file: %w", err)
	}
	defer func() { _ = mf.Close() }()
	if err := gob.NewEncoder(mf).Encode(meta); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	l.dirty = false
	slog.Debug("persisted local index", slog.Int("documents", len(l.idMap)))
	return nil
}

func (l *LocalIndex) load() error {
	graphPath := filepath.Join(l.dataDir, graphFileName)
	metaPath := filepath.Join(l.dataDir, metaFileName)

	gf, err := os.Open(graphPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open graph file: %w", err)
	}
	defer func() { _ = gf.Close() }()

	if err := l.graph.Import(bufio.NewReader(gf)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	mf, err := os.Open(metaPath)
	if err != nil {
		return fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer func() { _ = mf.Close() }()

	var meta localMeta
	if err := gob.NewDecoder(mf).Decode(&meta); err != nil {
		return fmt.Errorf("failed to decode metadata: %w", err)
	}

	if l.schema.Dimensions > 0 && meta.Dimensions > 0 &&
		meta.Dimensions != l.schema.Dimensions {
		return vecerr.Newf(vecerr.ErrCodeDimensionMismatch,
			"persisted index has %d dimensions, configuration expects %d",
			meta.Dimensions, l.schema.Dimensions)
	}

	l.idMap = meta.IDMap
	if l.idMap == nil {
		l.idMap = make(map[string]uint64)
	}
	l.nextKey = meta.NextKey
	return nil
}

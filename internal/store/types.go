// Package store provides the vector index: schema management,
// append-only document writes, and ANN similarity search.
//
// Two backends implement the same interface: a remote OpenSearch-style
// REST store and a local in-process HNSW graph with SQLite payloads.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Similarity is the vector similarity metric declared at index creation.
type Similarity string

const (
	SimilarityCosine Similarity = "cosine"
	SimilarityL2     Similarity = "l2"
	SimilarityDot    Similarity = "dot"
)

// Method describes the ANN structure and its tuning parameters.
type Method struct {
	// Name of the ANN method (hnsw).
	Name string

	// Engine is the remote store's ANN engine (nmslib, faiss, lucene).
	Engine string

	// M is the HNSW neighbor-list size.
	M int

	// EfConstruction is the build-time beam width (remote engines).
	EfConstruction int

	// EfSearch is the query-time beam width (local backend).
	EfSearch int
}

// Schema declares a named vector index. Created once; immutable for
// the life of the index.
type Schema struct {
	// Name is the index name.
	Name string

	// Dimensions is the vector dimension D. Every vector ever written
	// to the index must have exactly this many components.
	Dimensions int

	// Similarity is the distance metric.
	Similarity Similarity

	// Shards is the shard count declared at creation (remote backend).
	Shards int

	// Method is the ANN method configuration.
	Method Method
}

// IndexedDocument is one chunk plus its embedding, as written to the
// index.
type IndexedDocument struct {
	ID         string
	ChunkText  string
	Embedding  []float32
	SourceFile string
}

// SearchResult is one ANN hit.
type SearchResult struct {
	ID         string
	ChunkText  string
	SourceFile string
	// Score is a similarity in [0,1]; higher is more similar.
	Score float32
}

// VectorIndex is the index store contract.
//
// EnsureSchema must happen-before any write; writing to an index that
// was never created is undefined behavior for the underlying store.
type VectorIndex interface {
	// EnsureSchema creates the index if absent. Idempotent: an existing
	// index of the same name is a no-op, and the existing schema is NOT
	// validated against the requested one (documented limitation).
	EnsureSchema(ctx context.Context, schema Schema) error

	// Index durably writes one document. Failures are not retried
	// internally; the caller decides whether to retry or skip.
	Index(ctx context.Context, doc IndexedDocument) error

	// IndexBatch writes documents with no cross-batch ordering
	// guarantee; the store may reorder or parallelize writes.
	IndexBatch(ctx context.Context, docs []IndexedDocument) error

	// Search returns up to k nearest documents to the query vector.
	Search(ctx context.Context, vector []float32, k int) ([]SearchResult, error)

	// Count returns the number of documents in the index.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

// NewDocumentID returns a fresh collision-free document id. Indexing
// is append-only: re-running a corpus with random ids duplicates
// entries, which is the documented baseline behavior.
func NewDocumentID() string {
	return uuid.NewString()
}

// DeterministicID derives a stable id from the chunk's position so a
// re-run overwrites instead of duplicating. Opt-in via configuration.
func DeterministicID(sourceFile string, sequenceIndex int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", sourceFile, sequenceIndex)))
	return hex.EncodeToString(sum[:16])
}

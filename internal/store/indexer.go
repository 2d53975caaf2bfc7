package store

import (
	"context"

	"github.com/vecdex/vecdex/internal/chunk"
	vecerr "github.com/vecdex/vecdex/internal/errors"
)

// Indexer assembles IndexedDocuments from chunk/embedding pairs and
// writes them through a VectorIndex. Each successful call leaves
// exactly one new record in the store (subject to the store's own
// consistency window).
type Indexer struct {
	index            VectorIndex
	deterministicIDs bool
}

// NewIndexer creates an Indexer. With deterministicIDs the document id
// is derived from (source_file, sequence_index); otherwise every write
// gets a fresh random UUID.
func NewIndexer(index VectorIndex, deterministicIDs bool) *Indexer {
	return &Indexer{
		index:            index,
		deterministicIDs: deterministicIDs,
	}
}

// documentFor builds the index record for a chunk/embedding pair.
func (ix *Indexer) documentFor(c chunk.Chunk, embedding []float32) IndexedDocument {
	id := ""
	if ix.deterministicIDs {
		id = DeterministicID(c.SourceFile, c.SequenceIndex)
	} else {
		id = NewDocumentID()
	}
	return IndexedDocument{
		ID:         id,
		ChunkText:  c.Text,
		Embedding:  embedding,
		SourceFile: c.SourceFile,
	}
}

// Index writes one chunk/embedding pair. Failures surface as index
// write errors; there is no internal retry.
func (ix *Indexer) Index(ctx context.Context, c chunk.Chunk, embedding []float32) error {
	if err := ix.index.Index(ctx, ix.documentFor(c, embedding)); err != nil {
		if vecerr.CodeOf(err) != "" {
			return err
		}
		return vecerr.Wrap(vecerr.ErrCodeIndexWrite, err).
			WithDetail("source_file", c.SourceFile)
	}
	return nil
}

// IndexBatch writes all pairs with no ordering guarantee across the
// batch. Lengths must match; a mismatch means the caller paired chunks
// with a malformed embedding batch.
func (ix *Indexer) IndexBatch(ctx context.Context, chunks []chunk.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return vecerr.Newf(vecerr.ErrCodeBatchMismatch,
			"%d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	docs := make([]IndexedDocument, len(chunks))
	for i, c := range chunks {
		docs[i] = ix.documentFor(c, embeddings[i])
	}

	if err := ix.index.IndexBatch(ctx, docs); err != nil {
		if vecerr.CodeOf(err) != "" {
			return err
		}
		return vecerr.Wrap(vecerr.ErrCodeIndexWrite, err)
	}
	return nil
}

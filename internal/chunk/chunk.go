// Package chunk splits document text into bounded word-count segments.
//
// The chunker is the unit boundary of the whole pipeline: one chunk is
// one embedding is one index record. It is a pure function of its
// inputs and performs no I/O.
package chunk

import "strings"

// MinChunkWords is the minimum information floor: a window is emitted
// only when its word count is strictly greater than this. Trailing
// remainders at or below the floor are silently dropped, so callers
// relying on full-document coverage must account for the truncation.
const MinChunkWords = 10

// DefaultChunkSize is the default word-window size.
const DefaultChunkSize = 300

// Chunk is a bounded contiguous word span extracted from a document.
// Chunks are immutable once created.
type Chunk struct {
	// Text is the chunk content, words re-joined with single spaces.
	Text string

	// SourceFile identifies the originating document (filename or URI).
	SourceFile string

	// SequenceIndex is the zero-based position of this chunk within its
	// document.
	SequenceIndex int
}

// WordCount returns the number of whitespace-separated words in the chunk.
func (c Chunk) WordCount() int {
	return len(strings.Fields(c.Text))
}

// Split divides text into non-overlapping windows of exactly chunkSize
// words; the final window may be shorter. Windows with MinChunkWords
// words or fewer are dropped. Empty text yields an empty slice.
//
// No token-level truncation is applied here: bounding input to the
// model's maximum length is the embedding provider's job.
func Split(text, sourceFile string, chunkSize int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]Chunk, 0, (len(words)+chunkSize-1)/chunkSize)
	seq := 0
	for start := 0; start < len(words); start += chunkSize {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}

		if end-start <= MinChunkWords {
			continue
		}

		chunks = append(chunks, Chunk{
			Text:          strings.Join(words[start:end], " "),
			SourceFile:    sourceFile,
			SequenceIndex: seq,
		})
		seq++
	}

	return chunks
}

// Texts extracts the chunk texts in order, the shape the embedding
// provider's batch call wants.
func Texts(chunks []Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}

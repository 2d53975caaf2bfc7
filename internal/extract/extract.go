// Package extract turns corpus files into raw text.
//
// Extraction is an opaque collaborator from the pipeline's point of
// view: bytes in, text out. Failures are reported per document and
// never abort the corpus run.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	vecerr "github.com/vecdex/vecdex/internal/errors"
)

// Extractor extracts raw text from a document on disk.
type Extractor interface {
	// Extract returns the document's text. An unreadable or corrupt
	// source yields an extraction error; an empty result is legal and
	// handled downstream as empty content.
	Extract(path string) (string, error)
}

// FileExtractor extracts text from PDF files, with passthrough for
// plain-text formats so a corpus directory can mix both.
type FileExtractor struct{}

// Compile-time interface check.
var _ Extractor = (*FileExtractor)(nil)

// NewFileExtractor creates a FileExtractor.
func NewFileExtractor() *FileExtractor {
	return &FileExtractor{}
}

// Extract dispatches on the file extension.
func (e *FileExtractor) Extract(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", vecerr.Wrap(vecerr.ErrCodeExtractionFailed, err).
				WithDetail("source_file", filepath.Base(path))
		}
		return strings.TrimSpace(string(data)), nil
	default:
		return "", vecerr.Newf(vecerr.ErrCodeExtractionFailed, "unsupported file type: %s", filepath.Ext(path)).
			WithDetail("source_file", filepath.Base(path))
	}
}

// extractPDF reads the whole PDF's plain text.
func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", vecerr.Wrap(vecerr.ErrCodeExtractionFailed, fmt.Errorf("open pdf: %w", err)).
			WithDetail("source_file", filepath.Base(path))
	}
	defer func() { _ = f.Close() }()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", vecerr.Wrap(vecerr.ErrCodeExtractionFailed, fmt.Errorf("extract text: %w", err)).
			WithDetail("source_file", filepath.Base(path))
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", vecerr.Wrap(vecerr.ErrCodeExtractionFailed, fmt.Errorf("read text: %w", err)).
			WithDetail("source_file", filepath.Base(path))
	}

	return strings.TrimSpace(buf.String()), nil
}

// ListCorpus returns the indexable files in dir, sorted by name.
// Filenames (not full paths) become the source_file identifiers.
func ListCorpus(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pdf", ".txt", ".md":
			files = append(files, entry.Name())
		}
	}
	return files, nil
}

package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesClassificationFromCode(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityFatal, false},
		{ErrCodeExtractionFailed, CategoryDocument, SeverityError, false},
		{ErrCodeEmptyContent, CategoryDocument, SeverityError, false},
		{ErrCodeEmbeddingFailed, CategoryNetwork, SeverityError, true},
		{ErrCodeBatchMismatch, CategoryValidation, SeverityError, false},
		{ErrCodeDimensionMismatch, CategoryValidation, SeverityFatal, false},
		{ErrCodeSchemaCreate, CategoryStore, SeverityFatal, false},
		{ErrCodeIndexWrite, CategoryStore, SeverityError, true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "boom")
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestPipelineError_ErrorFormat(t *testing.T) {
	err := New(ErrCodeIndexWrite, "write refused")
	assert.Equal(t, "[ERR_502_INDEX_WRITE] write refused", err.Error())
}

func TestPipelineError_UnwrapChain(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(ErrCodeEmbeddingFailed, cause)

	require.NotNil(t, err)
	assert.Equal(t, cause, Unwrap(err))
	assert.True(t, Is(err, cause))
}

func TestPipelineError_IsMatchesByCode(t *testing.T) {
	a := New(ErrCodeSchemaCreate, "one")
	b := New(ErrCodeSchemaCreate, "another")
	c := New(ErrCodeIndexWrite, "other code")

	assert.True(t, Is(a, b))
	assert.False(t, Is(a, c))
}

func TestCodeOf(t *testing.T) {
	inner := New(ErrCodeExtractionFailed, "bad pdf")
	wrapped := fmt.Errorf("processing paper.pdf: %w", inner)

	assert.Equal(t, ErrCodeExtractionFailed, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(fmt.Errorf("plain error")))
}

func TestFatal(t *testing.T) {
	assert.True(t, Fatal(New(ErrCodeDimensionMismatch, "768 != 384")))
	assert.False(t, Fatal(New(ErrCodeIndexWrite, "timeout")))
	assert.False(t, Fatal(fmt.Errorf("unknown")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeExtractionFailed, "bad pdf").
		WithDetail("source_file", "paper.pdf")

	assert.Equal(t, "paper.pdf", err.Details["source_file"])
}

func TestWrap_NilCause(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeIndexWrite, nil))
}

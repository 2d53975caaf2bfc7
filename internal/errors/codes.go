// Package errors provides structured error handling for vecdex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Document errors (extraction, content)
//   - 3XX: Network errors (embedding provider, index store)
//   - 4XX: Validation errors (batch shape, dimensions)
//   - 5XX: Store errors (schema, writes)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryDocument indicates per-document errors (extraction, content).
	CategoryDocument Category = "DOCUMENT"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryStore indicates index store errors.
	CategoryStore Category = "STORE"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error, the run must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the run can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Document errors (200-299)
	ErrCodeExtractionFailed = "ERR_201_EXTRACTION_FAILED"
	ErrCodeEmptyContent     = "ERR_202_EMPTY_CONTENT"

	// Network errors (300-399)
	ErrCodeEmbeddingFailed  = "ERR_301_EMBEDDING_FAILED"
	ErrCodeStoreUnreachable = "ERR_302_STORE_UNREACHABLE"

	// Validation errors (400-499)
	ErrCodeBatchMismatch     = "ERR_401_BATCH_MISMATCH"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"

	// Store errors (500-599)
	ErrCodeSchemaCreate = "ERR_501_SCHEMA_CREATE"
	ErrCodeIndexWrite   = "ERR_502_INDEX_WRITE"
)

// categoryFromCode derives the category from the code's numeric block.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryStore
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryDocument
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryStore
	}
}

// severityFromCode derives the severity from the code.
// Schema creation, dimension mismatch and config errors abort the run;
// everything else is contained at the document boundary.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeSchemaCreate, ErrCodeDimensionMismatch,
		ErrCodeConfigNotFound, ErrCodeConfigInvalid:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether the failed operation may succeed on
// an external retry. Transient network failures qualify; malformed
// batches and configuration problems do not.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbeddingFailed, ErrCodeStoreUnreachable, ErrCodeIndexWrite:
		return true
	default:
		return false
	}
}

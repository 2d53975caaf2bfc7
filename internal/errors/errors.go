package errors

import (
	"fmt"
)

// PipelineError is the structured error type for vecdex.
// It carries the error code, classification and the offending source
// file so the orchestrator can log and summarize failures per stage.
type PipelineError struct {
	// Code is the unique error code (e.g., "ERR_201_EXTRACTION_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Document, Network, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried externally.
	Retryable bool
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with PipelineError.
func (e *PipelineError) Is(target error) bool {
	if t, ok := target.(*PipelineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *PipelineError) WithDetail(key, value string) *PipelineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// IsFatal reports whether this error must abort the whole run.
func (e *PipelineError) IsFatal() bool {
	return e.Severity == SeverityFatal
}

// New creates a new PipelineError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
// Use Wrap to carry a cause.
func New(code string, message string) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Retryable: isRetryableCode(code),
	}
}

// Newf creates a new PipelineError with a formatted message.
func Newf(code string, format string, args ...any) *PipelineError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a PipelineError from an existing error.
// The error's message becomes the PipelineError message.
func Wrap(code string, err error) *PipelineError {
	if err == nil {
		return nil
	}
	pe := New(code, err.Error())
	pe.Cause = err
	return pe
}

// CodeOf extracts the error code from an error chain.
// Returns an empty string when the chain carries no PipelineError.
func CodeOf(err error) string {
	var pe *PipelineError
	if As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Fatal reports whether the error chain carries a fatal PipelineError.
// Unknown errors are treated as non-fatal so one bad document never
// aborts the corpus run.
func Fatal(err error) bool {
	var pe *PipelineError
	if As(err, &pe) {
		return pe.IsFatal()
	}
	return false
}

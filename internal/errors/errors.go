// Package errors provides structured error types for the tessloc system.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryArchive    ErrorCategory = "ARCHIVE"
	ErrCategoryCatalog    ErrorCategory = "CATALOG"
	ErrCategoryWCS        ErrorCategory = "WCS"
	ErrCategoryLookup     ErrorCategory = "LOOKUP"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidKey        = "INVALID_KEY"
	CodeMalformedFilename = "MALFORMED_FILENAME"
	CodeInvalidPixel      = "INVALID_PIXEL"

	// Archive codes
	CodeQueryFailed          = "QUERY_FAILED"
	CodeHeaderDownloadFailed = "HEADER_DOWNLOAD_FAILED"
	CodeEmptyListing         = "EMPTY_LISTING"

	// Catalog codes
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeListingNotFound    = "LISTING_NOT_FOUND"
	CodeRowNotFound        = "ROW_NOT_FOUND"
	CodeCorruptionDetected = "CORRUPTION_DETECTED"
	CodeCatalogWriteFailed = "CATALOG_WRITE_FAILED"

	// WCS codes
	CodeBadHeader = "BAD_HEADER"

	// Lookup codes
	CodeOverlappingSectors = "OVERLAPPING_SECTORS"
	CodeBadTimestamp       = "BAD_TIMESTAMP"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// TessLocError is the structured error type used throughout the system.
type TessLocError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *TessLocError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *TessLocError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *TessLocError) Is(target error) bool {
	var t *TessLocError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new TessLocError.
func New(category ErrorCategory, code, message string) *TessLocError {
	return &TessLocError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new TessLocError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *TessLocError {
	return &TessLocError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *TessLocError) WithDetails(details map[string]interface{}) *TessLocError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
// The catalog builders never retry themselves; the flag classifies upstream
// failures for callers that schedule re-runs.
func IsRetryable(err error) bool {
	var te *TessLocError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a TessLocError.
func GetCategory(err error) ErrorCategory {
	var te *TessLocError
	if errors.As(err, &te) {
		return te.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a TessLocError.
func GetCode(err error) string {
	var te *TessLocError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// isRetryable determines if an error code represents a transient condition.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryArchive && code == CodeQueryFailed:
		return true
	case category == ErrCategoryArchive && code == CodeHeaderDownloadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *TessLocError {
	return New(ErrCategoryValidation, code, message)
}

func NewArchiveError(code, message string, cause error) *TessLocError {
	return Wrap(ErrCategoryArchive, code, message, cause)
}

func NewCatalogError(code, message string, cause error) *TessLocError {
	return Wrap(ErrCategoryCatalog, code, message, cause)
}

func NewWCSError(message string, cause error) *TessLocError {
	return Wrap(ErrCategoryWCS, CodeBadHeader, message, cause)
}

func NewLookupError(code, message string) *TessLocError {
	return New(ErrCategoryLookup, code, message)
}

func NewStorageError(code, message string, cause error) *TessLocError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *TessLocError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}

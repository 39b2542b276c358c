package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code and message,
// so wrapped copies of the sentinel values below still match errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeDependencyFailure = "DEPENDENCY_FAILURE"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeCacheIO           = "CACHE_IO"
	ErrCodeIndexUnavailable  = "INDEX_UNAVAILABLE"
)

// Validation errors
var (
	ErrEmptyQuery          = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrInvalidDocumentName = NewDomainError(ErrCodeValidation, "invalid document name")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
)

// Pipeline errors
var (
	ErrAnalysisFailed     = NewDomainError(ErrCodeDependencyFailure, "query analysis failed")
	ErrEmbeddingFailed    = NewDomainError(ErrCodeDependencyFailure, "query embedding failed")
	ErrSynthesisFailed    = NewDomainError(ErrCodeDependencyFailure, "answer synthesis failed")
	ErrVerificationFailed = NewDomainError(ErrCodeDependencyFailure, "answer verification failed")
	ErrStageTimeout       = NewDomainError(ErrCodeTimeout, "stage timed out")
	ErrIndexUnavailable   = NewDomainError(ErrCodeIndexUnavailable, "similarity index unavailable")
	ErrRunAborted         = NewDomainError(ErrCodeInternalError, "run aborted")
)

// Cache errors
var (
	ErrCacheRead  = NewDomainError(ErrCodeCacheIO, "cache read failed")
	ErrCacheWrite = NewDomainError(ErrCodeCacheIO, "cache write failed")
)

// Storage errors
var (
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)

package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode defines the error code type
type ErrorCode int

// System error codes, grouped by the four error kinds in spec.md §7.
const (
	// Input errors (1000-1099): rejected before any pipeline stage runs.
	ErrEmptyQuery     ErrorCode = 1000
	ErrNoSourceScopes ErrorCode = 1001
	ErrInvalidConfig  ErrorCode = 1002

	// Storage errors (1100-1199): vector store or relational store failures.
	ErrVectorStore     ErrorCode = 1100
	ErrRelationalStore ErrorCode = 1101
	ErrDocumentMissing ErrorCode = 1102

	// AI errors (1200-1299): embedding or LLM chat failures.
	ErrEmbedding   ErrorCode = 1200
	ErrChatModel   ErrorCode = 1201
	ErrSchemaParse ErrorCode = 1202

	// Cancellation (1300-1399).
	ErrCancelled ErrorCode = 1300
)

// AppError defines the application error structure. Details carries
// optional structured context; it must never carry a full query vector,
// per the logging rule in spec.md §7.
type AppError struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Details  any       `json:"details,omitempty"`
	HTTPCode int       `json:"-"`
	cause    error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("error code: %d, error message: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("error code: %d, error message: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause so errors.Is/errors.As work against it.
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithDetails adds error details
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error as the cause.
func (e *AppError) WithCause(cause error) *AppError {
	e.cause = cause
	return e
}

// NewInputError reports a request rejected before any stage ran: an
// empty query, no source scopes, or an otherwise malformed SearchConfig.
func NewInputError(message string) *AppError {
	return &AppError{Code: ErrEmptyQuery, Message: message, HTTPCode: http.StatusBadRequest}
}

// NewStorageError reports a vector-store or relational-store failure
// that is not a benign "not found" on a single document in a batch.
func NewStorageError(message string) *AppError {
	return &AppError{Code: ErrVectorStore, Message: message, HTTPCode: http.StatusBadGateway}
}

// NewAIError reports an embedding or LLM chat failure.
func NewAIError(message string) *AppError {
	return &AppError{Code: ErrEmbedding, Message: message, HTTPCode: http.StatusBadGateway}
}

// NewCancellationError reports a caller-cancelled request. No partial
// response should be emitted alongside it.
func NewCancellationError(message string) *AppError {
	return &AppError{Code: ErrCancelled, Message: message, HTTPCode: http.StatusRequestTimeout}
}

// IsAppError checks if the error is an AppError type, unwrapping through
// any wrapper chain.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err is an AppError whose code falls in the
// same hundred-range as kind (input/storage/AI/cancellation).
func IsKind(err error, kind ErrorCode) bool {
	appErr, ok := IsAppError(err)
	if !ok {
		return false
	}
	return appErr.Code/100 == kind/100
}

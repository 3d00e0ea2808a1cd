// Package errors provides structured application errors with a small
// type taxonomy shared by the API, the worker, and the chunking engine.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ValidationError    ErrorType = "validation_error"
	ProcessingError    ErrorType = "processing_error"
	InternalError      ErrorType = "internal_error"
	NotFoundError      ErrorType = "not_found_error"
	TimeoutError       ErrorType = "timeout_error"
	ResourceError      ErrorType = "resource_error"
	NetworkError       ErrorType = "network_error"
	ConfigurationError ErrorType = "configuration_error"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"http_status"`
	Timestamp  time.Time              `json:"timestamp"`
	Context    map[string]interface{} `json:"context,omitempty"`
	InnerError error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new AppError
func New(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		HTTPStatus: getHTTPStatus(errType),
		Timestamp:  time.Now(),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, code, message string) *AppError {
	appErr := New(errType, code, message)
	appErr.InnerError = err
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// Newf creates a new AppError with formatted message
func Newf(errType ErrorType, code, format string, args ...interface{}) *AppError {
	return New(errType, code, fmt.Sprintf(format, args...))
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, errType ErrorType, code, format string, args ...interface{}) *AppError {
	return Wrap(err, errType, code, fmt.Sprintf(format, args...))
}

// Predefined error constructors

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return New(ValidationError, "VALIDATION_FAILED", message)
}

// NewProcessingError creates a processing error
func NewProcessingError(message string) *AppError {
	return New(ProcessingError, "PROCESSING_FAILED", message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return New(InternalError, "INTERNAL_ERROR", message)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return New(NotFoundError, "NOT_FOUND", fmt.Sprintf("%s not found", resource))
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string) *AppError {
	return New(ConfigurationError, "CONFIGURATION_ERROR", message)
}

// NewUnsupportedFileTypeError creates an unsupported file type error
func NewUnsupportedFileTypeError(fileType string) *AppError {
	return New(ValidationError, "UNSUPPORTED_FILE_TYPE", fmt.Sprintf("File type '%s' is not supported", fileType))
}

// NewPartitionError creates a partitioning error
func NewPartitionError(message string) *AppError {
	return New(ProcessingError, "PARTITION_FAILED", message)
}

// NewChunkingError creates a chunking error
func NewChunkingError(message string) *AppError {
	return New(ProcessingError, "CHUNKING_FAILED", message)
}

// NewEmbeddingError creates an embedding error
func NewEmbeddingError(message string) *AppError {
	return New(ProcessingError, "EMBEDDING_FAILED", message)
}

// NewUploadError creates a destination upload error
func NewUploadError(message string) *AppError {
	return New(ProcessingError, "UPLOAD_FAILED", message)
}

// NewQueueError creates a queue error
func NewQueueError(message string) *AppError {
	return New(ProcessingError, "QUEUE_ERROR", message)
}

// ErrorResponse is the error envelope returned by the API
type ErrorResponse struct {
	Error   *AppError `json:"error"`
	Success bool      `json:"success"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err *AppError) *ErrorResponse {
	return &ErrorResponse{
		Error:   err,
		Success: false,
	}
}

// getHTTPStatus maps error types to HTTP status codes
func getHTTPStatus(errType ErrorType) int {
	switch errType {
	case ValidationError:
		return http.StatusBadRequest
	case ProcessingError:
		return http.StatusUnprocessableEntity
	case NotFoundError:
		return http.StatusNotFound
	case TimeoutError:
		return http.StatusRequestTimeout
	case ResourceError:
		return http.StatusInsufficientStorage
	case NetworkError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsType checks if the error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type == errType
	}
	return false
}

// IsCode checks if the error has a specific code
func IsCode(err error, code string) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// GetHTTPStatus returns the HTTP status code for an error
func GetHTTPStatus(err error) int {
	if appErr, ok := err.(*AppError); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

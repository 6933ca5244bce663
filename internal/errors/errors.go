// FilePath: internal/errors/errors.go
package errors

import (
	"fmt"
	"net/http"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Error types
	ErrorTypeDecode       ErrorType = "decode"
	ErrorTypeStorage      ErrorType = "storage_unavailable"
	ErrorTypePartialWrite ErrorType = "partial_write"
	ErrorTypeUnreachable  ErrorType = "network_unreachable"
	ErrorTypeRejected     ErrorType = "remote_rejected"
	ErrorTypeLinkDown     ErrorType = "link_down"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeInternal     ErrorType = "internal"
)

// RelayError represents a structured relay error
type RelayError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
	Details   any       `json:"details,omitempty"`
	err       error     // Internal error for logging
}

// Error implements the error interface
func (e *RelayError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the internal error to errors.Is / errors.As chains
func (e *RelayError) Unwrap() error {
	return e.err
}

// WithRequestID adds a request ID to the error
func (e *RelayError) WithRequestID(id string) *RelayError {
	e.RequestID = id
	return e
}

// WithDetails adds additional details to the error
func (e *RelayError) WithDetails(details any) *RelayError {
	e.Details = details
	return e
}

// NewDecodeError creates an error for a malformed inbound payload
func NewDecodeError(msg string, err error) *RelayError {
	return &RelayError{
		Type:    ErrorTypeDecode,
		Message: msg,
		Code:    http.StatusBadRequest,
		err:     err,
	}
}

// NewStorageError creates an error for an unavailable storage device
func NewStorageError(msg string, err error) *RelayError {
	return &RelayError{
		Type:    ErrorTypeStorage,
		Message: msg,
		Code:    http.StatusServiceUnavailable,
		err:     err,
	}
}

// NewPartialWriteError creates an error for a short write; the partial
// file is left on disk for the caller to decide on
func NewPartialWriteError(msg string, err error) *RelayError {
	return &RelayError{
		Type:    ErrorTypePartialWrite,
		Message: msg,
		Code:    http.StatusInsufficientStorage,
		err:     err,
	}
}

// NewUnreachableError creates an error for a remote that gave no response
func NewUnreachableError(msg string, err error) *RelayError {
	return &RelayError{
		Type:    ErrorTypeUnreachable,
		Message: msg,
		Code:    http.StatusBadGateway,
		err:     err,
	}
}

// NewRejectedError creates an error for a reachable remote that refused the record
func NewRejectedError(msg string, err error) *RelayError {
	return &RelayError{
		Type:    ErrorTypeRejected,
		Message: msg,
		Code:    http.StatusBadGateway,
		err:     err,
	}
}

// NewLinkDownError creates an error for a disconnected transport or broker
func NewLinkDownError(msg string, err error) *RelayError {
	return &RelayError{
		Type:    ErrorTypeLinkDown,
		Message: msg,
		Code:    http.StatusServiceUnavailable,
		err:     err,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(msg string, err error) *RelayError {
	return &RelayError{
		Type:    ErrorTypeNotFound,
		Message: msg,
		Code:    http.StatusNotFound,
		err:     err,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(msg string, err error) *RelayError {
	return &RelayError{
		Type:    ErrorTypeValidation,
		Message: msg,
		Code:    http.StatusBadRequest,
		err:     err,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(msg string, err error) *RelayError {
	return &RelayError{
		Type:    ErrorTypeInternal,
		Message: msg,
		Code:    http.StatusInternalServerError,
		err:     err,
	}
}

func isType(err error, t ErrorType) bool {
	if relayErr, ok := err.(*RelayError); ok {
		return relayErr.Type == t
	}
	return false
}

// IsNotFound checks if an error is a NotFound error
func IsNotFound(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsStorageUnavailable checks if an error indicates a missing or failing storage device
func IsStorageUnavailable(err error) bool {
	return isType(err, ErrorTypeStorage)
}

// IsPartialWrite checks if an error is a short-write error
func IsPartialWrite(err error) bool {
	return isType(err, ErrorTypePartialWrite)
}

// IsDecode checks if an error is a payload decode error
func IsDecode(err error) bool {
	return isType(err, ErrorTypeDecode)
}

// IsUnreachable checks if an error indicates no response from the remote
func IsUnreachable(err error) bool {
	return isType(err, ErrorTypeUnreachable)
}

// IsRejected checks if an error indicates the remote refused the record
func IsRejected(err error) bool {
	return isType(err, ErrorTypeRejected)
}

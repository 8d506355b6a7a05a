// Package errors defines the service error taxonomy and its mapping to HTTP status codes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a class of service error.
type ErrorCode string

const (
	CodeInvalidRequest       ErrorCode = "INVALID_REQUEST"
	CodeNotAuthorized        ErrorCode = "NOT_AUTHORIZED"
	CodeNotFound             ErrorCode = "NOT_FOUND"
	CodeStorageLimitExceeded ErrorCode = "STORAGE_LIMIT_EXCEEDED"
	CodeRateLimitExceeded    ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// ServiceError is an error that carries the HTTP status and the client-facing message.
type ServiceError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error with an extra detail attached.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value

	clone := *e
	clone.Details = details
	return &clone
}

func newError(code ErrorCode, status int, message string, err error) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
		Err:        err,
	}
}

// InvalidRequest reports malformed input, missing parameters or a bad address format.
func InvalidRequest(message string) *ServiceError {
	return newError(CodeInvalidRequest, http.StatusBadRequest, message, nil)
}

// NotAuthorized reports a missing or insufficient signer.
func NotAuthorized(message string) *ServiceError {
	return newError(CodeNotAuthorized, http.StatusUnauthorized, message, nil)
}

// NotAuthorizedWithCause is NotAuthorized keeping the underlying cause for logs.
func NotAuthorizedWithCause(message string, err error) *ServiceError {
	return newError(CodeNotAuthorized, http.StatusUnauthorized, message, err)
}

// NotFound reports an absent key.
func NotFound(message string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, message, nil)
}

// StorageLimitExceeded reports a quota breach. It is a client error.
func StorageLimitExceeded(message string) *ServiceError {
	return newError(CodeStorageLimitExceeded, http.StatusBadRequest, message, nil)
}

// RateLimitExceeded reports a throttled caller.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return newError(CodeRateLimitExceeded, http.StatusTooManyRequests, "Rate limit exceeded", nil).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// Internal wraps an unexpected failure. The message is returned to clients, err is not.
func Internal(message string, err error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, err)
}

// GetServiceError extracts a ServiceError from an error chain.
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// HasCode reports whether err is a ServiceError with the given code.
func HasCode(err error, code ErrorCode) bool {
	serviceErr := GetServiceError(err)
	return serviceErr != nil && serviceErr.Code == code
}

package llm

import (
	"errors"
	"fmt"
)

// ErrorCode classifies provider failures.
type ErrorCode string

const (
	ErrCodeTimeout         ErrorCode = "timeout"
	ErrCodeAuthentication  ErrorCode = "authentication"
	ErrCodeRateLimited     ErrorCode = "rate_limited"
	ErrCodeInvalidRequest  ErrorCode = "invalid_request"
	ErrCodeModelNotFound   ErrorCode = "model_not_found"
	ErrCodeServerError     ErrorCode = "server_error"
	ErrCodeInvalidResponse ErrorCode = "invalid_response"
)

// ProviderError is a typed failure returned by Provider implementations.
type ProviderError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewProviderError creates a ProviderError wrapping err.
func NewProviderError(code ErrorCode, message string, err error) *ProviderError {
	return &ProviderError{Code: code, Message: message, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("llm %s: %s", e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Code returns the ErrorCode of err if it is (or wraps) a ProviderError, or
// the empty string otherwise.
func Code(err error) ErrorCode {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

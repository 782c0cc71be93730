package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies failures across the extraction pipeline
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeQuota       ErrorType = "quota"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypePersistence ErrorType = "persistence"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents an API or pipeline error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	// RetryAfter carries a server-directed backoff in seconds for
	// rate-limit errors. Zero means none was supplied.
	RetryAfter int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// New creates a typed error
func New(t ErrorType, code int, message string) *Error {
	return &Error{Type: t, Message: message, Code: code}
}

// IsRetryable reports whether an error type is worth retrying.
// Only throttling is retried within one extraction; other failures fail fast.
func IsRetryable(errorType ErrorType) bool {
	return errorType == ErrorTypeRateLimit
}

// IsRateLimit reports whether err is a throttling-class error, either by
// explicit type, a 429 status code, or a "rate limit" message from the
// provider SDK surface.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Type == ErrorTypeRateLimit || apiErr.Code == 429 {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "rate limit")
}

// RetryAfterSeconds extracts a server-directed backoff from err, or 0
func RetryAfterSeconds(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(ErrorTypeRateLimit, 429, "rate limit exceeded")
	want := "rate_limit error (code 429): rate limit exceeded"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(ErrorTypeRateLimit) {
		t.Error("rate limit errors must be retryable")
	}
	for _, et := range []ErrorType{ErrorTypeNetwork, ErrorTypeAuth, ErrorTypeServerError, ErrorTypeParsing, ErrorTypeUnknown} {
		if IsRetryable(et) {
			t.Errorf("%s must not be retryable", et)
		}
	}
}

func TestIsRateLimit(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed rate limit", New(ErrorTypeRateLimit, 429, "slow down"), true},
		{"status code only", New(ErrorTypeUnknown, 429, "too many requests"), true},
		{"message match", stderrors.New("provider said: Rate Limit reached"), true},
		{"wrapped", fmt.Errorf("call failed: %w", New(ErrorTypeRateLimit, 429, "x")), true},
		{"server error", New(ErrorTypeServerError, 500, "boom"), false},
		{"plain error", stderrors.New("connection refused"), false},
	}

	for _, tt := range tests {
		if got := IsRateLimit(tt.err); got != tt.want {
			t.Errorf("%s: IsRateLimit = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	err := &Error{Type: ErrorTypeRateLimit, Code: 429, RetryAfter: 15}
	if got := RetryAfterSeconds(err); got != 15 {
		t.Errorf("RetryAfterSeconds = %d, want 15", got)
	}

	if got := RetryAfterSeconds(stderrors.New("nope")); got != 0 {
		t.Errorf("expected 0 for untyped error, got %d", got)
	}

	wrapped := fmt.Errorf("call failed: %w", &Error{RetryAfter: 7})
	if got := RetryAfterSeconds(wrapped); got != 7 {
		t.Errorf("expected 7 through wrapping, got %d", got)
	}
}

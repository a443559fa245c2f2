package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind categorizes provider failures. All kinds are fatal to the current
// run; the engine does not retry them.
type ErrorKind string

const (
	// ErrUnauthenticated means credentials are absent or rejected.
	ErrUnauthenticated ErrorKind = "unauthenticated"
	// ErrRateLimited means the provider throttled the request.
	ErrRateLimited ErrorKind = "rate_limited"
	// ErrUnavailable means a transport failure or provider-side outage.
	ErrUnavailable ErrorKind = "unavailable"
	// ErrMalformed means the provider rejected the request shape or returned
	// an unusable response.
	ErrMalformed ErrorKind = "malformed"
)

// ProviderError is the typed failure surfaced by provider adapters and the
// gateway. It carries the originating provider, a kind for policy decisions
// and the wrapped transport error.
type ProviderError struct {
	Provider string    `json:"provider"`
	Kind     ErrorKind `json:"kind"`
	Status   int       `json:"status,omitempty"`
	Message  string    `json:"message"`
	Err      error     `json:"-"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error [%s] from %s: %s", e.Kind, e.Provider, e.Message)
}

// Unwrap exposes the wrapped transport error for errors.Is/As chains.
func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError creates a ProviderError with the specified details.
func NewProviderError(provider string, kind ErrorKind, message string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Message: message, Err: err}
}

// AsProviderError extracts a *ProviderError from err's chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	ok := errors.As(err, &pe)
	return pe, ok
}

// KindFromStatus maps an HTTP status code to an ErrorKind. Adapters use it to
// normalize vendor API errors.
func KindFromStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthenticated
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= http.StatusInternalServerError:
		return ErrUnavailable
	default:
		return ErrMalformed
	}
}

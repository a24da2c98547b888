package backendapi

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by all client operations. Wrap-aware callers match
// them with errors.Is.
var (
	// ErrUnauthorized is returned on 401/403 responses. The session token is
	// missing, expired, or rejected.
	ErrUnauthorized = errors.New("backendapi: unauthorized")

	// ErrNotFound is returned on 404 responses.
	ErrNotFound = errors.New("backendapi: not found")
)

// TransportError wraps a network-level failure (connection refused, timeout,
// DNS). These are transient: the request may succeed on retry, and callers
// degrade to cached or default data instead of failing hard.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backendapi: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError reports a non-2xx response that is not covered by a sentinel.
// These are permanent for the given request: retrying without changing the
// request will not help.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backendapi: %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backendapi: %s: unexpected status %d", e.Op, e.StatusCode)
}

// IsTransient reports whether err represents a failure worth retrying or
// degrading gracefully from, as opposed to a permanent rejection.
func IsTransient(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return false
}

// ABOUTME: Error types for REST backend failures.
// ABOUTME: Maps backend error payloads to *Error and 401 probes to ErrUnauthenticated.

package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthenticated is returned by Me when no valid session exists.
// The session probe treats this as the anonymous state, not a failure.
var ErrUnauthenticated = errors.New("api: not authenticated")

// Error is a backend-reported failure carrying the HTTP status and the
// user-facing message from the error payload.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %s (status %d)", e.Message, e.StatusCode)
}

// AuthFailure reports whether the error indicates invalid credentials or an
// expired session rather than a transport or server problem.
func (e *Error) AuthFailure() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// UserMessage extracts a string suitable for display from any error returned
// by this package. Backend messages are shown verbatim; transport failures
// collapse to a generic retry hint.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, ErrUnauthenticated) {
		return "You are not logged in"
	}
	return "Something went wrong, please try again"
}

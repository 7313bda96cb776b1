package catalog

import (
	"fmt"
	"net/http"
)

// Error represents a catalog API error.
//
// StatusCode is the HTTP status of the failed response and Message the
// `error` member of the response envelope.
type Error struct {
	StatusCode int
	Message    string
}

// Error returns the error message.
func (e *Error) Error() string {
	return fmt.Sprintf("catalog: status %d: %s", e.StatusCode, e.Message)
}

// Is reports whether target is a catalog error with the same status code.
//
// This allows errors.Is(err, catalog.ErrNotFound) to work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode
}

// Temporary returns true if the request may succeed when retried.
//
// Gateway failures and 503 Service Unavailable are temporary. A 500 from the
// catalog is treated as temporary too because its error handler maps unknown
// database failures to 500.
func (e *Error) Temporary() bool {
	switch e.StatusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Predefined errors for common cases. Compare with errors.Is.
var (
	// ErrNotFound is returned when the playlist or song does not exist.
	ErrNotFound = &Error{StatusCode: http.StatusNotFound, Message: "not found"}

	// ErrUnauthorized is returned when the token is missing or rejected.
	ErrUnauthorized = &Error{StatusCode: http.StatusUnauthorized, Message: "unauthorized"}

	// ErrForbidden is returned when the token may not access the resource.
	ErrForbidden = &Error{StatusCode: http.StatusForbidden, Message: "forbidden"}
)

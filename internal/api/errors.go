// Package api provides the HTTP client for the console REST API.
package api

import (
	"errors"
	"fmt"
)

// ErrNotCancellable is returned by CancelPoll when the given value does not
// carry a cancel capability. Failing loudly here catches programming errors
// that a silent no-op would hide.
var ErrNotCancellable = errors.New("value is not cancelable")

// ErrPollCancelled is reported by a poll's Wait/Result after the poll was
// cancelled. Progress and condition callbacks never observe it; they simply
// stop firing.
var ErrPollCancelled = errors.New("poll cancelled")

// StatusError is returned when the console responds with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s failed: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// UnauthorizedError indicates the console denied access to a resource.
// Subject and Reason are taken from the 403 response headers.
type UnauthorizedError struct {
	Path    string
	Subject string
	Reason  string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("access to %s denied: subject %q: %s", e.Path, e.Subject, e.Reason)
}

// IsUnauthorized checks whether an error indicates denied access, either as
// a typed UnauthorizedError or as a raw 403 status.
func IsUnauthorized(err error) bool {
	if err == nil {
		return false
	}

	var ua *UnauthorizedError
	if errors.As(err, &ua) {
		return true
	}

	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == 403
}

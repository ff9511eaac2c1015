package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is returned when the access token is rejected and could
// not be refreshed. Any credentials that were sent have been cleared by then.
var ErrUnauthorized = errors.New("api: not signed in")

// Error is a non-2xx response from the backend.
type Error struct {
	Status  int
	Code    int
	Message string
	Path    string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("api: %s: %d %s", e.Path, e.Status, msg)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsServerError reports whether err is a 5xx from the backend.
func IsServerError(err error) bool {
	return statusOf(err) >= 500
}

func statusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

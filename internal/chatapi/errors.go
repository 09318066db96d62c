package chatapi

import (
	"fmt"
	"net/http"
)

// TransportError covers network failures and bodies that could not be
// decoded. Polls log these and move on.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AppError is a failure reported by the backend itself: either a
// {"success": false, "error": ...} body or a non-2xx status.
type AppError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Unauthorized reports whether the backend rejected the admin session.
func (e *AppError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

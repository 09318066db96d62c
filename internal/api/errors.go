package api

import (
	"fmt"
	"net/http"
)

// ApiError is written as the {"success":false,"error":...} envelope clients
// expect. StatusCode only selects the HTTP status.
type ApiError struct {
	StatusCode int    `json:"-"`
	Success    bool   `json:"success"`
	Message    string `json:"error"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func NewBadRequestError(msg string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    msg,
	}
}

func NewNotFoundError(msg string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusNotFound,
		Message:    msg,
	}
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    "Internal server error",
		Err:        err,
	}
}

func NewUnauthorizedError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusUnauthorized,
		Message:    "Unauthorized",
	}
}

func NewTooManyRequestsError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusTooManyRequests,
		Message:    "Too many requests",
	}
}

func NewRequestEntityTooLargeError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusRequestEntityTooLarge,
		Message:    "File too large",
	}
}

// NewRejectedError reports a well-formed request the backend declined. The
// status stays 200, matching the password check's historical contract.
func NewRejectedError(msg string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusOK,
		Message:    msg,
	}
}

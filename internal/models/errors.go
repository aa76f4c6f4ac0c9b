package models

import (
	"errors"
	"net/http"
)

// APIError is the error shape surfaced at the HTTP boundary. Engine and
// codec errors are translated into one of these before leaving the
// router, never passed through verbatim.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
}

func (e *APIError) Error() string { return e.Message }

// BadRequest covers malformed bodies and unsupported languages.
func BadRequest(msg string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Message: msg}
}

// Unauthorized covers missing or invalid auth tokens.
func Unauthorized(msg string) *APIError {
	return &APIError{Status: http.StatusUnauthorized, Message: msg}
}

// PreconditionFailed covers on-device recognition being requested but
// unavailable for the resolved recognizer.
func PreconditionFailed(msg string) *APIError {
	return &APIError{Status: http.StatusPreconditionFailed, Message: msg}
}

// Internal covers engine failures, missing assets and allocation errors.
func Internal(msg string) *APIError {
	return &APIError{Status: http.StatusInternalServerError, Message: msg}
}

// AsAPIError unwraps err to an *APIError, or wraps it as a generic
// internal error so raw engine text never reaches a client.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("internal error")
}

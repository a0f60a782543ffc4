package common

import (
	"errors"
	"net/http"
)

var (
	// ErrBadRequest is the base for malformed query or body input.
	ErrBadRequest = NewAppError("BAD_REQUEST", "invalid request", http.StatusBadRequest, nil)
	// ErrPayloadTooLarge is returned for request bodies over the configured cap.
	ErrPayloadTooLarge = NewAppError("PAYLOAD_TOO_LARGE", "request body too large", http.StatusRequestEntityTooLarge, nil)
	// ErrUnavailable is returned when a request gave up waiting on a dependency.
	ErrUnavailable = NewAppError("UNAVAILABLE", "service temporarily unavailable, retry shortly", http.StatusServiceUnavailable, nil)
)

// AppError is an error that knows how it should be rendered to API clients.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err != nil:
		return e.Code + ": " + e.Err.Error()
	default:
		return e.Code + ": " + e.Message
	}
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any AppError carrying the same code, so sentinel values still
// match after Wrap or WithDetails.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e != nil && t != nil && e.Code == t.Code
}

// Wrap returns a copy of e with err as its cause.
func (e *AppError) Wrap(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// WithDetails returns a copy of e carrying details in the response body.
func (e *AppError) WithDetails(details any) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError reports whether err carries an *AppError anywhere in its chain.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

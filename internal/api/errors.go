package api

import (
	"errors"
	"fmt"
)

const fallbackErrorMessage = "API request failed"

// RequestError is returned for any non-2xx backend response.
// Message is the raw response body, or a generic fallback when the body is empty.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// ParseError is returned when a 2xx response body is not valid JSON.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid JSON response from %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ErrInvalidInput wraps validation failures detected before any network call.
var ErrInvalidInput = errors.New("invalid input")

// IsRequestError reports whether err carries a backend status response.
func IsRequestError(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr)
}

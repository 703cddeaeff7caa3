package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrTermNotFound     = errors.New("term not in collection")
	ErrMissingDocLength = errors.New("document missing from length table")
	ErrMalformedRecord  = errors.New("malformed record")
	ErrIndexUnavailable = errors.New("index unavailable")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Malformed wraps ErrMalformedRecord with the source position of the bad line.
func Malformed(source string, line int, format string, args ...any) error {
	return fmt.Errorf("%s:%d: %s: %w", source, line, fmt.Sprintf(format, args...), ErrMalformedRecord)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedRecord):
		return http.StatusBadRequest
	case errors.Is(err, ErrTermNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrIndexUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

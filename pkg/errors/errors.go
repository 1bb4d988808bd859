package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrSnapshotNotFound      = errors.New("index snapshot not found")
	ErrSnapshotCorrupt       = errors.New("index snapshot corrupt")
	ErrDocumentUnreadable    = errors.New("document unreadable")
	ErrNormalizerUnavailable = errors.New("normalizer unavailable")
	ErrIndexNotLoaded        = errors.New("index not loaded")
	ErrInvalidInput          = errors.New("invalid input")
	ErrTimeout               = errors.New("operation timed out")
	ErrInternal              = errors.New("internal error")
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

// Invalid is shorthand for a 400 AppError wrapping ErrInvalidInput.
func Invalid(format string, args ...any) *AppError {
	return Newf(ErrInvalidInput, http.StatusBadRequest, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrSnapshotNotFound), errors.Is(err, ErrIndexNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

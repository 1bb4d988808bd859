package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInternal, http.StatusTeapot, "brew"), http.StatusTeapot},
		{"invalid helper", Invalid("p must be positive, got %v", -1.0), http.StatusBadRequest},
		{"wrapped invalid", fmt.Errorf("parsing: %w", ErrInvalidInput), http.StatusBadRequest},
		{"no snapshot", fmt.Errorf("load: %w", ErrSnapshotNotFound), http.StatusServiceUnavailable},
		{"not loaded", ErrIndexNotLoaded, http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("outer: %w", Invalid("limit %d", 0))
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("expected errors.Is to find ErrInvalidInput")
	}
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Message != "limit 0" {
		t.Errorf("errors.As = %+v", appErr)
	}
	if got := appErr.Error(); got != "invalid input: limit 0" {
		t.Errorf("Error() = %q", got)
	}
}

package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartServer serves /metrics on its own port so scrapes bypass the API
// middleware. The returned function shuts the listener down.
func StartServer(port int) (shutdown func(context.Context) error) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())
	mux.Handle("GET /{$}", http.RedirectHandler("/metrics", http.StatusFound))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	logger := slog.Default().With("component", "metrics-server", "addr", server.Addr)

	go func() {
		logger.Info("serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	return func(ctx context.Context) error {
		logger.Info("stopping metrics server")
		return server.Shutdown(ctx)
	}
}

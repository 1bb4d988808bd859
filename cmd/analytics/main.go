// Command analytics runs the standalone analytics service. It consumes
// search and build events from Kafka, aggregates them in memory and serves
// the result at GET /api/v1/analytics. With analytics.persistSnapshots set
// it also saves periodic snapshots to PostgreSQL.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8082, "HTTP port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", *port, "topic", cfg.Kafka.Topics.AnalyticsEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
	defer consumer.Close()
	go func() {
		if err := agg.Start(ctx, consumer); err != nil {
			slog.Error("aggregator error", "error", err)
		}
	}()

	checker := health.NewChecker()
	mux := http.NewServeMux()
	analyticsHandler := analytics.NewHandler(agg)

	if cfg.Analytics.PersistSnapshots {
		var db *postgres.Client
		err := resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond}, func() error {
			var err error
			db, err = postgres.New(cfg.Postgres)
			return err
		})
		if err != nil {
			slog.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store := aggregator.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare snapshot table", "error", err)
			os.Exit(1)
		}
		go store.RunPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		checker.Register("postgres", health.PingCheck(db.Ping, false))

		analyticsHandler.WithHistory(store)
	}
	analyticsHandler.Register(mux)

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      middleware.Chain(mux, middleware.RequestID),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

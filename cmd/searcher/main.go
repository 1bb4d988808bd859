// Command searcher serves fuzzy boolean queries over HTTP from the index
// snapshot. The snapshot is reloaded when the file changes or when an
// index.complete event arrives on Kafka; each reload invalidates the Redis
// query cache.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml] [-build-missing]
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
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/watch"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	buildMissing := flag.Bool("build-missing", false, "build the snapshot from the documents directory if it does not exist")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "snapshot", cfg.Indexer.SnapshotPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	norm, err := tokenizer.New(tokenizer.Options{Language: cfg.Indexer.Language})
	if err != nil {
		slog.Error("normalizer unavailable", "error", err)
		os.Exit(1)
	}

	if *buildMissing && !snapshot.Exists(cfg.Indexer.SnapshotPath) {
		slog.Info("snapshot missing, building from documents", "dir", cfg.Indexer.DocumentsDir)
		p := &indexer.Pipeline{
			Builder:      indexer.NewBuilder(norm, indexer.WithWorkers(cfg.Indexer.Workers), indexer.WithMetrics(m)),
			SnapshotPath: cfg.Indexer.SnapshotPath,
		}
		if _, _, err := p.Run(ctx, source.NewDir(cfg.Indexer.DocumentsDir, cfg.Indexer.DocumentExt)); err != nil {
			slog.Error("initial build failed", "error", err)
			os.Exit(1)
		}
	}

	var redisClient *pkgredis.Client
	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		err := resilience.Retry(ctx, "redis-connect", resilience.RetryConfig{MaxAttempts: 3}, func() error {
			var err error
			redisClient, err = pkgredis.NewClient(cfg.Redis)
			return err
		})
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, cache.WithMetrics(m))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	holder := reload.NewHolder(nil)
	reloadOpts := []reload.Option{reload.WithMetrics(m)}
	if queryCache != nil {
		reloadOpts = append(reloadOpts, reload.WithInvalidator(queryCache))
	}
	reloader := reload.New(holder, cfg.Indexer.SnapshotPath, reloadOpts...)

	// The indexer may still be writing the first snapshot.
	err = resilience.Retry(ctx, "initial-load", resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		Retryable: func(err error) bool {
			return errors.Is(err, apperrors.ErrSnapshotNotFound)
		},
	}, func() error {
		return reloader.Reload(ctx, reload.TriggerStartup)
	})
	if err != nil {
		slog.Error("failed to load index snapshot", "error", err)
		os.Exit(1)
	}

	if cfg.Search.WatchSnapshot {
		w := reloader.Watcher(watch.WithDebounce(250 * time.Millisecond))
		go func() {
			if err := w.Run(ctx); err != nil {
				slog.Error("snapshot watcher stopped", "error", err)
			}
		}()
	}

	aggregator := analytics.NewAggregator()
	trackers := analytics.Multi{aggregator}
	if cfg.Kafka.Enabled {
		completeConsumer := reload.NewCompleteConsumer(
			kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, reload.HandleComplete(reloader)),
		)
		defer completeConsumer.Close()
		go func() {
			if err := completeConsumer.Start(ctx); err != nil {
				slog.Error("index.complete consumer stopped", "error", err)
			}
		}()

		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer,
			cfg.Analytics.BufferSize, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		collector.Start(ctx)
		defer collector.Close()
		trackers = append(trackers, collector)
	}

	exec := executor.New(holder, norm,
		executor.WithWorkers(cfg.Search.Workers),
		executor.WithTimeout(cfg.Search.Timeout),
		executor.WithLimits(cfg.Search.DefaultLimit, cfg.Search.MaxResults),
		executor.WithMetrics(m),
	)
	searchOpts := []handler.Option{
		handler.WithReloader(reloader),
		handler.WithTracker(trackers),
		handler.WithMetrics(m),
		handler.WithDefaultPNorm(cfg.Search.DefaultPNorm),
	}
	if queryCache != nil {
		searchOpts = append(searchOpts, handler.WithCache(queryCache))
	}
	h := handler.New(exec, holder, searchOpts...)

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		idx := holder.Current()
		if idx == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no index loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d terms, version %s", idx.NumDocs(), idx.NumTerms(), idx.Fingerprint()),
		}
	})
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, true))
	}

	mux := http.NewServeMux()
	h.Register(mux)
	analytics.NewHandler(aggregator).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := []func(http.Handler) http.Handler{middleware.RequestID, middleware.Metrics(m)}
	if len(cfg.Server.CORSOrigins) > 0 {
		chain = append(chain, middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins)))
	}
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit, time.Minute)
		go limiter.Run(ctx, 5*time.Minute)
		chain = append(chain, middleware.RateLimit(limiter))
	}
	chain = append(chain, middleware.Timeout(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, chain...),
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

// Command indexer builds the inverted index from the configured document
// source and writes it as a snapshot. With -watch it stays running and
// rebuilds whenever the documents directory changes.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml] [-watch]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/watch"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	watchDocs := flag.Bool("watch", false, "rebuild when the documents directory changes")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer",
		"source", cfg.Indexer.Source,
		"snapshot", cfg.Indexer.SnapshotPath,
		"workers", cfg.Indexer.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled && *watchDocs {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	norm, err := tokenizer.New(tokenizer.Options{Language: cfg.Indexer.Language})
	if err != nil {
		slog.Error("normalizer unavailable", "error", err)
		os.Exit(1)
	}

	src, closeSrc, err := openSource(ctx, cfg)
	if err != nil {
		slog.Error("failed to open document source", "error", err)
		os.Exit(1)
	}
	defer closeSrc()

	pipeline := &indexer.Pipeline{
		Builder:      indexer.NewBuilder(norm, indexer.WithWorkers(cfg.Indexer.Workers), indexer.WithMetrics(m)),
		SnapshotPath: cfg.Indexer.SnapshotPath,
	}
	if cfg.Kafka.Enabled {
		completeProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer completeProducer.Close()
		analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer analyticsProducer.Close()

		collector := analytics.NewCollector(analyticsProducer,
			cfg.Analytics.BufferSize, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		collector.Start(ctx)
		defer collector.Close()

		pipeline.Publisher = completeProducer
		pipeline.Tracker = collector
		slog.Info("kafka publishing enabled",
			"complete_topic", cfg.Kafka.Topics.IndexComplete,
			"analytics_topic", cfg.Kafka.Topics.AnalyticsEvents,
		)
	}

	if _, _, err := pipeline.Run(ctx, src); err != nil {
		slog.Error("index build failed", "error", err)
		if !*watchDocs {
			stop()
			os.Exit(1)
		}
	}
	if !*watchDocs {
		slog.Info("indexer finished")
		return
	}
	if cfg.Indexer.Source != "dir" {
		slog.Error("-watch requires the dir source", "source", cfg.Indexer.Source)
		os.Exit(1)
	}

	w := watch.Extension(cfg.Indexer.DocumentsDir, cfg.Indexer.DocumentExt, func(ctx context.Context) {
		if _, _, err := pipeline.Run(ctx, src); err != nil {
			slog.Error("rebuild failed", "error", err)
		}
	}, watch.WithDebounce(cfg.Indexer.WatchDebounce))
	if err := w.Run(ctx); err != nil {
		slog.Error("watcher stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("indexer stopped")
}

// openSource returns the configured document source and a func releasing
// whatever it holds open.
func openSource(ctx context.Context, cfg *config.Config) (source.Source, func(), error) {
	switch cfg.Indexer.Source {
	case "postgres":
		var client *postgres.Client
		err := resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 500 * time.Millisecond,
		}, func() error {
			var err error
			client, err = postgres.New(cfg.Postgres)
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		src, err := source.NewPostgres(client, cfg.Postgres.DocumentQuery)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return src, func() { client.Close() }, nil
	default:
		return source.NewDir(cfg.Indexer.DocumentsDir, cfg.Indexer.DocumentExt), func() {}, nil
	}
}

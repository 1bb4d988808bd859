package reload

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/kafka"
)

// CompleteConsumer reloads the index when the indexer announces a build on
// the index-complete topic.
type CompleteConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func NewCompleteConsumer(kafkaConsumer *kafka.Consumer) *CompleteConsumer {
	return &CompleteConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-complete-consumer"),
	}
}

// Start consumes until ctx is cancelled.
func (c *CompleteConsumer) Start(ctx context.Context) error {
	c.logger.Info("index complete consumer starting")
	return c.consumer.Start(ctx)
}

func (c *CompleteConsumer) Close() error {
	return c.consumer.Close()
}

// HandleComplete returns a handler that reloads r for every CompleteEvent
// whose version differs from the active index. Undecodable messages are
// logged and skipped; a failed reload is returned so the message is not
// committed.
func HandleComplete(r *Reloader) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-complete-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[indexer.CompleteEvent](value)
		if err != nil {
			logger.Error("failed to decode index complete event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if current := r.holder.Current(); current != nil && current.Fingerprint() == event.Version {
			logger.Debug("index already current", "version", event.Version)
			return nil
		}
		if event.SnapshotPath != "" && event.SnapshotPath != r.Path() {
			logger.Warn("event snapshot path differs from local path; loading local path",
				"event_path", event.SnapshotPath,
				"local_path", r.Path(),
			)
		}
		logger.Info("index complete event received",
			"version", event.Version,
			"documents", event.Documents,
			"terms", event.Terms,
		)
		return r.Reload(ctx, TriggerKafka)
	}
}

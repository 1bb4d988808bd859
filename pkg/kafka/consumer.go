// Package kafka provides Kafka producer and consumer clients backed by
// segmentio/kafka-go. The producer serialises events as JSON, while the
// consumer hands raw messages to a MessageHandler callback.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/config"
)

// MessageHandler is a callback invoked for each Kafka message. Returning an
// error leaves the message uncommitted.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	minFetchBackoff = 100 * time.Millisecond
	maxFetchBackoff = 5 * time.Second
)

// ConsumerStats counts messages by outcome since the consumer started.
type ConsumerStats struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Consumer feeds the messages of one topic to a MessageHandler, committing
// each message the handler accepts.
type Consumer struct {
	reader    messageReader
	handler   MessageHandler
	backoff   time.Duration
	processed atomic.Int64
	failed    atomic.Int64
	logger    *slog.Logger
}

// NewConsumer joins the configured group. A new group starts at the end of
// the topic, so only messages published after it first joins are delivered.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	return newConsumer(r, topic, handler)
}

func newConsumer(r messageReader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:  r,
		handler: handler,
		backoff: minFetchBackoff,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled or the reader is closed. Fetch
// errors are retried with a growing pause; handler errors leave the message
// uncommitted and move on.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	wait := c.backoff
	for {
		msg, err := c.reader.FetchMessage(ctx)
		switch {
		case ctx.Err() != nil:
			c.logger.Info("consumer stopping", "reason", ctx.Err())
			return nil
		case errors.Is(err, io.EOF):
			c.logger.Info("reader closed")
			return nil
		case err != nil:
			c.logger.Warn("fetch failed", "error", err, "retry_in", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil
			}
			wait = min(wait*2, maxFetchBackoff)
			continue
		}
		wait = c.backoff
		c.dispatch(ctx, msg)
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message) {
	log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
	log.Debug("message received", "key", string(msg.Key), "value_size", len(msg.Value))
	if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
		c.failed.Add(1)
		log.Error("failed to process message", "error", err)
		return
	}
	c.processed.Add(1)
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.Error("failed to commit message", "error", err)
	}
}

func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{Processed: c.processed.Load(), Failed: c.failed.Load()}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}

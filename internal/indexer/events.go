package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/kafka"
)

// CompleteEvent is published after a snapshot has been written so that
// searchers can reload it. Version is the index fingerprint.
type CompleteEvent struct {
	Version      string    `json:"version"`
	SnapshotPath string    `json:"snapshot_path"`
	Documents    int       `json:"documents"`
	Terms        int       `json:"terms"`
	Postings     int       `json:"postings"`
	DurationMs   int64     `json:"duration_ms"`
	BuiltAt      time.Time `json:"built_at"`
}

func NewCompleteEvent(idx *index.Index, stats BuildStats, snapshotPath string) CompleteEvent {
	return CompleteEvent{
		Version:      idx.Fingerprint(),
		SnapshotPath: snapshotPath,
		Documents:    stats.Documents,
		Terms:        stats.Terms,
		Postings:     stats.Postings,
		DurationMs:   stats.Duration.Milliseconds(),
		BuiltAt:      time.Now().UTC(),
	}
}

// PublishComplete announces ev keyed by the snapshot path, so every event
// for one snapshot lands on the same Kafka partition.
func PublishComplete(ctx context.Context, pub kafka.Publisher, ev CompleteEvent) error {
	if err := pub.Publish(ctx, kafka.Event{Key: ev.SnapshotPath, Value: ev}); err != nil {
		return fmt.Errorf("publishing index complete event: %w", err)
	}
	return nil
}

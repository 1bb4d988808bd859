package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/snapshot"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/kafka"
)

// Pipeline runs a full build: index the source, write the snapshot, then
// announce it. Publisher and Tracker are optional.
type Pipeline struct {
	Builder      *Builder
	SnapshotPath string
	// Publisher receives a CompleteEvent after the snapshot is written.
	Publisher kafka.Publisher
	// Tracker receives an analytics.BuildEvent for every run.
	Tracker analytics.Tracker
}

// Run builds from src and replaces the snapshot. A failed publish is
// logged but does not fail the run: the snapshot is already in place and
// file-watching searchers will pick it up.
func (p *Pipeline) Run(ctx context.Context, src source.Source) (*index.Index, BuildStats, error) {
	log := slog.Default().With("component", "index-pipeline")

	idx, stats, err := p.Builder.Build(ctx, src)
	if err != nil {
		p.track(stats, "", err)
		return nil, stats, err
	}
	size, err := snapshot.Write(p.SnapshotPath, idx)
	if err != nil {
		err = fmt.Errorf("writing snapshot %s: %w", p.SnapshotPath, err)
		p.track(stats, "", err)
		return nil, stats, err
	}
	log.Info("snapshot written",
		"path", p.SnapshotPath,
		"bytes", size,
		"version", idx.Fingerprint(),
	)

	if p.Publisher != nil {
		ev := NewCompleteEvent(idx, stats, p.SnapshotPath)
		if err := PublishComplete(ctx, p.Publisher, ev); err != nil {
			log.Error("failed to announce snapshot", "version", ev.Version, "error", err)
		}
	}
	p.track(stats, idx.Fingerprint(), nil)
	return idx, stats, nil
}

func (p *Pipeline) track(stats BuildStats, version string, err error) {
	if p.Tracker == nil {
		return
	}
	ev := analytics.BuildEvent{
		Type:       analytics.EventBuild,
		Source:     stats.Source,
		Status:     "success",
		Version:    version,
		Documents:  stats.Documents,
		Terms:      stats.Terms,
		Postings:   stats.Postings,
		DurationMs: stats.Duration.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	if err != nil {
		ev.Status = "error"
		ev.Error = err.Error()
	}
	p.Tracker.Track(ev)
}

package indexer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/snapshot"
)

func TestPipelineRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "index.json")
	pub := &capturePublisher{}
	agg := analytics.NewAggregator()
	p := &Pipeline{
		Builder:      NewBuilder(wordNormalizer{}, WithWorkers(2)),
		SnapshotPath: path,
		Publisher:    pub,
		Tracker:      agg,
	}

	idx, stats, err := p.Run(context.Background(), corpus())
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := snapshot.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Fingerprint() != idx.Fingerprint() {
		t.Error("snapshot on disk differs from the built index")
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d events", len(pub.events))
	}
	if ev := pub.events[0].Value.(CompleteEvent); ev.Version != idx.Fingerprint() || ev.Documents != stats.Documents {
		t.Errorf("complete event = %+v", ev)
	}

	builds := agg.Stats().Builds
	if builds.Total != 1 || builds.Failed != 0 {
		t.Fatalf("builds = %+v", builds)
	}
	if builds.LastBuild.Version != idx.Fingerprint() || builds.LastBuild.Documents != 5 {
		t.Errorf("last build = %+v", builds.LastBuild)
	}
}

func TestPipelineRunFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	pub := &capturePublisher{}
	agg := analytics.NewAggregator()
	p := &Pipeline{
		Builder:      NewBuilder(wordNormalizer{}),
		SnapshotPath: path,
		Publisher:    pub,
		Tracker:      agg,
	}

	if _, _, err := p.Run(context.Background(), failingSource{}); err == nil {
		t.Fatal("expected error")
	}
	if snapshot.Exists(path) {
		t.Error("failed build must not write a snapshot")
	}
	if len(pub.events) != 0 {
		t.Error("failed build must not be announced")
	}
	builds := agg.Stats().Builds
	if builds.Failed != 1 || builds.LastFailed == nil || builds.LastFailed.Error == "" {
		t.Errorf("builds = %+v", builds)
	}
}

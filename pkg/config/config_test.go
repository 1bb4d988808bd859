package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.DefaultPNorm != 2.0 {
		t.Errorf("DefaultPNorm = %v, want 2", cfg.Search.DefaultPNorm)
	}
	if cfg.Indexer.Source != "dir" {
		t.Errorf("Source = %q, want dir", cfg.Indexer.Source)
	}
	if cfg.Indexer.SnapshotPath != "index.json" {
		t.Errorf("SnapshotPath = %q, want index.json", cfg.Indexer.SnapshotPath)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
indexer:
  documentsDir: /data/docs
  workers: 8
search:
  defaultPNorm: 5.5
  timeout: 250ms
redis:
  enabled: true
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Indexer.DocumentsDir != "/data/docs" || cfg.Indexer.Workers != 8 {
		t.Errorf("indexer = %+v", cfg.Indexer)
	}
	if cfg.Search.DefaultPNorm != 5.5 {
		t.Errorf("DefaultPNorm = %v, want 5.5", cfg.Search.DefaultPNorm)
	}
	if cfg.Search.Timeout != 250*time.Millisecond {
		t.Errorf("Timeout = %v, want 250ms", cfg.Search.Timeout)
	}
	if !cfg.Redis.Enabled {
		t.Error("redis should be enabled")
	}
	// Untouched sections keep defaults.
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SS_SEARCH_DEFAULT_PNORM", "3")
	t.Setenv("SS_INDEXER_SOURCE", "postgres")
	t.Setenv("SS_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("SS_KAFKA_ENABLED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.DefaultPNorm != 3 {
		t.Errorf("DefaultPNorm = %v, want 3", cfg.Search.DefaultPNorm)
	}
	if cfg.Indexer.Source != "postgres" {
		t.Errorf("Source = %q", cfg.Indexer.Source)
	}
	if len(cfg.Kafka.Brokers) != 2 || !cfg.Kafka.Enabled {
		t.Errorf("kafka = %+v", cfg.Kafka)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown source", "indexer:\n  source: s3\n"},
		{"zero pnorm", "search:\n  defaultPNorm: -1\n"},
		{"limit above max", "search:\n  defaultLimit: 10\n  maxResults: 5\n"},
		{"persist without interval", "analytics:\n  persistSnapshots: true\n  snapshotInterval: 0s\n"},
		{"negative rate limit", "server:\n  rateLimit: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

package snapshot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/index"
)

// Write atomically replaces the snapshot at path. It writes path.tmp,
// fsyncs it and renames it over path, so readers never observe a partial
// file. It returns the number of bytes written.
func Write(path string, idx *index.Index) (int, error) {
	data, err := Marshal(idx)
	if err != nil {
		return 0, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("creating snapshot directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return 0, fmt.Errorf("writing snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("syncing snapshot file: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("closing snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("renaming snapshot file: %w", err)
	}
	return len(data), nil
}

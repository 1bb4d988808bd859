package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/errors"
)

// Load reads and decodes the snapshot at path. A missing file is
// ErrSnapshotNotFound; a malformed one is ErrSnapshotCorrupt.
func Load(path string) (*index.Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrSnapshotNotFound, path)
		}
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	idx, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", path, err)
	}
	return idx, nil
}

// Exists reports whether a snapshot file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Package snapshot persists an index as a single flat JSON document:
//
//	{"python": {"doc1": 0.83, "doc2": 0.11}, "java": {"doc1": 0.40}}
//
// Keys are terms, nested keys are document IDs and values are normalized
// weights. Encoding uses Go's shortest float formatting, so a Marshal /
// Unmarshal round trip reproduces every weight exactly.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/errors"
)

// Marshal encodes idx. Output is deterministic: keys are sorted.
func Marshal(idx *index.Index) ([]byte, error) {
	data, err := json.Marshal(idx.Raw())
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a snapshot. Anything that is not an object of objects
// of weights in [0,1] is reported as ErrSnapshotCorrupt.
func Unmarshal(data []byte) (*index.Index, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", apperrors.ErrSnapshotCorrupt)
	}
	var raw map[string]map[string]float64
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSnapshotCorrupt, err)
	}
	for term, docs := range raw {
		if docs == nil {
			return nil, fmt.Errorf("%w: term %q has no postings object", apperrors.ErrSnapshotCorrupt, term)
		}
		for doc, w := range docs {
			if math.IsNaN(w) || w < 0 || w > 1 {
				return nil, fmt.Errorf("%w: weight %v for (%q, %q) outside [0,1]", apperrors.ErrSnapshotCorrupt, w, term, doc)
			}
		}
	}
	return index.New(raw), nil
}

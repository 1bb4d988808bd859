// Package scan is the index-less baseline: it answers single-term queries
// by reading every document. It exists to measure what the inverted index
// buys and is not used to serve queries.
package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/parser"
)

type Result struct {
	Term     string        `json:"term"`
	Stem     string        `json:"stem"`
	DocIDs   []string      `json:"doc_ids"`
	Scanned  int           `json:"scanned"`
	Duration time.Duration `json:"duration"`
}

// Sequential stems term and returns, in source order, every document whose
// lower-cased text contains the stem as a substring. A nil stem matches the
// lower-cased term itself.
func Sequential(ctx context.Context, src source.Source, term string, stem parser.Stemmer) (*Result, error) {
	start := time.Now()
	needle := strings.ToLower(strings.TrimSpace(term))
	if stem != nil {
		needle = stem.Stem(needle)
	}
	res := &Result{Term: term, Stem: needle, DocIDs: []string{}}
	if needle == "" {
		return res, nil
	}
	err := src.Each(ctx, func(doc source.Document) error {
		res.Scanned++
		if strings.Contains(strings.ToLower(doc.Text), needle) {
			res.DocIDs = append(res.DocIDs, doc.ID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", src.Name(), err)
	}
	res.Duration = time.Since(start)
	return res, nil
}

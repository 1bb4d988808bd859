package index

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	apperrors "github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/errors"
)

// TermCounts accumulates raw term occurrences per document during the first
// build pass. It is not safe for concurrent use; each build worker owns one
// and the partials are merged afterwards.
type TermCounts struct {
	counts map[string]map[string]int
	docs   map[string]struct{}
	size   int64
}

func NewTermCounts() *TermCounts {
	return &TermCounts{
		counts: make(map[string]map[string]int),
		docs:   make(map[string]struct{}),
	}
}

// AddDocument records the normalized terms of one document. A document may
// have no terms; it still counts toward the corpus size.
func (c *TermCounts) AddDocument(docID string, terms []string) error {
	if _, dup := c.docs[docID]; dup {
		return fmt.Errorf("%w: document %q added twice", apperrors.ErrInvalidInput, docID)
	}
	c.docs[docID] = struct{}{}
	for _, term := range terms {
		docs, ok := c.counts[term]
		if !ok {
			docs = make(map[string]int)
			c.counts[term] = docs
		}
		if docs[docID] == 0 {
			c.size += int64(len(term) + len(docID) + 16)
		}
		docs[docID]++
	}
	return nil
}

// Merge folds other into c and takes ownership of its maps; other must not
// be used afterwards. Document sets must be disjoint.
func (c *TermCounts) Merge(other *TermCounts) error {
	for doc := range other.docs {
		if _, dup := c.docs[doc]; dup {
			return fmt.Errorf("%w: document %q present in two partitions", apperrors.ErrInvalidInput, doc)
		}
		c.docs[doc] = struct{}{}
	}
	for term, docs := range other.counts {
		dst, ok := c.counts[term]
		if !ok {
			c.counts[term] = docs
			continue
		}
		for doc, n := range docs {
			dst[doc] += n
		}
	}
	c.size += other.size
	return nil
}

// Count returns how often term occurs in doc.
func (c *TermCounts) Count(term, doc string) int {
	return c.counts[term][doc]
}

func (c *TermCounts) DocFreq(term string) int {
	return len(c.counts[term])
}

// DocCount is the number of documents added, including ones with no terms.
func (c *TermCounts) DocCount() int {
	return len(c.docs)
}

func (c *TermCounts) TermCount() int {
	return len(c.counts)
}

// Size is a rough estimate of the memory held by the counts in bytes.
func (c *TermCounts) Size() int64 {
	return c.size
}

// Stats lists per-document counts of term sorted by DocID.
func (c *TermCounts) Stats(term string) []DocStats {
	docs := c.counts[term]
	out := make([]DocStats, 0, len(docs))
	for doc, n := range docs {
		out = append(out, DocStats{DocID: doc, TermFreq: n})
	}
	slices.SortFunc(out, func(a, b DocStats) int {
		return cmp.Compare(a.DocID, b.DocID)
	})
	return out
}

// Weights runs the weighting and normalization passes over the merged
// counts. With N documents and document frequency df, each (term, doc) with
// count c gets (1 + log10 c) * log10(N/df), and every weight is then
// divided by the global maximum unless that maximum is 0. It returns the
// maximum raw weight.
func (c *TermCounts) Weights() (map[string]map[string]float64, float64) {
	n := float64(len(c.docs))
	weights := make(map[string]map[string]float64, len(c.counts))
	maxRaw := 0.0
	for term, docs := range c.counts {
		idf := IDF(n, len(docs))
		row := make(map[string]float64, len(docs))
		for doc, count := range docs {
			w := TF(count) * idf
			row[doc] = w
			if w > maxRaw {
				maxRaw = w
			}
		}
		weights[term] = row
	}
	if maxRaw > 0 {
		for _, row := range weights {
			for doc := range row {
				row[doc] /= maxRaw
			}
		}
	}
	return weights, maxRaw
}

// IDF is log10(n/df), or 0 when df is not positive.
func IDF(n float64, df int) float64 {
	if df <= 0 {
		return 0
	}
	return math.Log10(n / float64(df))
}

// TF is the log-scaled term frequency 1 + log10(count).
func TF(count int) float64 {
	if count <= 0 {
		return 0
	}
	return 1 + math.Log10(float64(count))
}

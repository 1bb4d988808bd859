// Package partition splits the first build pass across workers. Documents
// are assigned to a partition by hashing their ID, each partition owns an
// independent index.TermCounts, and the Router merges the partials once all
// workers are done.
package partition

import (
	"fmt"
	"hash/fnv"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/index"
)

// Router maps document IDs to partitions. Route and Merge are safe to call
// from one goroutine; each partition's counts must only be touched by its
// own worker.
type Router struct {
	counts []*index.TermCounts
	logger *slog.Logger
}

// NewRouter creates n partitions; n below 1 is treated as 1.
func NewRouter(n int) *Router {
	if n < 1 {
		n = 1
	}
	r := &Router{
		counts: make([]*index.TermCounts, n),
		logger: slog.Default().With("component", "partition-router"),
	}
	for i := range r.counts {
		r.counts[i] = index.NewTermCounts()
	}
	return r
}

// Route returns the partition responsible for docID.
func (r *Router) Route(docID string) int {
	return Assign(docID, len(r.counts))
}

// Counts returns the term counts owned by partition i.
func (r *Router) Counts(i int) (*index.TermCounts, error) {
	if i < 0 || i >= len(r.counts) {
		return nil, fmt.Errorf("unknown partition %d (valid range: 0-%d)", i, len(r.counts)-1)
	}
	return r.counts[i], nil
}

func (r *Router) NumPartitions() int {
	return len(r.counts)
}

// DocCounts returns the number of documents counted by each partition.
func (r *Router) DocCounts() []int {
	out := make([]int, len(r.counts))
	for i, c := range r.counts {
		out[i] = c.DocCount()
	}
	return out
}

// Merge folds every partition into one TermCounts. The router must not be
// used afterwards.
func (r *Router) Merge() (*index.TermCounts, error) {
	merged := r.counts[0]
	for i, c := range r.counts[1:] {
		if err := merged.Merge(c); err != nil {
			return nil, fmt.Errorf("merging partition %d: %w", i+1, err)
		}
	}
	r.logger.Debug("partitions merged",
		"partitions", len(r.counts),
		"documents", merged.DocCount(),
		"terms", merged.TermCount(),
		"approx_bytes", merged.Size(),
	)
	r.counts = nil
	return merged, nil
}

// Assign hashes docID with FNV-1a onto one of n partitions.
func Assign(docID string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(docID))
	return int(h.Sum32() % uint32(n))
}

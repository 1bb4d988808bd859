// Package merger combines partial rankings produced by parallel evaluation
// workers into one ranking.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/ranker"
)

// Merge returns the best limit documents across partials, ordered by score
// descending then DocID ascending. A limit of zero or less keeps every
// document. Partials need not be sorted.
func Merge(partials [][]ranker.ScoredDoc, limit int) []ranker.ScoredDoc {
	h := &scoredDocHeap{}
	for _, results := range partials {
		for _, doc := range results {
			heap.Push(h, doc)
			if limit > 0 && h.Len() > limit {
				heap.Pop(h)
			}
		}
	}
	result := make([]ranker.ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ranker.ScoredDoc)
	}
	return result
}

// scoredDocHeap is a min-heap on ranking order: the root is the document
// that would be ranked last.
type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].DocID > h[j].DocID
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x any) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

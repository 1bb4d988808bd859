// Package reload keeps the searcher's index current. A Holder publishes the
// active index; a Reloader replaces it from the snapshot file when the file
// changes or the indexer announces a new build.
package reload

import (
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/index"
)

// Holder publishes the active index. Queries take the pointer once and keep
// using that instance, so a swap never affects a query in flight.
type Holder struct {
	current atomic.Pointer[index.Index]
}

func NewHolder(idx *index.Index) *Holder {
	h := &Holder{}
	if idx != nil {
		h.current.Store(idx)
	}
	return h
}

// Current returns the active index, or nil before the first load.
func (h *Holder) Current() *index.Index {
	return h.current.Load()
}

// Swap installs idx and returns the previous index.
func (h *Holder) Swap(idx *index.Index) *index.Index {
	return h.current.Swap(idx)
}

// Package index holds the weighted inverted index (term -> document ->
// weight in [0,1]) and the mutable per-partition counts it is built from.
// An Index is immutable once constructed and safe for concurrent readers
// without locking; a rebuild produces a new Index.
package index

import (
	"cmp"
	"encoding/binary"
	"hash/fnv"
	"math"
	"slices"
	"strconv"
)

type Index struct {
	postings    map[string]map[string]float64
	docs        []string
	terms       []string
	numPostings int
	maxWeight   float64
	fingerprint string
}

// New copies weights into a new Index. Terms with no documents are dropped
// so every term present has a document frequency of at least one.
func New(weights map[string]map[string]float64) *Index {
	idx := &Index{
		postings: make(map[string]map[string]float64, len(weights)),
	}
	docSet := make(map[string]struct{})
	for term, docs := range weights {
		if len(docs) == 0 {
			continue
		}
		cp := make(map[string]float64, len(docs))
		for doc, w := range docs {
			cp[doc] = w
			docSet[doc] = struct{}{}
			if w > idx.maxWeight {
				idx.maxWeight = w
			}
		}
		idx.postings[term] = cp
		idx.terms = append(idx.terms, term)
		idx.numPostings += len(cp)
	}
	slices.Sort(idx.terms)
	idx.docs = make([]string, 0, len(docSet))
	for doc := range docSet {
		idx.docs = append(idx.docs, doc)
	}
	slices.Sort(idx.docs)
	idx.fingerprint = idx.computeFingerprint()
	return idx
}

// Empty returns an index with no terms.
func Empty() *Index {
	return New(nil)
}

// Weight returns the weight of term in doc, or 0 when either is unknown.
func (x *Index) Weight(term, doc string) float64 {
	return x.postings[term][doc]
}

// Contains reports whether term is a key of the vocabulary.
func (x *Index) Contains(term string) bool {
	_, ok := x.postings[term]
	return ok
}

// Docs returns the sorted union of every document referenced by any term.
// The slice is shared; callers must not modify it.
func (x *Index) Docs() []string {
	return x.docs
}

// Terms returns the sorted vocabulary. The slice is shared; callers must
// not modify it.
func (x *Index) Terms() []string {
	return x.terms
}

func (x *Index) DocFreq(term string) int {
	return len(x.postings[term])
}

// Postings returns the postings of term sorted by DocID, or nil.
func (x *Index) Postings(term string) PostingList {
	docs, ok := x.postings[term]
	if !ok {
		return nil
	}
	result := make(PostingList, 0, len(docs))
	for doc, w := range docs {
		result = append(result, Posting{DocID: doc, Weight: w})
	}
	slices.SortFunc(result, func(a, b Posting) int {
		return cmp.Compare(a.DocID, b.DocID)
	})
	return result
}

// Snapshot returns every term with its postings, sorted by term.
func (x *Index) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(x.terms))
	for _, term := range x.terms {
		entries = append(entries, TermEntry{Term: term, Postings: x.Postings(term)})
	}
	return entries
}

// Raw returns a deep copy of the term -> document -> weight mapping.
func (x *Index) Raw() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(x.postings))
	for term, docs := range x.postings {
		cp := make(map[string]float64, len(docs))
		for doc, w := range docs {
			cp[doc] = w
		}
		out[term] = cp
	}
	return out
}

func (x *Index) NumTerms() int    { return len(x.terms) }
func (x *Index) NumDocs() int     { return len(x.docs) }
func (x *Index) NumPostings() int { return x.numPostings }

// MaxWeight is 1 for any built index with a nonzero weight.
func (x *Index) MaxWeight() float64 { return x.maxWeight }

// Fingerprint identifies the index contents. Two indexes with the same
// terms, documents and weights share a fingerprint.
func (x *Index) Fingerprint() string { return x.fingerprint }

func (x *Index) computeFingerprint() string {
	h := fnv.New64a()
	var buf [8]byte
	for _, term := range x.terms {
		h.Write([]byte(term))
		h.Write([]byte{0})
		for _, p := range x.Postings(term) {
			h.Write([]byte(p.DocID))
			h.Write([]byte{0})
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.Weight))
			h.Write(buf[:])
		}
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

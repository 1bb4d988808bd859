package index

// Posting is one document's normalized weight for a term.
type Posting struct {
	DocID  string  `json:"doc_id"`
	Weight float64 `json:"weight"`
}

// PostingList is ordered by DocID.
type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

// DocStats summarises how often one term occurs in one document during a
// build.
type DocStats struct {
	DocID    string
	TermFreq int
}

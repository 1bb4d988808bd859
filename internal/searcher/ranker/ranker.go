// Package ranker scores documents against a postfix query with p-norm
// fuzzy boolean operators.
package ranker

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/errors"
)

// MinRelevance is the relevance floor. Scores at or below it are dropped.
const MinRelevance = 0.05

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Scorer evaluates one postfix query per document. Its operand stack is
// reused between documents, so a Scorer must not be shared by goroutines.
type Scorer struct {
	tokens parser.Postfix
	idx    *index.Index
	p      float64
	stack  []float64
}

func NewScorer(tokens parser.Postfix, idx *index.Index, p float64) (*Scorer, error) {
	if !ValidPNorm(p) {
		return nil, apperrors.Invalid("p-norm must be a finite number greater than 0, got %v", p)
	}
	return &Scorer{
		tokens: tokens,
		idx:    idx,
		p:      p,
		stack:  make([]float64, 0, len(tokens)),
	}, nil
}

// Score runs the stack machine for docID. It reports false when the stack
// ends empty, which excludes the document. Operators missing operands
// treat them as 0 and leftover group tokens are skipped.
func (s *Scorer) Score(docID string) (float64, bool) {
	s.stack = s.stack[:0]
	for _, tok := range s.tokens {
		switch tok.Kind {
		case parser.KindTerm:
			s.stack = append(s.stack, s.idx.Weight(tok.Term, docID))
		case parser.KindAnd:
			w2, w1 := s.pop(), s.pop()
			s.stack = append(s.stack, And(w1, w2, s.p))
		case parser.KindOr:
			w2, w1 := s.pop(), s.pop()
			s.stack = append(s.stack, Or(w1, w2, s.p))
		case parser.KindNot:
			s.stack = append(s.stack, Not(s.pop()))
		}
	}
	if len(s.stack) == 0 {
		return 0, false
	}
	return s.stack[len(s.stack)-1], true
}

func (s *Scorer) pop() float64 {
	n := len(s.stack)
	if n == 0 {
		return 0
	}
	w := s.stack[n-1]
	s.stack = s.stack[:n-1]
	return w
}

// Rank scores docs and returns those above MinRelevance, rounded to four
// decimals and ordered by score descending then DocID ascending. A positive
// limit truncates the result. ctx is checked before every document.
func Rank(ctx context.Context, tokens parser.Postfix, idx *index.Index, docs []string, p float64, limit int) ([]ScoredDoc, error) {
	scorer, err := NewScorer(tokens, idx, p)
	if err != nil {
		return nil, err
	}
	result := make([]ScoredDoc, 0)
	for _, docID := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score, ok := scorer.Score(docID)
		if !ok || !(score > MinRelevance) {
			continue
		}
		result = append(result, ScoredDoc{DocID: docID, Score: Round(score)})
	}
	Sort(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Round rounds a score to four decimal places.
func Round(score float64) float64 {
	return math.Round(score*10000) / 10000
}

// Sort orders docs by score descending, breaking ties by DocID.
func Sort(docs []ScoredDoc) {
	slices.SortFunc(docs, func(a, b ScoredDoc) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.DocID, b.DocID)
	})
}

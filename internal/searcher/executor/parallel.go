package executor

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/errors"
)

// minChunk is the smallest number of documents worth a goroutine.
const minChunk = 256

// Options tunes one evaluation.
type Options struct {
	PNorm float64
	// Limit caps the merged ranking; zero or less keeps every match.
	Limit int
	// Workers bounds the evaluation goroutines; zero or less means
	// GOMAXPROCS.
	Workers int
}

// Evaluate scores every document of idx against tokens. Documents are
// split into contiguous chunks ranked concurrently; the partial rankings
// are merged into one ordered result.
func Evaluate(ctx context.Context, tokens parser.Postfix, idx *index.Index, opts Options) ([]ranker.ScoredDoc, error) {
	if !ranker.ValidPNorm(opts.PNorm) {
		return nil, apperrors.Invalid("p-norm must be a finite number greater than 0, got %v", opts.PNorm)
	}
	parts := chunk(idx.Docs(), opts.Workers, minChunk)
	partials := make([][]ranker.ScoredDoc, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	for i, docs := range parts {
		g.Go(func() error {
			ranked, err := ranker.Rank(gctx, tokens, idx, docs, opts.PNorm, opts.Limit)
			if err != nil {
				return err
			}
			partials[i] = ranked
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return merger.Merge(partials, opts.Limit), nil
}

// chunk splits docs into at most workers contiguous parts of at least
// minSize documents each. The parts share docs' backing array.
func chunk(docs []string, workers, minSize int) [][]string {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	minSize = max(minSize, 1)
	n := min((len(docs)+minSize-1)/minSize, workers)
	if n <= 1 {
		return [][]string{docs}
	}
	size := (len(docs) + n - 1) / n
	parts := make([][]string, 0, n)
	for start := 0; start < len(docs); start += size {
		parts = append(parts, docs[start:min(start+size, len(docs))])
	}
	return parts
}

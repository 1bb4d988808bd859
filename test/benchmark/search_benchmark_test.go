package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/searcher/scan"
)

var benchQueries = []struct {
	name  string
	query string
}{
	{"single", "python"},
	{"and", "python AND dictionary"},
	{"or", "java OR c# OR c++"},
	{"not", "python AND NOT windows"},
	{"nested", "(python OR java) AND (sorting OR stream) AND NOT docker"},
}

func BenchmarkParse(b *testing.B) {
	idx := buildIndex(b, 1000)
	stem := tokenizer.MustNew()
	for _, q := range benchQueries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_ = parser.Parse(q.query, idx, stem)
			}
		})
	}
}

func BenchmarkScore(b *testing.B) {
	idx := buildIndex(b, 1000)
	docs := idx.Docs()
	for _, q := range benchQueries {
		tokens := parser.Parse(q.query, idx, tokenizer.MustNew())
		scorer, err := ranker.NewScorer(tokens, idx, 2)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			i := 0
			for b.Loop() {
				_, _ = scorer.Score(docs[i%len(docs)])
				i++
			}
		})
	}
}

// BenchmarkEvaluate compares sequential and parallel evaluation over
// growing corpora.
func BenchmarkEvaluate(b *testing.B) {
	for _, n := range []int{1000, 10000, 50000} {
		idx := buildIndex(b, n)
		tokens := parser.Parse("(python OR java) AND NOT windows", idx, tokenizer.MustNew())
		for _, workers := range []int{1, 4, 8} {
			b.Run(fmt.Sprintf("docs_%d/workers_%d", n, workers), func(b *testing.B) {
				b.ReportAllocs()
				for b.Loop() {
					if _, err := executor.Evaluate(context.Background(), tokens, idx, executor.Options{PNorm: 2, Limit: 10, Workers: workers}); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkEvaluateVaryingP(b *testing.B) {
	idx := buildIndex(b, 10000)
	tokens := parser.Parse("python AND (sorting OR dictionary)", idx, tokenizer.MustNew())
	for _, p := range []float64{1, 2, 5, 10} {
		b.Run(fmt.Sprintf("p_%g", p), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := executor.Evaluate(context.Background(), tokens, idx, executor.Options{PNorm: p, Limit: 10}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkEvaluateParallelClients(b *testing.B) {
	idx := buildIndex(b, 10000)
	tokens := parser.Parse("(python OR java) AND NOT windows", idx, tokenizer.MustNew())
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := executor.Evaluate(context.Background(), tokens, idx, executor.Options{PNorm: 2, Limit: 10, Workers: 1}); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkSequentialScanVsIndex is the index-less baseline against the
// indexed path for the same single-term query.
func BenchmarkSequentialScanVsIndex(b *testing.B) {
	docs := corpus(10000)
	norm := tokenizer.MustNew()
	idx := buildIndex(b, 10000)

	b.Run("scan", func(b *testing.B) {
		for b.Loop() {
			if _, err := scan.Sequential(context.Background(), docs, "sorting", norm); err != nil {
				b.Fatal(err)
			}
		}
	})
	b.Run("indexed", func(b *testing.B) {
		for b.Loop() {
			if _, err := executor.Search(context.Background(), "sorting", 2, idx, norm); err != nil {
				b.Fatal(err)
			}
		}
	})
}

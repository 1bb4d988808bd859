package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/tokenizer"
)

var sampleTexts = map[string]string{
	"short": "How do I sort a dictionary by value in Python?",
	"medium": `I'm trying to read a UTF-8 file in C++ and print each line, but the
        non-ASCII characters come out garbled on Windows. I've tried std::wifstream
        with a locale and also converting with MultiByteToWideChar. Is there a
        portable way to handle Unicode text files in C++17 without Boost?`,
	"long": strings.Repeat(`Node.js streams let you process large files without
        loading them into memory. A readable stream emits data events, and piping it
        into a writable stream handles backpressure for you. When using async
        iterators with for await, errors thrown inside the loop destroy the stream.
        In .NET the equivalent is IAsyncEnumerable, and C# 8 added await foreach. `, 20),
}

func BenchmarkNormalize(b *testing.B) {
	norm := tokenizer.MustNew()
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for b.Loop() {
				_ = norm.Normalize(text)
			}
		})
	}
}

func BenchmarkNormalizeParallel(b *testing.B) {
	norm := tokenizer.MustNew()
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = norm.Normalize(text)
		}
	})
}

func BenchmarkTokens(b *testing.B) {
	text := sampleTexts["long"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for b.Loop() {
		_ = tokenizer.Tokens(text)
	}
}

func BenchmarkStemming(b *testing.B) {
	norm := tokenizer.MustNew()
	words := []string{
		"running", "sorting", "dictionaries", "iterators",
		"tokenization", "normalization", "efficiently",
		"processing", "characters", "portable",
	}
	b.ReportAllocs()
	for b.Loop() {
		for _, w := range words {
			_ = norm.Stem(w)
		}
	}
}

func BenchmarkNormalizeVaryingSize(b *testing.B) {
	norm := tokenizer.MustNew()
	sizes := []int{10, 100, 500, 1000, 5000}
	baseWord := "sorting python dictionaries with lambda keys "
	for _, size := range sizes {
		text := strings.Repeat(baseWord, size/len(baseWord)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for b.Loop() {
				_ = norm.Normalize(text)
			}
		})
	}
}

// Package tokenizer turns raw document and query text into index terms.
// Text is lower-cased, split into letter-led tokens that may carry digits
// and the characters # + . - (so c++, c# and .net survive), filtered for
// stop-words and single characters, and stemmed with the Snowball English
// stemmer unless the token is a known technical term.
package tokenizer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kljensen/snowball"

	apperrors "github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/errors"
)

// Normalizer is the text-normalization capability consumed by the index
// builder and the query parser.
type Normalizer interface {
	// Normalize returns the terms of text in input order, duplicates kept.
	Normalize(text string) []string
	// Stem applies the stemming pass alone to a single lower-cased word.
	Stem(word string) string
}

var tokenPattern = regexp.MustCompile(`\.?[a-z][a-z0-9#+.\-]*`)

// Options configures an English normalizer. Zero values select the
// built-in stop-word and technical-term lists.
type Options struct {
	Language   string
	StopWords  []string
	Exceptions []string
}

// English is the default Normalizer. It is immutable and safe for
// concurrent use.
type English struct {
	language   string
	stopWords  map[string]struct{}
	exceptions map[string]struct{}
}

var _ Normalizer = (*English)(nil)

// New builds an English normalizer. It fails with ErrNormalizerUnavailable
// when the stemmer does not support the requested language.
func New(opts Options) (*English, error) {
	lang := strings.ToLower(opts.Language)
	if lang == "" {
		lang = "english"
	}
	if lang != "english" {
		return nil, fmt.Errorf("%w: language %q is not supported", apperrors.ErrNormalizerUnavailable, opts.Language)
	}
	if _, err := snowball.Stem("probing", lang, true); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrNormalizerUnavailable, err)
	}

	stop := opts.StopWords
	if stop == nil {
		stop = englishStopWords
	}
	exc := opts.Exceptions
	if exc == nil {
		exc = techExceptions
	}
	return &English{
		language:   lang,
		stopWords:  toSet(stop),
		exceptions: toSet(exc),
	}, nil
}

// MustNew is New for the default English configuration; it panics on error.
func MustNew() *English {
	n, err := New(Options{})
	if err != nil {
		panic(err)
	}
	return n
}

func (e *English) Normalize(text string) []string {
	words := Tokens(text)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) <= 1 {
			continue
		}
		if _, stop := e.stopWords[w]; stop {
			continue
		}
		if _, keep := e.exceptions[w]; keep {
			terms = append(terms, w)
			continue
		}
		terms = append(terms, e.Stem(w))
	}
	return terms
}

func (e *English) Stem(word string) string {
	stemmed, err := snowball.Stem(word, e.language, true)
	if err != nil {
		// Language was validated in New.
		return word
	}
	return stemmed
}

// IsException reports whether word bypasses stemming.
func (e *English) IsException(word string) bool {
	_, ok := e.exceptions[word]
	return ok
}

// Tokens lower-cases text and extracts candidate tokens without filtering
// or stemming. Trailing dots and hyphens (sentence punctuation) are trimmed.
func Tokens(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		t = strings.TrimRight(t, ".-")
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

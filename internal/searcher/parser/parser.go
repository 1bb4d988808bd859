// Package parser converts infix boolean queries such as
// "(python OR java) AND NOT windows" into postfix token order using an
// operator-precedence stack. Parsing never fails: unmatched parentheses and
// unknown words degrade into inert or zero-scoring tokens.
package parser

import (
	"regexp"
	"strings"
)

type Kind int

const (
	KindTerm Kind = iota
	KindAnd
	KindOr
	KindNot
	// KindGroup is an unmatched "(" flushed at the end of parsing. It has
	// no operator semantics and evaluators skip it.
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindTerm:
		return "TERM"
	case KindAnd:
		return "AND"
	case KindOr:
		return "OR"
	case KindNot:
		return "NOT"
	case KindGroup:
		return "("
	default:
		return "?"
	}
}

type Token struct {
	Kind Kind
	Term string
}

func (t Token) String() string {
	if t.Kind == KindTerm {
		return t.Term
	}
	return t.Kind.String()
}

// Postfix is a parsed query in evaluation order.
type Postfix []Token

// String renders the tokens space-separated, e.g. "a b c AND OR".
func (p Postfix) String() string {
	parts := make([]string, len(p))
	for i, t := range p {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

// Terms returns the term tokens in order, duplicates included.
func (p Postfix) Terms() []string {
	var terms []string
	for _, t := range p {
		if t.Kind == KindTerm {
			terms = append(terms, t.Term)
		}
	}
	return terms
}

// Vocabulary is the set of index terms; *index.Index satisfies it.
type Vocabulary interface {
	Contains(term string) bool
}

// Stemmer is the stemming fallback for words missing from the vocabulary.
type Stemmer interface {
	Stem(word string) string
}

var (
	queryPattern = regexp.MustCompile(`\(|\)|\.?[a-zA-Z][a-zA-Z0-9#+.\-]*`)

	precedence = map[Kind]int{
		KindNot:   3,
		KindAnd:   2,
		KindOr:    1,
		KindGroup: 0,
	}
)

// Parse converts query to postfix. A lower-cased word found in vocab is
// emitted as is; any other word is emitted in stemmed form, even when the
// stem is not in vocab either. A nil vocab is empty and a nil stem leaves
// words unchanged.
func Parse(query string, vocab Vocabulary, stem Stemmer) Postfix {
	var (
		output Postfix
		stack  []Kind
	)
	for _, raw := range Lex(query) {
		switch raw {
		case "(":
			stack = append(stack, KindGroup)
		case ")":
			open := -1
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i] == KindGroup {
					open = i
					break
				}
			}
			if open < 0 {
				// Unmatched ")" is ignored.
				continue
			}
			for i := len(stack) - 1; i > open; i-- {
				output = append(output, Token{Kind: stack[i]})
			}
			stack = stack[:open]
		default:
			if op, ok := operator(raw); ok {
				for len(stack) > 0 && precedence[stack[len(stack)-1]] >= precedence[op] {
					output = append(output, Token{Kind: stack[len(stack)-1]})
					stack = stack[:len(stack)-1]
				}
				stack = append(stack, op)
				continue
			}
			output = append(output, Token{Kind: KindTerm, Term: resolve(raw, vocab, stem)})
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		output = append(output, Token{Kind: stack[i]})
	}
	return output
}

// Lex splits query into parentheses and words. Operators are not resolved
// here; trailing dots and hyphens are trimmed from words.
func Lex(query string) []string {
	raw := queryPattern.FindAllString(query, -1)
	out := raw[:0]
	for _, tok := range raw {
		if tok != "(" && tok != ")" {
			tok = strings.TrimRight(tok, ".-")
			if tok == "" {
				continue
			}
		}
		out = append(out, tok)
	}
	return out
}

func operator(word string) (Kind, bool) {
	switch strings.ToUpper(word) {
	case "AND":
		return KindAnd, true
	case "OR":
		return KindOr, true
	case "NOT":
		return KindNot, true
	}
	return 0, false
}

func resolve(word string, vocab Vocabulary, stem Stemmer) string {
	lower := strings.ToLower(word)
	if vocab != nil && vocab.Contains(lower) {
		return lower
	}
	if stem == nil {
		return lower
	}
	return stem.Stem(lower)
}

package knn

import (
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Analyzer turns raw text into the terms stored in, and looked up from, the
// inverted index. The same analyzer should be used for indexing and for
// building similarity queries, otherwise query terms will not line up with
// indexed terms.
type Analyzer interface {
	// Analyze returns the terms of text in order of appearance.
	Analyze(text string) []string
}

// Compile-time check to ensure StandardAnalyzer implements Analyzer
var _ Analyzer = (*StandardAnalyzer)(nil)

// EnglishStopWords is a small list of common English words that carry little
// signal for similarity.
var EnglishStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "if", "in",
	"into", "is", "it", "no", "not", "of", "on", "or", "such", "that", "the",
	"their", "then", "there", "these", "they", "this", "to", "was", "will", "with",
}

// StandardAnalyzer normalizes text with NFKC, applies Unicode case folding,
// splits it on UAX#29 word boundaries and drops segments that contain no
// letter or digit (whitespace, punctuation). Optional stop words are removed
// after folding.
//
// A StandardAnalyzer is immutable after construction and safe for concurrent use.
type StandardAnalyzer struct {
	stopWords map[string]struct{}
}

// NewStandardAnalyzer creates an analyzer that removes the given stop words.
// Stop words are folded the same way as input text.
//
// Example:
//
//	a := NewStandardAnalyzer(EnglishStopWords...)
//	a.Analyze("The Quick, brown fox!") // ["quick", "brown", "fox"]
func NewStandardAnalyzer(stopWords ...string) *StandardAnalyzer {
	a := &StandardAnalyzer{}
	if len(stopWords) > 0 {
		a.stopWords = make(map[string]struct{}, len(stopWords))
		for _, w := range stopWords {
			a.stopWords[normalize(w)] = struct{}{}
		}
	}
	return a
}

// Analyze implements Analyzer.
func (a *StandardAnalyzer) Analyze(text string) []string {
	var terms []string
	for _, tok := range tokenize(normalize(text)) {
		if _, stop := a.stopWords[tok]; stop {
			continue
		}
		terms = append(terms, tok)
	}
	return terms
}

// normalize applies Unicode normalization (NFKC) and case folding.
// A cases.Caser is stateful, so one is created per call.
func normalize(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

// tokenize splits text into word tokens using UAX#29 word segmentation.
func tokenize(s string) []string {
	toks := words.FromString(s)
	var tokens []string
	for toks.Next() {
		if tok := toks.Value(); isWord(tok) {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// isWord reports whether a segment holds at least one letter or digit.
func isWord(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

package knn

import (
	"container/heap"
	"math"
)

// MoreLikeThis defaults
const (
	// DefaultMinTermFreq ignores terms that occur fewer times in the input text
	DefaultMinTermFreq = 2
	// DefaultMinDocFreq ignores terms that occur in fewer indexed documents
	DefaultMinDocFreq = 5
	// DefaultMaxDocFreq places no upper bound on document frequency
	DefaultMaxDocFreq = math.MaxInt
	// DefaultMaxQueryTerms caps the number of terms in a generated query
	DefaultMaxQueryTerms = 25
	// DefaultBoostFactor scales term boosts when Boost is enabled
	DefaultBoostFactor = 1.0
)

// MoreLikeThis builds "documents resembling this text" queries from the
// statistics of an index.
//
// For an input text it counts the frequency of each analyzed term, drops
// terms that are too rare in the text, too rare or too common in the index, or
// outside the word length bounds, weights the rest by tf * idf and keeps the
// MaxQueryTerms best as Should clauses of a BooleanQuery.
//
// Configure the exported fields before calling Like. A configured
// MoreLikeThis is read-only and safe for concurrent use.
type MoreLikeThis struct {
	stats    TermStatistics
	analyzer Analyzer

	// MinTermFreq is the minimum frequency of a term in the input text.
	// Values <= 0 disable the check.
	MinTermFreq int
	// MinDocFreq is the minimum number of indexed documents containing a
	// term. Values <= 0 disable the check.
	MinDocFreq int
	// MaxDocFreq is the maximum number of indexed documents containing a
	// term. Values <= 0 disable the check.
	MaxDocFreq int
	// MaxQueryTerms caps the number of generated term clauses. Values <= 0
	// keep every qualifying term.
	MaxQueryTerms int
	// MinWordLen and MaxWordLen bound term length in runes; 0 disables a bound.
	MinWordLen int
	MaxWordLen int
	// Boost weights each term clause by its score relative to the best term,
	// times BoostFactor.
	Boost       bool
	BoostFactor float64
}

// NewMoreLikeThis creates a query builder with the default thresholds.
// A nil analyzer selects a StandardAnalyzer without stop words.
func NewMoreLikeThis(stats TermStatistics, analyzer Analyzer) *MoreLikeThis {
	if analyzer == nil {
		analyzer = NewStandardAnalyzer()
	}
	return &MoreLikeThis{
		stats:         stats,
		analyzer:      analyzer,
		MinTermFreq:   DefaultMinTermFreq,
		MinDocFreq:    DefaultMinDocFreq,
		MaxDocFreq:    DefaultMaxDocFreq,
		MaxQueryTerms: DefaultMaxQueryTerms,
		BoostFactor:   DefaultBoostFactor,
	}
}

// scoredTerm is a candidate query term.
type scoredTerm struct {
	term  string
	score float64
}

// Like returns a query matching documents whose field resembles text. When no
// term qualifies the returned query matches nothing.
//
// Example:
//
//	mlt := NewMoreLikeThis(idx, NewStandardAnalyzer())
//	mlt.MinTermFreq, mlt.MinDocFreq = 1, 1
//	hits, _ := idx.NewSearch().WithQuery(mlt.Like("body", "brown fox")).Execute()
func (m *MoreLikeThis) Like(field, text string) Query {
	terms := m.retrieveTerms(field, text)

	clauses := make([]BooleanClause, 0, len(terms))
	for _, t := range terms {
		tq := NewTermQuery(field, t.term)
		if m.Boost && terms[0].score > 0 {
			tq.Boost = t.score / terms[0].score * m.BoostFactor
		}
		clauses = append(clauses, BooleanClause{Query: tq, Occur: Should})
	}
	return NewBooleanQuery(clauses...)
}

// retrieveTerms returns the qualifying terms best first.
func (m *MoreLikeThis) retrieveTerms(field, text string) []scoredTerm {
	freqs := make(map[string]int)
	var order []string
	for _, term := range m.analyzer.Analyze(text) {
		if !m.acceptWord(term) {
			continue
		}
		if freqs[term] == 0 {
			order = append(order, term)
		}
		freqs[term]++
	}

	numDocs := m.stats.NumDocs()
	h := &termHeap{}
	for _, term := range order {
		tf := freqs[term]
		if m.MinTermFreq > 0 && tf < m.MinTermFreq {
			continue
		}
		df := m.stats.DocFreq(field, term)
		if m.MinDocFreq > 0 && df < m.MinDocFreq {
			continue
		}
		if df == 0 || (m.MaxDocFreq > 0 && df > m.MaxDocFreq) {
			continue
		}
		score := float64(tf) * classicIDF(df, numDocs)
		candidate := scoredTerm{term: term, score: score}

		if m.MaxQueryTerms <= 0 || h.Len() < m.MaxQueryTerms {
			heap.Push(h, candidate)
		} else if candidate.ranksBefore((*h)[0]) {
			(*h)[0] = candidate
			heap.Fix(h, 0)
		}
	}

	terms := make([]scoredTerm, h.Len())
	for i := len(terms) - 1; i >= 0; i-- {
		terms[i] = heap.Pop(h).(scoredTerm)
	}
	return terms
}

func (m *MoreLikeThis) acceptWord(term string) bool {
	n := len([]rune(term))
	if m.MinWordLen > 0 && n < m.MinWordLen {
		return false
	}
	if m.MaxWordLen > 0 && n > m.MaxWordLen {
		return false
	}
	return true
}

// classicIDF is the tf-idf inverse document frequency ln((N+1)/(df+1)) + 1.
func classicIDF(docFreq, numDocs int) float64 {
	return math.Log(float64(numDocs+1)/float64(docFreq+1)) + 1
}

// ranksBefore orders terms by descending score, then lexicographically.
func (t scoredTerm) ranksBefore(other scoredTerm) bool {
	if t.score != other.score {
		return t.score > other.score
	}
	return t.term < other.term
}

// termHeap keeps the worst-ranked term at the root.
type termHeap []scoredTerm

func (h termHeap) Len() int           { return len(h) }
func (h termHeap) Less(i, j int) bool { return h[j].ranksBefore(h[i]) }
func (h termHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *termHeap) Push(x interface{}) {
	*h = append(*h, x.(scoredTerm))
}

func (h *termHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

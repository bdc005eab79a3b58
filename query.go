package knn

import (
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring"
)

// Query describes a set of matching documents and how to score them.
//
// Queries are immutable values built with the constructors in this file and
// executed by a DocumentIndex search. They are safe to share between
// goroutines.
type Query interface {
	fmt.Stringer

	// evaluate returns the matching documents admitted by filter.
	// Must be called with the index read lock held.
	evaluate(ix *DocumentIndex, filter *DocumentFilter) (*matches, error)
}

// matches is the result of evaluating a query.
type matches struct {
	docs *roaring.Bitmap
	// scores holds per-document scores; nil means every document in docs
	// scores constant.
	scores   map[uint32]float64
	constant float64
}

func noMatches() *matches {
	return &matches{docs: roaring.New()}
}

func (m *matches) score(docID uint32) float64 {
	if m.scores == nil {
		return m.constant
	}
	return m.scores[docID]
}

// hits lists the matching documents with their scores.
func (m *matches) hits() []Hit {
	hits := make([]Hit, 0, m.docs.GetCardinality())
	for iter := m.docs.Iterator(); iter.HasNext(); {
		id := iter.Next()
		hits = append(hits, Hit{DocID: id, Score: m.score(id)})
	}
	return hits
}

// Compile-time checks to ensure the query types implement Query
var (
	_ Query = (*TermQuery)(nil)
	_ Query = (*FieldExistsQuery)(nil)
	_ Query = (*FilterQuery)(nil)
	_ Query = (*BooleanQuery)(nil)
)

// TermQuery matches documents whose field contains an analyzed term,
// scored with BM25 and multiplied by Boost.
type TermQuery struct {
	Field string
	Term  string
	Boost float64
}

// NewTermQuery creates a term query with a boost of 1.
func NewTermQuery(field, term string) *TermQuery {
	return &TermQuery{Field: field, Term: term, Boost: 1}
}

func (q *TermQuery) String() string {
	if q.Boost != 1 {
		return fmt.Sprintf("%s:%s^%g", q.Field, q.Term, q.Boost)
	}
	return q.Field + ":" + q.Term
}

func (q *TermQuery) evaluate(ix *DocumentIndex, filter *DocumentFilter) (*matches, error) {
	docs, scores := ix.termScores(q.Field, q.Term, q.Boost, filter)
	return &matches{docs: docs, scores: scores}, nil
}

// FieldExistsQuery matches documents that have a non-blank value in a text
// field or any value in a metadata field. Every match scores 1.
type FieldExistsQuery struct {
	Field string
}

// NewFieldExistsQuery creates an existence query for field.
func NewFieldExistsQuery(field string) *FieldExistsQuery {
	return &FieldExistsQuery{Field: field}
}

func (q *FieldExistsQuery) String() string {
	return q.Field + ":*"
}

func (q *FieldExistsQuery) evaluate(ix *DocumentIndex, filter *DocumentFilter) (*matches, error) {
	docs := ix.presence(q.Field)
	filter.Restrict(docs)
	return &matches{docs: docs, constant: 1}, nil
}

// FilterQuery matches documents by metadata. Without groups the filters are
// AND-ed; with groups the groups are OR-ed. A query with no filters and no
// groups matches every document, with or without metadata. Every match
// scores 1.
type FilterQuery struct {
	filters []Filter
	groups  []*FilterGroup
}

// NewFilterQuery creates a query matching documents that satisfy all filters.
//
// Example:
//
//	q := NewFilterQuery(Eq("lang", "en"), Gte("year", 2020))
func NewFilterQuery(filters ...Filter) *FilterQuery {
	return &FilterQuery{filters: filters}
}

// NewFilterGroupQuery creates a query matching documents that satisfy any group.
func NewFilterGroupQuery(groups ...*FilterGroup) *FilterQuery {
	return &FilterQuery{groups: groups}
}

func (q *FilterQuery) String() string {
	if len(q.groups) == 0 {
		return "filter(" + formatFilters(q.filters, " AND ") + ")"
	}
	parts := make([]string, len(q.groups))
	for i, g := range q.groups {
		sep := " AND "
		if g.Logic == OR {
			sep = " OR "
		}
		parts[i] = "(" + formatFilters(g.Filters, sep) + ")"
	}
	return "filter(" + strings.Join(parts, " OR ") + ")"
}

func formatFilters(filters []Filter, sep string) string {
	parts := make([]string, len(filters))
	for i, f := range filters {
		switch f.Operator {
		case OpExists, OpNotExists:
			parts[i] = fmt.Sprintf("%s %s", f.Field, f.Operator)
		case OpRange, OpNotRange:
			parts[i] = fmt.Sprintf("%s %s [%v, %v]", f.Field, f.Operator, f.Value, f.Value2)
		default:
			parts[i] = fmt.Sprintf("%s %s %v", f.Field, f.Operator, f.Value)
		}
	}
	return strings.Join(parts, sep)
}

func (q *FilterQuery) evaluate(ix *DocumentIndex, filter *DocumentFilter) (*matches, error) {
	var (
		docs *roaring.Bitmap
		err  error
	)
	switch {
	case len(q.groups) == 0 && len(q.filters) == 0:
		docs = ix.allDocs.Clone()
	case len(q.groups) > 0:
		docs, err = ix.metadata.MatchGroups(q.groups...)
	default:
		docs, err = ix.metadata.Match(q.filters...)
	}
	if err != nil {
		return nil, fmt.Errorf("filter query: %w", err)
	}
	filter.Restrict(docs)
	return &matches{docs: docs, constant: 1}, nil
}

// Occur specifies how a clause takes part in a BooleanQuery.
type Occur string

const (
	// Should clauses are optional when the query has Must clauses and only
	// add to the score; otherwise at least one of them must match.
	Should Occur = "should"

	// Must clauses are required and add to the score.
	Must Occur = "must"

	// MustNot clauses exclude documents and never score.
	MustNot Occur = "must_not"
)

// BooleanClause is a sub-query with its occurrence.
type BooleanClause struct {
	Query Query
	Occur Occur
}

// BooleanQuery composes sub-queries.
//
// Matching: with Must clauses a document must match all of them; without,
// it must match at least one Should clause. MustNot clauses exclude. A query
// with no positive clause matches nothing.
//
// Scoring: the sum of the Must clause scores plus the Should clause scores
// combined with the query's ScoreAggregation (Sum by default).
type BooleanQuery struct {
	clauses     []BooleanClause
	aggregation ScoreAggregation
}

// NewBooleanQuery creates a boolean query from clauses with Sum aggregation.
//
// Example:
//
//	q := NewBooleanQuery(
//		BooleanClause{Query: NewTermQuery("body", "fox"), Occur: Should},
//		BooleanClause{Query: NewFieldExistsQuery("topic"), Occur: Must},
//	)
func NewBooleanQuery(clauses ...BooleanClause) *BooleanQuery {
	return &BooleanQuery{
		clauses:     clauses,
		aggregation: DefaultScoreAggregation(),
	}
}

// Add returns a copy of q with an additional clause.
func (q *BooleanQuery) Add(query Query, occur Occur) *BooleanQuery {
	clauses := make([]BooleanClause, len(q.clauses), len(q.clauses)+1)
	copy(clauses, q.clauses)
	return &BooleanQuery{
		clauses:     append(clauses, BooleanClause{Query: query, Occur: occur}),
		aggregation: q.aggregation,
	}
}

// WithScoreAggregation returns a copy of q that combines Should clause
// scores with agg. A nil agg selects the default.
func (q *BooleanQuery) WithScoreAggregation(agg ScoreAggregation) *BooleanQuery {
	if agg == nil {
		agg = DefaultScoreAggregation()
	}
	return &BooleanQuery{clauses: q.clauses, aggregation: agg}
}

// Clauses returns a copy of the clauses of q.
func (q *BooleanQuery) Clauses() []BooleanClause {
	return append([]BooleanClause(nil), q.clauses...)
}

// ScoreAggregation returns the strategy combining Should clause scores.
func (q *BooleanQuery) ScoreAggregation() ScoreAggregation {
	return q.aggregation
}

func (q *BooleanQuery) String() string {
	parts := make([]string, len(q.clauses))
	for i, c := range q.clauses {
		switch c.Occur {
		case Must:
			parts[i] = "+" + c.Query.String()
		case MustNot:
			parts[i] = "-" + c.Query.String()
		default:
			parts[i] = c.Query.String()
		}
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (q *BooleanQuery) evaluate(ix *DocumentIndex, filter *DocumentFilter) (*matches, error) {
	var musts, shoulds, mustNots []Query
	for _, c := range q.clauses {
		switch c.Occur {
		case Must:
			musts = append(musts, c.Query)
		case MustNot:
			mustNots = append(mustNots, c.Query)
		case Should:
			shoulds = append(shoulds, c.Query)
		default:
			return nil, fmt.Errorf("%w: unknown clause occurrence %q", ErrInvalidArgument, c.Occur)
		}
	}
	if len(musts) == 0 && len(shoulds) == 0 {
		return noMatches(), nil
	}

	// Required clauses first: each one narrows the candidates of the next.
	var (
		required    *roaring.Bitmap
		mustMatches = make([]*matches, 0, len(musts))
		eligible    = filter
	)
	defer func() {
		if eligible != filter {
			ReturnDocumentFilter(eligible)
		}
	}()
	for _, sub := range musts {
		m, err := sub.evaluate(ix, eligible)
		if err != nil {
			return nil, err
		}
		mustMatches = append(mustMatches, m)
		if required == nil {
			required = m.docs.Clone()
		} else {
			required.And(m.docs)
		}
		if required.IsEmpty() {
			return noMatches(), nil
		}
		if eligible != filter {
			ReturnDocumentFilter(eligible)
		}
		eligible = NewBitmapDocumentFilter(required)
	}

	var optional []Hit
	docs := required
	if docs == nil {
		docs = roaring.New()
	}
	for _, sub := range shoulds {
		m, err := sub.evaluate(ix, eligible)
		if err != nil {
			return nil, err
		}
		if required == nil {
			docs.Or(m.docs)
		}
		optional = append(optional, m.hits()...)
	}

	for _, sub := range mustNots {
		m, err := sub.evaluate(ix, eligible)
		if err != nil {
			return nil, err
		}
		docs.AndNot(m.docs)
	}

	scores := make(map[uint32]float64, docs.GetCardinality())
	for _, h := range q.aggregation.Aggregate(optional) {
		if docs.Contains(h.DocID) {
			scores[h.DocID] = h.Score
		}
	}
	for iter := docs.Iterator(); iter.HasNext(); {
		id := iter.Next()
		for _, m := range mustMatches {
			scores[id] += m.score(id)
		}
	}

	return &matches{docs: docs, scores: scores}, nil
}

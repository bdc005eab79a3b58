package knn

import (
	"fmt"
	"sort"
)

// ScoreAggregationKind defines how the scores of optional (SHOULD) clauses of
// a BooleanQuery are combined when a document matches several of them.
type ScoreAggregationKind string

const (
	// SumAggregation sums the clause scores
	SumAggregation ScoreAggregationKind = "sum"

	// MaxAggregation keeps the best clause score
	MaxAggregation ScoreAggregationKind = "max"

	// MeanAggregation averages the scores of the clauses that matched
	MeanAggregation ScoreAggregationKind = "mean"
)

// ScoreAggregation merges hits that refer to the same document.
type ScoreAggregation interface {
	// Kind returns the kind of aggregation strategy
	Kind() ScoreAggregationKind

	// Aggregate deduplicates results by document ID, combines the scores of
	// each document and returns the hits sorted by descending score (ties by
	// ascending document ID).
	Aggregate(results []Hit) []Hit
}

// Singleton instances; the strategies are stateless.
var (
	sumAgg  = &sumAggregation{}
	maxAgg  = &maxAggregation{}
	meanAgg = &meanAggregation{}
)

// NewScoreAggregation returns the aggregation strategy for kind. An empty
// kind selects SumAggregation.
func NewScoreAggregation(kind ScoreAggregationKind) (ScoreAggregation, error) {
	switch kind {
	case SumAggregation, "":
		return sumAgg, nil
	case MaxAggregation:
		return maxAgg, nil
	case MeanAggregation:
		return meanAgg, nil
	default:
		return nil, fmt.Errorf("%w: unknown aggregation kind: %s", ErrInvalidArgument, kind)
	}
}

// DefaultScoreAggregation returns the default strategy (Sum).
func DefaultScoreAggregation() ScoreAggregation {
	return sumAgg
}

// sumAggregation rewards documents that match many clauses.
//
// Example: document 42 matching 3 clauses with scores [1.5, 2.0, 1.8] scores 5.3.
type sumAggregation struct{}

func (s *sumAggregation) Kind() ScoreAggregationKind {
	return SumAggregation
}

func (s *sumAggregation) Aggregate(results []Hit) []Hit {
	if len(results) == 0 {
		return results
	}

	docScores := make(map[uint32]float64)
	for _, r := range results {
		docScores[r.DocID] += r.Score
	}
	return sortedHits(docScores)
}

// maxAggregation scores a document by its best clause, the disjunction-max
// behaviour: one strong field match is not diluted by weak ones.
//
// Example: document 42 matching 3 clauses with scores [1.5, 2.0, 1.8] scores 2.0.
type maxAggregation struct{}

func (m *maxAggregation) Kind() ScoreAggregationKind {
	return MaxAggregation
}

func (m *maxAggregation) Aggregate(results []Hit) []Hit {
	if len(results) == 0 {
		return results
	}

	docScores := make(map[uint32]float64)
	for _, r := range results {
		if existing, ok := docScores[r.DocID]; !ok || r.Score > existing {
			docScores[r.DocID] = r.Score
		}
	}
	return sortedHits(docScores)
}

// meanAggregation averages the scores of the clauses a document matched.
//
// Example: document 42 matching 3 clauses with scores [1.5, 2.0, 1.8] scores 1.77.
type meanAggregation struct{}

func (a *meanAggregation) Kind() ScoreAggregationKind {
	return MeanAggregation
}

func (a *meanAggregation) Aggregate(results []Hit) []Hit {
	if len(results) == 0 {
		return results
	}

	type scoreInfo struct {
		sum   float64
		count int
	}
	infos := make(map[uint32]*scoreInfo)
	for _, r := range results {
		info, ok := infos[r.DocID]
		if !ok {
			info = &scoreInfo{}
			infos[r.DocID] = info
		}
		info.sum += r.Score
		info.count++
	}

	docScores := make(map[uint32]float64, len(infos))
	for id, info := range infos {
		docScores[id] = info.sum / float64(info.count)
	}
	return sortedHits(docScores)
}

// sortedHits converts per-document scores to hits in ranking order.
func sortedHits(docScores map[uint32]float64) []Hit {
	hits := make([]Hit, 0, len(docScores))
	for id, score := range docScores {
		hits = append(hits, Hit{DocID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		return hits[i].ranksBefore(hits[j])
	})
	return hits
}

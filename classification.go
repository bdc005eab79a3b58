package knn

import (
	"cmp"
	"sort"
)

// ClassificationResult is a class label with its estimated probability.
type ClassificationResult[T any] struct {
	Class T
	Score float64
}

// Classifier assigns class labels to text.
type Classifier[T any] interface {
	// AssignClass returns the most probable class for text.
	AssignClass(text string) (ClassificationResult[T], error)

	// GetClasses returns every candidate class sorted by descending score.
	GetClasses(text string) ([]ClassificationResult[T], error)

	// GetClassesN returns the first limit candidates of GetClasses.
	GetClassesN(text string, limit int) ([]ClassificationResult[T], error)
}

// sortResults orders results by descending score, ties by ascending class.
func sortResults[T cmp.Ordered](results []ClassificationResult[T]) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Class < results[j].Class
	})
}

// bestResult returns the highest scoring result; among equal scores the
// smallest class wins. ok is false for an empty slice.
func bestResult[T cmp.Ordered](results []ClassificationResult[T]) (best ClassificationResult[T], ok bool) {
	for i, r := range results {
		if i == 0 || r.Score > best.Score || (r.Score == best.Score && r.Class < best.Class) {
			best = r
		}
	}
	return best, len(results) > 0
}

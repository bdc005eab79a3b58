package knn

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency is used when a batch call is given concurrency <= 0
const DefaultBatchConcurrency = 4

// BatchResult is the outcome of classifying one text of a batch.
type BatchResult[T any] struct {
	// Index is the position of the text in the input slice
	Index int
	// Result is the assigned class; zero when Found is false
	Result ClassificationResult[T]
	// Found is false when the classifier found no labeled neighbor
	Found bool
}

// AssignClasses classifies texts in parallel with at most concurrency
// in-flight calls. Results are returned in input order.
//
// A text without labeled neighbors yields Found == false rather than an
// error. Any other error, or cancellation of ctx, stops the remaining work
// and is returned; classifier errors carry the index of the failing text.
//
// Example:
//
//	results, err := AssignClasses(ctx, classifier, texts, 8)
func AssignClasses[T any](ctx context.Context, c Classifier[T], texts []string, concurrency int) ([]BatchResult[T], error) {
	if c == nil {
		return nil, fmt.Errorf("%w: classifier is nil", ErrInvalidArgument)
	}
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	results := make([]BatchResult[T], len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, text := range texts {
		if gctx.Err() != nil {
			break
		}
		i, text := i, text
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := c.AssignClass(text)
			switch {
			case errors.Is(err, ErrEmptyAggregation):
				results[i] = BatchResult[T]{Index: i}
			case err != nil:
				return fmt.Errorf("text %d: %w", i, err)
			default:
				results[i] = BatchResult[T]{Index: i, Result: res, Found: true}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

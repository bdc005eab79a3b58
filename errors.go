package knn

import "errors"

var (
	// ErrNotTrained is returned by classification calls issued before a
	// successful Train.
	ErrNotTrained = errors.New("classifier is not trained: call Train first")

	// ErrSearchFailure wraps an error reported by the index while executing
	// the neighbor search. The underlying error stays reachable with errors.Is
	// and errors.As.
	ErrSearchFailure = errors.New("neighbor search failed")

	// ErrEmptyAggregation is returned by AssignClass when the search found no
	// labeled neighbors, so no class can be assigned.
	ErrEmptyAggregation = errors.New("no labeled neighbors found")

	// ErrInvalidArgument reports a bad k, a negative result bound, or an
	// incomplete training call.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidDocument reports a document the index cannot accept.
	ErrInvalidDocument = errors.New("invalid document")
)

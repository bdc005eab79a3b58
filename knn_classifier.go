package knn

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Compile-time check to ensure KNearestNeighborClassifier implements Classifier
var _ Classifier[string] = (*KNearestNeighborClassifier)(nil)

// KNearestNeighborClassifier classifies text by majority vote among the k
// most similar labeled documents of an index.
//
// HOW IT WORKS:
// Given input text the classifier
//  1. builds a compound query: a MoreLikeThis similarity clause per text
//     field (OR-ed together), a required existence check on the class field
//     and the optional training filter
//  2. retrieves the k best matching documents from the index
//  3. counts the class labels of those neighbors
//  4. scores each class as votes / k, and when fewer than k neighbors were
//     found rescales by k / found
//
// With k = 10 and 4 neighbors labeled [A, A, B, B] the raw scores are
// A = 0.2, B = 0.2; the correction factor 10 / 4 = 2.5 yields A = 0.5, B = 0.5.
//
// A classifier starts untrained and every classification call fails with
// ErrNotTrained. Train publishes an immutable model; training again swaps in
// a new model atomically, so in-flight calls finish against the model they
// started with.
//
// All methods are safe for concurrent use, including Train.
type KNearestNeighborClassifier struct {
	k           int
	config      Config
	aggregation ScoreAggregation
	logger      *slog.Logger

	model atomic.Pointer[trainedModel]
}

// trainedModel is the immutable state produced by Train.
type trainedModel struct {
	reader         IndexReader
	textFieldNames []string
	classFieldName string
	filter         Query
	mlt            *MoreLikeThis
}

// NewKNearestNeighborClassifier creates an untrained classifier with k
// neighbors and the remaining settings of DefaultConfig.
//
// Example:
//
//	c, _ := NewKNearestNeighborClassifier(5)
//	_ = c.Train(idx, []string{"body"}, "topic", nil, nil)
//	best, err := c.AssignClass("a quick brown fox")
func NewKNearestNeighborClassifier(k int) (*KNearestNeighborClassifier, error) {
	cfg := DefaultConfig()
	cfg.K = k
	return NewKNearestNeighborClassifierWithConfig(cfg)
}

// NewKNearestNeighborClassifierWithConfig creates an untrained classifier.
// The configuration is copied.
func NewKNearestNeighborClassifierWithConfig(cfg *Config) (*KNearestNeighborClassifier, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	agg, err := NewScoreAggregation(cfg.FieldAggregation)
	if err != nil {
		return nil, err
	}
	return &KNearestNeighborClassifier{
		k:           cfg.K,
		config:      *cfg,
		aggregation: agg,
		logger:      cfg.logger(),
	}, nil
}

// K returns the number of neighbors.
func (c *KNearestNeighborClassifier) K() int {
	return c.k
}

// IsTrained reports whether Train has succeeded at least once.
func (c *KNearestNeighborClassifier) IsTrained() bool {
	return c.model.Load() != nil
}

// Train binds the classifier to an index.
//
// Parameters:
//   - reader: index holding the labeled documents
//   - textFieldNames: one or more text fields to compare the input against
//   - classFieldName: field holding the class label
//   - analyzer: analyzer for the input text; nil selects a StandardAnalyzer.
//     Use the analyzer the index was built with.
//   - filter: optional query every neighbor must also match (nil for none)
//
// A successful call replaces any previous model. A failed call leaves the
// previous model in place.
func (c *KNearestNeighborClassifier) Train(reader IndexReader, textFieldNames []string, classFieldName string, analyzer Analyzer, filter Query) error {
	if reader == nil {
		return fmt.Errorf("%w: index reader is nil", ErrInvalidArgument)
	}
	if len(textFieldNames) == 0 {
		return fmt.Errorf("%w: at least one text field is required", ErrInvalidArgument)
	}
	for _, name := range textFieldNames {
		if name == "" {
			return fmt.Errorf("%w: empty text field name", ErrInvalidArgument)
		}
	}
	if classFieldName == "" {
		return fmt.Errorf("%w: class field name is required", ErrInvalidArgument)
	}

	mlt := NewMoreLikeThis(reader, analyzer)
	if c.config.MinDocFreq > 0 {
		mlt.MinDocFreq = c.config.MinDocFreq
	}
	if c.config.MinTermFreq > 0 {
		mlt.MinTermFreq = c.config.MinTermFreq
	}
	if c.config.MaxQueryTerms > 0 {
		mlt.MaxQueryTerms = c.config.MaxQueryTerms
	}
	mlt.MinWordLen = c.config.MinWordLen
	mlt.MaxWordLen = c.config.MaxWordLen
	mlt.Boost = c.config.Boost

	c.model.Store(&trainedModel{
		reader:         reader,
		textFieldNames: append([]string(nil), textFieldNames...),
		classFieldName: classFieldName,
		filter:         filter,
		mlt:            mlt,
	})

	c.logger.Debug("knn classifier trained",
		"k", c.k,
		"text_fields", textFieldNames,
		"class_field", classFieldName,
		"min_doc_freq", mlt.MinDocFreq,
		"min_term_freq", mlt.MinTermFreq,
		"filtered", filter != nil,
	)
	return nil
}

// TrainField is Train with a single text field and no filter.
func (c *KNearestNeighborClassifier) TrainField(reader IndexReader, textFieldName, classFieldName string, analyzer Analyzer) error {
	return c.Train(reader, []string{textFieldName}, classFieldName, analyzer, nil)
}

// AssignClass returns the class with the highest score. Equal scores go to
// the lexicographically smallest class. When no labeled neighbor is found the
// error is ErrEmptyAggregation.
func (c *KNearestNeighborClassifier) AssignClass(text string) (ClassificationResult[string], error) {
	results, err := c.classify(text)
	if err != nil {
		return ClassificationResult[string]{}, err
	}
	best, ok := bestResult(results)
	if !ok {
		return ClassificationResult[string]{}, ErrEmptyAggregation
	}
	return best, nil
}

// GetClasses returns every class found among the neighbors, sorted by
// descending score and then by class. The list is empty when no labeled
// neighbor is found.
func (c *KNearestNeighborClassifier) GetClasses(text string) ([]ClassificationResult[string], error) {
	results, err := c.classify(text)
	if err != nil {
		return nil, err
	}
	sortResults(results)
	return results, nil
}

// GetClassesN returns the first limit entries of GetClasses. A limit beyond
// the number of classes returns them all; a negative limit is
// ErrInvalidArgument.
func (c *KNearestNeighborClassifier) GetClassesN(text string, limit int) ([]ClassificationResult[string], error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative, got %d", ErrInvalidArgument, limit)
	}
	results, err := c.GetClasses(text)
	if err != nil {
		return nil, err
	}
	return limitClasses(results, limit), nil
}

// classify runs the neighbor search and aggregates the labels.
func (c *KNearestNeighborClassifier) classify(text string) ([]ClassificationResult[string], error) {
	model := c.model.Load()
	if model == nil {
		return nil, ErrNotTrained
	}

	hits, err := model.reader.NewSearch().
		WithQuery(c.buildQuery(model, text)).
		WithK(c.k).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailure, err)
	}
	return c.aggregate(model, hits), nil
}

// buildQuery composes the similarity, class existence and filter clauses.
func (c *KNearestNeighborClassifier) buildQuery(model *trainedModel, text string) Query {
	similarity := NewBooleanQuery().WithScoreAggregation(c.aggregation)
	for _, field := range model.textFieldNames {
		similarity = similarity.Add(model.mlt.Like(field, text), Should)
	}

	q := NewBooleanQuery(
		BooleanClause{Query: similarity, Occur: Must},
		BooleanClause{Query: NewFieldExistsQuery(model.classFieldName), Occur: Must},
	)
	if model.filter != nil {
		q = q.Add(model.filter, Must)
	}
	return q
}

// aggregate turns neighbor hits into per-class scores.
func (c *KNearestNeighborClassifier) aggregate(model *trainedModel, hits []Hit) []ClassificationResult[string] {
	counts := make(map[string]int)
	var classes []string
	sumdoc := 0
	for _, hit := range hits {
		class, ok := model.reader.StoredField(hit.DocID, model.classFieldName)
		if !ok {
			c.logger.Warn("neighbor has no stored class", "doc_id", hit.DocID, "class_field", model.classFieldName)
			continue
		}
		if counts[class] == 0 {
			classes = append(classes, class)
		}
		counts[class]++
		sumdoc++
	}

	results := make([]ClassificationResult[string], 0, len(classes))
	if sumdoc == 0 {
		c.logger.Debug("knn search found no labeled neighbors", "hits", len(hits))
		return results
	}

	for _, class := range classes {
		results = append(results, ClassificationResult[string]{
			Class: class,
			Score: float64(counts[class]) / float64(c.k),
		})
	}

	correction := 1.0
	if sumdoc < c.k {
		correction = float64(c.k) / float64(sumdoc)
		for i := range results {
			results[i].Score *= correction
		}
	}

	c.logger.Debug("knn search aggregated",
		"hits", len(hits),
		"sumdoc", sumdoc,
		"classes", len(results),
		"correction", correction,
	)
	return results
}

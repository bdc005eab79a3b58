/*
Package knn provides a k-nearest-neighbor text classifier backed by an
in-memory BM25 full-text index.

A classifier labels new text by finding the k indexed documents that look
most like it and voting over their class labels. The package ships the whole
pipeline: text analysis, a multi-field inverted index with metadata filters,
boolean queries, "more like this" query construction and the classifier.

# Quick Start

Index labeled documents, train a classifier and classify text:

	package main

	import (
	    "fmt"
	    "log"

	    "github.com/wizenheimer/knn"
	)

	func main() {
	    analyzer := knn.NewStandardAnalyzer(knn.EnglishStopWords...)
	    idx := knn.NewDocumentIndex(analyzer)

	    docs := []knn.Document{
	        {ID: 1, Fields: map[string]string{"body": "the striker scored a late goal", "topic": "sports"}},
	        {ID: 2, Fields: map[string]string{"body": "the keeper saved the penalty goal", "topic": "sports"}},
	        {ID: 3, Fields: map[string]string{"body": "the central bank raised interest rates", "topic": "finance"}},
	    }
	    for _, doc := range docs {
	        if err := idx.Add(doc); err != nil {
	            log.Fatal(err)
	        }
	    }

	    cfg := knn.DefaultConfig()
	    cfg.K = 3
	    cfg.MinDocFreq, cfg.MinTermFreq = 1, 1
	    classifier, err := knn.NewKNearestNeighborClassifierWithConfig(cfg)
	    if err != nil {
	        log.Fatal(err)
	    }
	    if err := classifier.Train(idx, []string{"body"}, "topic", analyzer, nil); err != nil {
	        log.Fatal(err)
	    }

	    best, err := classifier.AssignClass("a goal in the last minute")
	    if err != nil {
	        log.Fatal(err)
	    }
	    fmt.Printf("%s (%.2f)\n", best.Class, best.Score)
	}

# Scores

Each class scores votes / k. When the index yields fewer than k labeled
neighbors the scores are multiplied by k / found, so a class that holds every
neighbor found scores 1 even when only a few neighbors exist. Without
neighbors GetClasses returns an empty list and AssignClass returns
ErrEmptyAggregation.

# Queries

The classifier query requires three things of a neighbor:

	+( like(field1) like(field2) ... ) +class:* +filter

The per-field similarity clauses are optional among themselves; their scores
are combined with the configured ScoreAggregation (sum by default). Queries
can also be built and run directly:

	q := knn.NewBooleanQuery(
	    knn.BooleanClause{Query: knn.NewTermQuery("body", "goal"), Occur: knn.Should},
	    knn.BooleanClause{Query: knn.NewFilterQuery(knn.Eq("lang", "en")), Occur: knn.Must},
	)
	hits, err := idx.NewSearch().WithQuery(q).WithK(10).Execute()

# Metadata Filters

Documents may carry metadata (int, int64, float64, string, bool) that is
indexed with roaring bitmaps and bit-sliced indexes. A FilterQuery passed to
Train restricts neighbors to matching documents:

	filter := knn.NewMetadataFilterQuery().
	    Where(knn.Eq("lang", "en"), knn.Gte("year", 2020)).
	    Or(knn.Eq("source", "curated")).
	    Query()
	err := classifier.Train(idx, []string{"title", "body"}, "topic", analyzer, filter)

A filter without predicates matches every document. The class field may be
a text field or a metadata value; StoredField falls back to metadata when
the text value is missing or blank.

# Configuration

Config can be loaded from YAML:

	k: 10
	min_doc_freq: 2
	min_term_freq: 1
	max_query_terms: 25
	field_aggregation: max

# Batch Classification and Evaluation

AssignClasses classifies many texts with bounded concurrency and Evaluate
builds a ConfusionMatrix from labeled samples.

# Thread Safety

DocumentIndex, MetadataIndex and KNearestNeighborClassifier are safe for
concurrent use. Training publishes a new immutable model atomically;
classification calls already running keep using the model they started with.
*/
package knn

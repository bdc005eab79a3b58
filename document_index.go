// Package knn implements a multi-field BM25 full-text index.
//
// HOW IT WORKS:
// Every document carries named text fields and optional metadata. Each text
// field has its own inverted index:
//   - postings: term -> roaring bitmap of document IDs
//   - term frequencies: term -> docID -> count
//   - field lengths and a running average for BM25 length normalization
//
// Field values and metadata are also stored so that classifiers can read the
// label of a retrieved neighbor. Metadata is indexed by a MetadataIndex for
// FilterQuery and FieldExistsQuery.
//
// BM25 SCORING (per field):
//
//	idf   = ln((N - df + 0.5) / (df + 0.5) + 1)
//	score = idf * tf * (K1 + 1) / (tf + K1 * (1 - B + B * len / avgLen))
//
// where N is the number of documents that have the field.
package knn

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// BM25 parameters for ranking
const (
	// K1 controls term frequency saturation (typical range: 1.2-2.0)
	K1 = 1.2
	// B controls document length normalization (0 = no normalization, 1 = full normalization)
	B = 0.75
)

// TermStatistics exposes the corpus statistics needed to weight query terms.
type TermStatistics interface {
	// NumDocs returns the number of live documents.
	NumDocs() int

	// DocFreq returns the number of documents whose field contains term.
	// The term must already be analyzed.
	DocFreq(field, term string) int
}

// IndexReader is the read side of an index as consumed by classifiers:
// statistics for query construction, ranked search, and stored field access.
type IndexReader interface {
	TermStatistics

	// NewSearch creates a new search builder.
	NewSearch() DocumentSearch

	// StoredField returns the stored value of field for a document. Every
	// document matched by a FieldExistsQuery on field has a value.
	StoredField(docID uint32, field string) (string, bool)
}

// DocumentSearch is a builder for a ranked query execution.
type DocumentSearch interface {
	// WithQuery sets the query to execute.
	WithQuery(q Query) DocumentSearch

	// WithK sets the maximum number of hits. k <= 0 returns every match.
	WithK(k int) DocumentSearch

	// WithDocumentIDs restricts candidates to the given documents.
	WithDocumentIDs(docIDs ...uint32) DocumentSearch

	// Execute runs the search and returns hits ordered by descending score.
	Execute() ([]Hit, error)
}

// Document is the unit of indexing. Fields are analyzed, indexed and stored;
// Metadata supports int, int64, float64, string and bool values.
type Document struct {
	ID       uint32
	Fields   map[string]string
	Metadata map[string]interface{}
}

// Compile-time check to ensure DocumentIndex implements IndexReader
var _ IndexReader = (*DocumentIndex)(nil)

// DocumentIndex is an in-memory multi-field BM25 index.
// All methods are safe for concurrent use by multiple goroutines.
type DocumentIndex struct {
	mu sync.RWMutex // protects everything below; metadata has its own lock

	analyzer Analyzer
	fields   map[string]*fieldIndex
	stored   map[uint32]map[string]string
	meta     map[uint32]map[string]interface{}
	allDocs  *roaring.Bitmap
	metadata *MetadataIndex
}

// fieldIndex is the inverted index of a single text field.
type fieldIndex struct {
	postings   map[string]*roaring.Bitmap
	tf         map[string]map[uint32]int
	docLengths map[uint32]int
	// distinct terms per document, for removal
	docTerms    map[uint32][]string
	totalTokens int
	avgDocLen   float64
	// documents with a non-blank value
	present *roaring.Bitmap
}

func newFieldIndex() *fieldIndex {
	return &fieldIndex{
		postings:   make(map[string]*roaring.Bitmap),
		tf:         make(map[string]map[uint32]int),
		docLengths: make(map[uint32]int),
		docTerms:   make(map[uint32][]string),
		present:    roaring.New(),
	}
}

// NewDocumentIndex creates an empty index that analyzes field values with
// analyzer. A nil analyzer selects a StandardAnalyzer without stop words.
//
// Example:
//
//	idx := NewDocumentIndex(NewStandardAnalyzer())
//	idx.Add(Document{ID: 1, Fields: map[string]string{
//		"body":  "the quick brown fox",
//		"topic": "animals",
//	}})
func NewDocumentIndex(analyzer Analyzer) *DocumentIndex {
	if analyzer == nil {
		analyzer = NewStandardAnalyzer()
	}
	return &DocumentIndex{
		analyzer: analyzer,
		fields:   make(map[string]*fieldIndex),
		stored:   make(map[uint32]map[string]string),
		meta:     make(map[uint32]map[string]interface{}),
		allDocs:  roaring.New(),
		metadata: NewMetadataIndex(),
	}
}

// Analyzer returns the analyzer used at indexing time.
func (ix *DocumentIndex) Analyzer() Analyzer {
	return ix.analyzer
}

// Add indexes a document. A document with the same ID is replaced.
// Documents without fields and metadata are rejected with ErrInvalidDocument.
//
// Time Complexity: O(m) where m is the number of tokens across all fields
func (ix *DocumentIndex) Add(doc Document) error {
	if len(doc.Fields) == 0 && len(doc.Metadata) == 0 {
		return fmt.Errorf("%w: document %d has no fields", ErrInvalidDocument, doc.ID)
	}
	if err := validateMetadata(doc.Metadata); err != nil {
		return fmt.Errorf("document %d: %w", doc.ID, err)
	}

	// Analysis happens outside the lock.
	analyzed := make(map[string][]string, len(doc.Fields))
	for field, value := range doc.Fields {
		analyzed[field] = ix.analyzer.Analyze(value)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.allDocs.Contains(doc.ID) {
		ix.removeInternal(doc.ID)
	}

	if err := ix.metadata.Add(doc.ID, doc.Metadata); err != nil {
		return err
	}

	stored := make(map[string]string, len(doc.Fields))
	for field, value := range doc.Fields {
		stored[field] = value
		fi := ix.fields[field]
		if fi == nil {
			fi = newFieldIndex()
			ix.fields[field] = fi
		}
		fi.add(doc.ID, value, analyzed[field])
	}
	ix.stored[doc.ID] = stored
	if len(doc.Metadata) > 0 {
		meta := make(map[string]interface{}, len(doc.Metadata))
		for key, value := range doc.Metadata {
			meta[key] = value
		}
		ix.meta[doc.ID] = meta
	}
	ix.allDocs.Add(doc.ID)

	return nil
}

// add must be called with the owning index's lock held.
func (fi *fieldIndex) add(id uint32, value string, tokens []string) {
	if strings.TrimSpace(value) != "" {
		fi.present.Add(id)
	}

	fi.docLengths[id] = len(tokens)
	fi.totalTokens += len(tokens)

	terms := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if fi.postings[t] == nil {
			fi.postings[t] = roaring.New()
		}
		if !fi.postings[t].CheckedAdd(id) {
			fi.tf[t][id]++
			continue
		}
		if fi.tf[t] == nil {
			fi.tf[t] = make(map[uint32]int)
		}
		fi.tf[t][id] = 1
		terms = append(terms, t)
	}
	fi.docTerms[id] = terms
	fi.updateAvgDocLen()
}

// Remove deletes a document from every field and from the metadata index.
// Removing an unknown ID is a no-op.
func (ix *DocumentIndex) Remove(id uint32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeInternal(id)
	return nil
}

// removeInternal must be called with ix.mu held.
func (ix *DocumentIndex) removeInternal(id uint32) bool {
	if !ix.allDocs.Contains(id) {
		return false
	}

	for field := range ix.stored[id] {
		fi := ix.fields[field]
		if fi == nil {
			continue
		}
		fi.remove(id)
		if len(fi.docLengths) == 0 {
			delete(ix.fields, field)
		}
	}
	ix.metadata.Remove(id)
	delete(ix.stored, id)
	delete(ix.meta, id)
	ix.allDocs.Remove(id)
	return true
}

// remove must be called with the owning index's lock held.
func (fi *fieldIndex) remove(id uint32) {
	for _, t := range fi.docTerms[id] {
		if bitmap := fi.postings[t]; bitmap != nil {
			bitmap.Remove(id)
			if bitmap.IsEmpty() {
				delete(fi.postings, t)
			}
		}
		if tfMap := fi.tf[t]; tfMap != nil {
			delete(tfMap, id)
			if len(tfMap) == 0 {
				delete(fi.tf, t)
			}
		}
	}

	fi.totalTokens -= fi.docLengths[id]
	delete(fi.docTerms, id)
	delete(fi.docLengths, id)
	fi.present.Remove(id)
	fi.updateAvgDocLen()
}

// updateAvgDocLen recalculates the average field length in O(1).
func (fi *fieldIndex) updateAvgDocLen() {
	if len(fi.docLengths) == 0 {
		fi.avgDocLen = 0
		fi.totalTokens = 0
		return
	}
	fi.avgDocLen = float64(fi.totalTokens) / float64(len(fi.docLengths))
}

// NumDocs returns the number of documents in the index.
func (ix *DocumentIndex) NumDocs() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return int(ix.allDocs.GetCardinality())
}

// DocFreq returns the number of documents whose field contains term.
func (ix *DocumentIndex) DocFreq(field, term string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	fi := ix.fields[field]
	if fi == nil {
		return 0
	}
	if bitmap := fi.postings[term]; bitmap != nil {
		return int(bitmap.GetCardinality())
	}
	return 0
}

// StoredField returns the original value of field for a document. A blank or
// missing text value falls back to the document's metadata value for field,
// formatted with fmt.Sprint.
func (ix *DocumentIndex) StoredField(docID uint32, field string) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	value, ok := ix.stored[docID][field]
	if ok && strings.TrimSpace(value) != "" {
		return value, true
	}
	if m, found := ix.meta[docID][field]; found {
		return fmt.Sprint(m), true
	}
	return value, ok
}

// Fields returns the names of all indexed text fields in sorted order.
func (ix *DocumentIndex) Fields() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	names := make([]string, 0, len(ix.fields))
	for name := range ix.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewSearch creates a new search builder for this index.
//
// Example:
//
//	hits, err := idx.NewSearch().
//		WithQuery(NewTermQuery("body", "fox")).
//		WithK(5).
//		Execute()
func (ix *DocumentIndex) NewSearch() DocumentSearch {
	return &documentSearch{
		index: ix,
		k:     10,
	}
}

// termScores scores every eligible document of field containing term.
// Must be called with ix.mu held (at least read lock).
func (ix *DocumentIndex) termScores(field, term string, boost float64, filter *DocumentFilter) (*roaring.Bitmap, map[uint32]float64) {
	fi := ix.fields[field]
	if fi == nil {
		return roaring.New(), nil
	}
	bitmap := fi.postings[term]
	if bitmap == nil {
		return roaring.New(), nil
	}

	n := float64(len(fi.docLengths))
	df := float64(bitmap.GetCardinality())
	idf := bm25IDF(n, df)

	docs := roaring.New()
	scores := make(map[uint32]float64)
	for iter := bitmap.Iterator(); iter.HasNext(); {
		docID := iter.Next()
		if filter.ShouldSkip(docID) {
			continue
		}
		tf := float64(fi.tf[term][docID])
		docLen := float64(fi.docLengths[docID])
		docs.Add(docID)
		scores[docID] = boost * idf * (tf * (K1 + 1)) / (tf + K1*(1-B+B*(docLen/fi.avgDocLen)))
	}
	return docs, scores
}

// presence returns the documents with a non-blank value for a text field or
// any value for a metadata field.
// Must be called with ix.mu held (at least read lock).
func (ix *DocumentIndex) presence(field string) *roaring.Bitmap {
	docs := ix.metadata.Exists(field)
	if fi := ix.fields[field]; fi != nil {
		docs.Or(fi.present)
	}
	return docs
}

func bm25IDF(n, df float64) float64 {
	return math.Log((n-df+0.5)/(df+0.5) + 1.0)
}

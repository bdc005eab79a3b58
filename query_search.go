package knn

import (
	"container/heap"
	"fmt"
	"sync"
)

// Hit is a ranked search result.
type Hit struct {
	DocID uint32  // Document ID
	Score float64 // relevance score, higher is better
}

// ranksBefore orders hits by descending score, then ascending document ID so
// that rankings are deterministic.
func (h Hit) ranksBefore(other Hit) bool {
	if h.Score != other.Score {
		return h.Score > other.Score
	}
	return h.DocID < other.DocID
}

// Compile-time check to ensure documentSearch implements DocumentSearch
var _ DocumentSearch = (*documentSearch)(nil)

// documentSearch implements the DocumentSearch builder for DocumentIndex.
type documentSearch struct {
	index       *DocumentIndex
	query       Query
	k           int
	documentIDs []uint32
}

// WithQuery sets the query to execute.
func (s *documentSearch) WithQuery(q Query) DocumentSearch {
	s.query = q
	return s
}

// WithK sets the number of results to return.
// Defaults to 10 if not set. If k is 0 or negative, returns all results.
func (s *documentSearch) WithK(k int) DocumentSearch {
	s.k = k
	return s
}

// WithDocumentIDs sets the eligible document IDs for pre-filtering.
// If empty, all documents are eligible (default behavior).
func (s *documentSearch) WithDocumentIDs(docIDs ...uint32) DocumentSearch {
	s.documentIDs = docIDs
	return s
}

// Execute evaluates the query and returns the top k hits ordered by
// descending score, ties broken by ascending document ID.
//
// Time Complexity: O(e + m log k) where e is the cost of evaluating the
// query and m the number of matching documents
func (s *documentSearch) Execute() ([]Hit, error) {
	if s.query == nil {
		return nil, fmt.Errorf("%w: search requires a query", ErrInvalidArgument)
	}

	docFilter := NewDocumentFilter(s.documentIDs)
	defer ReturnDocumentFilter(docFilter)

	s.index.mu.RLock()
	m, err := s.query.evaluate(s.index, docFilter)
	s.index.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	return topHits(m, s.k), nil
}

// heapPool is a sync.Pool for hitHeap to reduce allocations during search operations
var heapPool = sync.Pool{
	New: func() interface{} {
		h := &hitHeap{}
		heap.Init(h)
		return h
	},
}

// topHits selects the k best matches. k <= 0 returns every match.
func topHits(m *matches, k int) []Hit {
	total := int(m.docs.GetCardinality())
	if total == 0 {
		return nil
	}
	k = sanitizeK(k, total)

	h := heapPool.Get().(*hitHeap)
	*h = (*h)[:0]
	defer func() {
		*h = (*h)[:0]
		heapPool.Put(h)
	}()

	for iter := m.docs.Iterator(); iter.HasNext(); {
		id := iter.Next()
		hit := Hit{DocID: id, Score: m.score(id)}
		if h.Len() < k {
			heap.Push(h, hit)
		} else if hit.ranksBefore((*h)[0]) {
			(*h)[0] = hit
			heap.Fix(h, 0)
		}
	}

	hits := make([]Hit, h.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		hits[i] = heap.Pop(h).(Hit)
	}
	return hits
}

// hitHeap is a min-heap with the worst-ranked hit at the root, so the k best
// hits survive a single pass.
type hitHeap []Hit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return h[j].ranksBefore(h[i]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x interface{}) {
	*h = append(*h, x.(Hit))
}

func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

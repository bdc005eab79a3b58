package knn

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// DocumentFilter restricts scoring to a set of eligible document IDs.
// A nil *DocumentFilter admits every document.
type DocumentFilter struct {
	bitmap *roaring.Bitmap
}

// documentFilterPool is a sync.Pool for DocumentFilter to reduce allocations
var documentFilterPool = sync.Pool{
	New: func() interface{} {
		return &DocumentFilter{
			bitmap: roaring.New(),
		}
	},
}

// NewDocumentFilter creates a filter from a list of document IDs.
// If the list is empty, returns nil (no filtering).
// Return the filter with ReturnDocumentFilter when done.
func NewDocumentFilter(documentIDs []uint32) *DocumentFilter {
	if len(documentIDs) == 0 {
		return nil
	}

	filter := documentFilterPool.Get().(*DocumentFilter)
	filter.bitmap.Clear()
	filter.bitmap.AddMany(documentIDs)
	return filter
}

// NewBitmapDocumentFilter creates a filter admitting exactly the documents in
// bitmap. Unlike NewDocumentFilter an empty bitmap yields a filter that
// admits nothing. The bitmap is copied.
func NewBitmapDocumentFilter(bitmap *roaring.Bitmap) *DocumentFilter {
	filter := documentFilterPool.Get().(*DocumentFilter)
	filter.bitmap.Clear()
	filter.bitmap.Or(bitmap)
	return filter
}

// ReturnDocumentFilter returns a filter to the pool.
// Do not use the filter after calling this method.
func ReturnDocumentFilter(filter *DocumentFilter) {
	if filter != nil {
		documentFilterPool.Put(filter)
	}
}

// IsEligible reports whether docID may be scored.
func (f *DocumentFilter) IsEligible(docID uint32) bool {
	if f == nil {
		return true
	}
	return f.bitmap.Contains(docID)
}

// ShouldSkip is the negation of IsEligible, for use with continue in loops.
func (f *DocumentFilter) ShouldSkip(docID uint32) bool {
	return !f.IsEligible(docID)
}

// Restrict intersects bitmap with the filter in place. A nil filter leaves
// bitmap untouched.
func (f *DocumentFilter) Restrict(bitmap *roaring.Bitmap) {
	if f == nil {
		return
	}
	bitmap.And(f.bitmap)
}

// Count returns the number of eligible documents, or 0 for a nil filter.
func (f *DocumentFilter) Count() uint64 {
	if f == nil {
		return 0
	}
	return f.bitmap.GetCardinality()
}

// IsEmpty reports whether no document is eligible. A nil filter is never empty.
func (f *DocumentFilter) IsEmpty() bool {
	if f == nil {
		return false
	}
	return f.bitmap.IsEmpty()
}

package knn

// sanitizeK ensures k is within valid bounds [1, maxResults].
//
// If k is <= 0 or exceeds maxResults, it returns maxResults.
// Used by searches, where k <= 0 means "no limit".
func sanitizeK(k, maxResults int) int {
	if k <= 0 || k > maxResults {
		return maxResults
	}
	return k
}

// limitClasses returns the first limit results. Unlike search limits, a
// limit of 0 yields an empty list and a limit beyond the available results is
// clamped. Negative limits are rejected by the caller.
func limitClasses[T any](results []ClassificationResult[T], limit int) []ClassificationResult[T] {
	if limit < len(results) {
		return results[:limit]
	}
	return results
}

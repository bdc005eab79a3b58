package knn

import (
	"reflect"
	"testing"
)

func TestSortResults(t *testing.T) {
	results := []ClassificationResult[string]{
		{Class: "c", Score: 0.2},
		{Class: "b", Score: 0.4},
		{Class: "a", Score: 0.2},
		{Class: "d", Score: 0.2},
	}
	sortResults(results)

	want := []ClassificationResult[string]{
		{Class: "b", Score: 0.4},
		{Class: "a", Score: 0.2},
		{Class: "c", Score: 0.2},
		{Class: "d", Score: 0.2},
	}
	if !reflect.DeepEqual(results, want) {
		t.Errorf("sortResults() = %v, want %v", results, want)
	}
}

func TestBestResult(t *testing.T) {
	tests := []struct {
		name    string
		results []ClassificationResult[int]
		want    ClassificationResult[int]
		wantOK  bool
	}{
		{
			name:    "empty",
			results: nil,
			wantOK:  false,
		},
		{
			name:    "single",
			results: []ClassificationResult[int]{{Class: 7, Score: 1}},
			want:    ClassificationResult[int]{Class: 7, Score: 1},
			wantOK:  true,
		},
		{
			name: "highest score",
			results: []ClassificationResult[int]{
				{Class: 1, Score: 0.2},
				{Class: 2, Score: 0.5},
				{Class: 3, Score: 0.3},
			},
			want:   ClassificationResult[int]{Class: 2, Score: 0.5},
			wantOK: true,
		},
		{
			name: "tie goes to smallest class",
			results: []ClassificationResult[int]{
				{Class: 9, Score: 0.5},
				{Class: 4, Score: 0.5},
				{Class: 6, Score: 0.5},
			},
			want:   ClassificationResult[int]{Class: 4, Score: 0.5},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := bestResult(tt.results)
			if ok != tt.wantOK {
				t.Fatalf("bestResult() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("bestResult() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

package knn

import (
	"errors"
	"math"
	"testing"
)

func TestSumAggregation(t *testing.T) {
	// Create results with duplicates
	results := []Hit{
		{DocID: 1, Score: 0.1},
		{DocID: 2, Score: 0.2},
		{DocID: 1, Score: 0.15}, // Duplicate doc 1
		{DocID: 3, Score: 0.3},
		{DocID: 1, Score: 0.05}, // Another duplicate doc 1
	}

	agg, _ := NewScoreAggregation(SumAggregation)
	aggregated := agg.Aggregate(results)

	if len(aggregated) != 3 {
		t.Errorf("Expected 3 unique documents, got %d", len(aggregated))
	}

	// doc 1: 0.1 + 0.15 + 0.05 = 0.3
	score, ok := scoreOf(aggregated, 1)
	if !ok {
		t.Fatal("Doc 1 not found in aggregated results")
	}
	if math.Abs(score-0.3) > 1e-9 {
		t.Errorf("Expected doc 1 score to be 0.3, got %f", score)
	}

	// Results are sorted by descending score
	for i := 1; i < len(aggregated); i++ {
		if aggregated[i].Score > aggregated[i-1].Score {
			t.Error("Results are not sorted by score")
		}
	}
}

func TestMaxAggregation(t *testing.T) {
	results := []Hit{
		{DocID: 1, Score: 0.3},
		{DocID: 2, Score: 0.2},
		{DocID: 1, Score: 0.1}, // Duplicate doc 1 with lower score
	}

	agg, _ := NewScoreAggregation(MaxAggregation)
	aggregated := agg.Aggregate(results)

	if len(aggregated) != 2 {
		t.Errorf("Expected 2 unique documents, got %d", len(aggregated))
	}

	score, ok := scoreOf(aggregated, 1)
	if !ok {
		t.Fatal("Doc 1 not found in aggregated results")
	}
	if score != 0.3 {
		t.Errorf("Expected doc 1 score to be 0.3 (max), got %f", score)
	}
	if aggregated[0].DocID != 1 {
		t.Errorf("Expected doc 1 first, got %d", aggregated[0].DocID)
	}
}

func TestMeanAggregation(t *testing.T) {
	results := []Hit{
		{DocID: 1, Score: 1.5},
		{DocID: 1, Score: 2.0},
		{DocID: 1, Score: 1.0},
		{DocID: 2, Score: 0.5},
	}

	agg, _ := NewScoreAggregation(MeanAggregation)
	aggregated := agg.Aggregate(results)

	if len(aggregated) != 2 {
		t.Errorf("Expected 2 unique documents, got %d", len(aggregated))
	}

	score, ok := scoreOf(aggregated, 1)
	if !ok {
		t.Fatal("Doc 1 not found in aggregated results")
	}
	if math.Abs(score-1.5) > 1e-9 {
		t.Errorf("Expected doc 1 score to be 1.5 (mean), got %f", score)
	}
}

func TestAggregationEmptyResults(t *testing.T) {
	for _, kind := range []ScoreAggregationKind{SumAggregation, MaxAggregation, MeanAggregation} {
		agg, err := NewScoreAggregation(kind)
		if err != nil {
			t.Fatalf("NewScoreAggregation(%s) error = %v", kind, err)
		}
		if got := agg.Aggregate(nil); len(got) != 0 {
			t.Errorf("%s: Aggregate(nil) = %v, want empty", kind, got)
		}
	}
}

func TestAggregationTieOrder(t *testing.T) {
	results := []Hit{
		{DocID: 9, Score: 1},
		{DocID: 3, Score: 1},
		{DocID: 5, Score: 2},
	}

	agg := DefaultScoreAggregation()
	aggregated := agg.Aggregate(results)

	want := []uint32{5, 3, 9}
	for i, id := range want {
		if aggregated[i].DocID != id {
			t.Errorf("aggregated[%d].DocID = %d, want %d", i, aggregated[i].DocID, id)
		}
	}
}

func TestNewScoreAggregation(t *testing.T) {
	tests := []struct {
		name    string
		kind    ScoreAggregationKind
		want    ScoreAggregationKind
		wantErr bool
	}{
		{name: "sum", kind: SumAggregation, want: SumAggregation},
		{name: "max", kind: MaxAggregation, want: MaxAggregation},
		{name: "mean", kind: MeanAggregation, want: MeanAggregation},
		{name: "empty defaults to sum", kind: "", want: SumAggregation},
		{name: "invalid", kind: "median", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, err := NewScoreAggregation(tt.kind)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("NewScoreAggregation(%q) error = %v, want ErrInvalidArgument", tt.kind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewScoreAggregation(%q) error = %v", tt.kind, err)
			}
			if agg.Kind() != tt.want {
				t.Errorf("Kind() = %q, want %q", agg.Kind(), tt.want)
			}
		})
	}
}

func TestDefaultScoreAggregation(t *testing.T) {
	if got := DefaultScoreAggregation().Kind(); got != SumAggregation {
		t.Errorf("DefaultScoreAggregation().Kind() = %q, want %q", got, SumAggregation)
	}
}

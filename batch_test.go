package knn

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// stubClassifier answers from a fixed table; texts not in the table have no
// neighbors.
type stubClassifier struct {
	answers map[string]string
	fail    map[string]error
	delay   time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (s *stubClassifier) AssignClass(text string) (ClassificationResult[string], error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		old := s.maxInFlight.Load()
		if n <= old || s.maxInFlight.CompareAndSwap(old, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	if err := s.fail[text]; err != nil {
		return ClassificationResult[string]{}, err
	}
	class, ok := s.answers[text]
	if !ok {
		return ClassificationResult[string]{}, ErrEmptyAggregation
	}
	return ClassificationResult[string]{Class: class, Score: 1}, nil
}

func (s *stubClassifier) GetClasses(text string) ([]ClassificationResult[string], error) {
	r, err := s.AssignClass(text)
	if errors.Is(err, ErrEmptyAggregation) {
		return []ClassificationResult[string]{}, nil
	}
	if err != nil {
		return nil, err
	}
	return []ClassificationResult[string]{r}, nil
}

func (s *stubClassifier) GetClassesN(text string, limit int) ([]ClassificationResult[string], error) {
	results, err := s.GetClasses(text)
	if err != nil {
		return nil, err
	}
	return limitClasses(results, limit), nil
}

func TestAssignClasses(t *testing.T) {
	stub := &stubClassifier{answers: map[string]string{"a": "A", "b": "B"}}
	texts := []string{"a", "b", "unknown", "a"}

	results, err := AssignClasses[string](context.Background(), stub, texts, 2)
	if err != nil {
		t.Fatalf("AssignClasses() error = %v", err)
	}
	if len(results) != len(texts) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(texts))
	}

	want := []struct {
		class string
		found bool
	}{
		{"A", true},
		{"B", true},
		{"", false},
		{"A", true},
	}
	for i, w := range want {
		r := results[i]
		if r.Index != i {
			t.Errorf("results[%d].Index = %d", i, r.Index)
		}
		if r.Found != w.found || r.Result.Class != w.class {
			t.Errorf("results[%d] = %+v, want class %q found %v", i, r, w.class, w.found)
		}
	}
}

func TestAssignClassesEmpty(t *testing.T) {
	stub := &stubClassifier{}
	results, err := AssignClasses[string](context.Background(), stub, nil, 0)
	if err != nil {
		t.Fatalf("AssignClasses() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want empty", results)
	}
}

func TestAssignClassesConcurrencyLimit(t *testing.T) {
	stub := &stubClassifier{answers: map[string]string{"x": "X"}, delay: 5 * time.Millisecond}
	texts := make([]string, 20)
	for i := range texts {
		texts[i] = "x"
	}

	if _, err := AssignClasses[string](context.Background(), stub, texts, 3); err != nil {
		t.Fatalf("AssignClasses() error = %v", err)
	}
	if got := stub.maxInFlight.Load(); got > 3 {
		t.Errorf("max in-flight = %d, want <= 3", got)
	}
}

func TestAssignClassesError(t *testing.T) {
	cause := errors.New("boom")
	stub := &stubClassifier{
		answers: map[string]string{"ok": "A"},
		fail:    map[string]error{"bad": cause},
	}

	_, err := AssignClasses[string](context.Background(), stub, []string{"ok", "bad", "ok"}, 1)
	if !errors.Is(err, cause) {
		t.Errorf("AssignClasses() error = %v, want wrapped cause", err)
	}
}

func TestAssignClassesNotTrained(t *testing.T) {
	c, err := NewKNearestNeighborClassifier(3)
	if err != nil {
		t.Fatalf("NewKNearestNeighborClassifier() error = %v", err)
	}

	_, err = AssignClasses[string](context.Background(), c, []string{"text"}, 1)
	if !errors.Is(err, ErrNotTrained) {
		t.Errorf("AssignClasses() error = %v, want ErrNotTrained", err)
	}
}

func TestAssignClassesCanceled(t *testing.T) {
	stub := &stubClassifier{answers: map[string]string{"a": "A"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := AssignClasses[string](ctx, stub, []string{"a", "a"}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("AssignClasses() error = %v, want context.Canceled", err)
	}
}

func TestAssignClassesNilClassifier(t *testing.T) {
	_, err := AssignClasses[string](context.Background(), nil, []string{"a"}, 1)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("AssignClasses() error = %v, want ErrInvalidArgument", err)
	}
}

func TestAssignClassesWithIndex(t *testing.T) {
	idx := newLabeledIndex(t,
		labeledDoc(1, "rocket orbit launch", "space"),
		labeledDoc(2, "bread oven flour", "cooking"),
	)
	c := newTestClassifier(t, permissiveConfig(1))
	if err := c.TrainField(idx, "body", "topic", nil); err != nil {
		t.Fatalf("TrainField() error = %v", err)
	}

	results, err := AssignClasses[string](context.Background(), c, []string{"orbit", "flour", "nothing"}, 0)
	if err != nil {
		t.Fatalf("AssignClasses() error = %v", err)
	}
	if results[0].Result.Class != "space" || results[1].Result.Class != "cooking" {
		t.Errorf("results = %+v", results)
	}
	if results[2].Found {
		t.Errorf("results[2] = %+v, want not found", results[2])
	}
}

package knn

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestEvaluate(t *testing.T) {
	stub := &stubClassifier{answers: map[string]string{
		"s1": "spam",
		"s2": "spam",
		"s3": "ham",
		"h1": "ham",
		"h2": "spam",
	}}
	samples := []Sample{
		{Text: "s1", Class: "spam"},
		{Text: "s2", Class: "spam"},
		{Text: "s3", Class: "spam"},
		{Text: "s4", Class: "spam"}, // unclassified
		{Text: "h1", Class: "ham"},
		{Text: "h2", Class: "ham"},
	}

	m, err := Evaluate(context.Background(), stub, samples, 2)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	if m.Total() != 6 {
		t.Errorf("Total() = %d, want 6", m.Total())
	}
	if got := m.Count("spam", "spam"); got != 2 {
		t.Errorf("Count(spam, spam) = %d, want 2", got)
	}
	if got := m.Count("spam", "ham"); got != 1 {
		t.Errorf("Count(spam, ham) = %d, want 1", got)
	}
	if got := m.Count("ham", "spam"); got != 1 {
		t.Errorf("Count(ham, spam) = %d, want 1", got)
	}
	if got := m.Unclassified("spam"); got != 1 {
		t.Errorf("Unclassified(spam) = %d, want 1", got)
	}
	if got, want := m.Classes(), []string{"ham", "spam"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Classes() = %v, want %v", got, want)
	}

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{name: "accuracy", got: m.Accuracy(), want: 3.0 / 6},
		{name: "precision spam", got: m.Precision("spam"), want: 2.0 / 3},
		{name: "recall spam", got: m.Recall("spam"), want: 2.0 / 4},
		{name: "precision ham", got: m.Precision("ham"), want: 1.0 / 2},
		{name: "recall ham", got: m.Recall("ham"), want: 1.0 / 2},
		{name: "f1 spam", got: m.F1("spam"), want: 2 * (2.0 / 3) * 0.5 / (2.0/3 + 0.5)},
		{name: "unknown class", got: m.F1("eggs"), want: 0},
	}
	for _, tt := range tests {
		if math.Abs(tt.got-tt.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestEvaluateEmpty(t *testing.T) {
	m, err := Evaluate(context.Background(), &stubClassifier{}, nil, 1)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if m.Total() != 0 || m.Accuracy() != 0 {
		t.Errorf("empty evaluation: total %d accuracy %v", m.Total(), m.Accuracy())
	}
	if len(m.Classes()) != 0 {
		t.Errorf("Classes() = %v, want empty", m.Classes())
	}
}

func TestEvaluateError(t *testing.T) {
	c, err := NewKNearestNeighborClassifier(3)
	if err != nil {
		t.Fatalf("NewKNearestNeighborClassifier() error = %v", err)
	}
	if _, err := Evaluate(context.Background(), c, []Sample{{Text: "x", Class: "A"}}, 1); !errors.Is(err, ErrNotTrained) {
		t.Errorf("Evaluate() error = %v, want ErrNotTrained", err)
	}
}

func TestEvaluateWithIndex(t *testing.T) {
	idx := newLabeledIndex(t,
		labeledDoc(1, "rocket orbit launch", "space"),
		labeledDoc(2, "orbit satellite rocket", "space"),
		labeledDoc(3, "bread oven flour", "cooking"),
		labeledDoc(4, "flour sugar oven", "cooking"),
	)
	c := newTestClassifier(t, permissiveConfig(1))
	if err := c.TrainField(idx, "body", "topic", nil); err != nil {
		t.Fatalf("TrainField() error = %v", err)
	}

	samples := []Sample{
		{Text: "rocket launch", Class: "space"},
		{Text: "oven bread", Class: "cooking"},
	}
	m, err := Evaluate(context.Background(), c, samples, 2)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if m.Accuracy() != 1 {
		t.Errorf("Accuracy() = %v, want 1", m.Accuracy())
	}
}

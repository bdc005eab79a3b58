package knn

import (
	"context"
	"fmt"
	"sort"
)

// Sample is a text with its known class, used to evaluate a classifier.
type Sample struct {
	Text  string
	Class string
}

// ConfusionMatrix counts predictions per (actual, predicted) class pair.
type ConfusionMatrix struct {
	counts map[string]map[string]int
	// unclassified counts samples per actual class that got no prediction
	unclassified map[string]int
	total        int
}

func newConfusionMatrix() *ConfusionMatrix {
	return &ConfusionMatrix{
		counts:       make(map[string]map[string]int),
		unclassified: make(map[string]int),
	}
}

func (m *ConfusionMatrix) record(actual, predicted string, found bool) {
	m.total++
	if !found {
		m.unclassified[actual]++
		return
	}
	row := m.counts[actual]
	if row == nil {
		row = make(map[string]int)
		m.counts[actual] = row
	}
	row[predicted]++
}

// Evaluate classifies every sample with AssignClasses and tallies the
// predictions. Samples without labeled neighbors count as unclassified and
// as wrong for accuracy and recall.
//
// Example:
//
//	m, err := Evaluate(ctx, classifier, heldOut, 4)
//	fmt.Printf("accuracy %.2f\n", m.Accuracy())
func Evaluate(ctx context.Context, c Classifier[string], samples []Sample, concurrency int) (*ConfusionMatrix, error) {
	texts := make([]string, len(samples))
	for i, s := range samples {
		texts[i] = s.Text
	}

	results, err := AssignClasses(ctx, c, texts, concurrency)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	m := newConfusionMatrix()
	for _, r := range results {
		m.record(samples[r.Index].Class, r.Result.Class, r.Found)
	}
	return m, nil
}

// Count returns how many samples of class actual were predicted as predicted.
func (m *ConfusionMatrix) Count(actual, predicted string) int {
	return m.counts[actual][predicted]
}

// Unclassified returns how many samples of class actual got no prediction.
func (m *ConfusionMatrix) Unclassified(actual string) int {
	return m.unclassified[actual]
}

// Total returns the number of evaluated samples.
func (m *ConfusionMatrix) Total() int {
	return m.total
}

// Classes returns every actual or predicted class in sorted order.
func (m *ConfusionMatrix) Classes() []string {
	seen := make(map[string]struct{})
	for actual, row := range m.counts {
		seen[actual] = struct{}{}
		for predicted := range row {
			seen[predicted] = struct{}{}
		}
	}
	for actual := range m.unclassified {
		seen[actual] = struct{}{}
	}

	classes := make([]string, 0, len(seen))
	for class := range seen {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes
}

// Accuracy returns the fraction of samples predicted correctly, or 0 when
// nothing was evaluated.
func (m *ConfusionMatrix) Accuracy() float64 {
	if m.total == 0 {
		return 0
	}
	correct := 0
	for class, row := range m.counts {
		correct += row[class]
	}
	return float64(correct) / float64(m.total)
}

// Precision returns the fraction of predictions of class that were correct.
func (m *ConfusionMatrix) Precision(class string) float64 {
	predicted := 0
	for _, row := range m.counts {
		predicted += row[class]
	}
	if predicted == 0 {
		return 0
	}
	return float64(m.counts[class][class]) / float64(predicted)
}

// Recall returns the fraction of samples of class that were predicted as class.
func (m *ConfusionMatrix) Recall(class string) float64 {
	actual := m.unclassified[class]
	for _, n := range m.counts[class] {
		actual += n
	}
	if actual == 0 {
		return 0
	}
	return float64(m.counts[class][class]) / float64(actual)
}

// F1 returns the harmonic mean of precision and recall for class.
func (m *ConfusionMatrix) F1(class string) float64 {
	p, r := m.Precision(class), m.Recall(class)
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Package report summarizes verdicts for humans: a confusion matrix over the
// class set and lipgloss renderings of verdicts and runs.
package report

import (
	"fmt"

	"github.com/Veraticus/motorsense/internal/model"
)

// ConfusionMatrix counts (expected, predicted) pairs. Rows are expected
// classes, columns are predicted classes, both in class index order.
type ConfusionMatrix struct {
	classes *model.ClassSet
	counts  [][]int
	total   int
}

// NewConfusionMatrix creates an empty matrix over classes.
func NewConfusionMatrix(classes *model.ClassSet) *ConfusionMatrix {
	counts := make([][]int, classes.Len())
	for i := range counts {
		counts[i] = make([]int, classes.Len())
	}
	return &ConfusionMatrix{classes: classes, counts: counts}
}

// Add records one labelled verdict.
func (c *ConfusionMatrix) Add(expected, predicted string) error {
	row, err := c.classes.Index(expected)
	if err != nil {
		return fmt.Errorf("expected label: %w", err)
	}
	col, err := c.classes.Index(predicted)
	if err != nil {
		return fmt.Errorf("predicted label: %w", err)
	}
	c.counts[row][col]++
	c.total++
	return nil
}

// Count returns how many recordings of class expected were predicted as class predicted.
func (c *ConfusionMatrix) Count(expected, predicted int) int {
	return c.counts[expected][predicted]
}

// Total returns the number of recorded verdicts.
func (c *ConfusionMatrix) Total() int {
	return c.total
}

// Correct returns the number of verdicts on the diagonal.
func (c *ConfusionMatrix) Correct() int {
	n := 0
	for i := range c.counts {
		n += c.counts[i][i]
	}
	return n
}

// Accuracy is the diagonal share of all verdicts, 0 when empty.
func (c *ConfusionMatrix) Accuracy() float64 {
	if c.total == 0 {
		return 0
	}
	return float64(c.Correct()) / float64(c.total)
}

// Recall is the share of recordings of class i that were predicted as i.
// ok is false when no recording of class i was seen.
func (c *ConfusionMatrix) Recall(i int) (recall float64, ok bool) {
	rowTotal := 0
	for _, n := range c.counts[i] {
		rowTotal += n
	}
	if rowTotal == 0 {
		return 0, false
	}
	return float64(c.counts[i][i]) / float64(rowTotal), true
}

// Precision is the share of predictions of class i that were correct.
// ok is false when class i was never predicted.
func (c *ConfusionMatrix) Precision(i int) (precision float64, ok bool) {
	colTotal := 0
	for row := range c.counts {
		colTotal += c.counts[row][i]
	}
	if colTotal == 0 {
		return 0, false
	}
	return float64(c.counts[i][i]) / float64(colTotal), true
}

// Classes returns the class set the matrix is indexed by.
func (c *ConfusionMatrix) Classes() *model.ClassSet {
	return c.classes
}

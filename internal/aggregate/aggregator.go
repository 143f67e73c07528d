// Package aggregate combines the per-window predictions of one recording into
// a single verdict by confidence-weighted majority voting.
//
// For every class c, weighted_score(c) is the sum, over the windows predicted
// as c, of the probability those windows assigned to c. Volume and certainty
// both count: many moderately confident windows can outscore a few very
// confident ones. The final class is the argmax, ties going to the lowest
// class index.
package aggregate

import (
	"sort"

	"github.com/Veraticus/motorsense/internal/common"
	"github.com/Veraticus/motorsense/internal/model"
	"gonum.org/v1/gonum/floats"
)

// Aggregate produces the verdict for a complete set of window predictions.
// An empty set is an InsufficientDataError, never a default class.
func Aggregate(classes *model.ClassSet, records []model.PredictionRecord) (model.AggregateVerdict, error) {
	if len(records) == 0 {
		return model.AggregateVerdict{}, &common.InsufficientDataError{}
	}

	n := classes.Len()
	confidences := make([][]float64, n)
	votes := make([]int, n)

	for _, rec := range records {
		if len(rec.Probabilities) != n {
			return model.AggregateVerdict{}, common.NewConfigError("classes",
				"window %d has %d probabilities, class set has %d", rec.Window, len(rec.Probabilities), n)
		}
		c := rec.PredictedClass
		if c < 0 || c >= n {
			return model.AggregateVerdict{}, common.NewConfigError("classes",
				"window %d predicted class %d outside [0,%d)", rec.Window, c, n)
		}
		confidences[c] = append(confidences[c], rec.Probabilities[c])
		votes[c]++
	}

	scores := make([]float64, n)
	for c, values := range confidences {
		// Summing in sorted order makes the score independent of record order.
		sort.Float64s(values)
		scores[c] = floats.Sum(values)
	}

	final := model.Argmax(scores)
	name, err := classes.Name(final)
	if err != nil {
		return model.AggregateVerdict{}, err
	}

	return model.AggregateVerdict{
		FinalClass:     final,
		ClassName:      name,
		WeightedScores: scores,
		Votes:          votes,
		WindowCount:    len(records),
	}, nil
}

// ClassScore is one row of a verdict breakdown.
type ClassScore struct {
	Name  string
	Score float64
	Index int
	Votes int
}

// Ranking is a verdict breakdown ordered by score.
type Ranking []ClassScore

// Len implements sort.Interface.
func (r Ranking) Len() int {
	return len(r)
}

// Less implements sort.Interface - higher scores first, then lower index.
func (r Ranking) Less(i, j int) bool {
	if r[i].Score != r[j].Score {
		return r[i].Score > r[j].Score
	}
	return r[i].Index < r[j].Index
}

// Swap implements sort.Interface.
func (r Ranking) Swap(i, j int) {
	r[i], r[j] = r[j], r[i]
}

// Rank returns the verdict's classes ordered by weighted score.
func Rank(classes *model.ClassSet, v model.AggregateVerdict) Ranking {
	ranking := make(Ranking, 0, len(v.WeightedScores))
	for i, score := range v.WeightedScores {
		name, err := classes.Name(i)
		if err != nil {
			continue
		}
		votes := 0
		if i < len(v.Votes) {
			votes = v.Votes[i]
		}
		ranking = append(ranking, ClassScore{Index: i, Name: name, Score: score, Votes: votes})
	}
	sort.Sort(ranking)
	return ranking
}

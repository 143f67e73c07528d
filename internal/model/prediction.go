package model

// PredictionRecord is the classifier output for one window.
type PredictionRecord struct {
	Probabilities  []float64 `json:"probabilities"`
	Window         int       `json:"window"`
	PredictedClass int       `json:"predictedClass"`
}

// Confidence returns the probability assigned to the predicted class.
func (p PredictionRecord) Confidence() float64 {
	return p.Probabilities[p.PredictedClass]
}

// AggregateVerdict is the final judgment for one recording.
type AggregateVerdict struct {
	ClassName      string    `json:"className"`
	WeightedScores []float64 `json:"weightedScores"`
	Votes          []int     `json:"votes"`
	FinalClass     int       `json:"finalClass"`
	WindowCount    int       `json:"windowCount"`
}

// Argmax returns the index of the largest value. Ties go to the lowest index.
// It returns -1 for an empty slice.
func Argmax(values []float64) int {
	best := -1
	for i, v := range values {
		if best == -1 || v > values[best] {
			best = i
		}
	}
	return best
}

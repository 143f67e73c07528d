// Package classifier is the only boundary to the external motor-state model.
//
// The model is treated as a pure function from an L x 4 matrix of normalized
// features to a probability vector over the classes. The Adapter checks the
// input shape and the output contract and turns every violation into an
// InferenceError; it never substitutes a default vector and never retries.
// A probability vector whose length differs from the class count also
// carries a ConfigError, since no later window can succeed either.
package classifier

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Model is the external classifier.
type Model interface {
	Predict(ctx context.Context, x mat.Matrix) ([]float64, error)
}

// BatchModel is a Model that can score several windows in one call.
type BatchModel interface {
	Model
	PredictBatch(ctx context.Context, xs []mat.Matrix) ([][]float64, error)
}

// Shape is the input shape the model was trained on.
type Shape struct {
	Rows int
	Cols int
}

// ClassCounter is implemented by models that know how many classes they
// produce. Zero means unknown.
type ClassCounter interface {
	Classes() int
}

// DeclaredClasses reports the class count m declares, looking through
// decorators such as WithRetries.
func DeclaredClasses(m Model) (int, bool) {
	for m != nil {
		if c, ok := m.(ClassCounter); ok && c.Classes() > 0 {
			return c.Classes(), true
		}
		u, ok := m.(interface{ Unwrap() Model })
		if !ok {
			break
		}
		m = u.Unwrap()
	}
	return 0, false
}

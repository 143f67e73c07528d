package classifier

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// FuncModel adapts a plain function to Model. It is used for dry runs and tests.
type FuncModel func(x mat.Matrix) ([]float64, error)

// Predict calls f.
func (f FuncModel) Predict(_ context.Context, x mat.Matrix) ([]float64, error) {
	return f(x)
}

// Fixed returns a model that always answers with a copy of probs.
func Fixed(probs ...float64) Model {
	return FuncModel(func(mat.Matrix) ([]float64, error) {
		out := make([]float64, len(probs))
		copy(out, probs)
		return out, nil
	})
}

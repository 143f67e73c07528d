package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Veraticus/motorsense/internal/common"
	"github.com/Veraticus/motorsense/internal/model"
	"github.com/Veraticus/motorsense/internal/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SumTolerance is how far a probability vector may drift from 1.
const SumTolerance = 1e-3

// Contract violations reported inside an InferenceError.
var (
	ErrShapeMismatch     = errors.New("window shape does not match model input")
	ErrMalformedResponse = errors.New("malformed probability vector")
)

// Adapter validates model inputs and outputs.
type Adapter struct {
	model   Model
	shape   Shape
	classes int
}

// NewAdapter creates an Adapter for a model with the given input shape and class count.
func NewAdapter(m Model, shape Shape, classes int) (*Adapter, error) {
	if m == nil {
		return nil, common.NewConfigError("classifier", "model is required")
	}
	if shape.Rows < 1 || shape.Cols < 1 {
		return nil, common.NewConfigError("classifier", "invalid input shape %dx%d", shape.Rows, shape.Cols)
	}
	if classes < 1 {
		return nil, common.NewConfigError("classes", "class count must be >= 1, got %d", classes)
	}
	return &Adapter{model: m, shape: shape, classes: classes}, nil
}

// Classes returns the expected probability vector length.
func (a *Adapter) Classes() int {
	return a.classes
}

// Classify scores one window.
func (a *Adapter) Classify(ctx context.Context, w window.Window) (model.PredictionRecord, error) {
	if err := a.checkShape(w); err != nil {
		return model.PredictionRecord{}, err
	}

	probs, err := a.model.Predict(ctx, w.Data)
	if err != nil {
		return model.PredictionRecord{}, &common.InferenceError{Window: w.Index, Err: err}
	}
	return a.record(w.Index, probs)
}

// BatchResult is the outcome for one window of a batch.
type BatchResult struct {
	Err    error
	Record model.PredictionRecord
}

// ClassifyBatch scores several windows, in one model call when the model
// supports it. Results are index-aligned with windows. A failed batch call
// fails every window in it.
func (a *Adapter) ClassifyBatch(ctx context.Context, windows []window.Window) []BatchResult {
	results := make([]BatchResult, len(windows))

	batch, ok := a.model.(BatchModel)
	if !ok || len(windows) == 1 {
		for i, w := range windows {
			results[i].Record, results[i].Err = a.Classify(ctx, w)
		}
		return results
	}

	inputs := make([]mat.Matrix, 0, len(windows))
	positions := make([]int, 0, len(windows))
	for i, w := range windows {
		if err := a.checkShape(w); err != nil {
			results[i].Err = err
			continue
		}
		inputs = append(inputs, w.Data)
		positions = append(positions, i)
	}
	if len(inputs) == 0 {
		return results
	}

	outputs, err := batch.PredictBatch(ctx, inputs)
	if err == nil && len(outputs) != len(inputs) {
		err = fmt.Errorf("%w: model returned %d vectors for %d windows", ErrMalformedResponse, len(outputs), len(inputs))
	}

	for j, i := range positions {
		if err != nil {
			results[i].Err = &common.InferenceError{Window: windows[i].Index, Err: err}
			continue
		}
		results[i].Record, results[i].Err = a.record(windows[i].Index, outputs[j])
	}
	return results
}

func (a *Adapter) checkShape(w window.Window) error {
	if w.Data == nil {
		return &common.InferenceError{Window: w.Index, Err: fmt.Errorf("%w: window has no data", ErrShapeMismatch)}
	}
	rows, cols := w.Data.Dims()
	if rows != a.shape.Rows || cols != a.shape.Cols {
		return &common.InferenceError{
			Window: w.Index,
			Err:    fmt.Errorf("%w: got %dx%d, want %dx%d", ErrShapeMismatch, rows, cols, a.shape.Rows, a.shape.Cols),
		}
	}
	return nil
}

// record validates a probability vector and picks the predicted class.
func (a *Adapter) record(index int, probs []float64) (model.PredictionRecord, error) {
	if err := a.validate(probs); err != nil {
		return model.PredictionRecord{}, &common.InferenceError{Window: index, Err: err}
	}

	copied := make([]float64, len(probs))
	copy(copied, probs)

	return model.PredictionRecord{
		Window:         index,
		Probabilities:  copied,
		PredictedClass: model.Argmax(copied),
	}, nil
}

func (a *Adapter) validate(probs []float64) error {
	if len(probs) != a.classes {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, common.NewConfigError("classes",
			"model returned %d probabilities, %d classes configured", len(probs), a.classes))
	}
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: class %d is not finite", ErrMalformedResponse, i)
		}
		if p < 0 || p > 1+SumTolerance {
			return fmt.Errorf("%w: class %d probability %v outside [0,1]", ErrMalformedResponse, i, p)
		}
	}
	if sum := floats.Sum(probs); math.Abs(sum-1) > SumTolerance {
		return fmt.Errorf("%w: probabilities sum to %v", ErrMalformedResponse, sum)
	}
	return nil
}

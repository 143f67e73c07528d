package classifier

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/Veraticus/motorsense/internal/common"
	"github.com/Veraticus/motorsense/internal/model"
	"github.com/Veraticus/motorsense/internal/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testWindow(index, rows, cols int) window.Window {
	return window.Window{
		Data:   mat.NewDense(rows, cols, make([]float64, rows*cols)),
		Index:  index,
		Offset: index * rows,
	}
}

func newTestAdapter(t *testing.T, m Model) *Adapter {
	t.Helper()
	a, err := NewAdapter(m, Shape{Rows: 4, Cols: model.FeatureDim}, 4)
	require.NoError(t, err)
	return a
}

func TestNewAdapter_Validation(t *testing.T) {
	_, err := NewAdapter(nil, Shape{Rows: 4, Cols: 4}, 4)
	assert.ErrorIs(t, err, common.ErrConfiguration)

	_, err = NewAdapter(Fixed(1), Shape{Rows: 0, Cols: 4}, 4)
	assert.ErrorIs(t, err, common.ErrConfiguration)

	_, err = NewAdapter(Fixed(1), Shape{Rows: 4, Cols: 4}, 0)
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestAdapter_Classify(t *testing.T) {
	a := newTestAdapter(t, Fixed(0.1, 0.2, 0.6, 0.1))

	rec, err := a.Classify(context.Background(), testWindow(7, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, 7, rec.Window)
	assert.Equal(t, 2, rec.PredictedClass)
	assert.InDelta(t, 0.6, rec.Confidence(), 1e-12)
}

func TestAdapter_TieBreaksToLowestClass(t *testing.T) {
	a := newTestAdapter(t, Fixed(0.1, 0.4, 0.1, 0.4))

	rec, err := a.Classify(context.Background(), testWindow(0, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.PredictedClass)
}

func TestAdapter_Classify_InferenceErrors(t *testing.T) {
	modelErr := errors.New("tensor exploded")

	tests := []struct {
		name    string
		model   Model
		window  window.Window
		wantErr error
	}{
		{name: "model error", model: FuncModel(func(mat.Matrix) ([]float64, error) { return nil, modelErr }), window: testWindow(3, 4, 4), wantErr: modelErr},
		{name: "too many rows", model: Fixed(0.25, 0.25, 0.25, 0.25), window: testWindow(3, 5, 4), wantErr: ErrShapeMismatch},
		{name: "too few cols", model: Fixed(0.25, 0.25, 0.25, 0.25), window: testWindow(3, 4, 3), wantErr: ErrShapeMismatch},
		{name: "nil data", model: Fixed(0.25, 0.25, 0.25, 0.25), window: window.Window{Index: 3}, wantErr: ErrShapeMismatch},
		{name: "wrong length", model: Fixed(0.5, 0.5), window: testWindow(3, 4, 4), wantErr: ErrMalformedResponse},
		{name: "not normalized", model: Fixed(0.5, 0.5, 0.5, 0.5), window: testWindow(3, 4, 4), wantErr: ErrMalformedResponse},
		{name: "negative entry", model: Fixed(-0.2, 0.6, 0.3, 0.3), window: testWindow(3, 4, 4), wantErr: ErrMalformedResponse},
		{name: "nan entry", model: Fixed(math.NaN(), 0.5, 0.25, 0.25), window: testWindow(3, 4, 4), wantErr: ErrMalformedResponse},
		{name: "inf entry", model: Fixed(math.Inf(1), 0, 0, 0), window: testWindow(3, 4, 4), wantErr: ErrMalformedResponse},
		{name: "empty vector", model: Fixed(), window: testWindow(3, 4, 4), wantErr: ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t, tt.model)

			rec, err := a.Classify(context.Background(), tt.window)
			require.Error(t, err)
			assert.Empty(t, rec.Probabilities, "no default vector may be returned")
			assert.ErrorIs(t, err, common.ErrInference)
			assert.ErrorIs(t, err, tt.wantErr)

			var inferenceErr *common.InferenceError
			require.ErrorAs(t, err, &inferenceErr)
			assert.Equal(t, 3, inferenceErr.Window)
		})
	}
}

func TestAdapter_LengthMismatchIsConfigurationError(t *testing.T) {
	a := newTestAdapter(t, Fixed(0.7, 0.1, 0.2))

	_, err := a.Classify(context.Background(), testWindow(5, 4, 4))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConfiguration)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	var configErr *common.ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "classes", configErr.Field)
	assert.Contains(t, configErr.Reason, "model returned 3 probabilities, 4 classes configured")

	// Contract violations other than length stay plain inference errors.
	a = newTestAdapter(t, Fixed(0.5, 0.5, 0.5, 0.5))
	_, err = a.Classify(context.Background(), testWindow(5, 4, 4))
	assert.NotErrorIs(t, err, common.ErrConfiguration)
}

func TestDeclaredClasses(t *testing.T) {
	n, ok := DeclaredClasses(Fixed(1, 0))
	assert.False(t, ok)
	assert.Zero(t, n)

	m, err := NewHTTPModel(HTTPConfig{BaseURL: "http://localhost:8501", Classes: 4})
	require.NoError(t, err)
	n, ok = DeclaredClasses(WithRetries(m, common.RetryOptions{}))
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	unknown, err := NewHTTPModel(HTTPConfig{BaseURL: "http://localhost:8501"})
	require.NoError(t, err)
	_, ok = DeclaredClasses(unknown)
	assert.False(t, ok)

	_, err = NewHTTPModel(HTTPConfig{BaseURL: "http://localhost:8501", Classes: -1})
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestAdapter_AcceptsSumWithinTolerance(t *testing.T) {
	a := newTestAdapter(t, Fixed(0.2502, 0.25, 0.25, 0.2502))
	_, err := a.Classify(context.Background(), testWindow(0, 4, 4))
	assert.NoError(t, err)
}

func TestAdapter_DoesNotRetry(t *testing.T) {
	calls := 0
	a := newTestAdapter(t, FuncModel(func(mat.Matrix) ([]float64, error) {
		calls++
		return nil, &common.RetryableError{Err: errors.New("busy"), Retryable: true}
	}))

	_, err := a.Classify(context.Background(), testWindow(0, 4, 4))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestAdapter_RecordDoesNotAliasModelOutput(t *testing.T) {
	shared := []float64{0.7, 0.1, 0.1, 0.1}
	a := newTestAdapter(t, FuncModel(func(mat.Matrix) ([]float64, error) { return shared, nil }))

	rec, err := a.Classify(context.Background(), testWindow(0, 4, 4))
	require.NoError(t, err)
	shared[0] = 0
	assert.Equal(t, 0.7, rec.Probabilities[0])
}

// batchFake records how it was called.
type batchFake struct {
	err       error
	responses [][]float64
	batches   int
	singles   int
}

func (b *batchFake) Predict(_ context.Context, _ mat.Matrix) ([]float64, error) {
	b.singles++
	return []float64{1, 0, 0, 0}, nil
}

func (b *batchFake) PredictBatch(_ context.Context, xs []mat.Matrix) ([][]float64, error) {
	b.batches++
	if b.err != nil {
		return nil, b.err
	}
	return b.responses[:len(xs)], nil
}

func TestAdapter_ClassifyBatch(t *testing.T) {
	fake := &batchFake{responses: [][]float64{
		{0.9, 0.1, 0, 0},
		{0.5, 0.5, 0, 0},
		{0, 0, 0.2, 0.8},
	}}
	a := newTestAdapter(t, fake)

	windows := []window.Window{testWindow(0, 4, 4), testWindow(1, 4, 4), testWindow(2, 4, 4)}
	results := a.ClassifyBatch(context.Background(), windows)

	require.Len(t, results, 3)
	assert.Equal(t, 1, fake.batches)
	assert.Zero(t, fake.singles)
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, i, r.Record.Window)
	}
	assert.Equal(t, 0, results[0].Record.PredictedClass)
	assert.Equal(t, 0, results[1].Record.PredictedClass)
	assert.Equal(t, 3, results[2].Record.PredictedClass)
}

func TestAdapter_ClassifyBatch_MixedOutcomes(t *testing.T) {
	fake := &batchFake{responses: [][]float64{
		{0.9, 0.1, 0, 0},
		{0.9, 0.9, 0, 0},
	}}
	a := newTestAdapter(t, fake)

	windows := []window.Window{testWindow(0, 4, 4), testWindow(1, 3, 4), testWindow(2, 4, 4)}
	results := a.ClassifyBatch(context.Background(), windows)

	require.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrShapeMismatch)
	assert.ErrorIs(t, results[2].Err, ErrMalformedResponse)

	var inferenceErr *common.InferenceError
	require.ErrorAs(t, results[2].Err, &inferenceErr)
	assert.Equal(t, 2, inferenceErr.Window)
}

func TestAdapter_ClassifyBatch_CallFailureFailsEveryWindow(t *testing.T) {
	boom := errors.New("server gone")
	fake := &batchFake{err: boom}
	a := newTestAdapter(t, fake)

	windows := []window.Window{testWindow(4, 4, 4), testWindow(5, 4, 4)}
	results := a.ClassifyBatch(context.Background(), windows)

	for i, r := range results {
		require.Error(t, r.Err)
		assert.ErrorIs(t, r.Err, boom)
		var inferenceErr *common.InferenceError
		require.ErrorAs(t, r.Err, &inferenceErr)
		assert.Equal(t, windows[i].Index, inferenceErr.Window)
	}
}

func TestAdapter_ClassifyBatch_WithoutBatchSupport(t *testing.T) {
	calls := 0
	a := newTestAdapter(t, FuncModel(func(mat.Matrix) ([]float64, error) {
		calls++
		return []float64{0, 1, 0, 0}, nil
	}))

	results := a.ClassifyBatch(context.Background(), []window.Window{testWindow(0, 4, 4), testWindow(1, 4, 4)})
	assert.Equal(t, 2, calls)
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, 1, r.Record.PredictedClass)
	}
}

package classifier

import (
	"context"

	"github.com/Veraticus/motorsense/internal/common"
	"gonum.org/v1/gonum/mat"
)

// retryingModel is a caller-side decorator; the Adapter itself never retries.
type retryingModel struct {
	next Model
	opts common.RetryOptions
}

type retryingBatchModel struct {
	retryingModel
	batch BatchModel
}

// WithRetries wraps a model so transient failures are retried with backoff.
// Batch support is preserved.
func WithRetries(m Model, opts common.RetryOptions) Model {
	r := retryingModel{next: m, opts: opts}
	if b, ok := m.(BatchModel); ok {
		return &retryingBatchModel{retryingModel: r, batch: b}
	}
	return &r
}

// Unwrap returns the decorated model.
func (r *retryingModel) Unwrap() Model {
	return r.next
}

func (r *retryingModel) Predict(ctx context.Context, x mat.Matrix) ([]float64, error) {
	var out []float64
	err := common.WithRetry(ctx, func() error {
		var err error
		out, err = r.next.Predict(ctx, x)
		return err
	}, r.opts)
	return out, err
}

func (r *retryingBatchModel) PredictBatch(ctx context.Context, xs []mat.Matrix) ([][]float64, error) {
	var out [][]float64
	err := common.WithRetry(ctx, func() error {
		var err error
		out, err = r.batch.PredictBatch(ctx, xs)
		return err
	}, r.opts)
	return out, err
}

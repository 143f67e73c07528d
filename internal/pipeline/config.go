package pipeline

import (
	"github.com/Veraticus/motorsense/internal/common"
	"github.com/Veraticus/motorsense/internal/features"
	"github.com/Veraticus/motorsense/internal/model"
	"github.com/Veraticus/motorsense/internal/window"
)

// ErrorPolicy decides what happens to a recording when a window fails inference.
type ErrorPolicy string

// Inference error policies.
const (
	// PolicyAbort fails the whole recording on the first failed window.
	PolicyAbort ErrorPolicy = "abort"
	// PolicySkip drops failed windows from the vote and reports how many were dropped.
	PolicySkip ErrorPolicy = "skip"
)

// Config holds everything fixed for the lifetime of one pipeline.
type Config struct {
	OnError      ErrorPolicy
	Classes      []string
	Scaler       features.ScalerParams
	WindowLength int
	Stride       int
	Workers      int
	BatchSize    int
}

// DefaultConfig returns the window geometry and classes the model was trained
// with. The scaler has no default and must be supplied.
func DefaultConfig() Config {
	return Config{
		WindowLength: window.DefaultLength,
		Stride:       window.DefaultStride,
		Classes:      model.DefaultClassNames(),
		OnError:      PolicyAbort,
		Workers:      1,
		BatchSize:    1,
	}
}

func (c Config) validate() error {
	switch c.OnError {
	case PolicyAbort, PolicySkip:
	default:
		return common.NewConfigError("inference.on_error", "must be %q or %q, got %q", PolicyAbort, PolicySkip, c.OnError)
	}
	if c.Workers < 1 {
		return common.NewConfigError("inference.workers", "must be >= 1, got %d", c.Workers)
	}
	if c.BatchSize < 1 {
		return common.NewConfigError("inference.batch_size", "must be >= 1, got %d", c.BatchSize)
	}
	return nil
}

package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/motorsense/internal/common"
	"gonum.org/v1/gonum/mat"
)

// HTTPConfig configures a model served over a TensorFlow Serving style REST API.
type HTTPConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	// Classes is the length of each prediction vector. Zero leaves it to be
	// checked on the first response.
	Classes int
}

// HTTPModel calls POST {base}/v1/models/{model}:predict.
type HTTPModel struct {
	httpClient *http.Client
	endpoint   string
	classes    int
}

type predictRequest struct {
	Instances [][][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// NewHTTPModel creates a model server client.
func NewHTTPModel(cfg HTTPConfig) (*HTTPModel, error) {
	if cfg.BaseURL == "" {
		return nil, common.NewConfigError("classifier.url", "model server URL is required")
	}

	name := cfg.Model
	if name == "" {
		name = "motor_state"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if cfg.Classes < 0 {
		return nil, common.NewConfigError("classifier.classes", "must be >= 0, got %d", cfg.Classes)
	}

	return &HTTPModel{
		classes:  cfg.Classes,
		endpoint: fmt.Sprintf("%s/v1/models/%s:predict", strings.TrimRight(cfg.BaseURL, "/"), name),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Classes returns the configured class count, or zero when unknown.
func (m *HTTPModel) Classes() int {
	return m.classes
}

// Endpoint returns the predict URL.
func (m *HTTPModel) Endpoint() string {
	return m.endpoint
}

// Predict scores a single window.
func (m *HTTPModel) Predict(ctx context.Context, x mat.Matrix) ([]float64, error) {
	out, err := m.PredictBatch(ctx, []mat.Matrix{x})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// PredictBatch scores several windows in one request.
func (m *HTTPModel) PredictBatch(ctx context.Context, xs []mat.Matrix) ([][]float64, error) {
	instances := make([][][]float64, len(xs))
	for i, x := range xs {
		instances[i] = toRows(x)
	}

	body, err := json.Marshal(predictRequest{Instances: instances})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("request failed: %w", err), Retryable: ctx.Err() == nil}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &common.RetryableError{Err: fmt.Errorf("%w: %s", common.ErrRateLimit, string(raw)), Retryable: true}
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &common.RetryableError{Err: fmt.Errorf("model server error (status %d): %s", resp.StatusCode, string(raw)), Retryable: true}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("model server error (status %d): %s", resp.StatusCode, string(raw))
	}

	var parsed predictResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrMalformedResponse, err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("model server error: %s", parsed.Error)
	}
	if len(parsed.Predictions) != len(xs) {
		return nil, fmt.Errorf("%w: got %d predictions for %d instances", ErrMalformedResponse, len(parsed.Predictions), len(xs))
	}
	return parsed.Predictions, nil
}

func toRows(x mat.Matrix) [][]float64 {
	r, c := x.Dims()
	rows := make([][]float64, r)
	for i := 0; i < r; i++ {
		row := make([]float64, c)
		for j := 0; j < c; j++ {
			row[j] = x.At(i, j)
		}
		rows[i] = row
	}
	return rows
}

package features

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/Veraticus/motorsense/internal/common"
	"github.com/Veraticus/motorsense/internal/model"
)

// ScalerParams are the per-feature standardization parameters produced by
// fitting on training data.
type ScalerParams struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// LoadScalerParams reads scaler parameters from a JSON file.
func LoadScalerParams(path string) (ScalerParams, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ScalerParams{}, fmt.Errorf("failed to read scaler file: %w", err)
	}

	var params ScalerParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return ScalerParams{}, common.NewConfigError("scaler", "failed to parse %s: %v", path, err)
	}
	return params, nil
}

// Normalizer applies (v - mean) / scale to every feature. The parameters are
// copied at construction and never change afterwards.
type Normalizer struct {
	mean  model.FeatureVector
	scale model.FeatureVector
}

// NewNormalizer validates params and builds a Normalizer.
func NewNormalizer(params ScalerParams) (*Normalizer, error) {
	if len(params.Mean) != model.FeatureDim {
		return nil, common.NewConfigError("scaler.mean", "expected %d values, got %d", model.FeatureDim, len(params.Mean))
	}
	if len(params.Scale) != model.FeatureDim {
		return nil, common.NewConfigError("scaler.scale", "expected %d values, got %d", model.FeatureDim, len(params.Scale))
	}

	n := &Normalizer{}
	for i := 0; i < model.FeatureDim; i++ {
		mean, scale := params.Mean[i], params.Scale[i]
		if math.IsNaN(mean) || math.IsInf(mean, 0) {
			return nil, common.NewConfigError("scaler.mean", "%s mean is not finite", model.FeatureNames[i])
		}
		if !(scale > 0) || math.IsInf(scale, 0) {
			return nil, common.NewConfigError("scaler.scale", "%s scale must be finite and > 0, got %v", model.FeatureNames[i], scale)
		}
		n.mean[i] = mean
		n.scale[i] = scale
	}
	return n, nil
}

// Params returns a copy of the parameters in use.
func (n *Normalizer) Params() ScalerParams {
	return ScalerParams{
		Mean:  append([]float64(nil), n.mean[:]...),
		Scale: append([]float64(nil), n.scale[:]...),
	}
}

// Normalize standardizes one feature vector.
func (n *Normalizer) Normalize(v model.FeatureVector) model.FeatureVector {
	var out model.FeatureVector
	for i := range v {
		out[i] = (v[i] - n.mean[i]) / n.scale[i]
	}
	return out
}

// Denormalize inverts Normalize.
func (n *Normalizer) Denormalize(v model.FeatureVector) model.FeatureVector {
	var out model.FeatureVector
	for i := range v {
		out[i] = v[i]*n.scale[i] + n.mean[i]
	}
	return out
}

// Stream extracts and normalizes a whole recording into a row-major
// N x FeatureDim slice, the layout the window segmenter consumes.
func (n *Normalizer) Stream(samples []model.Sample) []float64 {
	out := make([]float64, 0, len(samples)*model.FeatureDim)
	for _, s := range samples {
		v := n.Normalize(Extract(s))
		out = append(out, v[:]...)
	}
	return out
}

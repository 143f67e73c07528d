// Package features derives feature vectors from raw acceleration samples and
// standardizes them with parameters fitted at training time.
package features

import (
	"math"

	"github.com/Veraticus/motorsense/internal/model"
)

// Extract returns (ax, ay, az, av) for a sample. Non-finite inputs propagate.
func Extract(s model.Sample) model.FeatureVector {
	return model.FeatureVector{
		s.AX,
		s.AY,
		s.AZ,
		math.Sqrt(s.AX*s.AX + s.AY*s.AY + s.AZ*s.AZ),
	}
}

// ExtractAll maps Extract over a stream, one vector per sample.
func ExtractAll(samples []model.Sample) []model.FeatureVector {
	out := make([]model.FeatureVector, len(samples))
	for i, s := range samples {
		out[i] = Extract(s)
	}
	return out
}

// Package model defines the core domain models used throughout the application.
package model

// FeatureDim is the number of features derived from one sample.
const FeatureDim = 4

// Feature indexes inside a FeatureVector.
const (
	FeatureAX = iota
	FeatureAY
	FeatureAZ
	FeatureAV
)

// FeatureNames lists the features in vector order.
var FeatureNames = [FeatureDim]string{"ax", "ay", "az", "av"}

// Sample is one raw 3-axis acceleration reading. Position in the
// stream is its only identity.
type Sample struct {
	AX float64 `json:"ax"`
	AY float64 `json:"ay"`
	AZ float64 `json:"az"`
}

// FeatureVector holds (ax, ay, az, av) where av is the magnitude of the
// acceleration vector. The same type is used before and after normalization.
type FeatureVector [FeatureDim]float64

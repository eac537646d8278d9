// Package model loads classifier artifacts produced by the training
// pipeline and exposes them behind a single inference capability.
//
// Artifacts are plain JSON files. The registry is built once at process
// start and injected into the scoring engine; there is no lazy loading and
// no package-level model state. Loaded classifiers are read-only and safe
// for concurrent inference.
package model

import (
	"math"

	"github.com/richxcame/fraudscore/internal/features"
)

// Canonical classifier names. The ensemble weight configuration is keyed by
// these.
const (
	NameAnomalyDetector = "anomaly_detector"
	NameRandomForest    = "random_forest"
	NameGradientBoost   = "gradient_boost"
)

// Classifier is the capability every model variant exposes: a fraud
// probability in [0,1] for one feature vector.
type Classifier interface {
	Name() string
	PredictFraudProbability(v features.Vector) (float64, error)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

package model

import (
	"fmt"
	"math"

	"github.com/richxcame/fraudscore/internal/features"
)

// anomalyArtifact is the JSON payload of the unsupervised detector:
// per-feature distribution moments from the training window.
type anomalyArtifact struct {
	Type   string    `json:"type"`
	Name   string    `json:"name"`
	Means  []float64 `json:"means"`
	Stds   []float64 `json:"stds"`
	Offset float64   `json:"offset"`
}

// GaussianAnomaly scores how far a vector sits from the training
// distribution: the sigmoid-squashed mean absolute z-score, shifted by a
// calibration offset so typical traffic lands well below 0.5.
type GaussianAnomaly struct {
	name   string
	means  [features.Count]float64
	stds   [features.Count]float64
	offset float64
}

var _ Classifier = (*GaussianAnomaly)(nil)

func newGaussianAnomaly(a anomalyArtifact) (*GaussianAnomaly, error) {
	if len(a.Means) != features.Count || len(a.Stds) != features.Count {
		return nil, fmt.Errorf("model %q: expected %d means and stds, got %d/%d",
			a.Name, features.Count, len(a.Means), len(a.Stds))
	}
	m := &GaussianAnomaly{name: a.Name, offset: a.Offset}
	copy(m.means[:], a.Means)
	copy(m.stds[:], a.Stds)
	return m, nil
}

// Name returns the classifier name.
func (m *GaussianAnomaly) Name() string { return m.name }

// PredictFraudProbability returns sigmoid(meanAbsZ - offset). Features with
// zero training variance are skipped.
func (m *GaussianAnomaly) PredictFraudProbability(v features.Vector) (float64, error) {
	var sum float64
	var n int
	for i := 0; i < features.Count; i++ {
		if m.stds[i] <= 0 {
			continue
		}
		sum += math.Abs(v[i]-m.means[i]) / m.stds[i]
		n++
	}
	if n == 0 {
		return 0, fmt.Errorf("model %q: all feature variances are zero", m.name)
	}
	return clamp01(sigmoid(sum/float64(n) - m.offset)), nil
}

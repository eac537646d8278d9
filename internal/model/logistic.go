package model

import (
	"fmt"

	"github.com/richxcame/fraudscore/internal/features"
)

// logisticArtifact is the JSON payload of a trained logistic model.
type logisticArtifact struct {
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

// Logistic is a supervised linear classifier: sigmoid of the weighted
// feature sum. The gradient-boost artifact exports to this form.
type Logistic struct {
	name      string
	weights   [features.Count]float64
	intercept float64
}

var _ Classifier = (*Logistic)(nil)

func newLogistic(a logisticArtifact) (*Logistic, error) {
	if len(a.Weights) != features.Count {
		return nil, fmt.Errorf("model %q: expected %d weights, got %d", a.Name, features.Count, len(a.Weights))
	}
	m := &Logistic{name: a.Name, intercept: a.Intercept}
	copy(m.weights[:], a.Weights)
	return m, nil
}

// Name returns the classifier name.
func (m *Logistic) Name() string { return m.name }

// PredictFraudProbability returns sigmoid(w·x + b).
func (m *Logistic) PredictFraudProbability(v features.Vector) (float64, error) {
	sum := m.intercept
	for i, w := range m.weights {
		sum += w * v[i]
	}
	return clamp01(sigmoid(sum)), nil
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/fraudscore/internal/features"
)

func TestLogistic_Predict(t *testing.T) {
	weights := make([]float64, features.Count)
	m, err := newLogistic(logisticArtifact{Name: NameGradientBoost, Weights: weights})
	require.NoError(t, err)

	// All-zero weights and intercept give the sigmoid midpoint.
	var v features.Vector
	score, err := m.PredictFraudProbability(v)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score, 1e-9)
}

func TestLogistic_WeightsShiftTheScore(t *testing.T) {
	weights := make([]float64, features.Count)
	weights[features.IdxIsNight] = 2.0
	m, err := newLogistic(logisticArtifact{Name: NameGradientBoost, Weights: weights, Intercept: -4})
	require.NoError(t, err)

	var day features.Vector
	dayScore, err := m.PredictFraudProbability(day)
	require.NoError(t, err)

	night := day
	night[features.IdxIsNight] = 1
	nightScore, err := m.PredictFraudProbability(night)
	require.NoError(t, err)

	assert.Greater(t, nightScore, dayScore)
	assert.InDelta(t, 0.0180, dayScore, 1e-3)   // sigmoid(-4)
	assert.InDelta(t, 0.1192, nightScore, 1e-3) // sigmoid(-2)
}

func TestLogistic_RejectsWrongWeightCount(t *testing.T) {
	_, err := newLogistic(logisticArtifact{Name: "bad", Weights: []float64{1, 2, 3}})
	assert.Error(t, err)
}

func testTree() tree {
	// Route on amount: <=1000 low risk, >1000 high risk.
	return tree{Nodes: []treeNode{
		{Feature: features.IdxAmount, Threshold: 1000, Left: 1, Right: 2},
		{Leaf: true, Value: 0.1},
		{Leaf: true, Value: 0.9},
	}}
}

func TestTreeEnsemble_Predict(t *testing.T) {
	m, err := newTreeEnsemble(treeEnsembleArtifact{Name: NameRandomForest, Trees: []tree{testTree()}})
	require.NoError(t, err)

	var low features.Vector
	low[features.IdxAmount] = 500
	score, err := m.PredictFraudProbability(low)
	require.NoError(t, err)
	assert.Equal(t, 0.1, score)

	var high features.Vector
	high[features.IdxAmount] = 5000
	score, err = m.PredictFraudProbability(high)
	require.NoError(t, err)
	assert.Equal(t, 0.9, score)
}

func TestTreeEnsemble_AveragesAcrossTrees(t *testing.T) {
	constant := func(v float64) tree {
		return tree{Nodes: []treeNode{{Leaf: true, Value: v}}}
	}
	m, err := newTreeEnsemble(treeEnsembleArtifact{
		Name:  NameRandomForest,
		Trees: []tree{constant(0.2), constant(0.4), constant(0.9)},
	})
	require.NoError(t, err)

	var v features.Vector
	score, err := m.PredictFraudProbability(v)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score, 1e-9)
}

func TestTreeEnsemble_Validation(t *testing.T) {
	tests := []struct {
		name  string
		trees []tree
	}{
		{"no trees", nil},
		{"empty tree", []tree{{}}},
		{"feature outside schema", []tree{{Nodes: []treeNode{
			{Feature: features.Count, Threshold: 1, Left: 1, Right: 1},
			{Leaf: true, Value: 0.5},
		}}}},
		{"out of range child", []tree{{Nodes: []treeNode{
			{Feature: features.IdxAmount, Threshold: 1, Left: 5, Right: 1},
			{Leaf: true, Value: 0.5},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTreeEnsemble(treeEnsembleArtifact{Name: "bad", Trees: tt.trees})
			assert.Error(t, err)
		})
	}
}

func anomalyFixture(offset float64) anomalyArtifact {
	means := make([]float64, features.Count)
	stds := make([]float64, features.Count)
	for i := range stds {
		stds[i] = 1
	}
	return anomalyArtifact{Name: NameAnomalyDetector, Means: means, Stds: stds, Offset: offset}
}

func TestGaussianAnomaly_Predict(t *testing.T) {
	m, err := newGaussianAnomaly(anomalyFixture(3))
	require.NoError(t, err)

	// A vector at the training means scores sigmoid(-offset).
	var typical features.Vector
	score, err := m.PredictFraudProbability(typical)
	require.NoError(t, err)
	assert.InDelta(t, 0.0474, score, 1e-3)

	// Every feature five sigmas out scores sigmoid(5-offset).
	var unusual features.Vector
	for i := range unusual {
		unusual[i] = 5
	}
	score, err = m.PredictFraudProbability(unusual)
	require.NoError(t, err)
	assert.InDelta(t, 0.8808, score, 1e-3)
}

func TestGaussianAnomaly_SkipsZeroVarianceFeatures(t *testing.T) {
	a := anomalyFixture(0)
	for i := range a.Stds {
		a.Stds[i] = 0
	}
	a.Stds[features.IdxAmount] = 10
	a.Means[features.IdxAmount] = 100
	m, err := newGaussianAnomaly(a)
	require.NoError(t, err)

	var v features.Vector
	v[features.IdxAmount] = 120
	// Only the amount feature contributes: |120-100|/10 = 2.
	score, err := m.PredictFraudProbability(v)
	require.NoError(t, err)
	assert.InDelta(t, 0.8808, score, 1e-3)
}

func TestGaussianAnomaly_AllVariancesZeroIsAnError(t *testing.T) {
	a := anomalyFixture(0)
	for i := range a.Stds {
		a.Stds[i] = 0
	}
	m, err := newGaussianAnomaly(a)
	require.NoError(t, err)

	var v features.Vector
	_, err = m.PredictFraudProbability(v)
	assert.Error(t, err)
}

func TestGaussianAnomaly_RejectsWrongMomentCount(t *testing.T) {
	_, err := newGaussianAnomaly(anomalyArtifact{Name: "bad", Means: []float64{0}, Stds: []float64{1}})
	assert.Error(t, err)
}

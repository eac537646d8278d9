package fraud

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richxcame/fraudscore/internal/features"
	"github.com/richxcame/fraudscore/internal/model"
	"github.com/richxcame/fraudscore/pkg/config"
)

// stubClassifier is a scripted model for pipeline tests.
type stubClassifier struct {
	name   string
	score  float64
	err    error
	panics bool
}

func (s *stubClassifier) Name() string { return s.name }

func (s *stubClassifier) PredictFraudProbability(features.Vector) (float64, error) {
	if s.panics {
		panic("inference runtime blew up")
	}
	return s.score, s.err
}

func defaultWeights() config.EnsembleConfig {
	return config.EnsembleConfig{AnomalyWeight: 0.2, ForestWeight: 0.4, BoostWeight: 0.4}
}

func newEnsemble(weights config.EnsembleConfig, classifiers ...model.Classifier) *EnsembleEngine {
	return NewEnsembleEngine(model.NewRegistry(classifiers...), weights)
}

func TestEnsembleScore_WeightedCombination(t *testing.T) {
	e := newEnsemble(defaultWeights(),
		&stubClassifier{name: model.NameAnomalyDetector, score: 0.5},
		&stubClassifier{name: model.NameRandomForest, score: 0.2},
		&stubClassifier{name: model.NameGradientBoost, score: 0.8},
	)

	var v features.Vector
	r := e.Score(v)

	// (0.5*0.2 + 0.2*0.4 + 0.8*0.4) / 1.0
	assert.InDelta(t, 0.5, r.WeightedScore, 1e-9)
	assert.InDelta(t, 0.5, r.MeanScore, 1e-9)
	assert.InDelta(t, 0.6, r.Disagreement, 1e-9)
	assert.Equal(t, ConfidenceLow, r.Confidence)
	assert.False(t, r.FallbackUsed)
	require.Len(t, r.ModelScores, 3)
}

func TestEnsembleScore_UnconfiguredModelGetsDefaultWeight(t *testing.T) {
	e := newEnsemble(defaultWeights(),
		&stubClassifier{name: model.NameGradientBoost, score: 0.8},
		&stubClassifier{name: "experimental_v2", score: 0.2},
	)

	var v features.Vector
	r := e.Score(v)

	// (0.8*0.4 + 0.2*0.25) / 0.65
	assert.InDelta(t, 0.5692, r.WeightedScore, 1e-3)
}

func TestEnsembleScore_FailingClassifierIsExcluded(t *testing.T) {
	e := newEnsemble(defaultWeights(),
		&stubClassifier{name: model.NameRandomForest, score: 0.3},
		&stubClassifier{name: model.NameGradientBoost, err: errors.New("corrupt artifact")},
	)

	var v features.Vector
	r := e.Score(v)

	require.Len(t, r.ModelScores, 1)
	assert.Equal(t, model.NameRandomForest, r.ModelScores[0].Name)
	assert.InDelta(t, 0.3, r.WeightedScore, 1e-9)
	assert.False(t, r.FallbackUsed)
	// A single survivor gives no basis for disagreement.
	assert.Equal(t, 0.0, r.Disagreement)
	assert.Equal(t, ConfidenceHigh, r.Confidence)
}

func TestEnsembleScore_PanickingClassifierIsExcluded(t *testing.T) {
	e := newEnsemble(defaultWeights(),
		&stubClassifier{name: model.NameRandomForest, score: 0.3},
		&stubClassifier{name: model.NameGradientBoost, panics: true},
	)

	var v features.Vector
	r := e.Score(v)

	require.Len(t, r.ModelScores, 1)
	assert.Equal(t, model.NameRandomForest, r.ModelScores[0].Name)
}

func TestEnsembleScore_NonFiniteScoreIsExcluded(t *testing.T) {
	e := newEnsemble(defaultWeights(),
		&stubClassifier{name: model.NameRandomForest, score: math.NaN()},
		&stubClassifier{name: model.NameGradientBoost, score: math.Inf(1)},
		&stubClassifier{name: model.NameAnomalyDetector, score: 0.4},
	)

	var v features.Vector
	r := e.Score(v)

	require.Len(t, r.ModelScores, 1)
	assert.InDelta(t, 0.4, r.WeightedScore, 1e-9)
}

func TestEnsembleScore_OutOfRangeScoresAreClamped(t *testing.T) {
	e := newEnsemble(defaultWeights(),
		&stubClassifier{name: model.NameGradientBoost, score: 1.8},
	)

	var v features.Vector
	r := e.Score(v)

	require.Len(t, r.ModelScores, 1)
	assert.Equal(t, 1.0, r.ModelScores[0].Score)
	assert.Equal(t, 1.0, r.WeightedScore)
}

func TestEnsembleScore_ConfidenceBands(t *testing.T) {
	tests := []struct {
		name   string
		scores [2]float64
		want   ConfidenceLevel
	}{
		{"tight agreement", [2]float64{0.50, 0.55}, ConfidenceHigh},
		{"moderate spread", [2]float64{0.40, 0.60}, ConfidenceMedium},
		{"band boundary is medium", [2]float64{0.40, 0.65}, ConfidenceMedium},
		{"wide spread", [2]float64{0.10, 0.80}, ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnsemble(defaultWeights(),
				&stubClassifier{name: model.NameRandomForest, score: tt.scores[0]},
				&stubClassifier{name: model.NameGradientBoost, score: tt.scores[1]},
			)
			var v features.Vector
			assert.Equal(t, tt.want, e.Score(v).Confidence)
		})
	}
}

func TestEnsembleScore_FallbackWhenNoClassifierSurvives(t *testing.T) {
	e := newEnsemble(defaultWeights(),
		&stubClassifier{name: model.NameGradientBoost, err: errors.New("broken")},
		&stubClassifier{name: model.NameRandomForest, panics: true},
	)

	var v features.Vector
	v[features.IdxAmount] = 6000

	r := e.Score(v)
	assert.True(t, r.FallbackUsed)
	assert.Equal(t, ConfidenceHigh, r.Confidence)
	assert.InDelta(t, 0.25, r.WeightedScore, 1e-9)
	assert.Empty(t, r.ModelScores)
}

func TestEnsembleScore_FallbackOnEmptyRegistry(t *testing.T) {
	e := newEnsemble(defaultWeights())

	var v features.Vector
	r := e.Score(v)
	assert.True(t, r.FallbackUsed)
	assert.Equal(t, 0.0, r.WeightedScore)
}

func TestRuleBasedScore(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*features.Vector)
		want   float64
	}{
		{"clean vector", func(*features.Vector) {}, 0},
		{"elevated amount", func(v *features.Vector) { v[features.IdxAmount] = 2500 }, 0.15},
		{"high amount", func(v *features.Vector) { v[features.IdxAmount] = 6000 }, 0.25},
		{"very high amount", func(v *features.Vector) { v[features.IdxAmount] = 20000 }, 0.4},
		{"night", func(v *features.Vector) { v[features.IdxIsNight] = 1 }, 0.2},
		{"new device", func(v *features.Vector) { v[features.IdxIsNewDevice] = 1 }, 0.15},
		{"new recipient", func(v *features.Vector) { v[features.IdxIsNewRecipient] = 1 }, 0.1},
		{"merchant risk", func(v *features.Vector) { v[features.IdxMerchantRiskScore] = 1 }, 0.15},
		{"moderate hourly velocity", func(v *features.Vector) { v[features.IdxTxCount1H] = 6 }, 0.15},
		{"high hourly velocity", func(v *features.Vector) { v[features.IdxTxCount1H] = 11 }, 0.3},
		{"qr channel", func(v *features.Vector) { v[features.IdxIsQRChannel] = 1 }, 0.1},
		{"web channel", func(v *features.Vector) { v[features.IdxIsWebChannel] = 1 }, 0.1},
		{"everything at once clamps to one", func(v *features.Vector) {
			v[features.IdxAmount] = 20000
			v[features.IdxIsNight] = 1
			v[features.IdxIsNewDevice] = 1
			v[features.IdxIsNewRecipient] = 1
			v[features.IdxMerchantRiskScore] = 1
			v[features.IdxTxCount1H] = 11
			v[features.IdxIsQRChannel] = 1
		}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v features.Vector
			tt.mutate(&v)
			assert.InDelta(t, tt.want, ruleBasedScore(v), 1e-9)
		})
	}
}

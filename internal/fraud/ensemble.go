package fraud

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/richxcame/fraudscore/internal/features"
	"github.com/richxcame/fraudscore/internal/model"
	"github.com/richxcame/fraudscore/pkg/config"
	"github.com/richxcame/fraudscore/pkg/logger"
)

// Confidence bands over ensemble disagreement.
const (
	disagreementHighMax   = 0.10
	disagreementMediumMax = 0.25
)

// Weight applied to classifiers the configuration doesn't name, so newly
// trained variants participate without a config change.
const defaultModelWeight = 0.25

// EnsembleEngine runs the feature vector through every loaded classifier
// and combines the surviving scores. A failing classifier is excluded from
// the current call only; with zero survivors a deterministic rule-based
// heuristic keeps scoring available.
type EnsembleEngine struct {
	registry *model.Registry
	weights  map[string]float64
	log      *zap.Logger
}

// NewEnsembleEngine creates the ensemble combiner with configured weights.
func NewEnsembleEngine(registry *model.Registry, cfg config.EnsembleConfig) *EnsembleEngine {
	return &EnsembleEngine{
		registry: registry,
		weights: map[string]float64{
			model.NameAnomalyDetector: cfg.AnomalyWeight,
			model.NameRandomForest:    cfg.ForestWeight,
			model.NameGradientBoost:   cfg.BoostWeight,
		},
		log: logger.Named("ensemble"),
	}
}

// Score combines all surviving classifier outputs into one EnsembleResult.
func (e *EnsembleEngine) Score(v features.Vector) EnsembleResult {
	var scores []ModelScore
	for _, c := range e.registry.Classifiers() {
		score, err := predictSafely(c, v)
		if err != nil {
			classifierFailures.WithLabelValues(c.Name()).Inc()
			e.log.Warn("classifier excluded from this call",
				zap.String("classifier", c.Name()),
				zap.Error(err),
			)
			continue
		}
		scores = append(scores, ModelScore{Name: c.Name(), Score: score})
	}

	if len(scores) == 0 {
		fallbackScores.Inc()
		fb := ruleBasedScore(v)
		return EnsembleResult{
			WeightedScore: fb,
			MeanScore:     fb,
			Disagreement:  0,
			Confidence:    ConfidenceHigh,
			FallbackUsed:  true,
		}
	}

	var weightedSum, totalWeight, sum float64
	minScore, maxScore := scores[0].Score, scores[0].Score
	for _, s := range scores {
		w := defaultModelWeight
		if cw, ok := e.weights[s.Name]; ok {
			w = cw
		}
		weightedSum += s.Score * w
		totalWeight += w
		sum += s.Score
		minScore = math.Min(minScore, s.Score)
		maxScore = math.Max(maxScore, s.Score)
	}

	result := EnsembleResult{
		MeanScore:   sum / float64(len(scores)),
		ModelScores: scores,
	}
	if totalWeight > 0 {
		result.WeightedScore = weightedSum / totalWeight
	} else {
		result.WeightedScore = result.MeanScore
	}

	if len(scores) >= 2 {
		result.Disagreement = maxScore - minScore
	}
	result.Confidence = confidenceFor(result.Disagreement, len(scores))

	return result
}

// predictSafely isolates one classifier invocation, converting panics in
// the inference runtime into per-call errors.
func predictSafely(c model.Classifier, v features.Vector) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier %q panicked: %v", c.Name(), r)
		}
	}()

	score, err = c.PredictFraudProbability(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("classifier %q returned a non-finite score", c.Name())
	}
	return clampScore(score), nil
}

// confidenceFor bands ensemble disagreement. Fewer than two survivors give
// no basis for disagreement, which forces HIGH.
func confidenceFor(disagreement float64, survivors int) ConfidenceLevel {
	if survivors < 2 {
		return ConfidenceHigh
	}
	switch {
	case disagreement < disagreementHighMax:
		return ConfidenceHigh
	case disagreement <= disagreementMediumMax:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ruleBasedScore is the deterministic heuristic used when no classifier
// survives: a normalized weighted sum over amount, temporal, behavioral,
// merchant, velocity and channel indicators.
func ruleBasedScore(v features.Vector) float64 {
	var score float64

	amount := v[features.IdxAmount]
	switch {
	case amount > 10000:
		score += 0.4
	case amount > 5000:
		score += 0.25
	case amount > 2000:
		score += 0.15
	}

	if v[features.IdxIsNight] > 0 {
		score += 0.2
	}
	if v[features.IdxIsNewDevice] > 0 {
		score += 0.15
	}
	if v[features.IdxIsNewRecipient] > 0 {
		score += 0.1
	}

	score += v[features.IdxMerchantRiskScore] * 0.15

	hourly := v[features.IdxTxCount1H]
	switch {
	case hourly > 10:
		score += 0.3
	case hourly > 5:
		score += 0.15
	}

	if v[features.IdxIsQRChannel] > 0 || v[features.IdxIsWebChannel] > 0 {
		score += 0.1
	}

	return clampScore(score)
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

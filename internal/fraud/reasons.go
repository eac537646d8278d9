package fraud

import (
	"fmt"

	"github.com/richxcame/fraudscore/internal/features"
	"github.com/richxcame/fraudscore/internal/model"
	"github.com/richxcame/fraudscore/pkg/config"
)

// Reason trigger thresholds. Tuned against the same training window as the
// model artifacts.
const (
	amountCritical  = 25000.0
	amountHigh      = 10000.0
	amountMedium    = 5000.0
	deviationHigh   = 4.0
	deviationMedium = 2.5

	velocity1MinCritical = 3
	velocity5MinHigh     = 5
	velocity1HHigh       = 8
	velocity1HMedium     = 4
	velocity6HMedium     = 20

	merchantRiskHigh   = 0.8
	merchantRiskMedium = 0.5

	consensusThreshold   = 0.7
	anomalyHighThreshold = 0.85
)

// ruleEvaluator inspects the feature vector and per-model scores for one
// risk category and emits zero or more reasons. Evaluators are independent
// of each other; their results are merged at the end.
type ruleEvaluator func(v features.Vector, er EnsembleResult) []FraudReason

// ReasonGenerator turns feature values and model scores into a
// severity-tagged, never-empty list of human-readable reasons plus the
// composite score. Deterministic given identical inputs.
type ReasonGenerator struct {
	cfg   config.ReasonConfig
	rules []ruleEvaluator
}

// NewReasonGenerator creates the reason generator with the configured
// composite blend.
func NewReasonGenerator(cfg config.ReasonConfig) *ReasonGenerator {
	return &ReasonGenerator{
		cfg: cfg,
		rules: []ruleEvaluator{
			amountMagnitudeRule,
			amountDeviationRule,
			deviceNoveltyRule,
			recipientNoveltyRule,
			velocityRule,
			temporalRule,
			merchantRiskRule,
			channelRule,
			transactionTypeRule,
			modelConsensusRule,
		},
	}
}

// Generate evaluates every rule category and blends the composite score.
// The returned list is never empty: a low-severity "normal profile" reason
// is emitted when nothing triggers.
func (g *ReasonGenerator) Generate(v features.Vector, er EnsembleResult) ([]FraudReason, float64) {
	var reasons []FraudReason
	for _, rule := range g.rules {
		reasons = append(reasons, rule(v, er)...)
	}

	if len(reasons) == 0 {
		reasons = append(reasons, FraudReason{
			Text:          "Transaction matches the user's normal profile",
			Severity:      SeverityLow,
			SourceFeature: features.Name(features.IdxAmount),
			SourceValue:   v[features.IdxAmount],
		})
	}

	return reasons, g.composite(er.WeightedScore, reasons)
}

// composite blends the ensemble's weighted score with the triggered reason
// severities: each critical reason and each pair of high-severity reasons
// nudges the score upward, clamped to [0,1]. The boosts are configuration,
// not invariants.
func (g *ReasonGenerator) composite(weighted float64, reasons []FraudReason) float64 {
	criticals, highs := 0, 0
	for _, r := range reasons {
		switch r.Severity {
		case SeverityCritical:
			criticals++
		case SeverityHigh:
			highs++
		}
	}
	score := weighted +
		g.cfg.CriticalBoost*float64(criticals) +
		g.cfg.HighPairBoost*float64(highs/2)
	return clampScore(score)
}

func amountMagnitudeRule(v features.Vector, _ EnsembleResult) []FraudReason {
	amount := v[features.IdxAmount]
	switch {
	case amount >= amountCritical:
		return reason("Very high transaction amount", SeverityCritical, features.IdxAmount, v)
	case amount >= amountHigh:
		return reason("High transaction amount", SeverityHigh, features.IdxAmount, v)
	case amount >= amountMedium:
		return reason("Elevated transaction amount", SeverityMedium, features.IdxAmount, v)
	}
	return nil
}

func amountDeviationRule(v features.Vector, _ EnsembleResult) []FraudReason {
	dev := v[features.IdxAmountDeviation]
	switch {
	case dev >= deviationHigh:
		return reason("Amount deviates sharply from the user's spending pattern", SeverityHigh, features.IdxAmountDeviation, v)
	case dev >= deviationMedium:
		return reason("Amount is unusual for this user's spending pattern", SeverityMedium, features.IdxAmountDeviation, v)
	}
	return nil
}

func deviceNoveltyRule(v features.Vector, _ EnsembleResult) []FraudReason {
	if v[features.IdxIsNewDevice] > 0 {
		return reason("Transaction from a new or unrecognized device", SeverityMedium, features.IdxIsNewDevice, v)
	}
	return nil
}

func recipientNoveltyRule(v features.Vector, _ EnsembleResult) []FraudReason {
	if v[features.IdxIsNewRecipient] > 0 {
		return reason("First transaction to this recipient", SeverityMedium, features.IdxIsNewRecipient, v)
	}
	return nil
}

// velocityRule evaluates each trailing window against its own threshold.
func velocityRule(v features.Vector, _ EnsembleResult) []FraudReason {
	var out []FraudReason
	if v[features.IdxTxCount1Min] >= velocity1MinCritical {
		out = append(out, reason("Rapid-fire transactions within one minute", SeverityCritical, features.IdxTxCount1Min, v)...)
	}
	if v[features.IdxTxCount5Min] >= velocity5MinHigh {
		out = append(out, reason("Unusually high transaction velocity in the last 5 minutes", SeverityHigh, features.IdxTxCount5Min, v)...)
	}
	switch {
	case v[features.IdxTxCount1H] >= velocity1HHigh:
		out = append(out, reason("Transaction burst detected in the last hour", SeverityHigh, features.IdxTxCount1H, v)...)
	case v[features.IdxTxCount1H] >= velocity1HMedium:
		out = append(out, reason("Elevated transaction velocity in the last hour", SeverityMedium, features.IdxTxCount1H, v)...)
	}
	if v[features.IdxTxCount6H] >= velocity6HMedium {
		out = append(out, reason("Sustained high transaction volume over six hours", SeverityMedium, features.IdxTxCount6H, v)...)
	}
	return out
}

func temporalRule(v features.Vector, _ EnsembleResult) []FraudReason {
	night := v[features.IdxIsNight] > 0
	weekend := v[features.IdxIsWeekend] > 0
	switch {
	case night && v[features.IdxAmount] >= amountHigh:
		return reason("Large night-time transaction", SeverityHigh, features.IdxIsNight, v)
	case night && weekend:
		return reason("Night-time weekend transaction", SeverityMedium, features.IdxIsNight, v)
	case night:
		return reason("Night-time transaction", SeverityLow, features.IdxIsNight, v)
	}
	return nil
}

func merchantRiskRule(v features.Vector, _ EnsembleResult) []FraudReason {
	risk := v[features.IdxMerchantRiskScore]
	switch {
	case risk >= merchantRiskHigh:
		return reason("Recipient has high historical risk", SeverityHigh, features.IdxMerchantRiskScore, v)
	case risk >= merchantRiskMedium:
		return reason("Recipient has moderate historical risk", SeverityMedium, features.IdxMerchantRiskScore, v)
	}
	return nil
}

func channelRule(v features.Vector, _ EnsembleResult) []FraudReason {
	var out []FraudReason
	if v[features.IdxIsQRChannel] > 0 {
		out = append(out, reason("QR-initiated transaction", SeverityMedium, features.IdxIsQRChannel, v)...)
	}
	if v[features.IdxIsWebChannel] > 0 {
		out = append(out, reason("Web-channel transaction", SeverityMedium, features.IdxIsWebChannel, v)...)
	}
	return out
}

func transactionTypeRule(v features.Vector, _ EnsembleResult) []FraudReason {
	if v[features.IdxIsP2M] > 0 && v[features.IdxAmount] >= amountHigh {
		return reason("Large merchant payment", SeverityHigh, features.IdxIsP2M, v)
	}
	return nil
}

// modelConsensusRule flags agreement between classifiers: several models
// over the high-risk threshold, or a single very-high anomaly score.
func modelConsensusRule(_ features.Vector, er EnsembleResult) []FraudReason {
	var out []FraudReason
	over := 0
	for _, s := range er.ModelScores {
		if s.Score >= consensusThreshold {
			over++
		}
	}
	if over >= 2 {
		out = append(out, FraudReason{
			Text:          fmt.Sprintf("%d models agree on high fraud likelihood", over),
			Severity:      SeverityCritical,
			SourceFeature: "weighted_score",
			SourceValue:   er.WeightedScore,
		})
	}
	for _, s := range er.ModelScores {
		if s.Name == model.NameAnomalyDetector && s.Score >= anomalyHighThreshold {
			out = append(out, FraudReason{
				Text:          "Anomaly detector flags this transaction as highly unusual",
				Severity:      SeverityHigh,
				SourceFeature: "anomaly_score",
				SourceValue:   s.Score,
			})
		}
	}
	return out
}

func reason(text string, sev Severity, idx int, v features.Vector) []FraudReason {
	return []FraudReason{{
		Text:          text,
		Severity:      sev,
		SourceFeature: features.Name(idx),
		SourceValue:   v[idx],
	}}
}

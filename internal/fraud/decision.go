package fraud

import (
	"fmt"

	"github.com/richxcame/fraudscore/pkg/config"
)

// DecisionEngine maps a composite score onto the final categorical
// decision. The score is the only driver: one deterministic transition per
// call, thresholds inclusive on the higher-risk side.
type DecisionEngine struct {
	delayThreshold float64
	blockThreshold float64
}

// NewDecisionEngine creates the decision mapper. Threshold ordering is a
// startup invariant; a violation here would misclassify every transaction.
func NewDecisionEngine(cfg config.ThresholdConfig) (*DecisionEngine, error) {
	if cfg.BlockThreshold <= cfg.DelayThreshold {
		return nil, fmt.Errorf("decision: block threshold (%.4f) must be greater than delay threshold (%.4f)",
			cfg.BlockThreshold, cfg.DelayThreshold)
	}
	return &DecisionEngine{
		delayThreshold: cfg.DelayThreshold,
		blockThreshold: cfg.BlockThreshold,
	}, nil
}

// Categorize maps composite score and reasons to a RiskDecision. The caller
// fills evaluation metadata (ID, timestamps, ensemble signals).
func (d *DecisionEngine) Categorize(composite float64, reasons []FraudReason) *RiskDecision {
	composite = clampScore(composite)

	decision := &RiskDecision{
		CompositeScore:  composite,
		Reasons:         reasons,
		CriticalReasons: filterBySeverity(reasons, SeverityCritical),
		HighReasons:     filterBySeverity(reasons, SeverityHigh),
	}

	switch {
	case composite >= d.blockThreshold:
		decision.RiskLevel = RiskBlocked
		decision.Action = ActionBlock
	case composite >= d.delayThreshold:
		decision.RiskLevel = RiskDelayed
		decision.Action = ActionDelay
	default:
		decision.RiskLevel = RiskApproved
		decision.Action = ActionApprove
	}

	decision.Explanation = explain(decision)
	return decision
}

func filterBySeverity(reasons []FraudReason, sev Severity) []FraudReason {
	out := make([]FraudReason, 0)
	for _, r := range reasons {
		if r.Severity == sev {
			out = append(out, r)
		}
	}
	return out
}

// explain renders a one-line deterministic summary for logs and callers
// that don't want the full reason list.
func explain(d *RiskDecision) string {
	lead := "no risk signals"
	if len(d.Reasons) > 0 {
		lead = d.Reasons[0].Text
	}
	switch d.RiskLevel {
	case RiskBlocked:
		return fmt.Sprintf("blocked at composite risk %.4f: %s", d.CompositeScore, lead)
	case RiskDelayed:
		return fmt.Sprintf("delayed for verification at composite risk %.4f: %s", d.CompositeScore, lead)
	default:
		return fmt.Sprintf("approved at composite risk %.4f", d.CompositeScore)
	}
}

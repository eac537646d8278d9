// Package fraud assigns a real-time risk decision (approve / delay / block)
// to a single payment transaction: feature extraction over behavioral
// history, a multi-model ensemble with disagreement-based confidence, a
// rule-driven explainability layer, and a threshold decision mapper.
//
// Scoring is stateless per call and safe for unlimited concurrency. Only
// malformed transactions and startup configuration errors ever surface as
// errors; store outages and classifier failures degrade to documented
// defaults.
package fraud

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidTransaction marks a malformed transaction. This is the one
// runtime failure that must reach the caller before any scoring stage runs.
var ErrInvalidTransaction = errors.New("invalid transaction")

// TransactionType distinguishes person-to-person from merchant payments.
type TransactionType string

const (
	TypeP2P TransactionType = "P2P"
	TypeP2M TransactionType = "P2M"
)

// Channel is the surface the payment was initiated from.
type Channel string

const (
	ChannelApp   Channel = "app"
	ChannelWeb   Channel = "web"
	ChannelQR    Channel = "qr"
	ChannelOther Channel = "other"
)

// Transaction is the immutable input to one scoring call, constructed by
// the caller per payment event.
type Transaction struct {
	ID        string          `json:"tx_id" validate:"required"`
	UserID    string          `json:"user_id" validate:"required"`
	DeviceID  string          `json:"device_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	Recipient string          `json:"recipient" validate:"required"`
	Type      TransactionType `json:"tx_type" validate:"required,oneof=P2P P2M"`
	Channel   Channel         `json:"channel" validate:"required,oneof=app web qr other"`

	// ExceedsDailyLimit is an optional caller hint: the host application
	// tracks cumulative daily volume and may force step-up verification
	// for an otherwise approved payment.
	ExceedsDailyLimit bool `json:"exceeds_daily_limit,omitempty"`
}

// Severity grades a fraud reason.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// FraudReason is one human-readable explanation of a risk signal, tied back
// to the feature that produced it.
type FraudReason struct {
	Text          string   `json:"text"`
	Severity      Severity `json:"severity"`
	SourceFeature string   `json:"source_feature"`
	SourceValue   float64  `json:"source_value"`
}

// ConfidenceLevel is a coarse banding of ensemble agreement. Informational
// only: it never changes the action.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
)

// ModelScore is one classifier's fraud probability for this transaction.
type ModelScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// EnsembleResult combines the per-model scores for one scoring call. The
// weighted score drives the decision; mean, disagreement and confidence are
// explainability signals.
type EnsembleResult struct {
	WeightedScore float64         `json:"weighted_score"`
	MeanScore     float64         `json:"mean_score"`
	Disagreement  float64         `json:"disagreement"`
	Confidence    ConfidenceLevel `json:"confidence_level"`
	ModelScores   []ModelScore    `json:"model_scores"`

	// FallbackUsed marks a result produced by the deterministic rule-based
	// heuristic because no classifier survived the call.
	FallbackUsed bool `json:"fallback_used,omitempty"`
}

// RiskLevel is the categorical outcome of one scoring call.
type RiskLevel string

const (
	RiskBlocked  RiskLevel = "BLOCKED"
	RiskDelayed  RiskLevel = "DELAYED"
	RiskApproved RiskLevel = "APPROVED"
)

// Action is what the caller must do with the payment.
type Action string

const (
	ActionBlock   Action = "BLOCK"
	ActionDelay   Action = "DELAY"
	ActionApprove Action = "APPROVE"
)

// RiskDecision is the final output of one scoring call, owned by the caller
// after return. CriticalReasons and HighReasons are convenience slices over
// Reasons so a caller can render a short explanation without re-filtering.
type RiskDecision struct {
	ID              uuid.UUID     `json:"id"`
	TransactionID   string        `json:"tx_id"`
	RiskLevel       RiskLevel     `json:"risk_level"`
	Action          Action        `json:"action"`
	CompositeScore  float64       `json:"composite_score"`
	Explanation     string        `json:"explanation"`
	Reasons         []FraudReason `json:"reasons"`
	CriticalReasons []FraudReason `json:"critical_reasons"`
	HighReasons     []FraudReason `json:"high_reasons"`

	Ensemble    EnsembleResult `json:"ensemble"`
	Degraded    bool           `json:"degraded,omitempty"`
	EvaluatedAt time.Time      `json:"evaluated_at"`
}

package fraud

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richxcame/fraudscore/internal/features"
	"github.com/richxcame/fraudscore/internal/history"
	"github.com/richxcame/fraudscore/internal/model"
	"github.com/richxcame/fraudscore/pkg/config"
	"github.com/richxcame/fraudscore/pkg/logger"
)

// Service is the scoring entry point: validate, extract, score, explain,
// decide. Construct once at startup and share across goroutines; every call
// is stateless.
type Service struct {
	extractor *features.Extractor
	ensemble  *EnsembleEngine
	reasons   *ReasonGenerator
	decisions *DecisionEngine
	validate  *validator.Validate
	discount  float64
	log       *zap.Logger
}

// NewService wires the scoring pipeline. Configuration errors (threshold
// ordering, weight validation) are fatal here, never tolerated at scoring
// time.
func NewService(store history.Store, registry *model.Registry, cfg *config.Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	decisions, err := NewDecisionEngine(cfg.Thresholds)
	if err != nil {
		return nil, err
	}

	return &Service{
		extractor: features.NewExtractor(store),
		ensemble:  NewEnsembleEngine(registry, cfg.Ensemble),
		reasons:   NewReasonGenerator(cfg.Reasons),
		decisions: decisions,
		validate:  validator.New(),
		discount:  cfg.Reasons.RecipientDiscount,
		log:       logger.Named("fraud"),
	}, nil
}

// Evaluation exposes the intermediate signals of one scoring call for
// callers that need raw values rather than a decision.
type Evaluation struct {
	Vector         features.Vector
	Ensemble       EnsembleResult
	Reasons        []FraudReason
	CompositeScore float64
	Degraded       bool
}

// Score runs the full pipeline and returns the final decision. The only
// error cases are a malformed transaction; store outages and classifier
// failures degrade internally.
func (s *Service) Score(ctx context.Context, tx *Transaction) (*RiskDecision, error) {
	start := time.Now()

	eval, err := s.Evaluate(ctx, tx)
	if err != nil {
		return nil, err
	}

	decision := s.decisions.Categorize(eval.CompositeScore, eval.Reasons)
	decision.ID = uuid.New()
	decision.TransactionID = tx.ID
	decision.Ensemble = eval.Ensemble
	decision.Degraded = eval.Degraded
	decision.EvaluatedAt = time.Now().UTC()

	// Host-side daily-limit hint: force step-up verification for an
	// otherwise approved payment. Never downgrades a block.
	if tx.ExceedsDailyLimit && decision.Action == ActionApprove {
		decision.RiskLevel = RiskDelayed
		decision.Action = ActionDelay
		decision.Reasons = append(decision.Reasons, FraudReason{
			Text:          "Cumulative daily transaction limit exceeded",
			Severity:      SeverityMedium,
			SourceFeature: features.Name(features.IdxAmount),
			SourceValue:   eval.Vector[features.IdxAmount],
		})
		decision.Explanation = explain(decision)
	}

	decisionsTotal.WithLabelValues(string(decision.Action)).Inc()
	scoringDuration.Observe(time.Since(start).Seconds())

	s.log.Info("transaction scored",
		zap.String("decision_id", decision.ID.String()),
		zap.String("tx_id", tx.ID),
		zap.String("action", string(decision.Action)),
		zap.Float64("composite_score", decision.CompositeScore),
		zap.String("confidence", string(decision.Ensemble.Confidence)),
		zap.Bool("degraded", decision.Degraded),
	)

	return decision, nil
}

// Evaluate runs the pipeline up to (and including) reason generation and
// returns the intermediate signals: the feature vector, per-model scores,
// the ensemble result and the composite score.
func (s *Service) Evaluate(ctx context.Context, tx *Transaction) (*Evaluation, error) {
	if err := s.validateTransaction(tx); err != nil {
		return nil, err
	}

	vector, degraded := s.extractor.Extract(ctx, featureInput(tx))
	ensemble := s.ensemble.Score(vector)

	// Trusted-recipient discount: repeat recipients carry far less risk
	// than the raw score suggests.
	trusted := vector[features.IdxIsNewRecipient] == 0 && s.discount < 1
	if trusted {
		ensemble.WeightedScore *= s.discount
	}

	reasons, composite := s.reasons.Generate(vector, ensemble)
	if trusted {
		reasons = append([]FraudReason{{
			Text:          "Trusted recipient (prior transaction history)",
			Severity:      SeverityLow,
			SourceFeature: features.Name(features.IdxIsNewRecipient),
			SourceValue:   0,
		}}, reasons...)
	}

	return &Evaluation{
		Vector:         vector,
		Ensemble:       ensemble,
		Reasons:        reasons,
		CompositeScore: composite,
		Degraded:       degraded,
	}, nil
}

// AsyncResult carries the outcome of one ScoreAsync call.
type AsyncResult struct {
	Decision *RiskDecision
	Err      error
}

// ScoreAsync scores on a separate goroutine and delivers the result on the
// returned channel, so callers can fan out many scorings without
// head-of-line blocking. The channel is buffered; the result is delivered
// even if the caller is slow to receive.
func (s *Service) ScoreAsync(ctx context.Context, tx *Transaction) <-chan AsyncResult {
	out := make(chan AsyncResult, 1)
	go func() {
		defer close(out)
		decision, err := s.Score(ctx, tx)
		out <- AsyncResult{Decision: decision, Err: err}
	}()
	return out
}

// validateTransaction enforces the malformed-transaction contract: fail
// loudly before any scoring stage.
func (s *Service) validateTransaction(tx *Transaction) error {
	if tx == nil {
		return fmt.Errorf("%w: nil transaction", ErrInvalidTransaction)
	}
	if err := s.validate.Struct(tx); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTransaction, validationDetail(err))
	}
	if tx.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must be non-negative", ErrInvalidTransaction)
	}
	if tx.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required and must carry a timezone", ErrInvalidTransaction)
	}
	return nil
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return "invalid fields: " + strings.Join(fields, ", ")
	}
	return err.Error()
}

func featureInput(tx *Transaction) features.Input {
	return features.Input{
		UserID:    tx.UserID,
		DeviceID:  tx.DeviceID,
		Recipient: tx.Recipient,
		Amount:    tx.Amount.InexactFloat64(),
		Timestamp: tx.Timestamp,
		IsP2M:     tx.Type == TypeP2M,
		Channel:   string(tx.Channel),
	}
}

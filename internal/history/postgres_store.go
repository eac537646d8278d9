package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/richxcame/fraudscore/pkg/logger"
)

// PostgresStore serves history queries from the host application's
// transaction tables. It is strictly read-only and intended for deployments
// without a Redis sidecar, or as a fallback source during Redis migrations.
//
// Expected tables (owned by the host application):
//
//	transactions(user_id, device_id, recipient, amount, created_at)
//	recipient_risk(recipient, risk_score)
type PostgresStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
	log     *zap.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a Postgres-backed history store.
func NewPostgresStore(db *pgxpool.Pool, timeout time.Duration) *PostgresStore {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &PostgresStore{
		db:      db,
		timeout: timeout,
		log:     logger.Named("history.postgres"),
	}
}

// CountInWindow counts the user's transactions in (at-window, at].
func (s *PostgresStore) CountInWindow(ctx context.Context, userID string, at time.Time, window time.Duration) Lookup[int64] {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM transactions
		WHERE user_id = $1
		  AND created_at > $2
		  AND created_at <= $3
	`

	var count int64
	err := s.db.QueryRow(ctx, query, userID, at.Add(-window), at).Scan(&count)
	if err != nil {
		return pgDegraded[int64](s.log, "count_in_window", err)
	}
	recordLookup("postgres", "count_in_window", false)
	return Value(count)
}

// SeenRecipient reports whether the user paid this recipient in the lookback.
func (s *PostgresStore) SeenRecipient(ctx context.Context, userID, recipient string, at time.Time, lookback time.Duration) Lookup[bool] {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE user_id = $1
			  AND recipient = $2
			  AND created_at > $3
			  AND created_at <= $4
		)
	`

	var seen bool
	err := s.db.QueryRow(ctx, query, userID, recipient, at.Add(-lookback), at).Scan(&seen)
	if err != nil {
		return pgDegraded[bool](s.log, "seen_recipient", err)
	}
	recordLookup("postgres", "seen_recipient", false)
	return Value(seen)
}

// SeenDevice reports whether the user transacted from this device in the
// lookback.
func (s *PostgresStore) SeenDevice(ctx context.Context, userID, deviceID string, at time.Time, lookback time.Duration) Lookup[bool] {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE user_id = $1
			  AND device_id = $2
			  AND created_at > $3
			  AND created_at <= $4
		)
	`

	var seen bool
	err := s.db.QueryRow(ctx, query, userID, deviceID, at.Add(-lookback), at).Scan(&seen)
	if err != nil {
		return pgDegraded[bool](s.log, "seen_device", err)
	}
	recordLookup("postgres", "seen_device", false)
	return Value(seen)
}

// DistinctRecipients counts distinct recipients paid within the lookback.
func (s *PostgresStore) DistinctRecipients(ctx context.Context, userID string, at time.Time, lookback time.Duration) Lookup[int64] {
	return s.distinctColumn(ctx, "distinct_recipients", "recipient", userID, at, lookback)
}

// DistinctDevices counts distinct devices used within the lookback.
func (s *PostgresStore) DistinctDevices(ctx context.Context, userID string, at time.Time, lookback time.Duration) Lookup[int64] {
	return s.distinctColumn(ctx, "distinct_devices", "device_id", userID, at, lookback)
}

func (s *PostgresStore) distinctColumn(ctx context.Context, name, column, userID string, at time.Time, lookback time.Duration) Lookup[int64] {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT COUNT(DISTINCT %s)
		FROM transactions
		WHERE user_id = $1
		  AND created_at > $2
		  AND created_at <= $3
	`, column)

	var count int64
	err := s.db.QueryRow(ctx, query, userID, at.Add(-lookback), at).Scan(&count)
	if err != nil {
		return pgDegraded[int64](s.log, name, err)
	}
	recordLookup("postgres", name, false)
	return Value(count)
}

// AmountStats returns rolling aggregates over the user's amounts.
func (s *PostgresStore) AmountStats(ctx context.Context, userID string, at time.Time, window time.Duration) Lookup[Stats] {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		SELECT
			COALESCE(AVG(amount), 0),
			COALESCE(STDDEV_POP(amount), 0),
			COALESCE(MAX(amount), 0),
			COUNT(*)
		FROM transactions
		WHERE user_id = $1
		  AND created_at > $2
		  AND created_at <= $3
	`

	var st Stats
	err := s.db.QueryRow(ctx, query, userID, at.Add(-window), at).Scan(&st.Mean, &st.Std, &st.Max, &st.Count)
	if err != nil {
		return pgDegraded[Stats](s.log, "amount_stats", err)
	}
	recordLookup("postgres", "amount_stats", false)
	return Value(st)
}

// RecipientRisk returns the recorded risk score for a recipient, degrading
// with ErrNoSignal when the recipient is unknown.
func (s *PostgresStore) RecipientRisk(ctx context.Context, recipient string) Lookup[float64] {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `SELECT risk_score FROM recipient_risk WHERE recipient = $1`

	var score float64
	err := s.db.QueryRow(ctx, query, recipient).Scan(&score)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			recordLookup("postgres", "recipient_risk", true)
			return Degraded[float64](ErrNoSignal)
		}
		return pgDegraded[float64](s.log, "recipient_risk", err)
	}
	recordLookup("postgres", "recipient_risk", false)
	return Value(clamp01(score))
}

// pgDegraded records and wraps a failed Postgres lookup.
func pgDegraded[T any](log *zap.Logger, query string, err error) Lookup[T] {
	recordLookup("postgres", query, true)
	log.Debug("history lookup degraded",
		zap.String("query", query),
		zap.Error(err),
	)
	return Degraded[T](fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
}

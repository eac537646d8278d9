package history

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/richxcame/fraudscore/pkg/logger"
	"github.com/richxcame/fraudscore/pkg/redis"
)

// Key layout maintained by the ingestion side of the host application:
//
//	user:<id>:timestamps  ZSET  score = unix seconds of each transaction
//	user:<id>:amounts     ZSET  score = unix seconds, member = "<nanos>:<amount>"
//	user:<id>:recipients  SET   recipient identifiers (30 day TTL)
//	user:<id>:devices     SET   device identifiers (60 day TTL)
//	risk:recipient:<id>   STRING risk score in [0,1]
//
// This client only reads those keys.
const (
	keyTimestamps = "user:%s:timestamps"
	keyAmounts    = "user:%s:amounts"
	keyRecipients = "user:%s:recipients"
	keyDevices    = "user:%s:devices"
	keyRisk       = "risk:recipient:%s"
)

// DefaultLookupTimeout bounds a single Redis query. A slow store is treated
// the same as an unreachable one.
const DefaultLookupTimeout = 500 * time.Millisecond

// RedisStore is the primary Store implementation, backed by the same Redis
// instance the transaction ingestion pipeline writes to.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
	log     *zap.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed history store. A non-positive
// timeout falls back to DefaultLookupTimeout.
func NewRedisStore(client *redis.Client, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &RedisStore{
		client:  client,
		timeout: timeout,
		log:     logger.Named("history.redis"),
	}
}

// CountInWindow counts the user's transactions in (at-window, at].
func (s *RedisStore) CountInWindow(ctx context.Context, userID string, at time.Time, window time.Duration) Lookup[int64] {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := fmt.Sprintf(keyTimestamps, userID)
	count, err := s.client.CountInRange(ctx, key, at.Add(-window), at)
	if err != nil {
		return redisDegraded[int64](s.log, "count_in_window", err)
	}
	recordLookup("redis", "count_in_window", false)
	return Value(count)
}

// SeenRecipient checks set membership. The recipient set's TTL already
// matches the 30-day lookback, so the anchor time is not consulted here.
func (s *RedisStore) SeenRecipient(ctx context.Context, userID, recipient string, _ time.Time, _ time.Duration) Lookup[bool] {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := fmt.Sprintf(keyRecipients, userID)
	seen, err := s.client.IsMember(ctx, key, recipient)
	if err != nil {
		return redisDegraded[bool](s.log, "seen_recipient", err)
	}
	recordLookup("redis", "seen_recipient", false)
	return Value(seen)
}

// SeenDevice checks set membership against the 60-day device set.
func (s *RedisStore) SeenDevice(ctx context.Context, userID, deviceID string, _ time.Time, _ time.Duration) Lookup[bool] {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := fmt.Sprintf(keyDevices, userID)
	seen, err := s.client.IsMember(ctx, key, deviceID)
	if err != nil {
		return redisDegraded[bool](s.log, "seen_device", err)
	}
	recordLookup("redis", "seen_device", false)
	return Value(seen)
}

// DistinctRecipients returns the recipient set cardinality.
func (s *RedisStore) DistinctRecipients(ctx context.Context, userID string, _ time.Time, _ time.Duration) Lookup[int64] {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := fmt.Sprintf(keyRecipients, userID)
	n, err := s.client.SetSize(ctx, key)
	if err != nil {
		return redisDegraded[int64](s.log, "distinct_recipients", err)
	}
	recordLookup("redis", "distinct_recipients", false)
	return Value(n)
}

// DistinctDevices returns the device set cardinality.
func (s *RedisStore) DistinctDevices(ctx context.Context, userID string, _ time.Time, _ time.Duration) Lookup[int64] {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := fmt.Sprintf(keyDevices, userID)
	n, err := s.client.SetSize(ctx, key)
	if err != nil {
		return redisDegraded[int64](s.log, "distinct_devices", err)
	}
	recordLookup("redis", "distinct_devices", false)
	return Value(n)
}

// AmountStats computes rolling mean/std/max over the amounts ZSET.
func (s *RedisStore) AmountStats(ctx context.Context, userID string, at time.Time, window time.Duration) Lookup[Stats] {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := fmt.Sprintf(keyAmounts, userID)
	members, err := s.client.MembersInRange(ctx, key, at.Add(-window), at)
	if err != nil {
		return redisDegraded[Stats](s.log, "amount_stats", err)
	}
	recordLookup("redis", "amount_stats", false)

	amounts := make([]float64, 0, len(members))
	for _, m := range members {
		if v, ok := parseAmountMember(m); ok {
			amounts = append(amounts, v)
		}
	}
	return Value(computeStats(amounts))
}

// RecipientRisk fetches the externally maintained recipient risk score.
func (s *RedisStore) RecipientRisk(ctx context.Context, recipient string) Lookup[float64] {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := fmt.Sprintf(keyRisk, recipient)
	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			recordLookup("redis", "recipient_risk", true)
			return Degraded[float64](ErrNoSignal)
		}
		return redisDegraded[float64](s.log, "recipient_risk", err)
	}
	recordLookup("redis", "recipient_risk", false)

	score, perr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if perr != nil {
		return redisDegraded[float64](s.log, "recipient_risk", perr)
	}
	return Value(clamp01(score))
}

// redisDegraded records and wraps a failed Redis lookup.
func redisDegraded[T any](log *zap.Logger, query string, err error) Lookup[T] {
	recordLookup("redis", query, true)
	log.Debug("history lookup degraded",
		zap.String("query", query),
		zap.Error(err),
	)
	return Degraded[T](fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
}

// parseAmountMember extracts the amount from a "<nanos>:<amount>" member.
func parseAmountMember(member string) (float64, bool) {
	idx := strings.LastIndexByte(member, ':')
	raw := member
	if idx >= 0 {
		raw = member[idx+1:]
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func computeStats(amounts []float64) Stats {
	st := Stats{Count: int64(len(amounts))}
	if len(amounts) == 0 {
		return st
	}

	var sum float64
	for _, a := range amounts {
		sum += a
		if a > st.Max {
			st.Max = a
		}
	}
	st.Mean = sum / float64(len(amounts))

	var variance float64
	for _, a := range amounts {
		d := a - st.Mean
		variance += d * d
	}
	st.Std = math.Sqrt(variance / float64(len(amounts)))
	return st
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

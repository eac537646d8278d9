package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/richxcame/fraudscore/pkg/logger"
)

// BreakerSettings tunes the circuit breaker guarding a history store.
type BreakerSettings struct {
	Name             string
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerSettings returns conservative defaults: trip after five
// consecutive unavailable lookups, probe again after 30 seconds.
func DefaultBreakerSettings(name string) BreakerSettings {
	return BreakerSettings{
		Name:             name,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerStore decorates a Store with a circuit breaker. Once the breaker
// opens, lookups degrade immediately instead of waiting on a backend known
// to be failing, keeping scoring latency flat during an outage.
type BreakerStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker
}

var _ Store = (*BreakerStore)(nil)

// NewBreakerStore wraps a store with an outage-tripping circuit breaker.
func NewBreakerStore(inner Store, settings BreakerSettings) *BreakerStore {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	log := logger.Named("history.breaker")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     settings.Name,
		Interval: settings.Interval,
		Timeout:  settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("history store breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &BreakerStore{inner: inner, cb: cb}
}

// viaBreaker runs one lookup through the breaker. Unavailable lookups count
// as failures; ErrNoSignal and real values count as successes.
func viaBreaker[T any](cb *gobreaker.CircuitBreaker, fn func() Lookup[T]) Lookup[T] {
	res, err := cb.Execute(func() (interface{}, error) {
		l := fn()
		if l.Degraded && errors.Is(l.Reason, ErrStoreUnavailable) {
			return l, l.Reason
		}
		return l, nil
	})
	if err != nil {
		if l, ok := res.(Lookup[T]); ok {
			return l
		}
		// Breaker open: backend not consulted at all.
		return Degraded[T](fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}
	return res.(Lookup[T])
}

func (s *BreakerStore) CountInWindow(ctx context.Context, userID string, at time.Time, window time.Duration) Lookup[int64] {
	return viaBreaker(s.cb, func() Lookup[int64] {
		return s.inner.CountInWindow(ctx, userID, at, window)
	})
}

func (s *BreakerStore) SeenRecipient(ctx context.Context, userID, recipient string, at time.Time, lookback time.Duration) Lookup[bool] {
	return viaBreaker(s.cb, func() Lookup[bool] {
		return s.inner.SeenRecipient(ctx, userID, recipient, at, lookback)
	})
}

func (s *BreakerStore) SeenDevice(ctx context.Context, userID, deviceID string, at time.Time, lookback time.Duration) Lookup[bool] {
	return viaBreaker(s.cb, func() Lookup[bool] {
		return s.inner.SeenDevice(ctx, userID, deviceID, at, lookback)
	})
}

func (s *BreakerStore) DistinctRecipients(ctx context.Context, userID string, at time.Time, lookback time.Duration) Lookup[int64] {
	return viaBreaker(s.cb, func() Lookup[int64] {
		return s.inner.DistinctRecipients(ctx, userID, at, lookback)
	})
}

func (s *BreakerStore) DistinctDevices(ctx context.Context, userID string, at time.Time, lookback time.Duration) Lookup[int64] {
	return viaBreaker(s.cb, func() Lookup[int64] {
		return s.inner.DistinctDevices(ctx, userID, at, lookback)
	})
}

func (s *BreakerStore) AmountStats(ctx context.Context, userID string, at time.Time, window time.Duration) Lookup[Stats] {
	return viaBreaker(s.cb, func() Lookup[Stats] {
		return s.inner.AmountStats(ctx, userID, at, window)
	})
}

func (s *BreakerStore) RecipientRisk(ctx context.Context, recipient string) Lookup[float64] {
	return viaBreaker(s.cb, func() Lookup[float64] {
		return s.inner.RecipientRisk(ctx, recipient)
	})
}

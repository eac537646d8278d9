// Package history provides read-only access to the low-latency behavioral
// history store backing feature extraction: trailing-window event counts,
// recipient/device recency checks and rolling amount statistics.
//
// Availability problems never surface as errors. Every query returns a
// Lookup carrying either a real value or an explicit degraded marker, and
// the caller chooses the documented safe default. Only the caller knows
// what "safe" means for its feature.
package history

import (
	"context"
	"errors"
	"time"
)

// Standard lookback windows used by the feature schema.
const (
	RecipientLookback = 30 * 24 * time.Hour
	DeviceLookback    = 60 * 24 * time.Hour
	StatsWindow       = 7 * 24 * time.Hour
)

// ErrStoreUnavailable marks a lookup that degraded because the backing
// store could not be reached in time.
var ErrStoreUnavailable = errors.New("history store unavailable")

// ErrNoSignal marks a lookup for which the store is healthy but holds no
// data (e.g. an unknown recipient with no recorded risk score).
var ErrNoSignal = errors.New("no history signal recorded")

// Stats holds rolling aggregates of a user's transaction amounts.
type Stats struct {
	Mean  float64
	Std   float64
	Max   float64
	Count int64
}

// Lookup is the result of a single store query: either a usable value or a
// degraded marker with the underlying reason. Degraded lookups carry the
// zero value; the consumer substitutes its own documented default.
type Lookup[T any] struct {
	Value    T
	Degraded bool
	Reason   error
}

// Value wraps a successful lookup result.
func Value[T any](v T) Lookup[T] {
	return Lookup[T]{Value: v}
}

// Degraded wraps a failed lookup with the reason it degraded.
func Degraded[T any](reason error) Lookup[T] {
	return Lookup[T]{Degraded: true, Reason: reason}
}

// Or returns the lookup value, or def when the lookup degraded.
func (l Lookup[T]) Or(def T) T {
	if l.Degraded {
		return def
	}
	return l.Value
}

// Store is the read-only history/velocity capability consumed by feature
// extraction. All window queries are anchored at the transaction timestamp,
// not wall-clock time, so repeated scoring of the same transaction against
// the same history is deterministic.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// CountInWindow returns the number of the user's transactions in the
	// trailing window ending at the anchor time.
	CountInWindow(ctx context.Context, userID string, at time.Time, window time.Duration) Lookup[int64]

	// SeenRecipient reports whether the user has transacted with the
	// recipient within the lookback ending at the anchor time.
	SeenRecipient(ctx context.Context, userID, recipient string, at time.Time, lookback time.Duration) Lookup[bool]

	// SeenDevice reports whether the device has been used by this user
	// within the lookback ending at the anchor time.
	SeenDevice(ctx context.Context, userID, deviceID string, at time.Time, lookback time.Duration) Lookup[bool]

	// DistinctRecipients returns how many distinct recipients the user has
	// paid within the lookback.
	DistinctRecipients(ctx context.Context, userID string, at time.Time, lookback time.Duration) Lookup[int64]

	// DistinctDevices returns how many distinct devices the user has
	// transacted from within the lookback.
	DistinctDevices(ctx context.Context, userID string, at time.Time, lookback time.Duration) Lookup[int64]

	// AmountStats returns rolling mean/std/max of the user's transaction
	// amounts over the trailing window.
	AmountStats(ctx context.Context, userID string, at time.Time, window time.Duration) Lookup[Stats]

	// RecipientRisk returns an externally maintained risk score in [0,1]
	// for the recipient. Degrades with ErrNoSignal when none is recorded.
	RecipientRisk(ctx context.Context, recipient string) Lookup[float64]
}

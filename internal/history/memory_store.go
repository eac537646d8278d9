package history

import (
	"context"
	"sync"
	"time"
)

// event is one recorded transaction in the in-memory store.
type event struct {
	at        time.Time
	recipient string
	deviceID  string
	amount    float64
}

// MemoryStore is an in-memory Store for tests and local development. It can
// simulate a full store outage via SetUnavailable.
type MemoryStore struct {
	mu          sync.RWMutex
	events      map[string][]event
	risk        map[string]float64
	unavailable bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string][]event),
		risk:   make(map[string]float64),
	}
}

// Record adds a historic transaction for a user.
func (s *MemoryStore) Record(userID string, at time.Time, recipient, deviceID string, amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[userID] = append(s.events[userID], event{
		at:        at,
		recipient: recipient,
		deviceID:  deviceID,
		amount:    amount,
	})
}

// SetRecipientRisk records an external risk score for a recipient.
func (s *MemoryStore) SetRecipientRisk(recipient string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.risk[recipient] = score
}

// SetUnavailable toggles a simulated outage: every subsequent lookup
// degrades with ErrStoreUnavailable.
func (s *MemoryStore) SetUnavailable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = down
}

func (s *MemoryStore) down() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unavailable
}

func (s *MemoryStore) inWindow(userID string, at time.Time, window time.Duration, fn func(event)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	from := at.Add(-window)
	for _, e := range s.events[userID] {
		if e.at.After(from) && !e.at.After(at) {
			fn(e)
		}
	}
}

// CountInWindow counts recorded events in (at-window, at].
func (s *MemoryStore) CountInWindow(_ context.Context, userID string, at time.Time, window time.Duration) Lookup[int64] {
	if s.down() {
		recordLookup("memory", "count_in_window", true)
		return Degraded[int64](ErrStoreUnavailable)
	}
	var count int64
	s.inWindow(userID, at, window, func(event) { count++ })
	recordLookup("memory", "count_in_window", false)
	return Value(count)
}

// SeenRecipient reports recipient membership within the lookback.
func (s *MemoryStore) SeenRecipient(_ context.Context, userID, recipient string, at time.Time, lookback time.Duration) Lookup[bool] {
	if s.down() {
		recordLookup("memory", "seen_recipient", true)
		return Degraded[bool](ErrStoreUnavailable)
	}
	seen := false
	s.inWindow(userID, at, lookback, func(e event) {
		if e.recipient == recipient {
			seen = true
		}
	})
	recordLookup("memory", "seen_recipient", false)
	return Value(seen)
}

// SeenDevice reports device membership within the lookback.
func (s *MemoryStore) SeenDevice(_ context.Context, userID, deviceID string, at time.Time, lookback time.Duration) Lookup[bool] {
	if s.down() {
		recordLookup("memory", "seen_device", true)
		return Degraded[bool](ErrStoreUnavailable)
	}
	seen := false
	s.inWindow(userID, at, lookback, func(e event) {
		if e.deviceID == deviceID {
			seen = true
		}
	})
	recordLookup("memory", "seen_device", false)
	return Value(seen)
}

// DistinctRecipients counts distinct recipients within the lookback.
func (s *MemoryStore) DistinctRecipients(_ context.Context, userID string, at time.Time, lookback time.Duration) Lookup[int64] {
	if s.down() {
		recordLookup("memory", "distinct_recipients", true)
		return Degraded[int64](ErrStoreUnavailable)
	}
	set := make(map[string]struct{})
	s.inWindow(userID, at, lookback, func(e event) { set[e.recipient] = struct{}{} })
	recordLookup("memory", "distinct_recipients", false)
	return Value(int64(len(set)))
}

// DistinctDevices counts distinct devices within the lookback.
func (s *MemoryStore) DistinctDevices(_ context.Context, userID string, at time.Time, lookback time.Duration) Lookup[int64] {
	if s.down() {
		recordLookup("memory", "distinct_devices", true)
		return Degraded[int64](ErrStoreUnavailable)
	}
	set := make(map[string]struct{})
	s.inWindow(userID, at, lookback, func(e event) { set[e.deviceID] = struct{}{} })
	recordLookup("memory", "distinct_devices", false)
	return Value(int64(len(set)))
}

// AmountStats aggregates amounts within the window.
func (s *MemoryStore) AmountStats(_ context.Context, userID string, at time.Time, window time.Duration) Lookup[Stats] {
	if s.down() {
		recordLookup("memory", "amount_stats", true)
		return Degraded[Stats](ErrStoreUnavailable)
	}
	var amounts []float64
	s.inWindow(userID, at, window, func(e event) { amounts = append(amounts, e.amount) })
	recordLookup("memory", "amount_stats", false)
	return Value(computeStats(amounts))
}

// RecipientRisk returns a recorded recipient risk score.
func (s *MemoryStore) RecipientRisk(_ context.Context, recipient string) Lookup[float64] {
	if s.down() {
		recordLookup("memory", "recipient_risk", true)
		return Degraded[float64](ErrStoreUnavailable)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.risk[recipient]
	if !ok {
		recordLookup("memory", "recipient_risk", true)
		return Degraded[float64](ErrNoSignal)
	}
	recordLookup("memory", "recipient_risk", false)
	return Value(clamp01(score))
}

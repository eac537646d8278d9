package features

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/richxcame/fraudscore/internal/history"
	"github.com/richxcame/fraudscore/pkg/logger"
)

// Velocity windows of the canonical schema.
var velocityWindows = [...]struct {
	idx    int
	window time.Duration
}{
	{IdxTxCount1Min, time.Minute},
	{IdxTxCount5Min, 5 * time.Minute},
	{IdxTxCount1H, time.Hour},
	{IdxTxCount6H, 6 * time.Hour},
	{IdxTxCount24H, 24 * time.Hour},
}

var extractionsDegraded = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "fraudscore_extractions_degraded_total",
		Help: "Feature extractions that used safe defaults because the history store was unavailable",
	},
)

// Input carries the transaction fields feature extraction needs. The caller
// validates the transaction before extraction; this package assumes a
// well-formed input.
type Input struct {
	UserID    string
	DeviceID  string
	Recipient string
	Amount    float64
	Timestamp time.Time
	IsP2M     bool
	Channel   string
}

// Extractor computes the canonical feature vector for one transaction.
// Extraction never fails: every history-dependent feature has a documented
// safe default used when the store degrades.
//
// Degraded defaults: velocity counts 0, recipient and device treated as
// unseen, amount statistics derived from the current amount alone with
// deviation 0, merchant risk from the digit heuristic.
type Extractor struct {
	store history.Store
	log   *zap.Logger
}

// NewExtractor creates a feature extractor over a history store.
func NewExtractor(store history.Store) *Extractor {
	return &Extractor{
		store: store,
		log:   logger.Named("features"),
	}
}

// lookups collects the results of the concurrent store queries.
type lookups struct {
	counts         [len(velocityWindows)]history.Lookup[int64]
	seenRecipient  history.Lookup[bool]
	seenDevice     history.Lookup[bool]
	recipientCount history.Lookup[int64]
	deviceCount    history.Lookup[int64]
	stats          history.Lookup[history.Stats]
	risk           history.Lookup[float64]
}

// Extract builds the feature vector for a transaction. The returned flag
// reports whether any history lookup degraded to its safe default; the
// vector itself is always complete and correctly ordered.
func (e *Extractor) Extract(ctx context.Context, in Input) (Vector, bool) {
	var v Vector

	// History-independent features first.
	v[IdxAmount] = in.Amount
	v[IdxLogAmount] = math.Log1p(in.Amount)
	v[IdxIsRoundAmount] = boolToFloat(isRoundAmount(in.Amount))

	ts := in.Timestamp
	hour := ts.Hour()
	weekday := mondayIndexed(ts.Weekday())
	v[IdxHourOfDay] = float64(hour)
	v[IdxDayOfWeek] = float64(weekday)
	v[IdxMonthOfYear] = float64(ts.Month())
	v[IdxIsWeekend] = boolToFloat(weekday >= 5)
	v[IdxIsNight] = boolToFloat(hour >= 22 || hour <= 5)
	v[IdxIsBusinessHours] = boolToFloat(hour >= 9 && hour <= 17 && weekday < 5)

	v[IdxIsP2P] = boolToFloat(!in.IsP2M)
	v[IdxIsP2M] = boolToFloat(in.IsP2M)

	channel := strings.ToLower(in.Channel)
	v[IdxIsQRChannel] = boolToFloat(channel == "qr")
	v[IdxIsWebChannel] = boolToFloat(channel == "web")

	// History lookups run concurrently; the independent windows would
	// otherwise serialize on store round-trips.
	l := e.lookupHistory(ctx, in)

	degraded := false
	note := func(reason error) {
		if reason != nil && reason != history.ErrNoSignal {
			degraded = true
		}
	}

	for i, w := range velocityWindows {
		c := l.counts[i]
		v[w.idx] = float64(c.Or(0))
		if c.Degraded {
			note(c.Reason)
		}
	}

	// Unseen is the safe assumption when the store cannot answer.
	v[IdxIsNewRecipient] = boolToFloat(!l.seenRecipient.Or(false))
	v[IdxIsNewDevice] = boolToFloat(!l.seenDevice.Or(false))
	v[IdxRecipientCount] = float64(l.recipientCount.Or(0))
	v[IdxDeviceCount] = float64(l.deviceCount.Or(0))
	if l.seenRecipient.Degraded {
		note(l.seenRecipient.Reason)
	}
	if l.seenDevice.Degraded {
		note(l.seenDevice.Reason)
	}
	if l.recipientCount.Degraded {
		note(l.recipientCount.Reason)
	}
	if l.deviceCount.Degraded {
		note(l.deviceCount.Reason)
	}

	stats := l.stats.Value
	if l.stats.Degraded || stats.Count == 0 {
		// No usable history: statistics from the current amount alone.
		stats = history.Stats{Mean: in.Amount, Max: in.Amount}
		if l.stats.Degraded {
			note(l.stats.Reason)
		}
	}
	v[IdxAmountMean] = stats.Mean
	v[IdxAmountStd] = stats.Std
	v[IdxAmountMax] = stats.Max
	if stats.Std > 0 {
		v[IdxAmountDeviation] = (in.Amount - stats.Mean) / stats.Std
	}

	if l.risk.Degraded {
		v[IdxMerchantRiskScore] = merchantRiskHeuristic(in.Recipient)
		note(l.risk.Reason)
	} else {
		v[IdxMerchantRiskScore] = l.risk.Value
	}

	if degraded {
		extractionsDegraded.Inc()
		e.log.Warn("feature extraction degraded to safe defaults",
			zap.String("user_id", in.UserID),
		)
	}

	return v, degraded
}

func (e *Extractor) lookupHistory(ctx context.Context, in Input) lookups {
	var l lookups
	var wg sync.WaitGroup

	for i, w := range velocityWindows {
		i, w := i, w
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.counts[i] = e.store.CountInWindow(ctx, in.UserID, in.Timestamp, w.window)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		l.seenRecipient = e.store.SeenRecipient(ctx, in.UserID, in.Recipient, in.Timestamp, history.RecipientLookback)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.seenDevice = e.store.SeenDevice(ctx, in.UserID, in.DeviceID, in.Timestamp, history.DeviceLookback)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.recipientCount = e.store.DistinctRecipients(ctx, in.UserID, in.Timestamp, history.RecipientLookback)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.deviceCount = e.store.DistinctDevices(ctx, in.UserID, in.Timestamp, history.DeviceLookback)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.stats = e.store.AmountStats(ctx, in.UserID, in.Timestamp, history.StatsWindow)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.risk = e.store.RecipientRisk(ctx, in.Recipient)
	}()

	wg.Wait()
	return l
}

// isRoundAmount flags exact multiples of the common round units.
func isRoundAmount(amount float64) bool {
	if amount <= 0 {
		return false
	}
	return math.Mod(amount, 100) == 0 || math.Mod(amount, 500) == 0
}

// merchantRiskHeuristic scores a recipient with no recorded risk signal:
// handles starting with a digit correlate with throwaway merchant VPAs.
func merchantRiskHeuristic(recipient string) float64 {
	handle, _, _ := strings.Cut(recipient, "@")
	if handle == "" {
		return 0
	}
	if handle[0] >= '0' && handle[0] <= '9' {
		return 0.5
	}
	return 0
}

// mondayIndexed converts Go's Sunday-first weekday to the Monday=0 indexing
// the models were trained on.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

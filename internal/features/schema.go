// Package features turns a raw payment transaction plus behavioral history
// into the fixed-order numeric vector the classifiers were trained on.
//
// The schema is frozen: 27 named features in a canonical order. Reordering
// or renaming silently corrupts every prediction, so positions are spelled
// out as compile-time index constants and the model registry re-checks the
// names at startup.
package features

// Feature vector indexes, in canonical training order.
const (
	// basic
	IdxAmount = iota
	IdxLogAmount
	IdxIsRoundAmount
	// temporal
	IdxHourOfDay
	IdxDayOfWeek
	IdxMonthOfYear
	IdxIsWeekend
	IdxIsNight
	IdxIsBusinessHours
	// velocity
	IdxTxCount1Min
	IdxTxCount5Min
	IdxTxCount1H
	IdxTxCount6H
	IdxTxCount24H
	// behavioral
	IdxIsNewRecipient
	IdxRecipientCount
	IdxIsNewDevice
	IdxDeviceCount
	IdxIsP2P
	IdxIsP2M
	// statistical
	IdxAmountMean
	IdxAmountStd
	IdxAmountMax
	IdxAmountDeviation
	// risk indicators
	IdxMerchantRiskScore
	IdxIsQRChannel
	IdxIsWebChannel

	// Count is the canonical feature count.
	Count
)

// names holds the canonical feature names, position-aligned with the index
// constants above.
var names = [Count]string{
	IdxAmount:            "amount",
	IdxLogAmount:         "log_amount",
	IdxIsRoundAmount:     "is_round_amount",
	IdxHourOfDay:         "hour_of_day",
	IdxDayOfWeek:         "day_of_week",
	IdxMonthOfYear:       "month_of_year",
	IdxIsWeekend:         "is_weekend",
	IdxIsNight:           "is_night",
	IdxIsBusinessHours:   "is_business_hours",
	IdxTxCount1Min:       "tx_count_1min",
	IdxTxCount5Min:       "tx_count_5min",
	IdxTxCount1H:         "tx_count_1h",
	IdxTxCount6H:         "tx_count_6h",
	IdxTxCount24H:        "tx_count_24h",
	IdxIsNewRecipient:    "is_new_recipient",
	IdxRecipientCount:    "recipient_count",
	IdxIsNewDevice:       "is_new_device",
	IdxDeviceCount:       "device_count",
	IdxIsP2P:             "is_p2p",
	IdxIsP2M:             "is_p2m",
	IdxAmountMean:        "amount_mean",
	IdxAmountStd:         "amount_std",
	IdxAmountMax:         "amount_max",
	IdxAmountDeviation:   "amount_deviation",
	IdxMerchantRiskScore: "merchant_risk_score",
	IdxIsQRChannel:       "is_qr_channel",
	IdxIsWebChannel:      "is_web_channel",
}

var indexByName = func() map[string]int {
	m := make(map[string]int, Count)
	for i, n := range names {
		m[n] = i
	}
	return m
}()

// Names returns the canonical feature names in order.
func Names() []string {
	out := make([]string, Count)
	copy(out, names[:])
	return out
}

// Name returns the name at a vector position.
func Name(idx int) string {
	return names[idx]
}

// Index returns the vector position of a feature name.
func Index(name string) (int, bool) {
	idx, ok := indexByName[name]
	return idx, ok
}

// Vector is one extracted feature vector in canonical order. It is created
// once per transaction and read-only afterwards; it is passed by value so
// downstream stages cannot mutate the original.
type Vector [Count]float64

// Get returns a feature value by canonical name.
func (v Vector) Get(name string) (float64, bool) {
	idx, ok := indexByName[name]
	if !ok {
		return 0, false
	}
	return v[idx], true
}

package history

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraudscore_history_lookups_total",
			Help: "Total number of history store lookups",
		},
		[]string{"store", "query"},
	)

	degradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraudscore_history_degraded_total",
			Help: "History store lookups that degraded to safe defaults",
		},
		[]string{"store", "query"},
	)
)

// recordLookup tracks one store query and whether it degraded. This is the
// out-of-band channel for store outages: scoring itself never fails on them.
func recordLookup(store, query string, degraded bool) {
	lookupsTotal.WithLabelValues(store, query).Inc()
	if degraded {
		degradedTotal.WithLabelValues(store, query).Inc()
	}
}

package fraud

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraudscore_decisions_total",
			Help: "Risk decisions by action",
		},
		[]string{"action"},
	)

	scoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fraudscore_scoring_duration_seconds",
			Help:    "End-to-end scoring latency",
			Buckets: prometheus.DefBuckets,
		},
	)

	classifierFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraudscore_classifier_failures_total",
			Help: "Per-call classifier failures excluded from the ensemble",
		},
		[]string{"classifier"},
	)

	fallbackScores = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fraudscore_ensemble_fallback_total",
			Help: "Scoring calls where no classifier survived and the rule-based fallback was used",
		},
	)
)

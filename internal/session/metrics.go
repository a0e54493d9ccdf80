package session

import "github.com/prometheus/client_golang/prometheus"

var (
	completionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmrun",
			Subsystem: "session",
			Name:      "completions_total",
			Help:      "Completed requests by terminal outcome (stop, length, fault, rejected)",
		},
		[]string{"outcome"},
	)

	completionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "llmrun",
			Subsystem: "session",
			Name:      "completion_duration_seconds",
			Help:      "Wall time of one completion request",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	generatedTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "llmrun",
			Subsystem: "session",
			Name:      "generated_tokens",
			Help:      "Tokens accepted per completion",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

func init() {
	prometheus.MustRegister(completionsTotal, completionDuration, generatedTokens)
}

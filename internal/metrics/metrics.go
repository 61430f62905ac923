package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values are bounded: signals, pillar kinds, statuses, and cache
// outcomes are small fixed sets. Tickers are never labels.
var (
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stocklens_analyses_total",
		Help: "Completed analyses by signal.",
	}, []string{"signal"})

	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stocklens_analysis_duration_seconds",
		Help:    "End-to-end duration of uncached analyses.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stocklens_cache_requests_total",
		Help: "Cache lookups by outcome (hit or miss).",
	}, []string{"outcome"})

	PillarResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stocklens_pillar_results_total",
		Help: "Pillar attempts by kind and status.",
	}, []string{"pillar", "status"})

	AgentTurns = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stocklens_agent_turns",
		Help:    "Model turns consumed per analysis.",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stocklens_rate_limited_total",
		Help: "Requests rejected by the per-client rate limit.",
	})
)

// ObserveAnalysis records one completed uncached analysis.
func ObserveAnalysis(signal string, duration time.Duration) {
	AnalysesTotal.WithLabelValues(signal).Inc()
	AnalysisDuration.Observe(duration.Seconds())
}

// ObserveCache records a cache lookup outcome.
func ObserveCache(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	CacheRequests.WithLabelValues(outcome).Inc()
}

// ObservePillar records one pillar attempt.
func ObservePillar(kind, status string) {
	PillarResults.WithLabelValues(kind, status).Inc()
}

// ObserveAgentTurns records how many model turns one analysis consumed.
func ObserveAgentTurns(turns int) {
	AgentTurns.Observe(float64(turns))
}

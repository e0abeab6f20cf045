// Package metrics provides Prometheus metrics for the researcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "orca_researcher"

var (
	// FetchTotal counts scrape calls by result.
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Total number of URL fetches",
		},
		[]string{"result"},
	)

	// URLCategoryTotal counts classified URLs per source category.
	URLCategoryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "url_category_total",
			Help:      "Successfully fetched URLs per source category",
		},
		[]string{"category"},
	)

	// SearchTotal counts search requests per provider and result.
	SearchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_total",
			Help:      "Total number of search requests",
		},
		[]string{"provider", "result"},
	)

	// LLMRequestsTotal counts text-generation calls.
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of text-generation requests",
		},
		[]string{"result"},
	)

	// LLMDuration measures text-generation latency.
	LLMDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_duration_seconds",
			Help:      "Duration of text-generation requests in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
	)

	// RateLimitHitsTotal counts 429 responses per service.
	RateLimitHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Rate limit responses observed per service",
		},
		[]string{"service", "action"},
	)

	// StepDuration measures orchestrator step latency.
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of pipeline steps in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"step"},
	)

	// SessionsTotal counts finished sessions by terminal status.
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished research sessions by status",
		},
		[]string{"status"},
	)
)

// RecordFetch records a scrape call.
func RecordFetch(ok bool) {
	if ok {
		FetchTotal.WithLabelValues("ok").Inc()
		return
	}
	FetchTotal.WithLabelValues("failed").Inc()
}

// RecordCategory records a URL classification.
func RecordCategory(category string) {
	URLCategoryTotal.WithLabelValues(category).Inc()
}

// RecordSearch records a search request.
func RecordSearch(provider, result string) {
	SearchTotal.WithLabelValues(provider, result).Inc()
}

// RecordLLM records a text-generation call.
func RecordLLM(result string, seconds float64) {
	LLMRequestsTotal.WithLabelValues(result).Inc()
	if seconds > 0 {
		LLMDuration.Observe(seconds)
	}
}

// RecordRateLimit records a 429 and what was done about it.
func RecordRateLimit(service, action string) {
	RateLimitHitsTotal.WithLabelValues(service, action).Inc()
}

// RecordStep records how long a pipeline step took.
func RecordStep(step string, seconds float64) {
	StepDuration.WithLabelValues(step).Observe(seconds)
}

// RecordSession records a session reaching a terminal status.
func RecordSession(status string) {
	SessionsTotal.WithLabelValues(status).Inc()
}

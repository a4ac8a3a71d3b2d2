// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus instrumentation for the content-safety daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream client metrics
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentsafety_upstream_requests_total",
		Help: "Upstream Content Safety API calls by operation and outcome",
	}, []string{"operation", "outcome"}) // outcome=success|error|rate_limited|timeout

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contentsafety_upstream_request_duration_seconds",
		Help:    "Upstream Content Safety API call latency by operation",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// Analysis metrics
	severitiesObserved = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contentsafety_severity_observed",
		Help:    "Severity values returned by text/image analysis, by category",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 7},
	}, []string{"category"})

	blocklistHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentsafety_blocklist_hits_total",
		Help: "Blocklist matches reported by text analysis, by blocklist",
	}, []string{"blocklist"})

	attacksDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentsafety_attacks_detected_total",
		Help: "Prompt Shield detections by source (user_prompt or document)",
	}, []string{"source"})

	// Pipeline metrics
	pipelineDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentsafety_pipeline_decisions_total",
		Help: "Moderation pipeline decisions by outcome and deciding stage",
	}, []string{"outcome", "stage"}) // outcome=allowed|blocked|error

	adjudicationVerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentsafety_adjudication_verdicts_total",
		Help: "LLM adjudication verdicts",
	}, []string{"verdict"}) // verdict=harmful|not_harmful|error

	decisionCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentsafety_decision_cache_total",
		Help: "Decision cache lookups by result",
	}, []string{"result"}) // result=hit|miss

	blocklistAutoAddsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contentsafety_blocklist_auto_adds_total",
		Help: "Items added to the moderation blocklist by the pipeline",
	})

	// Resilience metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "contentsafety_circuit_breaker_state",
		Help: "Circuit breaker state per component (0=closed, 1=half-open, 2=open)",
	}, []string{"component"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentsafety_circuit_breaker_trips_total",
		Help: "Circuit breaker trips per component by reason",
	}, []string{"component", "reason"})

	rateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentsafety_ratelimit_exceeded_total",
		Help: "Rate limit rejections by limit type",
	}, []string{"limit_type"}) // limit_type=global|per_ip|upstream

	// Reporting metrics
	reportExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contentsafety_report_exports_total",
		Help: "Report export attempts by outcome",
	}, []string{"outcome"})
)

// RecordUpstreamRequest records an upstream API call and its duration.
func RecordUpstreamRequest(operation, outcome string, seconds float64) {
	upstreamRequestsTotal.WithLabelValues(operation, outcome).Inc()
	upstreamRequestDuration.WithLabelValues(operation).Observe(seconds)
}

// ObserveSeverity records a severity value returned for a category.
func ObserveSeverity(category string, severity int) {
	severitiesObserved.WithLabelValues(category).Observe(float64(severity))
}

// RecordBlocklistHit counts a blocklist match.
func RecordBlocklistHit(blocklist string) {
	blocklistHitsTotal.WithLabelValues(blocklist).Inc()
}

// RecordAttackDetected counts a Prompt Shield detection.
func RecordAttackDetected(source string) {
	attacksDetectedTotal.WithLabelValues(source).Inc()
}

// RecordPipelineDecision counts a moderation decision.
func RecordPipelineDecision(outcome, stage string) {
	pipelineDecisionsTotal.WithLabelValues(outcome, stage).Inc()
}

// RecordAdjudicationVerdict counts an LLM adjudication verdict.
func RecordAdjudicationVerdict(verdict string) {
	adjudicationVerdictsTotal.WithLabelValues(verdict).Inc()
}

// RecordDecisionCache counts a cache hit or miss.
func RecordDecisionCache(result string) {
	decisionCacheTotal.WithLabelValues(result).Inc()
}

// RecordBlocklistAutoAdd counts an automatic blocklist addition.
func RecordBlocklistAutoAdd() {
	blocklistAutoAddsTotal.Inc()
}

// SetCircuitBreakerState publishes the current breaker state for a component.
func SetCircuitBreakerState(component, state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	circuitBreakerState.WithLabelValues(component).Set(v)
}

// RecordCircuitBreakerTrip counts a breaker trip.
func RecordCircuitBreakerTrip(component, reason string) {
	circuitBreakerTrips.WithLabelValues(component, reason).Inc()
}

// RecordRateLimitExceeded counts a rate-limit rejection.
func RecordRateLimitExceeded(limitType string) {
	rateLimitExceeded.WithLabelValues(limitType).Inc()
}

// RecordReportExport counts a report export attempt.
func RecordReportExport(outcome string) {
	reportExportsTotal.WithLabelValues(outcome).Inc()
}

package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds the engine's metric families. It implements the
// verification pipeline's metrics hook and is shared with the HTTP layer.
type AppMetrics struct {
	// Verification pipeline
	VerificationsTotal    CounterVec
	VerificationDuration  HistogramVec
	RegistryHitsTotal     CounterVec
	DegradedVerdictsTotal CounterVec

	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Corpus upkeep
	AlertUpdatesTotal CounterVec
}

var verificationDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// NewAppMetrics registers every metric family on the collector.
func NewAppMetrics(c MetricsCollector) *AppMetrics {
	return &AppMetrics{
		VerificationsTotal: c.RegisterCounter(
			"verifications_total",
			"Completed verification requests by risk level and counterfeit outcome.",
			"risk_level", "counterfeit"),
		VerificationDuration: c.RegisterHistogram(
			"verification_duration_seconds",
			"End-to-end verification latency.",
			verificationDurationBuckets),
		RegistryHitsTotal: c.RegisterCounter(
			"registry_hits_total",
			"Verifications short-circuited by a known-counterfeit registry match."),
		DegradedVerdictsTotal: c.RegisterCounter(
			"degraded_verdicts_total",
			"Verdicts produced with one or more signals dropped.",
			"reason"),
		HTTPRequestsTotal: c.RegisterCounter(
			"http_requests_total",
			"HTTP requests by method, route and status code.",
			"method", "route", "status"),
		HTTPRequestDuration: c.RegisterHistogram(
			"http_request_duration_seconds",
			"HTTP request latency by method and route.",
			nil,
			"method", "route"),
		HTTPActiveRequests: c.RegisterGauge(
			"http_active_requests",
			"In-flight HTTP requests."),
		AlertUpdatesTotal: c.RegisterCounter(
			"alert_updates_total",
			"Alert feed updates applied, by operation.",
			"op"),
	}
}

// ObserveVerification records one completed verification.
func (m *AppMetrics) ObserveVerification(duration time.Duration, riskLevel string, counterfeit bool) {
	m.VerificationsTotal.WithLabelValues(riskLevel, strconv.FormatBool(counterfeit)).Inc()
	m.VerificationDuration.WithLabelValues().Observe(duration.Seconds())
}

// RegistryHit records a known-counterfeit registry short circuit.
func (m *AppMetrics) RegistryHit() {
	m.RegistryHitsTotal.WithLabelValues().Inc()
}

// DegradedVerdict records a verdict produced in degraded mode.
func (m *AppMetrics) DegradedVerdict(reason string) {
	m.DegradedVerdictsTotal.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records one finished HTTP request.
func (m *AppMetrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordAlertUpdate records one applied alert feed operation.
func (m *AppMetrics) RecordAlertUpdate(op string) {
	m.AlertUpdatesTotal.WithLabelValues(op).Inc()
}

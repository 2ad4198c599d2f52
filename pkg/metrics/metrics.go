/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics exposes the daemon's self-observability: collection,
// storage, alert, and notification counters and histograms, registered
// against the default Prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CollectionsTotal counts collector invocations by device kind and outcome.
	CollectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmond_collections_total",
		Help: "Total number of device collection invocations.",
	}, []string{"device_kind", "outcome"})

	// CollectionDuration measures how long a collector invocation took.
	CollectionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netmond_collection_duration_seconds",
		Help:    "Duration of device collection invocations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"device_kind"})

	// PointsCollectedTotal counts individual metric points produced.
	PointsCollectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmond_points_collected_total",
		Help: "Total number of metric points produced by collectors.",
	}, []string{"device_kind", "family"})

	// StoreBatchWritesTotal counts storage batch-write outcomes.
	StoreBatchWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmond_store_batch_writes_total",
		Help: "Total number of storage batch writes, by outcome.",
	}, []string{"outcome"})

	// StoreBatchSize records how many points were in each flushed batch.
	StoreBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "netmond_store_batch_size",
		Help:    "Number of points in each flushed storage batch.",
		Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2500},
	})

	// StoreWriteDuration measures storage batch-write latency.
	StoreWriteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "netmond_store_write_duration_seconds",
		Help:    "Duration of storage batch writes in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// RetentionDeletedTotal counts rows removed by the retention sweep.
	RetentionDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmond_retention_deleted_total",
		Help: "Total number of rows deleted by the retention sweep, by policy.",
	}, []string{"policy"})

	// AlertEvaluationsTotal counts rule-evaluation cycles by outcome.
	AlertEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmond_alert_evaluations_total",
		Help: "Total number of alert rule evaluations, by outcome.",
	}, []string{"outcome"})

	// AlertsActive tracks the current count of active alert instances.
	AlertsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netmond_alerts_active",
		Help: "Current number of active alert instances.",
	})

	// AnomaliesDetectedTotal counts baseline anomaly detections by family.
	AnomaliesDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmond_anomalies_detected_total",
		Help: "Total number of statistical anomalies detected, by metric family.",
	}, []string{"family"})

	// NotificationAttemptsTotal counts notification delivery attempts by channel and outcome.
	NotificationAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmond_notification_attempts_total",
		Help: "Total number of notification delivery attempts, by channel and outcome.",
	}, []string{"channel", "outcome"})

	// NotificationRateLimitedTotal counts notifications dropped by the rate limiter.
	NotificationRateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmond_notification_rate_limited_total",
		Help: "Total number of notifications suppressed by the rate limiter, by channel.",
	}, []string{"channel"})

	// CredentialLookupsTotal counts credential resolver outcomes.
	CredentialLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netmond_credential_lookups_total",
		Help: "Total number of credential resolver lookups, by outcome.",
	}, []string{"outcome"})

	// HTTPRequestDuration measures the admin/read HTTP surface's request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netmond_http_request_duration_seconds",
		Help:    "Duration of HTTP requests served by the admin API, in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// HTTPRequestsInFlight tracks requests currently being served.
	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netmond_http_requests_in_flight",
		Help: "Current number of in-flight HTTP requests on the admin API.",
	})
)

// RecordCollection records a collector invocation's outcome and duration.
func RecordCollection(deviceKind, outcome string, duration time.Duration) {
	CollectionsTotal.WithLabelValues(deviceKind, outcome).Inc()
	CollectionDuration.WithLabelValues(deviceKind).Observe(duration.Seconds())
}

// RecordPoints records how many points of a family a collector produced.
func RecordPoints(deviceKind, family string, count int) {
	PointsCollectedTotal.WithLabelValues(deviceKind, family).Add(float64(count))
}

// RecordStoreBatch records a storage batch-write outcome, size, and duration.
func RecordStoreBatch(outcome string, size int, duration time.Duration) {
	StoreBatchWritesTotal.WithLabelValues(outcome).Inc()
	StoreBatchSize.Observe(float64(size))
	StoreWriteDuration.Observe(duration.Seconds())
}

// RecordRetentionDeleted records rows deleted under a retention policy.
func RecordRetentionDeleted(policy string, count int) {
	RetentionDeletedTotal.WithLabelValues(policy).Add(float64(count))
}

// RecordAlertEvaluation records a rule evaluation cycle's outcome.
func RecordAlertEvaluation(outcome string) {
	AlertEvaluationsTotal.WithLabelValues(outcome).Inc()
}

// SetAlertsActive sets the current active-alert gauge.
func SetAlertsActive(count int) {
	AlertsActive.Set(float64(count))
}

// RecordAnomalyDetected records an anomaly detection for a metric family.
func RecordAnomalyDetected(family string) {
	AnomaliesDetectedTotal.WithLabelValues(family).Inc()
}

// RecordNotificationAttempt records a notification delivery attempt outcome.
func RecordNotificationAttempt(channel, outcome string) {
	NotificationAttemptsTotal.WithLabelValues(channel, outcome).Inc()
}

// RecordNotificationRateLimited records a notification suppressed by the rate limiter.
func RecordNotificationRateLimited(channel string) {
	NotificationRateLimitedTotal.WithLabelValues(channel).Inc()
}

// RecordCredentialLookup records a credential resolver lookup outcome.
func RecordCredentialLookup(outcome string) {
	CredentialLookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records an admin API request's method, route pattern,
// status, and duration.
func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// Timer measures elapsed wall-clock time for an in-flight operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// RecordCollection records the elapsed time as a collection observation.
func (t *Timer) RecordCollection(deviceKind, outcome string) {
	RecordCollection(deviceKind, outcome, t.Elapsed())
}

// RecordStoreBatch records the elapsed time as a store batch-write observation.
func (t *Timer) RecordStoreBatch(outcome string, size int) {
	RecordStoreBatch(outcome, size, t.Elapsed())
}

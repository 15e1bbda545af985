// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

// Package metrics instruments the relay's pipeline with Prometheus
// collectors, mirroring teacher's promauto-constructed CloudMetrics but
// measuring delivery attempts, queue depth, and dead-letter growth
// instead of installation provisioning.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RelayMetrics holds every Prometheus collector the relay registers and
// serves at the /metrics scrape endpoint. The internal Statistics
// component keeps its own counters and samplers; it does not read these.
type RelayMetrics struct {
	DeliveryAttemptDurationHist prometheus.Histogram
	DeliveryAttemptsTotal       *prometheus.CounterVec
	QueueDepthGauge             *prometheus.GaugeVec
	DeadLetterSizeGauge         prometheus.Gauge
	EventsRoutedTotal           prometheus.Counter
	EventsDroppedTotal          prometheus.Counter
	APIRequestDurationHist      *prometheus.HistogramVec
	APIRequestsTotal            *prometheus.CounterVec
}

// New creates a new Prometheus-based Metrics object to be used throughout
// the relay to record pipeline performance, registering its collectors
// against reg (typically prometheus.DefaultRegisterer in production, a
// fresh prometheus.NewRegistry() in tests so repeated construction in the
// same process doesn't panic on duplicate registration).
func New(reg prometheus.Registerer) *RelayMetrics {
	promauto := promauto.With(reg)
	return &RelayMetrics{
		DeliveryAttemptDurationHist: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docrelay_delivery_attempt_duration_seconds",
				Help:    "The duration of webhook delivery attempts",
				Buckets: prometheus.DefBuckets,
			}),
		DeliveryAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docrelay_delivery_attempts_total",
				Help: "Count of webhook delivery attempts by outcome",
			}, []string{"outcome"}),
		QueueDepthGauge: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "docrelay_queue_depth",
				Help: "Current number of delivery items resident in the queue by priority lane",
			}, []string{"priority"}),
		DeadLetterSizeGauge: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "docrelay_dead_letter_size",
				Help: "Current number of entries held in the dead-letter store",
			}),
		EventsRoutedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "docrelay_events_routed_total",
				Help: "Count of classified mutations matched to at least one subscription",
			}),
		EventsDroppedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "docrelay_events_dropped_total",
				Help: "Count of classified mutations matched to no subscription",
			}),
		APIRequestDurationHist: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docrelay_api_request_duration_seconds",
				Help:    "The duration of management API requests",
				Buckets: prometheus.DefBuckets,
			}, []string{"handler", "method", "status"}),
		APIRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docrelay_api_requests_total",
				Help: "Count of management API requests handled",
			}, []string{"handler", "method", "status"}),
	}
}

// ObserveAPIRequest records one completed management API request's
// duration, mirroring teacher's handler.go ObserveAPIEndpointDuration /
// IncrementAPIRequest pair.
func (m *RelayMetrics) ObserveAPIRequest(handler, method string, status int, durationSeconds float64) {
	statusStr := strconv.Itoa(status)
	m.APIRequestDurationHist.WithLabelValues(handler, method, statusStr).Observe(durationSeconds)
	m.APIRequestsTotal.WithLabelValues(handler, method, statusStr).Inc()
}

// ObserveDelivery records one completed delivery attempt's duration and
// outcome.
func (m *RelayMetrics) ObserveDelivery(success bool, durationSeconds float64) {
	m.DeliveryAttemptDurationHist.Observe(durationSeconds)
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.DeliveryAttemptsTotal.WithLabelValues(outcome).Inc()
}

// SetQueueDepth records the current per-priority queue depth.
func (m *RelayMetrics) SetQueueDepth(priority string, depth int) {
	m.QueueDepthGauge.WithLabelValues(priority).Set(float64(depth))
}

// SetDeadLetterSize records the current dead-letter store size.
func (m *RelayMetrics) SetDeadLetterSize(size int64) {
	m.DeadLetterSizeGauge.Set(float64(size))
}

// Package history implements the Delivery History component: it durably
// audits every delivery attempt and folds the same attempt into the
// Statistics component's running counters and the Prometheus collectors
// that back the metrics scrape endpoint (spec §4.8).
package history

import (
	"github.com/relaydock/docrelay/internal/metrics"
	"github.com/relaydock/docrelay/internal/stats"
	"github.com/relaydock/docrelay/model"
)

// Store is the durable audit surface. Satisfied by *store.SQLStore.
type Store interface {
	RecordDeliveryAttempt(attempt *model.DeliveryAttemptRecord) error
	UpdateSubscriptionCounters(subscriptionID string, deliveredDelta, failedDelta int64) error
}

// History fans one delivery attempt out to durable storage, the
// in-process Statistics accumulator, and Prometheus, satisfying the
// Delivery Queue's History dependency.
type History struct {
	store   Store
	stats   *stats.Statistics
	metrics *metrics.RelayMetrics
}

// New constructs a History fronting store, recording every attempt into
// statistics and metrics as well.
func New(store Store, statistics *stats.Statistics, relayMetrics *metrics.RelayMetrics) *History {
	return &History{store: store, stats: statistics, metrics: relayMetrics}
}

// RecordDeliveryAttempt durably records attempt and folds it into the
// Statistics and Prometheus views.
func (h *History) RecordDeliveryAttempt(attempt *model.DeliveryAttemptRecord) error {
	success := attempt.Outcome == model.AttemptOutcomeSuccess
	durationMillis := float64(attempt.Duration.Milliseconds())

	h.stats.RecordAttempt(success, durationMillis)
	if h.metrics != nil {
		h.metrics.ObserveDelivery(success, attempt.Duration.Seconds())
	}
	if attempt.AttemptNumber > 1 {
		h.stats.RecordRetry()
	}

	return h.store.RecordDeliveryAttempt(attempt)
}

// UpdateSubscriptionCounters passes through to the durable store.
func (h *History) UpdateSubscriptionCounters(subscriptionID string, deliveredDelta, failedDelta int64) error {
	return h.store.UpdateSubscriptionCounters(subscriptionID, deliveredDelta, failedDelta)
}

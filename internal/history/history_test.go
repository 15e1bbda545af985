package history

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/relaydock/docrelay/internal/metrics"
	"github.com/relaydock/docrelay/internal/stats"
	"github.com/relaydock/docrelay/model"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	recorded []*model.DeliveryAttemptRecord
	delivered, failed int64
}

func (f *fakeStore) RecordDeliveryAttempt(attempt *model.DeliveryAttemptRecord) error {
	f.recorded = append(f.recorded, attempt)
	return nil
}

func (f *fakeStore) UpdateSubscriptionCounters(subscriptionID string, deliveredDelta, failedDelta int64) error {
	f.delivered += deliveredDelta
	f.failed += failedDelta
	return nil
}

func TestHistoryRecordsAcrossStoreAndStats(t *testing.T) {
	store := &fakeStore{}
	statistics := stats.New()
	h := New(store, statistics, metrics.New(prometheus.NewRegistry()))

	attempt := &model.DeliveryAttemptRecord{
		ID:            model.NewID(),
		AttemptNumber: 1,
		Duration:      50 * time.Millisecond,
		Outcome:       model.AttemptOutcomeSuccess,
	}
	require.NoError(t, h.RecordDeliveryAttempt(attempt))
	require.Len(t, store.recorded, 1)

	snapshot := statistics.Snapshot()
	require.EqualValues(t, 1, snapshot.Delivery.Succeeded)

	require.NoError(t, h.UpdateSubscriptionCounters("sub1", 1, 0))
	require.EqualValues(t, 1, store.delivered)
}

func TestHistoryRecordsRetryOnSubsequentAttempt(t *testing.T) {
	store := &fakeStore{}
	statistics := stats.New()
	h := New(store, statistics, metrics.New(prometheus.NewRegistry()))

	attempt := &model.DeliveryAttemptRecord{ID: model.NewID(), AttemptNumber: 2, Outcome: model.AttemptOutcomeFailure}
	require.NoError(t, h.RecordDeliveryAttempt(attempt))

	snapshot := statistics.Snapshot()
	require.EqualValues(t, 1, snapshot.Delivery.Retried)
	require.EqualValues(t, 1, snapshot.Delivery.Failed)
}

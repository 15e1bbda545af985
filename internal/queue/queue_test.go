package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/relaydock/docrelay/internal/dispatch"
	"github.com/relaydock/docrelay/internal/testlib"
	"github.com/relaydock/docrelay/model"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	mu      sync.Mutex
	results map[string][]dispatch.Result
	calls   int
}

func (f *fakeDispatcher) Attempt(ctx context.Context, item *model.DeliveryItem) dispatch.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	queue, ok := f.results[item.ID]
	if !ok || len(queue) == 0 {
		return dispatch.Result{Success: true, StatusCode: 200}
	}
	next := queue[0]
	f.results[item.ID] = queue[1:]
	return next
}

type fakeHistory struct {
	mu       sync.Mutex
	attempts []*model.DeliveryAttemptRecord
}

func (f *fakeHistory) RecordDeliveryAttempt(attempt *model.DeliveryAttemptRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, attempt)
	return nil
}

func (f *fakeHistory) UpdateSubscriptionCounters(subscriptionID string, deliveredDelta, failedDelta int64) error {
	return nil
}

type fakeDeadLetter struct {
	mu    sync.Mutex
	items []*model.DeliveryItem
}

func (f *fakeDeadLetter) Add(item *model.DeliveryItem, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, item)
	return nil
}

func testItem(maxAttempts int) *model.DeliveryItem {
	return &model.DeliveryItem{
		ID:                 model.NewID(),
		Priority:           model.PriorityMedium,
		MaxAttempts:        maxAttempts,
		InitialDelayMs:     10,
		BackoffMultiplier:  2,
		NextEligibleMillis: model.GetMillis(),
		Payload:            &model.Payload{},
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestQueueDeliversSuccessfulItem(t *testing.T) {
	d := &fakeDispatcher{results: map[string][]dispatch.Result{}}
	h := &fakeHistory{}
	dl := &fakeDeadLetter{}
	cfg := DefaultConfig()
	cfg.ProcessingInterval = 10 * time.Millisecond
	q := New(cfg, d, h, dl, testlib.MakeLogger(t))

	item := testItem(3)
	require.NoError(t, q.Enqueue(item))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	waitFor(t, time.Second, func() bool { return q.Stats().Snapshot().Completed == 1 })
	require.Equal(t, model.DeliveryStatusCompleted, item.Status)
}

func TestQueueRetriesOnFailureThenDeadLetters(t *testing.T) {
	item := testItem(2)
	d := &fakeDispatcher{results: map[string][]dispatch.Result{
		item.ID: {
			{Success: false, StatusCode: 500, ErrorCategory: model.ErrorCategoryHTTPStatus, Retryable: true},
			{Success: false, StatusCode: 500, ErrorCategory: model.ErrorCategoryHTTPStatus, Retryable: true},
		},
	}}
	h := &fakeHistory{}
	dl := &fakeDeadLetter{}
	cfg := DefaultConfig()
	cfg.ProcessingInterval = 10 * time.Millisecond
	cfg.JitterCapMs = 0
	q := New(cfg, d, h, dl, testlib.MakeLogger(t))

	require.NoError(t, q.Enqueue(item))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	waitFor(t, 2*time.Second, func() bool { return q.Stats().Snapshot().DeadLettered == 1 })
	require.Equal(t, model.DeliveryStatusDeadLettered, item.Status)
	require.Len(t, dl.items, 1)
}

func TestQueueRejectsWhenFull(t *testing.T) {
	d := &fakeDispatcher{results: map[string][]dispatch.Result{}}
	h := &fakeHistory{}
	dl := &fakeDeadLetter{}
	cfg := DefaultConfig()
	cfg.MaxQueueSize = 1
	q := New(cfg, d, h, dl, testlib.MakeLogger(t))

	require.NoError(t, q.Enqueue(testItem(3)))
	err := q.Enqueue(testItem(3))
	require.Error(t, err)
	require.Equal(t, "queue-full", err.Error())
}

func TestQueueStatusReflectsLaneCounts(t *testing.T) {
	d := &fakeDispatcher{results: map[string][]dispatch.Result{}}
	h := &fakeHistory{}
	dl := &fakeDeadLetter{}
	q := New(DefaultConfig(), d, h, dl, testlib.MakeLogger(t))

	high := testItem(3)
	high.Priority = model.PriorityHigh
	require.NoError(t, q.Enqueue(high))

	status := q.Status()
	require.Equal(t, 1, status[model.PriorityHigh])
	require.Equal(t, 0, status[model.PriorityMedium])
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	d1 := backoffDelay(1000, 2, 1, 0, 300*time.Second)
	d2 := backoffDelay(1000, 2, 2, 0, 300*time.Second)
	require.Equal(t, time.Second, d1)
	require.Equal(t, 2*time.Second, d2)

	capped := backoffDelay(1000, 2, 30, 0, 300*time.Second)
	require.Equal(t, 300*time.Second, capped)
}

package pipeline

import (
	"context"
	"testing"

	"github.com/relaydock/docrelay/internal/classify"
	"github.com/relaydock/docrelay/internal/queue"
	"github.com/relaydock/docrelay/internal/router"
	"github.com/relaydock/docrelay/internal/stats"
	"github.com/relaydock/docrelay/internal/transform"
	"github.com/relaydock/docrelay/model"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mutations []*model.MutationRecord
}

func (f *fakeSource) Stream(ctx context.Context, cursor *model.Cursor) (<-chan *model.MutationRecord, <-chan error) {
	out := make(chan *model.MutationRecord, len(f.mutations))
	errs := make(chan error, 1)
	for _, m := range f.mutations {
		out <- m
	}
	close(out)
	close(errs)
	return out, errs
}

type fakeRegistry struct {
	subs []*model.Subscription
}

func (f *fakeRegistry) Snapshot() []*model.Subscription { return f.subs }

type fakeQueue struct {
	enqueued []*model.DeliveryItem
	full     bool
}

func (f *fakeQueue) Enqueue(item *model.DeliveryItem) error {
	if f.full {
		return queue.ErrQueueFull{}
	}
	f.enqueued = append(f.enqueued, item)
	return nil
}

type fakeEventStore struct {
	recorded map[string]bool
}

func (f *fakeEventStore) RecordEvent(event *model.Event, sourceID, fingerprint string, mutation *model.MutationRecord) (bool, error) {
	if f.recorded == nil {
		f.recorded = make(map[string]bool)
	}
	key := sourceID + "|" + fingerprint
	if f.recorded[key] {
		return false, nil
	}
	f.recorded[key] = true
	return true, nil
}

type fakeCursorStore struct {
	cursor *model.Cursor
}

func (f *fakeCursorStore) SetCursor(cursor *model.Cursor) error {
	f.cursor = cursor
	return nil
}

func TestPipelineHandleEnqueuesMatchedSubscriptions(t *testing.T) {
	sub := model.NewSubscription("sub", "https://example.com/hook", []string{"issue.*"})
	reg := &fakeRegistry{subs: []*model.Subscription{sub}}
	q := &fakeQueue{}
	events := &fakeEventStore{}
	cursors := &fakeCursorStore{}

	mutation := &model.MutationRecord{
		ResumeToken:            "abc123",
		ClusterTimestampMillis: 1000,
		Collection:             "issues",
		Operation:              model.OperationInsert,
		DocumentKey:            "doc1",
		PostImage:              map[string]interface{}{"title": "hello"},
	}

	source := &fakeSource{mutations: []*model.MutationRecord{mutation}}
	logger := logrus.New()

	p := New(source, classify.New(), router.New(reg), transform.New("docrelay", "1.0", "test"),
		q, events, cursors, stats.New(), logger, false)

	err := p.Run(context.Background(), model.NewCursor(""))
	require.NoError(t, err)
	require.Len(t, q.enqueued, 1)
	require.Equal(t, sub.ID, q.enqueued[0].SubscriptionID)
	require.NotEmpty(t, q.enqueued[0].Payload.Webhook.DeliveryID)
	require.Equal(t, "abc123", cursors.cursor.Token)
}

func TestPipelineHandleSkipsDuplicateMutation(t *testing.T) {
	sub := model.NewSubscription("sub", "https://example.com/hook", []string{"issue.*"})
	reg := &fakeRegistry{subs: []*model.Subscription{sub}}
	q := &fakeQueue{}
	events := &fakeEventStore{}
	cursors := &fakeCursorStore{}

	mutation := &model.MutationRecord{
		ResumeToken:            "dup",
		ClusterTimestampMillis: 1000,
		Collection:             "issues",
		Operation:              model.OperationInsert,
		DocumentKey:            "doc1",
		PostImage:              map[string]interface{}{"title": "hello"},
	}

	p := New(&fakeSource{}, classify.New(), router.New(reg), transform.New("docrelay", "1.0", "test"),
		q, events, cursors, stats.New(), logrus.New(), false)

	require.NoError(t, p.handle(context.Background(), mutation))
	require.NoError(t, p.handle(context.Background(), mutation))
	require.Len(t, q.enqueued, 1)
}

func TestPipelineHandleHoldsCursorWhenQueueFull(t *testing.T) {
	sub := model.NewSubscription("sub", "https://example.com/hook", []string{"issue.*"})
	reg := &fakeRegistry{subs: []*model.Subscription{sub}}
	q := &fakeQueue{full: true}
	events := &fakeEventStore{}
	cursors := &fakeCursorStore{}

	mutation := &model.MutationRecord{
		ResumeToken:            "full1",
		ClusterTimestampMillis: 1000,
		Collection:             "issues",
		Operation:              model.OperationInsert,
		DocumentKey:            "doc1",
		PostImage:              map[string]interface{}{"title": "hello"},
	}

	p := New(&fakeSource{}, classify.New(), router.New(reg), transform.New("docrelay", "1.0", "test"),
		q, events, cursors, stats.New(), logrus.New(), false)

	require.Error(t, p.handle(context.Background(), mutation))
	require.Nil(t, cursors.cursor)
	require.Empty(t, q.enqueued)
}

func TestPipelineHandleAdvancesCursorOnDropOnOverflow(t *testing.T) {
	sub := model.NewSubscription("sub", "https://example.com/hook", []string{"issue.*"})
	reg := &fakeRegistry{subs: []*model.Subscription{sub}}
	q := &fakeQueue{full: true}
	events := &fakeEventStore{}
	cursors := &fakeCursorStore{}

	mutation := &model.MutationRecord{
		ResumeToken:            "full2",
		ClusterTimestampMillis: 1000,
		Collection:             "issues",
		Operation:              model.OperationInsert,
		DocumentKey:            "doc1",
		PostImage:              map[string]interface{}{"title": "hello"},
	}

	p := New(&fakeSource{}, classify.New(), router.New(reg), transform.New("docrelay", "1.0", "test"),
		q, events, cursors, stats.New(), logrus.New(), true)

	require.NoError(t, p.handle(context.Background(), mutation))
	require.Equal(t, "full2", cursors.cursor.Token)
	require.Empty(t, q.enqueued)
}

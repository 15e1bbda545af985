package deadletter

import (
	"testing"

	"github.com/relaydock/docrelay/internal/store"
	"github.com/relaydock/docrelay/internal/testlib"
	"github.com/relaydock/docrelay/model"
	"github.com/stretchr/testify/require"
)

func testDeliveryItem() *model.DeliveryItem {
	return &model.DeliveryItem{
		ID:             model.NewID(),
		SubscriptionID: model.NewID(),
		Attempts:       5,
		MaxAttempts:    5,
		Payload:        &model.Payload{Event: "issue.created"},
	}
}

func TestAddAndList(t *testing.T) {
	sqlStore := store.MakeTestSQLStore(t, testlib.MakeLogger(t))
	d, err := New(sqlStore, DefaultCacheSize, DefaultRetentionDays, testlib.MakeLogger(t))
	require.NoError(t, err)

	item := testDeliveryItem()
	require.NoError(t, d.Add(item, "max attempts exceeded"))

	entries, err := d.List(&model.ListDeadLetterRequest{Paging: model.AllPagesNotDeleted()})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, item.ID, entries[0].Delivery.ID)
}

func TestRetryResetsAttemptsAndRemovesEntry(t *testing.T) {
	sqlStore := store.MakeTestSQLStore(t, testlib.MakeLogger(t))
	d, err := New(sqlStore, DefaultCacheSize, DefaultRetentionDays, testlib.MakeLogger(t))
	require.NoError(t, err)

	item := testDeliveryItem()
	require.NoError(t, d.Add(item, "max attempts exceeded"))

	entries, err := d.List(&model.ListDeadLetterRequest{Paging: model.AllPagesNotDeleted()})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	retried, err := d.Retry(entries[0].ID)
	require.NoError(t, err)
	require.Equal(t, 0, retried.Attempts)
	require.True(t, retried.RetryFromDeadLetter)

	remaining, err := d.List(&model.ListDeadLetterRequest{Paging: model.AllPagesNotDeleted()})
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestRetryUnknownEntryReturnsNotFound(t *testing.T) {
	sqlStore := store.MakeTestSQLStore(t, testlib.MakeLogger(t))
	d, err := New(sqlStore, DefaultCacheSize, DefaultRetentionDays, testlib.MakeLogger(t))
	require.NoError(t, err)

	_, err = d.Retry("missing-id")
	require.Error(t, err)
	require.IsType(t, &model.NotFoundError{}, err)
}

func TestClearRemovesAllEntries(t *testing.T) {
	sqlStore := store.MakeTestSQLStore(t, testlib.MakeLogger(t))
	d, err := New(sqlStore, DefaultCacheSize, DefaultRetentionDays, testlib.MakeLogger(t))
	require.NoError(t, err)

	require.NoError(t, d.Add(testDeliveryItem(), "reason"))
	require.NoError(t, d.Add(testDeliveryItem(), "reason"))
	require.NoError(t, d.Clear())

	entries, err := d.List(&model.ListDeadLetterRequest{Paging: model.AllPagesNotDeleted()})
	require.NoError(t, err)
	require.Empty(t, entries)
}

package registry

import (
	"testing"
	"time"

	"github.com/relaydock/docrelay/internal/store"
	"github.com/relaydock/docrelay/internal/testlib"
	"github.com/relaydock/docrelay/model"
	"github.com/stretchr/testify/require"
)

func TestRegistryUpsertAndFind(t *testing.T) {
	logger := testlib.MakeLogger(t)
	sqlStore := store.MakeTestSQLStore(t, logger)
	r := New(sqlStore, logger)
	require.NoError(t, r.Hydrate())

	sub := model.NewSubscription("Issue Watcher", "https://example.com/hook", []string{"issue.*"})
	require.NoError(t, r.Upsert(sub, true))

	require.Equal(t, sub, r.FindByID(sub.ID))
	require.Equal(t, sub, r.FindByName("Issue Watcher"))

	active, inactive := r.Count()
	require.EqualValues(t, 1, active)
	require.EqualValues(t, 0, inactive)
}

func TestRegistryRemove(t *testing.T) {
	logger := testlib.MakeLogger(t)
	sqlStore := store.MakeTestSQLStore(t, logger)
	r := New(sqlStore, logger)
	require.NoError(t, r.Hydrate())

	sub := model.NewSubscription("Will Be Removed", "https://example.com/hook", []string{"*"})
	require.NoError(t, r.Upsert(sub, true))
	require.NoError(t, r.Remove(sub.ID))

	require.Nil(t, r.FindByID(sub.ID))
}

func TestRegistryBroadcastsChanges(t *testing.T) {
	logger := testlib.MakeLogger(t)
	sqlStore := store.MakeTestSQLStore(t, logger)
	r := New(sqlStore, logger)
	require.NoError(t, r.Hydrate())

	events, cancel := r.Subscribe()
	defer cancel()

	sub := model.NewSubscription("Notify Me", "https://example.com/hook", []string{"*"})
	require.NoError(t, r.Upsert(sub, true))

	select {
	case event := <-events:
		require.Equal(t, ChangeUpsert, event.Kind)
		require.Equal(t, sub.ID, event.SubscriptionID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}

func TestRegistryListFiltersByActiveAndName(t *testing.T) {
	logger := testlib.MakeLogger(t)
	sqlStore := store.MakeTestSQLStore(t, logger)
	r := New(sqlStore, logger)
	require.NoError(t, r.Hydrate())

	active := model.NewSubscription("Active One", "https://example.com/a", []string{"*"})
	inactive := model.NewSubscription("Inactive One", "https://example.com/b", []string{"*"})
	inactive.Active = false
	require.NoError(t, r.Upsert(active, true))
	require.NoError(t, r.Upsert(inactive, true))

	activeOnly := true
	results := r.List(&model.ListSubscriptionsRequest{Active: &activeOnly, Paging: model.AllPagesNotDeleted()})
	require.Len(t, results, 1)
	require.Equal(t, active.ID, results[0].ID)

	byName := r.List(&model.ListSubscriptionsRequest{NameSubstring: "inactive", Paging: model.AllPagesNotDeleted()})
	require.Len(t, byName, 1)
	require.Equal(t, inactive.ID, byName[0].ID)
}

package router

import (
	"testing"

	"github.com/relaydock/docrelay/model"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	subs []*model.Subscription
}

func (f *fakeRegistry) Snapshot() []*model.Subscription { return f.subs }

func newSub(name, url string, events []string) *model.Subscription {
	return model.NewSubscription(name, url, events)
}

func TestRouteWildcardAndExact(t *testing.T) {
	sa := newSub("Sa", "https://a.example/w", []string{"*"})
	sb := newSub("Sb", "https://b.example/w", []string{"project.created"})
	r := New(&fakeRegistry{subs: []*model.Subscription{sa, sb}})

	mutation := &model.MutationRecord{Collection: "projects", Operation: model.OperationInsert, PostImage: map[string]interface{}{"_id": "P1"}}
	event := &model.Event{EventType: "project.created", EntityKind: "project", Collection: "projects"}

	matches := r.Route(mutation, event)
	require.Len(t, matches, 2)
}

func TestRouteFilterExclusion(t *testing.T) {
	sub := newSub("S2", "https://h.example/w", []string{"issue.*"})
	sub.Filters = model.SubscriptionFilters{Projects: []string{"P1"}}
	r := New(&fakeRegistry{subs: []*model.Subscription{sub}})

	mutation := &model.MutationRecord{Collection: "issues", Operation: model.OperationInsert, PostImage: map[string]interface{}{"_id": "I1", "space": "P2"}}
	event := &model.Event{EventType: "issue.created", EntityKind: "issue", Collection: "issues"}

	matches := r.Route(mutation, event)
	require.Empty(t, matches)

	snapshot := r.Stats().Snapshot()
	require.EqualValues(t, 1, snapshot.Dropped)
}

func TestRouteFilterMatchesOnSpaceField(t *testing.T) {
	sub := newSub("S2b", "https://h.example/w", []string{"issue.*"})
	sub.Filters = model.SubscriptionFilters{Projects: []string{"P1"}}
	r := New(&fakeRegistry{subs: []*model.Subscription{sub}})

	mutation := &model.MutationRecord{Collection: "issues", Operation: model.OperationInsert, PostImage: map[string]interface{}{"_id": "I1", "space": "P1"}}
	event := &model.Event{EventType: "issue.created", EntityKind: "issue", Collection: "issues"}

	require.Len(t, r.Route(mutation, event), 1)
}

func TestRouteInactiveSubscriptionExcluded(t *testing.T) {
	sub := newSub("Inactive", "https://h.example/w", []string{"*"})
	sub.Active = false
	r := New(&fakeRegistry{subs: []*model.Subscription{sub}})

	mutation := &model.MutationRecord{Collection: "issues", Operation: model.OperationInsert}
	event := &model.Event{EventType: "issue.created"}

	require.Empty(t, r.Route(mutation, event))
}

func TestRouteCollectionFilter(t *testing.T) {
	sub := newSub("CollectionScoped", "https://h.example/w", []string{"*"})
	sub.Filters = model.SubscriptionFilters{Collections: []string{"projects"}}
	r := New(&fakeRegistry{subs: []*model.Subscription{sub}})

	mutation := &model.MutationRecord{Collection: "issues", Operation: model.OperationInsert}
	event := &model.Event{EventType: "issue.created"}

	require.Empty(t, r.Route(mutation, event))
}

func TestRouteTagSetIntersection(t *testing.T) {
	sub := newSub("TagScoped", "https://h.example/w", []string{"*"})
	sub.Filters = model.SubscriptionFilters{Tags: []string{"urgent"}}
	r := New(&fakeRegistry{subs: []*model.Subscription{sub}})

	mutation := &model.MutationRecord{
		Collection: "issues",
		Operation:  model.OperationInsert,
		PostImage:  map[string]interface{}{"tags": []interface{}{"urgent", "backend"}},
	}
	event := &model.Event{EventType: "issue.created"}

	require.Len(t, r.Route(mutation, event), 1)
}

func TestRouteRecordsStatsByCollectionAndEventType(t *testing.T) {
	sub := newSub("Watcher", "https://h.example/w", []string{"*"})
	r := New(&fakeRegistry{subs: []*model.Subscription{sub}})

	mutation := &model.MutationRecord{Collection: "issues", Operation: model.OperationInsert}
	event := &model.Event{EventType: "issue.created"}
	r.Route(mutation, event)

	snapshot := r.Stats().Snapshot()
	require.EqualValues(t, 1, snapshot.ByCollection["issues"])
	require.EqualValues(t, 1, snapshot.ByEventType["issue.created"])
}

// Package router implements the Router: for each mutation it produces the
// ordered set of subscriptions whose patterns and filters match (spec
// §4.4), consulting the Subscription Registry and updating routing
// statistics atomically.
package router

import (
	"sync"

	"github.com/relaydock/docrelay/model"
)

// Registry is the read surface the Router consults. It is satisfied by
// *registry.Registry.
type Registry interface {
	Snapshot() []*model.Subscription
}

// Stats accumulates routing counters: by collection, by event type,
// dropped (zero-match) events, and errors. All fields are guarded by mu;
// callers must use the accessor methods rather than touching fields
// directly (spec §5 "Statistics: atomic counters").
type Stats struct {
	mu          sync.Mutex
	byCollection map[string]int64
	byEventType  map[string]int64
	dropped      int64
	errors       int64
}

// NewStats constructs an empty routing-statistics accumulator.
func NewStats() *Stats {
	return &Stats{
		byCollection: make(map[string]int64),
		byEventType:  make(map[string]int64),
	}
}

func (s *Stats) recordRouted(collection, eventType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCollection[collection]++
	s.byEventType[eventType]++
}

func (s *Stats) recordDropped(collection, eventType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCollection[collection]++
	s.byEventType[eventType]++
	s.dropped++
}

func (s *Stats) recordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
}

// StatsSnapshot is a point-in-time copy of Stats safe to read without
// holding its mutex.
type StatsSnapshot struct {
	ByCollection map[string]int64
	ByEventType  map[string]int64
	Dropped      int64
	Errors       int64
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := StatsSnapshot{
		ByCollection: make(map[string]int64, len(s.byCollection)),
		ByEventType:  make(map[string]int64, len(s.byEventType)),
		Dropped:      s.dropped,
		Errors:       s.errors,
	}
	for k, v := range s.byCollection {
		snapshot.ByCollection[k] = v
	}
	for k, v := range s.byEventType {
		snapshot.ByEventType[k] = v
	}
	return snapshot
}

// Router matches a classified mutation against the live Subscription
// Registry snapshot.
type Router struct {
	registry Registry
	stats    *Stats
}

// New constructs a Router over the given registry.
func New(reg Registry) *Router {
	return &Router{registry: reg, stats: NewStats()}
}

// Stats returns the Router's routing-statistics accumulator.
func (r *Router) Stats() *Stats {
	return r.stats
}

// Route returns the ordered set of subscriptions matching mutation/event,
// applying the rules of spec §4.4 in order: active, pattern match,
// declared collection filter, declared attribute filters. Ties are
// resolved by registry snapshot order, which callers must not depend on.
func (r *Router) Route(mutation *model.MutationRecord, event *model.Event) []*model.Subscription {
	snapshot := r.registry.Snapshot()
	matches := make([]*model.Subscription, 0, len(snapshot))

	for _, sub := range snapshot {
		if !sub.Active {
			continue
		}
		if !sub.MatchesAny(event.EventType) {
			continue
		}
		if len(sub.Filters.Collections) > 0 && !containsString(sub.Filters.Collections, mutation.Collection) {
			continue
		}
		if !matchesAttributeFilters(sub.Filters, mutation.Image()) {
			continue
		}
		matches = append(matches, sub)
	}

	if len(matches) == 0 {
		r.stats.recordDropped(mutation.Collection, event.EventType)
	} else {
		r.stats.recordRouted(mutation.Collection, event.EventType)
	}
	return matches
}

// matchesAttributeFilters applies the AND-across-filter-kinds,
// OR-within-each-filter's-value-set rule of spec §4.4 rule 4. A
// subscription with no declared attribute filters always matches.
func matchesAttributeFilters(filters model.SubscriptionFilters, image map[string]interface{}) bool {
	if len(filters.Projects) > 0 && !fieldMatchesAny(image, []string{"project", "projectId", "space"}, filters.Projects) {
		return false
	}
	if len(filters.Statuses) > 0 && !fieldMatchesAny(image, []string{"status"}, filters.Statuses) {
		return false
	}
	if len(filters.Priorities) > 0 && !fieldMatchesAny(image, []string{"priority"}, filters.Priorities) {
		return false
	}
	if len(filters.Assignees) > 0 && !fieldMatchesAny(image, []string{"assignee", "assignees"}, filters.Assignees) {
		return false
	}
	if len(filters.Tags) > 0 && !fieldMatchesAny(image, []string{"tags", "labels"}, filters.Tags) {
		return false
	}
	return true
}

// fieldMatchesAny reports whether any of the given document keys holds a
// value intersecting wanted. A scalar value matches if it equals any
// wanted entry; a slice value matches if its set intersects wanted
// (the tag-match rule of spec §4.4 generalized to every filter kind).
func fieldMatchesAny(image map[string]interface{}, keys []string, wanted []string) bool {
	if image == nil {
		return false
	}
	for _, key := range keys {
		value, ok := image[key]
		if !ok {
			continue
		}
		if valueMatchesAny(value, wanted) {
			return true
		}
	}
	return false
}

func valueMatchesAny(value interface{}, wanted []string) bool {
	switch v := value.(type) {
	case string:
		return containsString(wanted, v)
	case []string:
		for _, item := range v {
			if containsString(wanted, item) {
				return true
			}
		}
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && containsString(wanted, s) {
				return true
			}
		}
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

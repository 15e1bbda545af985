// Package registry implements the Subscription Registry: an in-memory
// cache of active and inactive subscriptions that hydrates from the
// persistent store at startup, writes through on every mutation, and
// broadcasts a change notification to Subscribe listeners. The Router does
// not listen; it reads a fresh Snapshot on every routing decision.
package registry

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/relaydock/docrelay/model"
	"github.com/sirupsen/logrus"
)

// Store is the persistence surface the Registry writes through to. It is
// satisfied by *store.SQLStore.
type Store interface {
	CreateSubscription(sub *model.Subscription) error
	UpdateSubscription(sub *model.Subscription) error
	GetSubscriptions(request *model.ListSubscriptionsRequest) ([]*model.Subscription, error)
	DeleteSubscription(id string) error
}

// ChangeKind identifies what happened to a subscription in a ChangeEvent.
type ChangeKind string

const (
	ChangeUpsert ChangeKind = "upsert"
	ChangeRemove ChangeKind = "remove"
)

// ChangeEvent is the "changed" push notification delivered to Subscribe
// listeners.
type ChangeEvent struct {
	Kind           ChangeKind
	SubscriptionID string
	Subscription   *model.Subscription
}

// Registry is the in-memory map {id -> Subscription} described by spec
// §4.3. Reads share the RWMutex's read lock with each other; writers
// go through the store first and only then update the in-memory view, so
// a failed write never leaves the cache inconsistent with the store.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*model.Subscription
	order []string

	store  Store
	logger logrus.FieldLogger

	listenersMu sync.Mutex
	listeners   map[int]chan ChangeEvent
	nextListener int
}

// New constructs a Registry backed by store. Callers must call Hydrate
// before routing any mutation.
func New(store Store, logger logrus.FieldLogger) *Registry {
	return &Registry{
		byID:      make(map[string]*model.Subscription),
		store:     store,
		logger:    logger.WithField("component", "registry"),
		listeners: make(map[int]chan ChangeEvent),
	}
}

// Hydrate loads every non-deleted subscription from the store into the
// in-memory map, in the store's own creation order, establishing the
// insertion order Route snapshots iterate in.
func (r *Registry) Hydrate() error {
	subs, err := r.store.GetSubscriptions(&model.ListSubscriptionsRequest{Paging: model.AllPagesNotDeleted()})
	if err != nil {
		return errors.Wrap(err, "failed to hydrate subscription registry")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]*model.Subscription, len(subs))
	r.order = make([]string, 0, len(subs))
	for _, sub := range subs {
		r.byID[sub.ID] = sub
		r.order = append(r.order, sub.ID)
	}
	r.logger.WithField("count", len(subs)).Info("hydrated subscription registry")
	return nil
}

// FindByID returns the subscription with the given id, or nil if absent.
func (r *Registry) FindByID(id string) *model.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// FindByName returns the subscription with the given unique name, or nil
// if absent.
func (r *Registry) FindByName(name string) *model.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if sub := r.byID[id]; sub.Name == name {
			return sub
		}
	}
	return nil
}

// Snapshot returns the live set of subscriptions in registry insertion
// order. Per spec §4.4 "Ties", callers must not depend on this order
// beyond it being stable for the duration of one Route call.
func (r *Registry) Snapshot() []*model.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Subscription, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// List applies an in-memory filter over the live snapshot, mirroring the
// store's GetSubscriptions filter semantics without round-tripping to the
// database.
func (r *Registry) List(request *model.ListSubscriptionsRequest) []*model.Subscription {
	all := r.Snapshot()
	out := make([]*model.Subscription, 0, len(all))
	for _, sub := range all {
		if request.Active != nil && sub.Active != *request.Active {
			continue
		}
		if request.NameSubstring != "" && !strings.Contains(strings.ToLower(sub.Name), strings.ToLower(request.NameSubstring)) {
			continue
		}
		if len(request.Events) > 0 && !declaresAny(sub, request.Events) {
			continue
		}
		out = append(out, sub)
	}
	return applyPaging(out, request.Paging)
}

// Count reports active/inactive totals, satisfying the invariant
// countActive + countInactive == totalSubscriptions.
func (r *Registry) Count() (active, inactive int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if r.byID[id].Active {
			active++
		} else {
			inactive++
		}
	}
	return active, inactive
}

// Upsert validates sub, writes it through to the store (insert when
// isNew, otherwise update), updates the in-memory view, and broadcasts a
// ChangeEvent.
func (r *Registry) Upsert(sub *model.Subscription, isNew bool) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	var err error
	if isNew {
		err = r.store.CreateSubscription(sub)
	} else {
		err = r.store.UpdateSubscription(sub)
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.byID[sub.ID]; !exists {
		r.order = append(r.order, sub.ID)
	}
	r.byID[sub.ID] = sub
	r.mu.Unlock()

	r.broadcast(ChangeEvent{Kind: ChangeUpsert, SubscriptionID: sub.ID, Subscription: sub})
	return nil
}

// Remove deletes the subscription from the store and the in-memory view,
// broadcasting a ChangeEvent.
func (r *Registry) Remove(id string) error {
	if err := r.store.DeleteSubscription(id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.byID, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.broadcast(ChangeEvent{Kind: ChangeRemove, SubscriptionID: id})
	return nil
}

// Subscribe registers a listener for "changed" notifications, returning
// the channel and an unsubscribe function. The channel is buffered and
// sends are non-blocking: a slow listener misses events rather than
// stalling a writer.
func (r *Registry) Subscribe() (<-chan ChangeEvent, func()) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()

	id := r.nextListener
	r.nextListener++
	ch := make(chan ChangeEvent, 16)
	r.listeners[id] = ch

	cancel := func() {
		r.listenersMu.Lock()
		defer r.listenersMu.Unlock()
		if existing, ok := r.listeners[id]; ok {
			delete(r.listeners, id)
			close(existing)
		}
	}
	return ch, cancel
}

func (r *Registry) broadcast(event ChangeEvent) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	for _, ch := range r.listeners {
		select {
		case ch <- event:
		default:
			r.logger.WithField("subscriptionId", event.SubscriptionID).Warn("dropped registry change notification to slow listener")
		}
	}
}

func declaresAny(sub *model.Subscription, requested []string) bool {
	for _, want := range requested {
		for _, have := range sub.Events {
			if want == have {
				return true
			}
		}
	}
	return false
}

func applyPaging(subs []*model.Subscription, paging model.Paging) []*model.Subscription {
	if paging.PerPage == model.AllPerPage {
		return subs
	}
	start := paging.Page * paging.PerPage
	if start >= len(subs) {
		return []*model.Subscription{}
	}
	end := start + paging.PerPage
	if end > len(subs) {
		end = len(subs)
	}
	return subs[start:end]
}

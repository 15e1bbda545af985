// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

// Package api implements the relay's Management API surface (spec §6):
// subscription CRUD, delivery history and stats, dead-letter inspection
// and replay, the event-type catalog and replay-by-id, and health
// reporting. Authentication and network exposure belong to the caller
// mounting this router; this package owns request parsing, store
// wiring, and response shaping only.
package api

import (
	"github.com/relaydock/docrelay/internal/deadletter"
	"github.com/relaydock/docrelay/internal/dispatch"
	"github.com/relaydock/docrelay/internal/metrics"
	"github.com/relaydock/docrelay/internal/transform"
	"github.com/relaydock/docrelay/model"
	"github.com/sirupsen/logrus"
)

// Registry is the Subscription Registry surface the API reads and
// mutates subscriptions through. Satisfied by *registry.Registry.
type Registry interface {
	FindByID(id string) *model.Subscription
	FindByName(name string) *model.Subscription
	List(request *model.ListSubscriptionsRequest) []*model.Subscription
	Upsert(sub *model.Subscription, isNew bool) error
	Remove(id string) error
}

// Queue is the Delivery Queue surface a replayed event is re-enqueued
// onto. Satisfied by *queue.Queue.
type Queue interface {
	Enqueue(item *model.DeliveryItem) error
}

// Store is the durable read surface backing delivery history, stats,
// the event log, and replay snapshots. Satisfied by *store.SQLStore.
type Store interface {
	ListDeliveryAttemptsBySubscription(subscriptionID string, request *model.ListDeliveriesRequest) ([]*model.DeliveryAttemptRecord, error)
	CountDeliveryAttempts(subscriptionID string, request *model.ListDeliveriesRequest) (int64, error)
	SubscriptionStats(subscriptionID string, fromMillis, toMillis int64) (*model.SubscriptionStats, error)

	ListEvents(paging model.Paging) ([]*model.Event, error)
	GetEvent(id string) (*model.Event, error)
	GetEventMutation(id string) (*model.MutationRecord, error)

	GetCursor() (*model.Cursor, error)
	Ping() error
}

// Classifier supplies the entity-kind catalog for GET /api/events/catalog.
// Satisfied by *classify.Classifier.
type Classifier interface {
	Catalog() []model.EntityKindInfo
}

// QueueStatus reports current per-priority queue depth for health
// reporting. Satisfied by *queue.Queue.
type QueueStatus interface {
	Status() map[model.Priority]int
}

// Context provides every API handler with the dependencies and
// per-request state it needs to respond.
//
// It is cloned before each request, the same way teacher's api.Context
// is, allowing clones to apply per-request changes such as logger
// annotations without racing concurrent requests.
type Context struct {
	Registry    Registry
	Queue       Queue
	Store       Store
	DeadLetter  *deadletter.DeadLetter
	Classifier  Classifier
	Transformer *transform.Transformer
	Dispatcher  *dispatch.Dispatcher
	QueueStatus QueueStatus
	Metrics     *metrics.RelayMetrics
	RequestID   string
	Logger      logrus.FieldLogger
}

// Clone creates a shallow copy of context, allowing clones to apply
// per-request changes.
func (c *Context) Clone() *Context {
	return &Context{
		Registry:    c.Registry,
		Queue:       c.Queue,
		Store:       c.Store,
		DeadLetter:  c.DeadLetter,
		Classifier:  c.Classifier,
		Transformer: c.Transformer,
		Dispatcher:  c.Dispatcher,
		QueueStatus: c.QueueStatus,
		Metrics:     c.Metrics,
		Logger:      c.Logger,
	}
}

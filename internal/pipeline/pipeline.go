// Package pipeline wires the Change Source through Classification,
// Routing, Transformation, and the Delivery Queue into the single
// continuous loop described by spec §2's "Core Data Flow", fanning the
// per-subscription work for one mutation out across an errgroup the way
// teacher's cmd/tools/testwick fans out per-installation work.
package pipeline

import (
	"context"

	"github.com/pkg/errors"
	"github.com/relaydock/docrelay/internal/classify"
	"github.com/relaydock/docrelay/internal/queue"
	"github.com/relaydock/docrelay/internal/router"
	"github.com/relaydock/docrelay/internal/stats"
	"github.com/relaydock/docrelay/internal/transform"
	"github.com/relaydock/docrelay/model"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Source is the Change Source surface the Pipeline drives. Satisfied by
// *changesource.Source.
type Source interface {
	Stream(ctx context.Context, cursor *model.Cursor) (<-chan *model.MutationRecord, <-chan error)
}

// Registry is the subscription snapshot surface. The Pipeline holds no
// Registry itself; routing reads the registry through the Router.
type Registry interface {
	Snapshot() []*model.Subscription
}

// Queue is the Delivery Queue surface the Pipeline enqueues onto.
// Satisfied by *queue.Queue.
type Queue interface {
	Enqueue(item *model.DeliveryItem) error
}

// EventStore durably records that a mutation was classified and routed,
// rejecting a mutation already recorded under the same fingerprint.
// Satisfied by *store.SQLStore.
type EventStore interface {
	RecordEvent(event *model.Event, sourceID, fingerprint string, mutation *model.MutationRecord) (bool, error)
}

// CursorStore persists the Change Source's resume position. Satisfied by
// *store.SQLStore.
type CursorStore interface {
	SetCursor(cursor *model.Cursor) error
}

// Pipeline is the long-running loop: read one mutation, classify it,
// route it to matching subscriptions, transform and enqueue a Delivery
// Item per match, then advance the persisted cursor.
type Pipeline struct {
	source      Source
	classifier  *classify.Classifier
	router      *router.Router
	transformer *transform.Transformer
	queue       Queue
	events      EventStore
	cursors     CursorStore
	stats       *stats.Statistics
	logger      logrus.FieldLogger

	// dropOnOverflow selects the spec §5 backpressure policy for a full
	// Delivery Queue: false (the default) propagates queue-full back to
	// handle so the cursor does not advance past the mutation; true
	// records the mutation to the unroutable log and lets the cursor
	// advance anyway.
	dropOnOverflow bool
}

// New constructs a Pipeline over its component dependencies. dropOnOverflow
// selects the backpressure policy spec §5 describes for a full Delivery
// Queue; pass false for the default at-least-once behavior.
func New(source Source, classifier *classify.Classifier, rt *router.Router, transformer *transform.Transformer,
	q Queue, events EventStore, cursors CursorStore, statistics *stats.Statistics, logger logrus.FieldLogger, dropOnOverflow bool) *Pipeline {
	return &Pipeline{
		source:         source,
		classifier:     classifier,
		router:         rt,
		transformer:    transformer,
		queue:          q,
		events:         events,
		cursors:        cursors,
		stats:          statistics,
		logger:         logger.WithField("component", "pipeline"),
		dropOnOverflow: dropOnOverflow,
	}
}

// Run drives the pipeline from the given starting cursor until ctx is
// canceled or the Change Source reports a terminal error (e.g.
// changesource.ErrCursorExpired).
func (p *Pipeline) Run(ctx context.Context, cursor *model.Cursor) error {
	mutations, errs := p.source.Stream(ctx, cursor)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			return err
		case mutation, ok := <-mutations:
			if !ok {
				return nil
			}
			if err := p.handle(ctx, mutation); err != nil {
				p.logger.WithError(err).WithField("collection", mutation.Collection).Error("failed to process mutation")
			}
		}
	}
}

// handle classifies, routes, and fans a single mutation's matched
// subscriptions out across an errgroup, then advances the cursor once
// every fanned-out enqueue has returned (spec §3 invariant 1: the cursor
// only advances past a mutation once every matching subscription's
// Delivery Item has been durably enqueued).
func (p *Pipeline) handle(ctx context.Context, mutation *model.MutationRecord) error {
	event := p.classifier.Classify(mutation)

	isNew, err := p.events.RecordEvent(event, mutation.Collection, event.ID, mutation)
	if err != nil {
		return errors.Wrap(err, "failed to record event")
	}
	if !isNew {
		p.logger.WithField("event", event.ID).Debug("skipping already-processed mutation")
		return p.advanceCursor(mutation)
	}

	matches := p.router.Route(mutation, event)

	group, groupCtx := errgroup.WithContext(ctx)
	for _, sub := range matches {
		sub := sub
		group.Go(func() error {
			return p.deliverTo(groupCtx, mutation, event, sub)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	return p.advanceCursor(mutation)
}

// deliverTo transforms and enqueues one subscription's Delivery Item.
// On ErrQueueFull it either propagates the failure (the default, spec §5
// "the Change Source does NOT advance the cursor ... the record will be
// re-delivered on restart") or, when dropOnOverflow is enabled, records
// the mutation to the unroutable log and reports success so the mutation
// as a whole can still advance the cursor.
func (p *Pipeline) deliverTo(_ context.Context, mutation *model.MutationRecord, event *model.Event, sub *model.Subscription) error {
	payload := p.transformer.Transform(mutation, event, sub)
	item := model.NewDeliveryItem(sub, payload)
	payload.Webhook.DeliveryID = item.ID

	if err := p.queue.Enqueue(item); err != nil {
		if _, full := err.(queue.ErrQueueFull); full {
			if p.dropOnOverflow {
				p.recordUnroutable(mutation, event, sub)
				return nil
			}
			return errors.Wrapf(err, "delivery queue full for subscription %s", sub.ID)
		}
		return errors.Wrapf(err, "failed to enqueue delivery for subscription %s", sub.ID)
	}
	return nil
}

// recordUnroutable logs a mutation that could not be enqueued for sub
// because the Delivery Queue was full, under the opt-in drop-on-overflow
// policy (spec §5 "recorded to a separate 'unroutable' log").
func (p *Pipeline) recordUnroutable(mutation *model.MutationRecord, event *model.Event, sub *model.Subscription) {
	p.logger.WithFields(logrus.Fields{
		"log":          "unroutable",
		"subscription": sub.ID,
		"event":        event.ID,
		"collection":   mutation.Collection,
		"resumeToken":  mutation.ResumeToken,
	}).Warn("delivery queue full, recording mutation as unroutable and advancing cursor")
}

func (p *Pipeline) advanceCursor(mutation *model.MutationRecord) error {
	if err := p.cursors.SetCursor(model.NewCursor(mutation.ResumeToken)); err != nil {
		return errors.Wrap(err, "failed to advance cursor")
	}
	return nil
}

// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/relaydock/docrelay/internal/queue"
	"github.com/relaydock/docrelay/model"
)

// initEvent registers the event-type catalog and event-replay endpoints
// (spec §6 "event catalog" and "replay event").
func initEvent(apiRouter *mux.Router, context *Context) {
	addContext := func(handler contextHandlerFunc) *contextHandler {
		return newContextHandler(context, handler)
	}

	eventsRouter := apiRouter.PathPrefix("/events").Subrouter()
	eventsRouter.Handle("/catalog", addContext(handleGetEventCatalog)).Methods("GET")
	eventsRouter.Handle("", addContext(handleGetEvents)).Methods("GET")
	eventsRouter.Handle("/{event}/replay", addContext(handleReplayEvent)).Methods("POST")
}

// handleGetEventCatalog responds to GET /api/events/catalog, listing
// every entity kind the Classifier recognizes.
func handleGetEventCatalog(c *Context, w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, c.Classifier.Catalog())
}

// handleGetEvents responds to GET /api/events, listing recorded events
// most recent first.
func handleGetEvents(c *Context, w http.ResponseWriter, r *http.Request) {
	paging, err := parsePaging(r.URL)
	if err != nil {
		outputError(c, w, model.NewValidationError("%s", err.Error()))
		return
	}

	events, err := c.Store.ListEvents(paging)
	if err != nil {
		outputError(c, w, err)
		return
	}
	if events == nil {
		events = []*model.Event{}
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, events)
}

// replayEventRequest is the request body for POST /api/events/{event}/replay.
type replayEventRequest struct {
	SubscriptionIDs []string `json:"subscriptionIds"`
}

// handleReplayEvent responds to POST /api/events/{event}/replay,
// rebuilding the Payload from the recorded mutation snapshot and
// re-enqueuing one Delivery Item per requested subscription, bypassing
// routing so an operator can target a subscription that didn't originally
// match (spec §6 "replay event").
func handleReplayEvent(c *Context, w http.ResponseWriter, r *http.Request) {
	eventID := mux.Vars(r)["event"]
	c.Logger = c.Logger.WithField("event", eventID)

	event, err := c.Store.GetEvent(eventID)
	if err != nil {
		outputError(c, w, err)
		return
	}
	if event == nil {
		outputError(c, w, model.NewNotFoundError("event %q not found", eventID))
		return
	}

	mutation, err := c.Store.GetEventMutation(eventID)
	if err != nil {
		outputError(c, w, err)
		return
	}
	if mutation == nil {
		outputError(c, w, model.NewNotFoundError("event %q has no stored mutation snapshot to replay", eventID))
		return
	}

	var request replayEventRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil && err != io.EOF {
		outputError(c, w, model.NewValidationError("failed to decode replay request: %s", err.Error()))
		return
	}
	if len(request.SubscriptionIDs) == 0 {
		outputError(c, w, model.NewValidationError("subscriptionIds must not be empty"))
		return
	}

	queued := 0
	for _, subscriptionID := range request.SubscriptionIDs {
		sub := c.Registry.FindByID(subscriptionID)
		if sub == nil {
			c.Logger.WithField("subscription", subscriptionID).Warn("skipping replay for unknown subscription")
			continue
		}

		payload := c.Transformer.Transform(mutation, event, sub)
		item := model.NewDeliveryItem(sub, payload)
		payload.Webhook.DeliveryID = item.ID

		if err := c.Queue.Enqueue(item); err != nil {
			if _, full := err.(queue.ErrQueueFull); full {
				c.Logger.WithField("subscription", subscriptionID).Warn("delivery queue full, dropping replay")
				continue
			}
			outputError(c, w, err)
			return
		}
		queued++
	}

	if queued == 0 {
		outputError(c, w, model.NewValidationError("no requested subscription could be replayed to"))
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

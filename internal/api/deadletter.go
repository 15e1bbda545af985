// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/relaydock/docrelay/internal/queue"
	"github.com/relaydock/docrelay/model"
)

// initDeadLetter registers dead-letter inspection, retry, and clear
// endpoints (spec §6 "dead-letter management").
func initDeadLetter(apiRouter *mux.Router, context *Context) {
	addContext := func(handler contextHandlerFunc) *contextHandler {
		return newContextHandler(context, handler)
	}

	deadLetterRouter := apiRouter.PathPrefix("/deadletter").Subrouter()
	deadLetterRouter.Handle("", addContext(handleGetDeadLetterEntries)).Methods("GET")
	deadLetterRouter.Handle("", addContext(handleClearDeadLetterEntries)).Methods("DELETE")
	deadLetterRouter.Handle("/{entry}/retry", addContext(handleRetryDeadLetterEntry)).Methods("POST")
}

// handleGetDeadLetterEntries responds to GET /api/deadletter.
func handleGetDeadLetterEntries(c *Context, w http.ResponseWriter, r *http.Request) {
	paging, err := parsePaging(r.URL)
	if err != nil {
		outputError(c, w, model.NewValidationError("%s", err.Error()))
		return
	}

	query := r.URL.Query()
	request := &model.ListDeadLetterRequest{
		SubscriptionID: query.Get("subscriptionId"),
		EventType:      query.Get("eventType"),
		Paging:         paging,
	}

	entries, err := c.DeadLetter.List(request)
	if err != nil {
		outputError(c, w, err)
		return
	}
	if entries == nil {
		entries = []*model.DeadLetterEntry{}
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, entries)
}

// handleRetryDeadLetterEntry responds to POST
// /api/deadletter/{entry}/retry, re-enqueuing the dead-lettered delivery
// onto the Delivery Queue (spec §4.9 "retry(entryId) -> Delivery").
func handleRetryDeadLetterEntry(c *Context, w http.ResponseWriter, r *http.Request) {
	entryID := mux.Vars(r)["entry"]
	c.Logger = c.Logger.WithField("entry", entryID)

	item, err := c.DeadLetter.Retry(entryID)
	if err != nil {
		outputError(c, w, err)
		return
	}

	if err := c.Queue.Enqueue(item); err != nil {
		if _, full := err.(queue.ErrQueueFull); full {
			outputError(c, w, model.NewCapacityExhaustedError("delivery queue is full"))
			return
		}
		outputError(c, w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// handleClearDeadLetterEntries responds to DELETE /api/deadletter.
func handleClearDeadLetterEntries(c *Context, w http.ResponseWriter, r *http.Request) {
	if err := c.DeadLetter.Clear(); err != nil {
		outputError(c, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

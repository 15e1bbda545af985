// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/relaydock/docrelay/model"
)

// initSubscription registers subscription CRUD, test-delivery, delivery
// history, and stats endpoints (spec §6 "subscription management").
func initSubscription(apiRouter *mux.Router, context *Context) {
	addContext := func(handler contextHandlerFunc) *contextHandler {
		return newContextHandler(context, handler)
	}

	subscriptionsRouter := apiRouter.PathPrefix("/subscriptions").Subrouter()
	subscriptionsRouter.Handle("", addContext(handleGetSubscriptions)).Methods("GET")
	subscriptionsRouter.Handle("", addContext(handleCreateSubscription)).Methods("POST")

	subscriptionRouter := apiRouter.PathPrefix("/subscriptions/{subscription}").Subrouter()
	subscriptionRouter.Handle("", addContext(handleGetSubscription)).Methods("GET")
	subscriptionRouter.Handle("", addContext(handleUpdateSubscription)).Methods("PUT")
	subscriptionRouter.Handle("", addContext(handleDeleteSubscription)).Methods("DELETE")
	subscriptionRouter.Handle("/test", addContext(handleTestSubscriptionDelivery)).Methods("POST")
	subscriptionRouter.Handle("/deliveries", addContext(handleGetDeliveries)).Methods("GET")
	subscriptionRouter.Handle("/stats", addContext(handleGetSubscriptionStats)).Methods("GET")
}

// handleCreateSubscription responds to POST /api/subscriptions.
func handleCreateSubscription(c *Context, w http.ResponseWriter, r *http.Request) {
	request, err := model.NewCreateSubscriptionRequestFromReader(r)
	if err != nil {
		outputError(c, w, err)
		return
	}

	sub := request.ToSubscription()
	if err := c.Registry.Upsert(sub, true); err != nil {
		outputError(c, w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	outputJSON(c, w, sub)
}

// handleUpdateSubscription responds to PUT /api/subscriptions/{subscription}.
func handleUpdateSubscription(c *Context, w http.ResponseWriter, r *http.Request) {
	subscriptionID := mux.Vars(r)["subscription"]
	c.Logger = c.Logger.WithField("subscription", subscriptionID)

	sub := c.Registry.FindByID(subscriptionID)
	if sub == nil {
		outputError(c, w, model.NewNotFoundError("subscription %q not found", subscriptionID))
		return
	}

	request, err := model.NewUpdateSubscriptionRequestFromReader(r)
	if err != nil {
		outputError(c, w, err)
		return
	}
	request.Apply(sub)

	if err := c.Registry.Upsert(sub, false); err != nil {
		outputError(c, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, sub)
}

// handleGetSubscription responds to GET /api/subscriptions/{subscription}.
func handleGetSubscription(c *Context, w http.ResponseWriter, r *http.Request) {
	subscriptionID := mux.Vars(r)["subscription"]

	sub := c.Registry.FindByID(subscriptionID)
	if sub == nil {
		outputError(c, w, model.NewNotFoundError("subscription %q not found", subscriptionID))
		return
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, sub)
}

// handleGetSubscriptions responds to GET /api/subscriptions.
func handleGetSubscriptions(c *Context, w http.ResponseWriter, r *http.Request) {
	request := model.NewListSubscriptionsRequestFromURL(r.URL.Query())
	paging, err := parsePaging(r.URL)
	if err != nil {
		outputError(c, w, model.NewValidationError("%s", err.Error()))
		return
	}
	request.Paging = paging

	subs := c.Registry.List(request)
	if subs == nil {
		subs = []*model.Subscription{}
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, subs)
}

// handleDeleteSubscription responds to DELETE /api/subscriptions/{subscription}.
func handleDeleteSubscription(c *Context, w http.ResponseWriter, r *http.Request) {
	subscriptionID := mux.Vars(r)["subscription"]

	if sub := c.Registry.FindByID(subscriptionID); sub == nil {
		outputError(c, w, model.NewNotFoundError("subscription %q not found", subscriptionID))
		return
	}

	if err := c.Registry.Remove(subscriptionID); err != nil {
		outputError(c, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleTestSubscriptionDelivery responds to POST
// /api/subscriptions/{subscription}/test, dispatching one synthetic
// delivery directly through the HTTP Dispatcher without touching the
// Delivery Queue or Delivery History (spec §6 "test delivery: bypasses
// the queue, not recorded in delivery history").
func handleTestSubscriptionDelivery(c *Context, w http.ResponseWriter, r *http.Request) {
	subscriptionID := mux.Vars(r)["subscription"]

	sub := c.Registry.FindByID(subscriptionID)
	if sub == nil {
		outputError(c, w, model.NewNotFoundError("subscription %q not found", subscriptionID))
		return
	}

	payload := &model.Payload{
		ID:        model.NewID(),
		Event:     "test.ping",
		Timestamp: model.GetMillis(),
		Version:   model.PayloadVersion,
		Source:    model.PayloadSource{Service: "docrelay", Version: model.PayloadVersion},
		Data: model.PayloadData{
			ID:        "test",
			Type:      "test",
			Operation: "test",
		},
		Webhook: model.PayloadWebhook{
			ID:          sub.ID,
			Name:        sub.Name,
			URL:         sub.URL,
			Version:     model.PayloadVersion,
			DeliveryID:  model.NewID(),
			Attempt:     1,
			MaxAttempts: 1,
		},
	}
	item := model.NewDeliveryItem(sub, payload)

	result := c.Dispatcher.Attempt(r.Context(), item)

	attempt := &model.AttemptResult{
		Success:        result.Success,
		StatusCode:     result.StatusCode,
		DurationMillis: result.Duration.Milliseconds(),
		BodyPrefix:     result.BodyPrefix,
		Error:          result.Error,
		Retryable:      result.Retryable,
	}
	if len(result.Headers) > 0 {
		attempt.Headers = make(map[string]string, len(result.Headers))
		for k := range result.Headers {
			attempt.Headers[k] = result.Headers.Get(k)
		}
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, attempt)
}

// handleGetDeliveries responds to GET
// /api/subscriptions/{subscription}/deliveries.
func handleGetDeliveries(c *Context, w http.ResponseWriter, r *http.Request) {
	subscriptionID := mux.Vars(r)["subscription"]

	paging, err := parsePaging(r.URL)
	if err != nil {
		outputError(c, w, model.NewValidationError("%s", err.Error()))
		return
	}

	query := r.URL.Query()
	request := &model.ListDeliveriesRequest{
		Status: query.Get("status"),
		Paging: paging,
	}
	if v := query.Get("from"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			request.FromMillis = parsed
		}
	}
	if v := query.Get("to"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			request.ToMillis = parsed
		}
	}

	deliveries, err := c.Store.ListDeliveryAttemptsBySubscription(subscriptionID, request)
	if err != nil {
		outputError(c, w, err)
		return
	}
	if deliveries == nil {
		deliveries = []*model.DeliveryAttemptRecord{}
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, deliveries)
}

// handleGetSubscriptionStats responds to GET
// /api/subscriptions/{subscription}/stats?period=.
func handleGetSubscriptionStats(c *Context, w http.ResponseWriter, r *http.Request) {
	subscriptionID := mux.Vars(r)["subscription"]

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "7d"
	}
	from, to, err := model.PeriodWindow(period, time.Now())
	if err != nil {
		outputError(c, w, err)
		return
	}

	stats, err := c.Store.SubscriptionStats(subscriptionID, model.GetMillisAtTime(from), model.GetMillisAtTime(to))
	if err != nil {
		outputError(c, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, stats)
}

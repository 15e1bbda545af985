// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/relaydock/docrelay/model"
)

const (
	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
)

// initHealth registers the aggregate health endpoint (spec §6 "health").
func initHealth(apiRouter *mux.Router, context *Context) {
	apiRouter.Handle("/health", newContextHandler(context, handleGetHealth)).Methods("GET")
}

// handleGetHealth responds to GET /api/health, reporting the durable
// store's reachability, the persisted cursor's presence, and the
// Delivery Queue's current depth.
func handleGetHealth(c *Context, w http.ResponseWriter, r *http.Request) {
	components := make(map[string]model.ComponentHealth)
	overall := healthStatusHealthy

	if err := c.Store.Ping(); err != nil {
		components["store"] = model.ComponentHealth{Status: healthStatusDegraded, Message: err.Error()}
		overall = healthStatusDegraded
	} else {
		components["store"] = model.ComponentHealth{Status: healthStatusHealthy}
	}

	if cursor, err := c.Store.GetCursor(); err != nil {
		components["changeSource"] = model.ComponentHealth{Status: healthStatusDegraded, Message: err.Error()}
		overall = healthStatusDegraded
	} else if cursor == nil {
		components["changeSource"] = model.ComponentHealth{Status: healthStatusDegraded, Message: "no cursor persisted yet"}
	} else {
		components["changeSource"] = model.ComponentHealth{Status: healthStatusHealthy}
	}

	if c.QueueStatus != nil {
		depth := 0
		for _, n := range c.QueueStatus.Status() {
			depth += n
		}
		components["deliveryQueue"] = model.ComponentHealth{Status: healthStatusHealthy, Message: fmt.Sprintf("depth %d", depth)}
	}

	report := &model.HealthReport{Status: overall, Components: components}

	w.WriteHeader(http.StatusOK)
	outputJSON(c, w, report)
}

// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package api

import "github.com/gorilla/mux"

// Register mounts the relay's Management API on rootRouter, wrapping
// every handler with panic recovery the same way teacher wraps every
// handler with its own context/metrics middleware.
func Register(rootRouter *mux.Router, context *Context) {
	apiRouter := rootRouter.PathPrefix("/api").Subrouter()
	apiRouter.Use(recoveryMiddleware(context.Logger))

	initSubscription(apiRouter, context)
	initDeadLetter(apiRouter, context)
	initEvent(apiRouter, context)
	initHealth(apiRouter, context)
}

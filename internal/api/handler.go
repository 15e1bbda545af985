// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package api

import (
	"net/http"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/relaydock/docrelay/model"
	log "github.com/sirupsen/logrus"
)

type contextHandlerFunc func(c *Context, w http.ResponseWriter, r *http.Request)

type contextHandler struct {
	context     *Context
	handler     contextHandlerFunc
	handlerName string
}

func (h contextHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ww := NewWrappedWriter(w)
	context := h.context.Clone()
	context.RequestID = model.NewID()
	context.Logger = context.Logger.WithFields(log.Fields{
		"handler": h.handlerName,
		"method":  r.Method,
		"path":    r.URL.Path,
		"request": context.RequestID,
	})

	context.Logger.Debug("handling request")

	h.handler(context, ww, r)

	if context.Metrics != nil {
		elapsed := time.Since(start).Seconds()
		context.Metrics.ObserveAPIRequest(h.handlerName, r.Method, ww.StatusCode(), elapsed)
	}
}

// newContextHandler wraps handler in a contextHandler, deriving its
// reported name from the function's own symbol name for logging and
// metrics (spec §6 handlers are named after the operation they serve).
func newContextHandler(context *Context, handler contextHandlerFunc) *contextHandler {
	splitFuncName := strings.Split(runtime.FuncForPC(reflect.ValueOf(handler).Pointer()).Name(), ".")

	return &contextHandler{
		context:     context,
		handler:     handler,
		handlerName: splitFuncName[len(splitFuncName)-1],
	}
}

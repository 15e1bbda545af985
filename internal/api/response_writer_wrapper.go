// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

// wrappedWriter records the status code a handler wrote so contextHandler
// can report it to the logger and metrics after the handler returns.
type wrappedWriter struct {
	http.ResponseWriter
	statusCode        int
	statusCodeWritten bool
	hijacker          http.Hijacker
	flusher           http.Flusher
}

// NewWrappedWriter returns a new wrappedWriter around original.
func NewWrappedWriter(original http.ResponseWriter) *wrappedWriter {
	hijacker, _ := original.(http.Hijacker)
	flusher, _ := original.(http.Flusher)
	return &wrappedWriter{
		ResponseWriter: original,
		hijacker:       hijacker,
		flusher:        flusher,
	}
}

// StatusCode returns the last status code written, defaulting to 0 until
// a handler writes one.
func (rw *wrappedWriter) StatusCode() int {
	return rw.statusCode
}

// WriteHeader records and forwards statusCode.
func (rw *wrappedWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.statusCodeWritten = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Write forwards data, defaulting the recorded status to 200 if the
// handler never called WriteHeader explicitly.
func (rw *wrappedWriter) Write(data []byte) (int, error) {
	if !rw.statusCodeWritten {
		rw.statusCode = http.StatusOK
	}
	return rw.ResponseWriter.Write(data)
}

// Hijack calls through to the underlying writer's Hijack.
func (rw *wrappedWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if rw.hijacker == nil {
		return nil, nil, errors.New("hijacker interface not supported by the wrapped ResponseWriter")
	}
	return rw.hijacker.Hijack()
}

// Flush calls through to the underlying writer's Flush, if supported.
func (rw *wrappedWriter) Flush() {
	if rw.flusher != nil {
		rw.flusher.Flush()
	}
}

// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"github.com/relaydock/docrelay/model"
)

func parseInt(u *url.URL, name string, defaultValue int) (int, error) {
	valueStr := u.Query().Get(name)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to parse %s as integer", name)
	}
	return value, nil
}

func parseBool(u *url.URL, name string, defaultValue bool) (bool, error) {
	valueStr := u.Query().Get(name)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, errors.Wrapf(err, "failed to parse %s as boolean", name)
	}
	return value, nil
}

func parsePaging(u *url.URL) (model.Paging, error) {
	page, err := parseInt(u, "page", 0)
	if err != nil {
		return model.Paging{}, err
	}
	perPage, err := parseInt(u, "per_page", 100)
	if err != nil {
		return model.Paging{}, err
	}
	includeDeleted, err := parseBool(u, "include_deleted", false)
	if err != nil {
		return model.Paging{}, err
	}
	return model.Paging{Page: page, PerPage: perPage, IncludeDeleted: includeDeleted}, nil
}

// outputJSON writes value as the JSON response body. The caller is
// responsible for having already written the response status code.
func outputJSON(c *Context, w http.ResponseWriter, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		c.Logger.WithError(err).Error("failed to encode response body")
	}
}

// outputError writes an APIError body describing err, classifying it by
// its concrete domain-error type to pick the APIErrorCode (and therefore
// the HTTP status spec §7 requires) and falling back to ErrCodeInternal /
// 500 for anything the handler never classified.
func outputError(c *Context, w http.ResponseWriter, err error) {
	code := model.ErrCodeInternal
	switch err.(type) {
	case *model.ValidationError:
		code = model.ErrCodeValidation
	case *model.NotFoundError:
		code = model.ErrCodeNotFound
	case *model.ConflictError:
		code = model.ErrCodeConflict
	case *model.CapacityExhaustedError:
		code = model.ErrCodeCapacityExhausted
	}

	status := code.HTTPStatus()
	apiErr := model.NewAPIError(code, c.RequestID, err.Error())
	c.Logger.WithError(err).WithField("status", status).Warn("request failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(apiErr); encodeErr != nil {
		c.Logger.WithError(encodeErr).Error("failed to encode error response body")
	}
}

// recoveryMiddleware recovers a panicking handler into a 500 APIError
// response instead of crashing the process, logging the panic value the
// way every other handler logs its own failures.
func recoveryMiddleware(logger interface{ Error(args ...interface{}) }) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("recovered from panic handling request: ", rec)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(model.NewAPIError(model.ErrCodeInternal, "", "internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

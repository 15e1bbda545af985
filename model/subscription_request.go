package model

import (
	"net/http"
	"net/url"
)

// CreateSubscriptionRequest is the management-API body for "create
// subscription".
type CreateSubscriptionRequest struct {
	Name           string              `json:"name"`
	URL            string              `json:"url"`
	Secret         *string             `json:"secret,omitempty"`
	Events         []string            `json:"events"`
	Filters        SubscriptionFilters `json:"filters"`
	Active         *bool               `json:"active,omitempty"`
	RetryPolicy    *RetryPolicy        `json:"retryPolicy,omitempty"`
	TimeoutSeconds *int                `json:"timeoutSeconds,omitempty"`
	Headers        Headers             `json:"headers,omitempty"`
}

// NewCreateSubscriptionRequestFromReader decodes a CreateSubscriptionRequest
// from an HTTP request body, mirroring teacher's NewXFromReader helpers.
func NewCreateSubscriptionRequestFromReader(r *http.Request) (*CreateSubscriptionRequest, error) {
	var request CreateSubscriptionRequest
	if err := decodeJSON(r.Body, &request); err != nil {
		return nil, NewValidationError("failed to decode request: %s", err.Error())
	}
	return &request, nil
}

// ToSubscription materializes a validated Subscription from the request,
// applying defaults for any optional field left unset.
func (r *CreateSubscriptionRequest) ToSubscription() *Subscription {
	sub := NewSubscription(r.Name, r.URL, r.Events)
	sub.Secret = r.Secret
	sub.Filters = r.Filters
	if r.Active != nil {
		sub.Active = *r.Active
	}
	if r.RetryPolicy != nil {
		sub.RetryPolicy = *r.RetryPolicy
	}
	if r.TimeoutSeconds != nil {
		sub.TimeoutSeconds = *r.TimeoutSeconds
	}
	if r.Headers != nil {
		sub.Headers = r.Headers
	}
	return sub
}

// UpdateSubscriptionRequest is the management-API body for "update
// subscription"; every field is optional and only present fields are
// applied.
type UpdateSubscriptionRequest struct {
	Name           *string              `json:"name,omitempty"`
	URL            *string              `json:"url,omitempty"`
	Secret         *string              `json:"secret,omitempty"`
	Events         []string             `json:"events,omitempty"`
	Filters        *SubscriptionFilters `json:"filters,omitempty"`
	Active         *bool                `json:"active,omitempty"`
	RetryPolicy    *RetryPolicy         `json:"retryPolicy,omitempty"`
	TimeoutSeconds *int                 `json:"timeoutSeconds,omitempty"`
	Headers        Headers              `json:"headers,omitempty"`
}

// NewUpdateSubscriptionRequestFromReader decodes an UpdateSubscriptionRequest
// from an HTTP request body.
func NewUpdateSubscriptionRequestFromReader(r *http.Request) (*UpdateSubscriptionRequest, error) {
	var request UpdateSubscriptionRequest
	if err := decodeJSON(r.Body, &request); err != nil {
		return nil, NewValidationError("failed to decode request: %s", err.Error())
	}
	return &request, nil
}

// Apply mutates sub in place with every field the request set.
func (r *UpdateSubscriptionRequest) Apply(sub *Subscription) {
	if r.Name != nil {
		sub.Name = *r.Name
	}
	if r.URL != nil {
		sub.URL = *r.URL
	}
	if r.Secret != nil {
		sub.Secret = r.Secret
	}
	if r.Events != nil {
		sub.Events = r.Events
	}
	if r.Filters != nil {
		sub.Filters = *r.Filters
	}
	if r.Active != nil {
		sub.Active = *r.Active
	}
	if r.RetryPolicy != nil {
		sub.RetryPolicy = *r.RetryPolicy
	}
	if r.TimeoutSeconds != nil {
		sub.TimeoutSeconds = *r.TimeoutSeconds
	}
	if r.Headers != nil {
		sub.Headers = r.Headers
	}
	sub.UpdateAt = GetMillis()
}

// ListSubscriptionsRequest captures the "list subscriptions" filter and
// pagination parameters.
type ListSubscriptionsRequest struct {
	Active        *bool
	Events        []string
	NameSubstring string
	Paging
}

// NewListSubscriptionsRequestFromURL parses query parameters into a
// ListSubscriptionsRequest, mirroring teacher's parsePaging/parseString
// helpers in internal/api/helpers.go.
func NewListSubscriptionsRequestFromURL(values url.Values) *ListSubscriptionsRequest {
	request := &ListSubscriptionsRequest{
		NameSubstring: values.Get("name"),
		Paging:        Paging{Page: 0, PerPage: AllPerPage},
	}
	if v := values.Get("active"); v != "" {
		active := v == "true"
		request.Active = &active
	}
	if events, ok := values["events"]; ok {
		request.Events = events
	}
	return request
}

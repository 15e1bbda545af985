package model

import (
	"net/url"
)

// ListDeadLetterRequest filters dead-letter entries.
type ListDeadLetterRequest struct {
	SubscriptionID string
	EventType      string
	Paging
}

// ApplyToURL encodes the request as query parameters.
func (request *ListDeadLetterRequest) ApplyToURL(u *url.URL) {
	q := u.Query()
	if request.SubscriptionID != "" {
		q.Add("subscriptionId", request.SubscriptionID)
	}
	if request.EventType != "" {
		q.Add("eventType", request.EventType)
	}
	request.Paging.AddToQuery(q)
	u.RawQuery = q.Encode()
}

// DeadLetterEntry is a durable record of a permanently failed delivery
//. Exactly one entry exists per dead-lettered delivery
// until an operator removes it.
type DeadLetterEntry struct {
	ID                 string
	Delivery           *DeliveryItem
	SubscriptionID     string
	EventType          string
	FailureReason      string
	AttemptsConsumed   int
	DeadLetteredAtMillis int64
	RetryCount         int
	LastRetryOutcome   string
}

// NewDeadLetterEntry builds a DeadLetterEntry for an exhausted delivery.
func NewDeadLetterEntry(item *DeliveryItem, reason string) *DeadLetterEntry {
	eventType := ""
	if item.Payload != nil {
		eventType = item.Payload.Event
	}
	return &DeadLetterEntry{
		ID:                   NewID(),
		Delivery:             item,
		SubscriptionID:       item.SubscriptionID,
		EventType:            eventType,
		FailureReason:        reason,
		AttemptsConsumed:     item.Attempts,
		DeadLetteredAtMillis: GetMillis(),
	}
}

// ToRetryDelivery produces the delivery item that replay emits back into
// the Delivery Queue, with attempts reset to zero and the retry
// annotation set.
func (e *DeadLetterEntry) ToRetryDelivery() *DeliveryItem {
	retried := *e.Delivery
	retried.Attempts = 0
	retried.Status = DeliveryStatusQueued
	retried.LastError = ""
	retried.NextEligibleMillis = GetMillis()
	retried.RetryFromDeadLetter = true
	return &retried
}

package model

// DeliveryStatus is the state-machine position of a Delivery Item (spec
// §3, §4.6).
type DeliveryStatus string

const (
	DeliveryStatusQueued       DeliveryStatus = "queued"
	DeliveryStatusProcessing   DeliveryStatus = "processing"
	DeliveryStatusScheduled    DeliveryStatus = "scheduled"
	DeliveryStatusCompleted    DeliveryStatus = "completed"
	DeliveryStatusDeadLettered DeliveryStatus = "dead-lettered"
)

// DeliveryItem is an enqueued unit of work representing one
// (subscription, event) pair.
// Payload is treated as an immutable snapshot once the item is enqueued;
// callers must not mutate it in place.
type DeliveryItem struct {
	ID             string
	SubscriptionID string
	EventID        string
	Payload        *Payload
	URL            string
	Headers        map[string]string
	Secret         *string
	Priority       Priority

	Attempts    int
	MaxAttempts int
	BackoffMultiplier int
	InitialDelayMs    int

	CreateAtMillis   int64
	NextEligibleMillis int64
	LastError        string
	Status           DeliveryStatus

	RetryFromDeadLetter bool
}

// NewDeliveryItem builds a queued DeliveryItem for a matched
// (subscription, event) pair.
func NewDeliveryItem(sub *Subscription, payload *Payload) *DeliveryItem {
	now := GetMillis()
	return &DeliveryItem{
		ID:                 NewID(),
		SubscriptionID:     sub.ID,
		EventID:            payload.ID,
		Payload:            payload,
		URL:                sub.URL,
		Headers:            sub.Headers.GetHeaders(),
		Secret:             sub.Secret,
		Priority:           deliveryPriority(sub),
		Attempts:           0,
		MaxAttempts:        sub.RetryPolicy.MaxAttempts,
		BackoffMultiplier:  sub.RetryPolicy.BackoffMultiplier,
		InitialDelayMs:     sub.RetryPolicy.InitialDelayMs,
		CreateAtMillis:     now,
		NextEligibleMillis: now,
		Status:             DeliveryStatusQueued,
	}
}

// deliveryPriority derives a delivery item's scheduling class. Subscriptions
// do not declare a priority of their own, so the relay assigns MEDIUM
// uniformly, leaving the three-tier scheduling discipline available for
// operator-triggered high-priority replays (e.g. dead-letter retry, test
// delivery).
func deliveryPriority(sub *Subscription) Priority {
	return PriorityMedium
}

// IsTerminal reports whether the item has reached a status from which it
// will not be scheduled again without explicit operator action.
func (d *DeliveryItem) IsTerminal() bool {
	return d.Status == DeliveryStatusCompleted || d.Status == DeliveryStatusDeadLettered
}

// CanRetry reports whether the item may be rescheduled after a failed
// attempt.
func (d *DeliveryItem) CanRetry() bool {
	return d.Attempts < d.MaxAttempts
}

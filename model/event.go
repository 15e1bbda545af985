package model

import "fmt"

// Event is derived from a Mutation Record by the Classifier.
type Event struct {
	ID                     string
	EventType              string
	EntityKind             string
	SourceTimestampMillis  int64
	Collection             string
	Operation              Operation
}

// NewEvent builds an Event from a classified mutation. The event id is
// derived from the mutation's resume token and timestamp so the same
// mutation always yields the same id, which is the deduplication contract
// of spec §3 ("Event id uniquely identifies one mutation").
func NewEvent(mutation *MutationRecord, entityKind, operationKind string) *Event {
	eventType := fmt.Sprintf("%s.%s", entityKind, operationKind)
	return &Event{
		ID:                    NewEventID(mutation.ResumeToken, mutation.ClusterTimestampMillis),
		EventType:             eventType,
		EntityKind:            entityKind,
		SourceTimestampMillis: mutation.ClusterTimestampMillis,
		Collection:            mutation.Collection,
		Operation:             mutation.Operation,
	}
}

// EntityKindInfo describes a single entry in the Classifier's static
// collection → entityKind mapping.
type EntityKindInfo struct {
	Collection string
	EntityKind string
	Priority   EntityPriority
}

// EntityPriority is the Classifier's declared priority for an entity kind,
// distinct from Delivery Item Priority.
type EntityPriority string

const (
	EntityPriorityHigh   EntityPriority = "high"
	EntityPriorityMedium EntityPriority = "medium"
	EntityPriorityLow    EntityPriority = "low"
)

// OperationKind enumerates the leaf segment of an event type.
const (
	OperationKindCreated       = "created"
	OperationKindUpdated       = "updated"
	OperationKindDeleted       = "deleted"
	OperationKindStatusChanged = "status_changed"
	OperationKindAssigned      = "assigned"
	OperationKindArchived      = "archived"
	OperationKindAdded         = "added"
)

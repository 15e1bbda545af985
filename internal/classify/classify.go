// Package classify implements the Classifier: a static collection to
// entity-kind mapping that derives an event type from a Mutation Record
// (spec §4.2).
package classify

import "github.com/relaydock/docrelay/model"

// entityDef is one static collection -> entity-kind mapping entry.
type entityDef struct {
	entityKind       string
	priority         model.EntityPriority
	statusFields     []string
	assigneeFields   []string
	archivedFields   []string
	insertOperationKind string // defaults to OperationKindCreated when empty
}

// defaultCatalog is the Classifier's static collection -> entityKind
// table. Collections not present here fall through to a generic,
// low-priority entityKind equal to the collection name (spec §4.2
// "Unknown collections").
var defaultCatalog = map[string]entityDef{
	"issues": {
		entityKind:     "issue",
		priority:       model.EntityPriorityHigh,
		statusFields:   []string{"status"},
		assigneeFields: []string{"assignee", "assignees"},
		archivedFields: []string{"archived"},
	},
	"projects": {
		entityKind:     "project",
		priority:       model.EntityPriorityHigh,
		archivedFields: []string{"archived"},
	},
	"comments": {
		entityKind: "comment",
		priority:   model.EntityPriorityMedium,
	},
	"labels": {
		entityKind: "label",
		priority:   model.EntityPriorityLow,
	},
	"users": {
		entityKind: "user",
		priority:   model.EntityPriorityMedium,
	},
	"members": {
		entityKind:          "member",
		priority:            model.EntityPriorityMedium,
		insertOperationKind: model.OperationKindAdded,
	},
}

// Classifier derives {eventType, entityKind, collection} from a Mutation
// Record using the static catalog above.
type Classifier struct {
	catalog map[string]entityDef
}

// New constructs a Classifier over the default catalog.
func New() *Classifier {
	return &Classifier{catalog: defaultCatalog}
}

// Classify derives an Event from a Mutation Record. Unknown collections
// are still classified and routed, per spec §4.2, using a generic
// entityKind equal to the collection name and low priority.
func (c *Classifier) Classify(mutation *model.MutationRecord) *model.Event {
	def, known := c.catalog[mutation.Collection]
	if !known {
		def = entityDef{entityKind: mutation.Collection, priority: model.EntityPriorityLow}
	}

	return model.NewEvent(mutation, def.entityKind, c.operationKind(mutation, def))
}

// operationKind derives the leaf segment of the event type. Inserts and
// deletes map directly; updates are further classified by which declared
// field the update description touched, in priority order
// status > assignee > archived > generic updated.
func (c *Classifier) operationKind(mutation *model.MutationRecord, def entityDef) string {
	switch mutation.Operation {
	case model.OperationInsert:
		if def.insertOperationKind != "" {
			return def.insertOperationKind
		}
		return model.OperationKindCreated
	case model.OperationDelete:
		return model.OperationKindDeleted
	case model.OperationUpdate:
		desc := mutation.UpdateDescription
		for _, field := range def.statusFields {
			if desc.HasField(field) {
				return model.OperationKindStatusChanged
			}
		}
		for _, field := range def.assigneeFields {
			if desc.HasField(field) {
				return model.OperationKindAssigned
			}
		}
		for _, field := range def.archivedFields {
			if desc.HasField(field) {
				return model.OperationKindArchived
			}
		}
		return model.OperationKindUpdated
	default:
		return model.OperationKindUpdated
	}
}

// Catalog returns the static event-type catalog for the management API's
// "get event-type catalog" operation.
func (c *Classifier) Catalog() []model.EntityKindInfo {
	catalog := make([]model.EntityKindInfo, 0, len(c.catalog))
	for collection, def := range c.catalog {
		catalog = append(catalog, model.EntityKindInfo{
			Collection: collection,
			EntityKind: def.entityKind,
			Priority:   def.priority,
		})
	}
	return catalog
}

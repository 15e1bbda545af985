package classify

import (
	"testing"

	"github.com/relaydock/docrelay/model"
	"github.com/stretchr/testify/require"
)

func TestClassifyInsert(t *testing.T) {
	c := New()
	event := c.Classify(&model.MutationRecord{
		Collection: "issues",
		Operation:  model.OperationInsert,
		PostImage:  map[string]interface{}{"_id": "I1", "title": "t"},
	})
	require.Equal(t, "issue.created", event.EventType)
	require.Equal(t, "issue", event.EntityKind)
}

func TestClassifyUpdateStatusChanged(t *testing.T) {
	c := New()
	event := c.Classify(&model.MutationRecord{
		Collection: "issues",
		Operation:  model.OperationUpdate,
		UpdateDescription: &model.UpdateDescription{
			UpdatedFields: map[string]interface{}{"status": "done"},
		},
	})
	require.Equal(t, "issue.status_changed", event.EventType)
}

func TestClassifyUpdateAssigned(t *testing.T) {
	c := New()
	event := c.Classify(&model.MutationRecord{
		Collection: "issues",
		Operation:  model.OperationUpdate,
		UpdateDescription: &model.UpdateDescription{
			UpdatedFields: map[string]interface{}{"assignee": "u1"},
		},
	})
	require.Equal(t, "issue.assigned", event.EventType)
}

func TestClassifyUpdateGeneric(t *testing.T) {
	c := New()
	event := c.Classify(&model.MutationRecord{
		Collection: "issues",
		Operation:  model.OperationUpdate,
		UpdateDescription: &model.UpdateDescription{
			UpdatedFields: map[string]interface{}{"title": "new title"},
		},
	})
	require.Equal(t, "issue.updated", event.EventType)
}

func TestClassifyDelete(t *testing.T) {
	c := New()
	event := c.Classify(&model.MutationRecord{
		Collection: "projects",
		Operation:  model.OperationDelete,
	})
	require.Equal(t, "project.deleted", event.EventType)
}

func TestClassifyUnknownCollection(t *testing.T) {
	c := New()
	event := c.Classify(&model.MutationRecord{
		Collection: "webhooks_audit",
		Operation:  model.OperationInsert,
	})
	require.Equal(t, "webhooks_audit.created", event.EventType)
	require.Equal(t, "webhooks_audit", event.EntityKind)
}

func TestClassifyMemberAddedOperationKind(t *testing.T) {
	c := New()
	event := c.Classify(&model.MutationRecord{
		Collection: "members",
		Operation:  model.OperationInsert,
	})
	require.Equal(t, "member.added", event.EventType)
}

func TestCatalogListsEveryCollection(t *testing.T) {
	c := New()
	catalog := c.Catalog()
	require.Len(t, catalog, len(defaultCatalog))
}

package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	mutation := &MutationRecord{
		ResumeToken:            "token-1",
		ClusterTimestampMillis: 1_700_000_000_000,
		Collection:             "issues",
		Operation:              OperationInsert,
	}

	event := NewEvent(mutation, "issue", OperationKindCreated)

	require.Equal(t, "issue.created", event.EventType)
	require.Equal(t, "issue", event.EntityKind)
	require.Equal(t, "issues", event.Collection)
	require.Equal(t, OperationInsert, event.Operation)
	require.NotEmpty(t, event.ID)
}

func TestNewEventIDDeterministic(t *testing.T) {
	mutation := &MutationRecord{ResumeToken: "token-1", ClusterTimestampMillis: 42}

	a := NewEvent(mutation, "issue", OperationKindCreated)
	b := NewEvent(mutation, "issue", OperationKindCreated)

	require.Equal(t, a.ID, b.ID, "same mutation must always yield the same event id")
}

func TestUpdateDescriptionHasField(t *testing.T) {
	var nilDesc *UpdateDescription
	require.False(t, nilDesc.HasField("status"))

	desc := &UpdateDescription{
		UpdatedFields: map[string]interface{}{"status": "open"},
		RemovedFields: []string{"assignee"},
	}
	require.True(t, desc.HasField("status"))
	require.True(t, desc.HasField("assignee"))
	require.False(t, desc.HasField("title"))
}

package transform

import (
	"testing"

	"github.com/relaydock/docrelay/model"
	"github.com/stretchr/testify/require"
)

func testSub() *model.Subscription {
	return model.NewSubscription("Issue Watcher", "https://example.com/hook", []string{"issue.*"})
}

func TestTransformInsertProjectsDeclaredFields(t *testing.T) {
	tr := New("docrelay", "1.0.0", "test-instance")
	mutation := &model.MutationRecord{
		Collection:  "issues",
		Operation:   model.OperationInsert,
		DocumentKey: "I1",
		PostImage:   map[string]interface{}{"_id": "I1", "title": "t", "status": "open", "secret": "shh"},
	}
	event := &model.Event{EventType: "issue.created", EntityKind: "issue"}

	payload := tr.Transform(mutation, event, testSub())

	require.Equal(t, "issue.created", payload.Event)
	require.Equal(t, "issue", payload.Data.Type)
	require.Equal(t, "I1", payload.Data.ID)

	issue, ok := payload.Data.Entity["issue"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "I1", issue["id"])
	require.Equal(t, "t", issue["title"])
	require.Equal(t, "open", issue["status"])
	require.NotContains(t, issue, "secret")
}

func TestTransformUpdateIncludesPreviousAndChanges(t *testing.T) {
	tr := New("docrelay", "1.0.0", "test-instance")
	mutation := &model.MutationRecord{
		Collection:  "issues",
		Operation:   model.OperationUpdate,
		DocumentKey: "I1",
		PreImage:    map[string]interface{}{"_id": "I1", "status": "open"},
		PostImage:   map[string]interface{}{"_id": "I1", "status": "done"},
		UpdateDescription: &model.UpdateDescription{
			UpdatedFields: map[string]interface{}{"status": "done"},
		},
	}
	event := &model.Event{EventType: "issue.status_changed", EntityKind: "issue"}

	payload := tr.Transform(mutation, event, testSub())

	previous, ok := payload.Data.Entity["previousIssue"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "I1", previous["id"])
	require.Equal(t, "open", previous["status"])

	changes, ok := payload.Data.Entity["changes"].(*model.EntityChanges)
	require.True(t, ok)
	require.Equal(t, "done", changes.Updated["status"])
}

func TestTransformNormalizesIdentifierFields(t *testing.T) {
	tr := New("docrelay", "1.0.0", "test-instance")
	mutation := &model.MutationRecord{
		Collection:  "comments",
		Operation:   model.OperationInsert,
		DocumentKey: "C1",
		PostImage: map[string]interface{}{
			"_id":     "C1",
			"issueId": float64(42),
		},
	}
	event := &model.Event{EventType: "comment.created", EntityKind: "comment"}

	payload := tr.Transform(mutation, event, testSub())

	comment := payload.Data.Entity["comment"].(map[string]interface{})
	require.Equal(t, "42", comment["issueId"])
}

func TestTransformUnknownEntityKindUsesGenericFields(t *testing.T) {
	tr := New("docrelay", "1.0.0", "test-instance")
	mutation := &model.MutationRecord{
		Collection:  "webhooks_audit",
		Operation:   model.OperationInsert,
		DocumentKey: "W1",
		PostImage:   map[string]interface{}{"_id": "W1", "name": "n", "irrelevant": "x"},
	}
	event := &model.Event{EventType: "webhooks_audit.created", EntityKind: "webhooks_audit"}

	payload := tr.Transform(mutation, event, testSub())

	block := payload.Data.Entity["webhooks_audit"].(map[string]interface{})
	require.Equal(t, "n", block["name"])
	require.NotContains(t, block, "irrelevant")
}

func TestTransformAppliesSensitiveFilter(t *testing.T) {
	tr := New("docrelay", "1.0.0", "test-instance")
	sub := testSub()
	sub.FilterMode = model.PayloadFilterSensitive
	mutation := &model.MutationRecord{
		Collection:  "users",
		Operation:   model.OperationInsert,
		DocumentKey: "U1",
		PostImage:   map[string]interface{}{"_id": "U1", "name": "n", "email": "a@b.com"},
	}
	event := &model.Event{EventType: "user.created", EntityKind: "user"}

	payload := tr.Transform(mutation, event, sub)

	user := payload.Data.Entity["user"].(map[string]interface{})
	require.Equal(t, "n", user["name"])
	require.NotContains(t, user, "email")
}

func TestTransformAppliesMinimalFilter(t *testing.T) {
	tr := New("docrelay", "1.0.0", "test-instance")
	sub := testSub()
	sub.FilterMode = model.PayloadFilterMinimal
	mutation := &model.MutationRecord{
		Collection:  "issues",
		Operation:   model.OperationInsert,
		DocumentKey: "I1",
		PostImage:   map[string]interface{}{"_id": "I1", "title": "t"},
	}
	event := &model.Event{EventType: "issue.created", EntityKind: "issue"}

	payload := tr.Transform(mutation, event, sub)

	require.Empty(t, payload.Data.Entity)
	require.Equal(t, "I1", payload.Data.ID)
	require.Equal(t, "issue", payload.Data.Type)
}

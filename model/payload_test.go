package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func samplePayload() *Payload {
	return &Payload{
		ID:        "evt_1",
		Event:     "issue.created",
		Timestamp: 1_700_000_000_000,
		Version:   PayloadVersion,
		Source:    PayloadSource{Service: "docrelay", Version: "1.0", Instance: "relay-1"},
		Data: PayloadData{
			ID:         "I1",
			Type:       "issue",
			Operation:  "insert",
			Collection: "issues",
			Timestamp:  1_700_000_000_000,
			Entity: map[string]interface{}{
				"issue": map[string]interface{}{
					"id":    "I1",
					"title": "t",
					"email": "owner@example.com",
				},
			},
		},
		Metadata: PayloadMetadata{ResumeToken: "tok", WallTime: 1_700_000_000_000, DocumentKey: "I1"},
		Webhook:  PayloadWebhook{ID: "sub1", Name: "S1", URL: "https://h.example/w", Version: "1.0", DeliveryID: "d1", Attempt: 1, MaxAttempts: 5},
	}
}

func TestPayloadDataMarshalRoundTrip(t *testing.T) {
	payload := samplePayload()

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded Payload
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Equal(t, payload.Data.ID, decoded.Data.ID)
	require.Equal(t, payload.Data.Type, decoded.Data.Type)
	require.Equal(t, payload.Data.Operation, decoded.Data.Operation)
	require.Equal(t, payload.Data.Collection, decoded.Data.Collection)

	issue, ok := decoded.Data.Entity["issue"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "I1", issue["id"])
	require.Equal(t, "t", issue["title"])
}

func TestFilterRoundTrip(t *testing.T) {
	p := map[string]interface{}{"a": 1, "b": 2, "c": 3}
	fields := []string{"a", "b"}

	result := RemoveFields(KeepOnlyFields(p, fields), fields)
	require.Empty(t, result)
}

func TestApplySensitiveFilter(t *testing.T) {
	payload := samplePayload()
	filtered := ApplySensitiveFilter(payload)

	issue := filtered.Data.Entity["issue"].(map[string]interface{})
	_, hasEmail := issue["email"]
	require.False(t, hasEmail)
	require.Equal(t, "t", issue["title"])

	// Original is untouched.
	originalIssue := payload.Data.Entity["issue"].(map[string]interface{})
	_, hasEmail = originalIssue["email"]
	require.True(t, hasEmail)
}

func TestApplyMinimalFilter(t *testing.T) {
	payload := samplePayload()
	filtered := ApplyMinimalFilter(payload)

	require.Equal(t, payload.Data.ID, filtered.Data.ID)
	require.Equal(t, payload.Data.Type, filtered.Data.Type)
	require.Equal(t, payload.Data.Operation, filtered.Data.Operation)
	require.Nil(t, filtered.Data.Entity)
	require.Equal(t, payload.Event, filtered.Event)
}

func TestNewEntityChanges(t *testing.T) {
	require.Nil(t, NewEntityChanges(nil))

	changes := NewEntityChanges(&UpdateDescription{
		UpdatedFields: map[string]interface{}{"status": "closed"},
		RemovedFields: []string{"assignee"},
	})
	require.Equal(t, "closed", changes.Updated["status"])
	require.Equal(t, []string{"assignee"}, changes.Removed)
}

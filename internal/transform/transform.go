// Package transform implements the Transformer: it projects a classified
// mutation into the stable per-subscription Payload shape (spec §4.5).
package transform

import (
	"strconv"
	"strings"
	"time"

	"github.com/relaydock/docrelay/model"
)

// entityProjection declares, for one entity kind, the set of document
// fields copied into the payload's entity block. Kinds absent from the
// table fall back to defaultFields (spec §4.5 "and analogous sets for
// other kinds"), which also serves unknown collections classified by the
// Classifier's generic low-priority path — a single fallback rather than
// a separate stub per kind.
var entityProjection = map[string][]string{
	"issue":   {"title", "status", "priority", "assignee", "assignees", "labels", "projectId", "project", "space"},
	"project": {"name", "members", "archived"},
	"comment": {"body", "author", "issueId"},
	"label":   {"name", "color"},
	"user":    {"name", "email"},
	"member":  {"userId", "role"},
}

// defaultFields is the generic projection applied to any entity kind not
// present in entityProjection.
var defaultFields = []string{"name", "title", "status"}

func fieldsFor(entityKind string) []string {
	if fields, ok := entityProjection[entityKind]; ok {
		return fields
	}
	return defaultFields
}

// Transformer builds Payloads, stamping every one with the relay
// instance's own identity (spec §4.5 "source:{service,version,instance}").
type Transformer struct {
	service  string
	version  string
	instance string
}

// New constructs a Transformer that stamps payload.source with the given
// identity.
func New(service, version, instance string) *Transformer {
	return &Transformer{service: service, version: version, instance: instance}
}

// Transform builds the Payload for one (mutation, subscription) pair,
// applying the subscription's declared payload filter last. The result's
// webhook.deliveryId is left blank; the caller fills it in once a Delivery
// Item id has been assigned, since that id does not exist yet at
// transform time.
func (t *Transformer) Transform(mutation *model.MutationRecord, event *model.Event, sub *model.Subscription) *model.Payload {
	fields := fieldsFor(event.EntityKind)
	entityBlock := projectFields(mutation.Image(), fields)
	entityBlock["id"] = mutation.DocumentKey
	entity := map[string]interface{}{
		event.EntityKind: entityBlock,
	}

	if mutation.Operation == model.OperationUpdate {
		if mutation.PreImage != nil {
			previousBlock := projectFields(mutation.PreImage, fields)
			previousBlock["id"] = mutation.DocumentKey
			entity["previous"+titleCase(event.EntityKind)] = previousBlock
		}
		if changes := model.NewEntityChanges(mutation.UpdateDescription); changes != nil {
			entity["changes"] = changes
		}
	}

	now := model.GetMillis()
	payload := &model.Payload{
		ID:        model.NewID(),
		Event:     event.EventType,
		Timestamp: now,
		Version:   model.PayloadVersion,
		Source: model.PayloadSource{
			Service:  t.service,
			Version:  t.version,
			Instance: t.instance,
		},
		Data: model.PayloadData{
			ID:         mutation.DocumentKey,
			Type:       event.EntityKind,
			Operation:  string(mutation.Operation),
			Collection: mutation.Collection,
			Timestamp:  event.SourceTimestampMillis,
			Entity:     entity,
		},
		Metadata: model.PayloadMetadata{
			ResumeToken: mutation.ResumeToken,
			WallTime:    now,
			DocumentKey: mutation.DocumentKey,
		},
		Webhook: model.PayloadWebhook{
			ID:          sub.ID,
			Name:        sub.Name,
			URL:         sub.URL,
			Version:     model.PayloadVersion,
			Attempt:     1,
			MaxAttempts: sub.RetryPolicy.MaxAttempts,
		},
	}

	return model.ApplyPayloadFilter(payload, sub.FilterMode)
}

// projectFields copies the declared fields from image, applying
// post-projection normalizers (spec §4.5 "identifier-like fields become
// strings; date-like fields become RFC-3339 strings").
func projectFields(image map[string]interface{}, fields []string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		value, ok := image[field]
		if !ok {
			continue
		}
		out[field] = normalizeField(field, value)
	}
	return out
}

// normalizeField applies the identifier and date-like normalizers by
// field-name convention: a field ending in "id" (case-insensitive) is
// stringified; a field ending in "at", "date", or "time" is rendered as
// RFC-3339 when it carries a millisecond timestamp or time.Time value.
func normalizeField(field string, value interface{}) interface{} {
	lower := strings.ToLower(field)
	switch {
	case strings.HasSuffix(lower, "id"):
		return stringifyIdentifier(value)
	case strings.HasSuffix(lower, "at"), strings.HasSuffix(lower, "date"), strings.HasSuffix(lower, "time"):
		return normalizeDate(value)
	default:
		return value
	}
}

func stringifyIdentifier(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return value
	}
}

func normalizeDate(value interface{}) interface{} {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case int64:
		return model.TimeFromMillis(v).UTC().Format(time.RFC3339)
	case float64:
		return model.TimeFromMillis(int64(v)).UTC().Format(time.RFC3339)
	default:
		return value
	}
}

func titleCase(entityKind string) string {
	if entityKind == "" {
		return entityKind
	}
	return strings.ToUpper(entityKind[:1]) + entityKind[1:]
}

package model

// Payload is the stable wire shape produced by the Transformer for one
// (mutation, subscription) pair.
type Payload struct {
	ID        string         `json:"id"`
	Event     string         `json:"event"`
	Timestamp int64          `json:"timestamp"`
	Version   string         `json:"version"`
	Source    PayloadSource  `json:"source"`
	Data      PayloadData    `json:"data"`
	Metadata  PayloadMetadata `json:"metadata"`
	Webhook   PayloadWebhook `json:"webhook"`
}

// PayloadSource identifies the relay instance that produced the payload.
type PayloadSource struct {
	Service  string `json:"service"`
	Version  string `json:"version"`
	Instance string `json:"instance"`
}

// PayloadData carries the classified mutation and its per-entity
// projection. Entity is a generic container; the transformer dispatch
// table decides which key under Entity is populated.
type PayloadData struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Operation  string                 `json:"operation"`
	Collection string                 `json:"collection"`
	Namespace  string                 `json:"namespace,omitempty"`
	Timestamp  int64                  `json:"timestamp"`
	Entity     map[string]interface{} `json:"-"`
}

// PayloadMetadata carries provenance fields not part of the business
// entity projection.
type PayloadMetadata struct {
	ResumeToken string `json:"resumeToken"`
	WallTime    int64  `json:"wallTime"`
	DocumentKey string `json:"documentKey"`
}

// PayloadWebhook identifies which subscription and attempt this payload
// instance is being delivered for.
type PayloadWebhook struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Version     string `json:"version"`
	DeliveryID  string `json:"deliveryId"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"maxAttempts"`
}

// PayloadVersion is the schema version stamped on every payload.
const PayloadVersion = "1.0"

// EntityChanges is the diff block attached to update payloads, derived
// from the mutation's UpdateDescription.
type EntityChanges struct {
	Updated   map[string]interface{} `json:"updated,omitempty"`
	Removed   []string                `json:"removed,omitempty"`
	Truncated []TruncatedArray        `json:"truncated,omitempty"`
}

// NewEntityChanges builds an EntityChanges block from an update
// description, or nil if there is none to report.
func NewEntityChanges(desc *UpdateDescription) *EntityChanges {
	if desc == nil {
		return nil
	}
	return &EntityChanges{
		Updated:   desc.UpdatedFields,
		Removed:   desc.RemovedFields,
		Truncated: desc.TruncatedArrays,
	}
}

// PayloadFilterMode selects which optional payload filter a subscription
// applies before delivery.
type PayloadFilterMode string

const (
	PayloadFilterDetailed PayloadFilterMode = "detailed"
	PayloadFilterMinimal  PayloadFilterMode = "minimal"
	PayloadFilterSensitive PayloadFilterMode = "sensitive"
)

// SensitiveKeys is the declared list of keys the "sensitive" filter strips
// from an entity projection.
var SensitiveKeys = []string{"password", "token", "secret", "key", "credential", "email", "phone"}

// MinimalControlFields names the top-level Payload keys "minimal" retains,
// alongside data.{id, type, operation}.
var MinimalControlFields = []string{"id", "event", "timestamp", "version", "source", "webhook"}

package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// WebhookHeader is a single custom request header a subscription wants
// merged into every delivery. Its value is either literal or read from the
// process environment at send time, so secrets never need to be stored in
// the subscription record itself.
type WebhookHeader struct {
	Key          string  `json:"key"`
	Value        *string `json:"value,omitempty"`
	ValueFromEnv *string `json:"value_from_env,omitempty"`
}

// Headers is the set of custom headers attached to a Subscription. It
// implements sql.Scanner/driver.Valuer so it can be stored as a single
// JSON column.
type Headers []WebhookHeader

// reservedHeaders must never be overridden by a subscription's custom
// headers; the dispatcher sets these itself.
var reservedHeaders = map[string]struct{}{
	"host":            {},
	"content-length":  {},
	"user-agent":      {},
	"accept-encoding": {},
}

func (wh Headers) Value() (driver.Value, error) {
	return json.Marshal(wh)
}

func (wh *Headers) Scan(databaseValue interface{}) error {
	switch value := databaseValue.(type) {
	case string: // sqlite's text
		return json.Unmarshal([]byte(value), wh)
	case []byte: // postgres jsonb
		return json.Unmarshal(value, wh)
	case nil:
		return nil
	default:
		return fmt.Errorf("cannot scan type %t into Headers", databaseValue)
	}
}

// Validate enforces header-set invariants: no duplicate keys, exactly one
// value source per header, and no overriding of reserved headers.
func (wh Headers) Validate() error {
	keys := make(map[string]struct{}, len(wh))
	for _, header := range wh {
		if header.Key == "" {
			return fmt.Errorf("header key must not be empty")
		}
		lower := strings.ToLower(header.Key)
		if _, ok := reservedHeaders[lower]; ok {
			return fmt.Errorf("header %s is reserved and cannot be overridden", header.Key)
		}
		if _, ok := keys[lower]; ok {
			return fmt.Errorf("header %s is duplicated", header.Key)
		}
		keys[lower] = struct{}{}
		if header.Value == nil && header.ValueFromEnv == nil {
			return fmt.Errorf("header %s must have either a value or a value_from_env", header.Key)
		}
		if header.Value != nil && header.ValueFromEnv != nil {
			return fmt.Errorf("header %s cannot have both a value and a value_from_env", header.Key)
		}
	}
	return nil
}

// GetHeaders resolves the header set to a plain string map, reading
// environment variables for any ValueFromEnv entries.
func (wh Headers) GetHeaders() map[string]string {
	headers := make(map[string]string, len(wh))
	for _, header := range wh {
		if header.Value != nil {
			headers[header.Key] = *header.Value
		} else if header.ValueFromEnv != nil {
			headers[header.Key] = os.Getenv(*header.ValueFromEnv)
		}
	}
	return headers
}

package model

import (
	"encoding/json"
	"io"
)

// decodeJSON is the shared request-body decoder used by every *RequestFromReader
// constructor in this package.
func decodeJSON(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}

// ToJSON serializes a value to its compact JSON representation, swallowing
// marshal errors into an empty object the way teacher's model.ToJSON does
// for best-effort logging call sites.
func ToJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

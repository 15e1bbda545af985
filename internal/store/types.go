package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// stringSlice adapts []string to database/sql's Scanner/Valuer pair so it
// can be stored as a single JSON column, mirroring model.Headers' own
// Value/Scan pattern.
type stringSlice []string

func (s stringSlice) Value() (driver.Value, error) {
	return json.Marshal([]string(s))
}

func (s *stringSlice) Scan(databaseValue interface{}) error {
	switch value := databaseValue.(type) {
	case string:
		return json.Unmarshal([]byte(value), s)
	case []byte:
		return json.Unmarshal(value, s)
	case nil:
		return nil
	default:
		return fmt.Errorf("cannot scan type %T into stringSlice", databaseValue)
	}
}

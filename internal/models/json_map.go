package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap stores an opaque JSON object in a jsonb column. Provider request
// and response snapshots go through this type so they can be replayed
// verbatim without the schema knowing their shape.
type JSONMap map[string]interface{}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}

	return json.Unmarshal(data, m)
}

// Decode unmarshals the map into a typed destination struct. Used when a
// replay path needs the original request back in its typed form.
func (m JSONMap) Decode(dest interface{}) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal json map: %w", err)
	}
	return json.Unmarshal(data, dest)
}

// ToJSONMap converts any JSON-serializable value into a JSONMap snapshot.
func ToJSONMap(src interface{}) (JSONMap, error) {
	data, err := json.Marshal(src)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	var m JSONMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return m, nil
}

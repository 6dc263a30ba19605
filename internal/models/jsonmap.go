package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/pkg/errors"
)

// JSONMap is the key-value shape used for source config, job metrics, event
// payloads and error details. Values are limited to JSON scalars, nested maps
// and arrays of those; anything else is rejected on validation.
type JSONMap map[string]interface{}

// Value serializes the map for a JSONB column.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan reads a JSONB column back into the map.
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = JSONMap{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.Errorf("unsupported type %T for JSONMap", src)
	}
	if len(raw) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(raw, m)
}

// Validate rejects values outside the supported JSON kinds.
func (m JSONMap) Validate() error {
	for key, val := range m {
		if err := validateValue(val); err != nil {
			return errors.Wrapf(err, "key %q", key)
		}
	}
	return nil
}

func validateValue(v interface{}) error {
	switch val := v.(type) {
	case nil, bool, string, float64, int, int64:
		return nil
	case map[string]interface{}:
		return JSONMap(val).Validate()
	case JSONMap:
		return val.Validate()
	case []interface{}:
		for _, item := range val {
			if err := validateValue(item); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Errorf("unsupported value type %T", v)
	}
}

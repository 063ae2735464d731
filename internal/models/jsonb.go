package models

import (
	"encoding/json"
	"fmt"
)

// scanJSON decodes a JSONB column payload into dest.
func scanJSON(src interface{}, dest interface{}) error {
	switch data := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(data) == 0 {
			return nil
		}
		return json.Unmarshal(data, dest)
	case string:
		if data == "" {
			return nil
		}
		return json.Unmarshal([]byte(data), dest)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

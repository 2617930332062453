package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a custom type for JSON columns (map[string]interface{})
type JSONMap map[string]interface{}

// Scan implements sql.Scanner interface
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, err := rawJSON(value)
	if err != nil {
		return fmt.Errorf("failed to unmarshal JSONMap value: %w", err)
	}
	result := make(map[string]interface{})
	err = json.Unmarshal(bytes, &result)
	*j = JSONMap(result)
	return err
}

// Value implements driver.Valuer interface
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// JSONStringArray is a custom type for JSON string arrays
type JSONStringArray []string

// Scan implements sql.Scanner interface
func (j *JSONStringArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, err := rawJSON(value)
	if err != nil {
		return fmt.Errorf("failed to unmarshal JSONStringArray value: %w", err)
	}
	result := make([]string, 0)
	err = json.Unmarshal(bytes, &result)
	*j = JSONStringArray(result)
	return err
}

// Value implements driver.Valuer interface
func (j JSONStringArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func rawJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}

package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal encodes data and checks that it is a JSON object.
func Marshal(data any) (json.RawMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return nil, fmt.Errorf("document must be a JSON object")
	}
	return raw, nil
}

// Merge returns data with fields written over its top-level keys.
func Merge(data json.RawMessage, fields Fields) (json.RawMessage, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	if err := setFields(obj, fields); err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

// ApplyDecrement performs the guarded decrement on data in memory. Backends
// without a native primitive run it inside their own compare-and-swap.
func ApplyDecrement(data json.RawMessage, field string, n int64, set Fields) (json.RawMessage, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return nil, err
	}

	var current int64
	if raw, ok := obj[field]; ok && string(raw) != "null" {
		var num json.Number
		if err := json.Unmarshal(raw, &num); err != nil {
			return nil, fmt.Errorf("field %s is not a number: %w", field, err)
		}
		current, err = num.Int64()
		if err != nil {
			return nil, fmt.Errorf("field %s is not an integer: %w", field, err)
		}
	}
	if current < n {
		return nil, &GuardError{Field: field, Current: current, Requested: n}
	}

	obj[field] = json.RawMessage(fmt.Sprintf("%d", current-n))
	if err := setFields(obj, set); err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

func decodeObject(data json.RawMessage) (map[string]json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if len(data) == 0 {
		return obj, nil
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return obj, nil
}

func setFields(obj map[string]json.RawMessage, fields Fields) error {
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding field %s: %w", k, err)
		}
		obj[k] = raw
	}
	return nil
}

// Package codec holds the JSON helpers shared by the IPC frame readers.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
)

var ErrEmptyPayload = errors.New("empty payload")

func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes b into v. Numbers decode as json.Number so ids and
// timestamps inside map[string]any payloads survive untouched.
func Unmarshal(b []byte, v any) error {
	if len(bytes.TrimSpace(b)) == 0 {
		return ErrEmptyPayload
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	return dec.Decode(v)
}

// String returns m[key] if it holds a string.
func String(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// Object returns m[key] if it holds a JSON object.
func Object(m map[string]any, key string) map[string]any {
	if o, ok := m[key].(map[string]any); ok {
		return o
	}
	return nil
}

package store

import (
	"encoding/json"
	"fmt"

	"github.com/balbirthomas/operator/internal/ir"
)

// marshalEventData converts event data to canonical JSON TEXT for storage.
// Canonical encoding keeps persisted logs byte-stable across runs.
func marshalEventData(data map[string]any) (string, error) {
	if data == nil {
		return "{}", nil
	}
	encoded, err := ir.MarshalCanonical(data)
	if err != nil {
		return "", fmt.Errorf("marshal event data: %w", err)
	}
	return string(encoded), nil
}

// unmarshalEventData parses JSON TEXT back into event data.
func unmarshalEventData(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal event data: %w", err)
	}
	return out, nil
}

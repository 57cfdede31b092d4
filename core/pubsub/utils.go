package pubsub

import (
	"encoding/json"
	"fmt"
)

// marshalPayload encodes v as a JSON string payload.
func marshalPayload(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	return string(data), nil
}

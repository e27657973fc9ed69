package flow

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// decodePhoto turns a base64 photo payload into raw bytes. Payloads may
// arrive as bare base64 or as a data URI.
func decodePhoto(encoded string) ([]byte, error) {
	if strings.HasPrefix(encoded, "data:") {
		if idx := strings.Index(encoded, ","); idx >= 0 {
			encoded = encoded[idx+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode photo payload: %w", err)
	}
	return data, nil
}

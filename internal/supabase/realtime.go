package supabase

import (
	"fmt"
)

// RealtimeClient fans kiosk lifecycle events out to operator dashboards.
// Supabase Realtime picks events up from database writes, so publishing is
// an insert into the kiosk_events table.
type RealtimeClient struct {
	client *Client
}

func NewRealtimeClient(client *Client) *RealtimeClient {
	return &RealtimeClient{
		client: client,
	}
}

func (r *RealtimeClient) PublishSessionEvent(sessionID string, event string, payload map[string]interface{}) error {
	if r.client == nil || r.client.Supabase == nil {
		return nil
	}

	row := map[string]interface{}{
		"channel": fmt.Sprintf("session:%s", sessionID),
		"event":   event,
		"payload": payload,
	}
	_, _, err := r.client.Supabase.From("kiosk_events").Insert(row, false, "", "", "").Execute()
	return err
}

// Event payloads
func CaptureCompletedPayload(sessionID string, fallback bool) map[string]interface{} {
	return map[string]interface{}{
		"session_id": sessionID,
		"status":     "captured",
		"fallback":   fallback,
	}
}

func GenerationStartedPayload(sessionID, styleID string) map[string]interface{} {
	return map[string]interface{}{
		"session_id": sessionID,
		"status":     "processing",
		"style_id":   styleID,
	}
}

func GenerationCompletedPayload(sessionID string) map[string]interface{} {
	return map[string]interface{}{
		"session_id": sessionID,
		"status":     "previewing",
	}
}

func GenerationFailedPayload(sessionID string, errorMsg string) map[string]interface{} {
	return map[string]interface{}{
		"session_id": sessionID,
		"status":     "failed",
		"error":      errorMsg,
	}
}

func PaymentSettledPayload(sessionID, orderID string, amount int) map[string]interface{} {
	return map[string]interface{}{
		"session_id": sessionID,
		"status":     "completed",
		"order_id":   orderID,
		"amount":     amount,
	}
}

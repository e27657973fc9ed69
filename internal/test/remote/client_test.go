package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"ai-photo-kiosk/internal/models"
	"ai-photo-kiosk/internal/remote"
)

func TestClient_ListModes(t *testing.T) {
	var gotAPIKey, gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("x-api-key")
		gotRequestID = r.Header.Get("X-Request-ID")
		assert.Equal(t, "/modes", r.URL.Path)

		json.NewEncoder(w).Encode([]models.Mode{
			{ID: "mode-1", Name: "Portrait", Effects: []models.Effect{{ID: "effect-1"}}},
		})
	}))
	defer server.Close()

	client := remote.NewClient(server.URL, "test-key", zerolog.Nop())

	modes, err := client.ListModes(context.Background())

	assert.NoError(t, err)
	assert.Len(t, modes, 1)
	assert.Equal(t, "mode-1", modes[0].ID)
	assert.Equal(t, "test-key", gotAPIKey)
	assert.NotEmpty(t, gotRequestID)
}

func TestClient_GetSession_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := remote.NewClient(server.URL, "test-key", zerolog.Nop())

	_, err := client.GetSession(context.Background(), "missing")

	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestClient_ServerErrorWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := remote.NewClient(server.URL, "test-key", zerolog.Nop())

	_, err := client.ListModes(context.Background())

	assert.Error(t, err)
	var remoteErr *remote.RemoteError
	assert.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusInternalServerError, remoteErr.StatusCode)
	assert.Equal(t, "get_modes", remoteErr.Op)
	assert.Contains(t, remoteErr.Error(), "boom")
}

func TestClient_CreateSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sessions", r.URL.Path)

		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		assert.Equal(t, "mode-1", payload["mode_id"])
		assert.Equal(t, "effect-1", payload["effect_id"])

		json.NewEncoder(w).Encode(models.Session{
			ID:       "sess-1",
			ModeID:   payload["mode_id"],
			EffectID: payload["effect_id"],
			Status:   models.SessionCapturing,
		})
	}))
	defer server.Close()

	client := remote.NewClient(server.URL, "test-key", zerolog.Nop())

	session, err := client.CreateSession(context.Background(), "mode-1", "effect-1")

	assert.NoError(t, err)
	assert.Equal(t, "sess-1", session.ID)
	assert.Equal(t, models.SessionCapturing, session.Status)
}

func TestClient_CreateSession_EmptyIDRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.Session{})
	}))
	defer server.Close()

	client := remote.NewClient(server.URL, "test-key", zerolog.Nop())

	_, err := client.CreateSession(context.Background(), "mode-1", "effect-1")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "session id is empty")
}

func TestClient_CreatePayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments", r.URL.Path)

		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		assert.Equal(t, "download", payload["order_type"])
		assert.Equal(t, float64(300), payload["amount"])

		json.NewEncoder(w).Encode(models.PaymentIntent{
			OrderID:    "order-1",
			PaymentRef: "weixin://pay/abc",
		})
	}))
	defer server.Close()

	client := remote.NewClient(server.URL, "test-key", zerolog.Nop())

	intent, err := client.CreatePayment(context.Background(), "sess-1", models.OrderDownload, 300)

	assert.NoError(t, err)
	assert.Equal(t, "order-1", intent.OrderID)
	assert.Equal(t, "weixin://pay/abc", intent.PaymentRef)
}

func TestClient_QueryPayment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/order-1", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"state": "SUCCESS"})
	}))
	defer server.Close()

	client := remote.NewClient(server.URL, "test-key", zerolog.Nop())

	state, err := client.QueryPayment(context.Background(), "order-1")

	assert.NoError(t, err)
	assert.Equal(t, models.SettlementSuccess, state)
}

func TestClient_SaveOriginalPhoto(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/sess-1/original-photo", r.URL.Path)

		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		assert.Equal(t, "photo-b64", payload["photo"])

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := remote.NewClient(server.URL, "test-key", zerolog.Nop())

	err := client.SaveOriginalPhoto(context.Background(), "sess-1", "photo-b64")

	assert.NoError(t, err)
}

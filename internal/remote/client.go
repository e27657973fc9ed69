package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-photo-kiosk/internal/models"
)

// Client talks to the kiosk backend service over HTTP/JSON and implements
// Service. Generation gets its own, much longer timeout because the AI call
// on the other end is slow and single-shot.
type Client struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	generateClient *http.Client
	log            zerolog.Logger
}

var _ Service = (*Client)(nil)

func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		generateClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		log: log.With().Str("component", "remote").Logger(),
	}
}

func (c *Client) do(ctx context.Context, client *http.Client, op, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return 0, &RemoteError{Op: op, Err: fmt.Errorf("failed to marshal request: %w", err)}
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, &RemoteError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, &RemoteError{Op: op, Err: fmt.Errorf("failed to execute request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		c.log.Warn().Str("op", op).Int("status", resp.StatusCode).Msg("remote call failed")
		return resp.StatusCode, &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status, body: %s", string(respBody))}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}

	return resp.StatusCode, nil
}

func (c *Client) ListModes(ctx context.Context) ([]models.Mode, error) {
	var modes []models.Mode
	if _, err := c.do(ctx, c.httpClient, "get_modes", http.MethodGet, "/modes", nil, &modes); err != nil {
		return nil, err
	}
	return modes, nil
}

func (c *Client) GetMode(ctx context.Context, modeID string) (*models.Mode, error) {
	var mode models.Mode
	status, err := c.do(ctx, c.httpClient, "get_mode", http.MethodGet, "/modes/"+modeID, nil, &mode)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &mode, nil
}

func (c *Client) ListStyles(ctx context.Context) ([]models.Style, error) {
	var styles []models.Style
	if _, err := c.do(ctx, c.httpClient, "get_styles", http.MethodGet, "/styles", nil, &styles); err != nil {
		return nil, err
	}
	return styles, nil
}

func (c *Client) CreateSession(ctx context.Context, modeID, effectID string) (*models.Session, error) {
	payload := map[string]string{
		"mode_id":   modeID,
		"effect_id": effectID,
	}
	var session models.Session
	if _, err := c.do(ctx, c.httpClient, "create_session", http.MethodPost, "/sessions", payload, &session); err != nil {
		return nil, err
	}
	if session.ID == "" {
		return nil, &RemoteError{Op: "create_session", Err: fmt.Errorf("session id is empty in response")}
	}
	return &session, nil
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	status, err := c.do(ctx, c.httpClient, "get_session", http.MethodGet, "/sessions/"+sessionID, nil, &session)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (c *Client) SaveOriginalPhoto(ctx context.Context, sessionID, photoBase64 string) error {
	payload := map[string]string{"photo": photoBase64}
	_, err := c.do(ctx, c.httpClient, "save_original_photo", http.MethodPost, "/sessions/"+sessionID+"/original-photo", payload, nil)
	return err
}

func (c *Client) SaveGeneratedPhoto(ctx context.Context, sessionID, photoBase64 string) error {
	payload := map[string]string{"photo": photoBase64}
	_, err := c.do(ctx, c.httpClient, "save_generated_photo", http.MethodPost, "/sessions/"+sessionID+"/generated-photo", payload, nil)
	return err
}

func (c *Client) GeneratePhoto(ctx context.Context, sessionID, photoBase64, styleID string) (*models.Session, error) {
	payload := map[string]string{"photo": photoBase64}
	if styleID != "" {
		payload["style_id"] = styleID
	}
	var session models.Session
	if _, err := c.do(ctx, c.generateClient, "generate_photo", http.MethodPost, "/sessions/"+sessionID+"/generate", payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) CreateOrder(ctx context.Context, sessionID string, orderType models.OrderType, amount int) (*models.Order, error) {
	payload := map[string]any{
		"session_id": sessionID,
		"order_type": orderType,
		"amount":     amount,
	}
	var order models.Order
	if _, err := c.do(ctx, c.httpClient, "create_order", http.MethodPost, "/orders", payload, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	status, err := c.do(ctx, c.httpClient, "get_order", http.MethodGet, "/orders/"+orderID, nil, &order)
	if err != nil {
		if status == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (c *Client) CreatePayment(ctx context.Context, sessionID string, orderType models.OrderType, amount int) (*models.PaymentIntent, error) {
	payload := map[string]any{
		"session_id": sessionID,
		"order_type": orderType,
		"amount":     amount,
	}
	var intent models.PaymentIntent
	if _, err := c.do(ctx, c.httpClient, "create_payment", http.MethodPost, "/payments", payload, &intent); err != nil {
		return nil, err
	}
	if intent.OrderID == "" || intent.PaymentRef == "" {
		return nil, &RemoteError{Op: "create_payment", Err: fmt.Errorf("order id or payment ref is empty in response")}
	}
	return &intent, nil
}

func (c *Client) QueryPayment(ctx context.Context, orderID string) (models.SettlementState, error) {
	var result struct {
		State models.SettlementState `json:"state"`
	}
	if _, err := c.do(ctx, c.httpClient, "query_payment", http.MethodGet, "/payments/"+orderID, nil, &result); err != nil {
		return "", err
	}
	return result.State, nil
}

package models

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// FlowStateResponse is a snapshot of the kiosk state machine for the UI.
// Photo payloads are included base64-encoded so the front-end can render
// them directly.
type FlowStateResponse struct {
	State           string  `json:"state"`
	Modes           []Mode  `json:"modes,omitempty"`
	Styles          []Style `json:"styles,omitempty"`
	SelectedMode    string  `json:"selected_mode,omitempty"`
	SelectedEffect  string  `json:"selected_effect,omitempty"`
	SessionID       string  `json:"session_id,omitempty"`
	PendingPhoto    string  `json:"pending_photo,omitempty"`
	OriginalPhoto   string  `json:"original_photo,omitempty"`
	GeneratedPhoto  string  `json:"generated_photo,omitempty"`
	CaptureFallback bool    `json:"capture_fallback,omitempty"`
}

type CaptureResponse struct {
	Photo    string `json:"photo"`
	Fallback bool   `json:"fallback"`
}

type PaymentIntentResponse struct {
	OrderID    string `json:"order_id"`
	PaymentRef string `json:"payment_ref"`
	Amount     int    `json:"amount"`
}

type PaymentStatusResponse struct {
	Status string `json:"status"`
	Order  *Order `json:"order,omitempty"`
}

type OrderListResponse struct {
	Orders []Order `json:"orders"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

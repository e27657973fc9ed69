package models

// Mode is a catalog entry grouping a set of effects. Modes are read-only
// reference data owned by the remote catalog and cached for the lifetime of
// one kiosk flow.
type Mode struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Effects     []Effect `json:"effects"`
}

// Effect is a generation preset belonging to a mode. Prices are integer
// minor-currency units (cents).
type Effect struct {
	ID            string `json:"id"`
	ModeID        string `json:"mode_id"`
	Name          string `json:"name"`
	Prompt        string `json:"prompt"`
	Thumbnail     string `json:"thumbnail"`
	PriceDownload int    `json:"price_download"`
	PricePrint    int    `json:"price_print"`
}

// Style is an optional prompt-template overlay applied on top of an effect.
type Style struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Icon           string `json:"icon"`
	PromptTemplate string `json:"prompt_template"`
}

type SessionStatus string

const (
	SessionSelectingMode   SessionStatus = "selecting_mode"
	SessionSelectingEffect SessionStatus = "selecting_effect"
	SessionCapturing       SessionStatus = "capturing"
	SessionProcessing      SessionStatus = "processing"
	SessionPreviewing      SessionStatus = "previewing"
	SessionCompleted       SessionStatus = "completed"
)

// Session is one capture-to-generation unit of work. The remote service is
// the source of truth; the flow holds a refreshable copy. OriginalPhoto is
// set once per session, GeneratedPhoto is replaced by each successful
// generation. Both are base64-encoded image payloads.
type Session struct {
	ID             string        `json:"id"`
	ModeID         string        `json:"mode_id"`
	EffectID       string        `json:"effect_id"`
	StyleID        string        `json:"style_id,omitempty"`
	OriginalPhoto  string        `json:"original_photo,omitempty"`
	GeneratedPhoto string        `json:"generated_photo,omitempty"`
	Status         SessionStatus `json:"status"`
	CreatedAt      int64         `json:"created_at"`
	UpdatedAt      int64         `json:"updated_at"`
}

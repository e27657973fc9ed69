package models

type OrderType string

const (
	OrderDownload OrderType = "download"
	OrderPrint    OrderType = "print"
)

func (t OrderType) Valid() bool {
	return t == OrderDownload || t == OrderPrint
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

// Order records one purchase of a session's generated photo. Status moves
// pending -> paid (or cancelled) strictly through confirmed settlement
// results from the remote side.
type Order struct {
	ID          string      `json:"id"`
	SessionID   string      `json:"session_id"`
	OrderType   OrderType   `json:"order_type"`
	Amount      int         `json:"amount"`
	Status      OrderStatus `json:"status"`
	PaymentRef  string      `json:"payment_ref,omitempty"`
	PaymentTime int64       `json:"payment_time,omitempty"`
	DownloadURL string      `json:"download_url,omitempty"`
	CreatedAt   int64       `json:"created_at"`
}

// PaymentIntent is the transient result of starting one payment attempt: the
// order it belongs to and the scannable reference the customer pays against.
// It is discarded when polling terminates.
type PaymentIntent struct {
	OrderID    string `json:"order_id"`
	PaymentRef string `json:"payment_ref"`
	Amount     int    `json:"amount"`
}

// SettlementState is the remote gateway's answer to a payment query.
type SettlementState string

const (
	SettlementPending SettlementState = "PENDING"
	SettlementSuccess SettlementState = "SUCCESS"
	SettlementFailed  SettlementState = "FAILED"
)

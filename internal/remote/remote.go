package remote

import (
	"context"
	"errors"
	"fmt"

	"ai-photo-kiosk/internal/models"
)

// ErrNotFound is returned by pure reads when the remote side has no record
// for the given id.
var ErrNotFound = errors.New("not found")

// RemoteError wraps a failed RPC with the operation name and, when the
// server answered at all, the HTTP status it answered with.
type RemoteError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Service is the RPC boundary the kiosk core depends on. Only GetSession,
// GetOrder and QueryPayment are assumed idempotent; everything else is a
// single-shot state change on the remote side. Photo payloads are
// base64-encoded image bytes.
type Service interface {
	ListModes(ctx context.Context) ([]models.Mode, error)
	GetMode(ctx context.Context, modeID string) (*models.Mode, error)
	ListStyles(ctx context.Context) ([]models.Style, error)

	CreateSession(ctx context.Context, modeID, effectID string) (*models.Session, error)
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	SaveOriginalPhoto(ctx context.Context, sessionID, photoBase64 string) error
	SaveGeneratedPhoto(ctx context.Context, sessionID, photoBase64 string) error

	// GeneratePhoto is long-running and single-attempt; the returned session
	// carries the replaced generated photo.
	GeneratePhoto(ctx context.Context, sessionID, photoBase64, styleID string) (*models.Session, error)

	CreateOrder(ctx context.Context, sessionID string, orderType models.OrderType, amount int) (*models.Order, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	CreatePayment(ctx context.Context, sessionID string, orderType models.OrderType, amount int) (*models.PaymentIntent, error)
	QueryPayment(ctx context.Context, orderID string) (models.SettlementState, error)
}

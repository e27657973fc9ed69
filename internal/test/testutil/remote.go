package testutil

import (
	"context"
	"fmt"
	"sync"

	"ai-photo-kiosk/internal/models"
	"ai-photo-kiosk/internal/remote"
)

// FakeRemote is an in-memory stand-in for the kiosk backend. By default it
// behaves like a well-functioning remote side; individual calls can be
// overridden with function fields or forced to fail through Errors.
type FakeRemote struct {
	mu sync.Mutex

	Modes  []models.Mode
	Styles []models.Style

	sessions map[string]*models.Session
	orders   map[string]*models.Order
	nextID   int

	// GenerateFn, when set, replaces the default generation behavior.
	GenerateFn func(ctx context.Context, sessionID, photoBase64, styleID string) (*models.Session, error)

	// QueryFn, when set, replaces the scripted settlement answers.
	QueryFn func(ctx context.Context, orderID string) (models.SettlementState, error)

	// Settlements is consumed one entry per QueryPayment call; the last
	// entry repeats once the script runs out.
	Settlements []models.SettlementState

	// Errors forces the named operation to fail.
	Errors map[string]error

	GenerateCalls int
	QueryCalls    int
}

var _ remote.Service = (*FakeRemote)(nil)

// NewFakeRemote builds a fake with a small default catalog.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		Modes: []models.Mode{
			{
				ID:   "mode-portrait",
				Name: "Portrait",
				Effects: []models.Effect{
					{ID: "effect-classic", ModeID: "mode-portrait", Name: "Classic", PriceDownload: 300, PricePrint: 1000},
					{ID: "effect-noir", ModeID: "mode-portrait", Name: "Noir", PriceDownload: 300, PricePrint: 1000},
				},
			},
			{ID: "mode-empty", Name: "Empty"},
		},
		Styles: []models.Style{
			{ID: "style-vintage", Name: "Vintage", PromptTemplate: "vintage photo of {original_description}"},
		},
		sessions: make(map[string]*models.Session),
		orders:   make(map[string]*models.Order),
		Errors:   make(map[string]error),
	}
}

func (f *FakeRemote) fail(op string) error {
	return f.Errors[op]
}

func (f *FakeRemote) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *FakeRemote) ListModes(_ context.Context) ([]models.Mode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("list_modes"); err != nil {
		return nil, err
	}
	return f.Modes, nil
}

func (f *FakeRemote) GetMode(_ context.Context, modeID string) (*models.Mode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.Modes {
		if f.Modes[i].ID == modeID {
			m := f.Modes[i]
			return &m, nil
		}
	}
	return nil, remote.ErrNotFound
}

func (f *FakeRemote) ListStyles(_ context.Context) ([]models.Style, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("list_styles"); err != nil {
		return nil, err
	}
	return f.Styles, nil
}

func (f *FakeRemote) CreateSession(_ context.Context, modeID, effectID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("create_session"); err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:       f.id("sess"),
		ModeID:   modeID,
		EffectID: effectID,
		Status:   models.SessionCapturing,
	}
	f.sessions[session.ID] = session
	s := *session
	return &s, nil
}

func (f *FakeRemote) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, remote.ErrNotFound
	}
	s := *session
	return &s, nil
}

func (f *FakeRemote) SaveOriginalPhoto(_ context.Context, sessionID, photoBase64 string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("save_original_photo"); err != nil {
		return err
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return remote.ErrNotFound
	}
	session.OriginalPhoto = photoBase64
	return nil
}

func (f *FakeRemote) SaveGeneratedPhoto(_ context.Context, sessionID, photoBase64 string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("save_generated_photo"); err != nil {
		return err
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return remote.ErrNotFound
	}
	session.GeneratedPhoto = photoBase64
	return nil
}

func (f *FakeRemote) GeneratePhoto(ctx context.Context, sessionID, photoBase64, styleID string) (*models.Session, error) {
	f.mu.Lock()
	f.GenerateCalls++
	fn := f.GenerateFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, sessionID, photoBase64, styleID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("generate_photo"); err != nil {
		return nil, err
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, remote.ErrNotFound
	}
	session.GeneratedPhoto = "generated:" + styleID + ":" + photoBase64
	session.StyleID = styleID
	session.Status = models.SessionPreviewing
	s := *session
	return &s, nil
}

func (f *FakeRemote) CreateOrder(_ context.Context, sessionID string, orderType models.OrderType, amount int) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("create_order"); err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:        f.id("order"),
		SessionID: sessionID,
		OrderType: orderType,
		Amount:    amount,
		Status:    models.OrderPending,
	}
	f.orders[order.ID] = order
	o := *order
	return &o, nil
}

func (f *FakeRemote) GetOrder(_ context.Context, orderID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("get_order"); err != nil {
		return nil, err
	}
	order, ok := f.orders[orderID]
	if !ok {
		return nil, remote.ErrNotFound
	}
	o := *order
	return &o, nil
}

func (f *FakeRemote) CreatePayment(_ context.Context, sessionID string, orderType models.OrderType, amount int) (*models.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("create_payment"); err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:        f.id("order"),
		SessionID: sessionID,
		OrderType: orderType,
		Amount:    amount,
		Status:    models.OrderPending,
	}
	f.orders[order.ID] = order

	return &models.PaymentIntent{
		OrderID:    order.ID,
		PaymentRef: "pay-ref-" + order.ID,
	}, nil
}

func (f *FakeRemote) QueryPayment(ctx context.Context, orderID string) (models.SettlementState, error) {
	f.mu.Lock()
	f.QueryCalls++
	call := f.QueryCalls
	fn := f.QueryFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, orderID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("query_payment"); err != nil {
		return "", err
	}

	if len(f.Settlements) == 0 {
		return models.SettlementPending, nil
	}
	idx := call - 1
	if idx >= len(f.Settlements) {
		idx = len(f.Settlements) - 1
	}
	state := f.Settlements[idx]

	if state == models.SettlementSuccess {
		if order, ok := f.orders[orderID]; ok && order.Status == models.OrderPending {
			order.Status = models.OrderPaid
			order.PaymentTime = 1700000000
		}
	}
	return state, nil
}

// Session returns the stored session, for assertions on remote-side state.
func (f *FakeRemote) Session(sessionID string) *models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil
	}
	s := *session
	return &s
}

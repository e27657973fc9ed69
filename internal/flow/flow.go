package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-photo-kiosk/internal/capture"
	"ai-photo-kiosk/internal/generation"
	"ai-photo-kiosk/internal/models"
	"ai-photo-kiosk/internal/orders"
	"ai-photo-kiosk/internal/payment"
	"ai-photo-kiosk/internal/remote"
	"ai-photo-kiosk/internal/supabase"
)

// State is one screen of the kiosk flow. The flow is cyclic: Completed goes
// back to Home on user action, there is no terminal state.
type State string

const (
	StateHome              State = "home"
	StateSelectingMode     State = "selecting_mode"
	StateSelectingEffect   State = "selecting_effect"
	StateCapturing         State = "capturing"
	StateSelectingStyle    State = "selecting_style"
	StatePreviewing        State = "previewing"
	StatePayingForDownload State = "paying_for_download"
	StateCompleted         State = "completed"
)

// ErrInvalidTransition is returned when an event arrives in a state whose
// transition table has no row for it.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrPaymentInProgress is returned when a second payment attempt is started
// while one is still being polled.
var ErrPaymentInProgress = errors.New("payment already in progress")

// Flow is the kiosk state machine. It owns the authoritative in-memory
// session and selection state; the remote service stays the source of truth
// and the local session is a refreshable cache. A failed state-advancing
// operation leaves the machine in its pre-transition state; nothing here
// silently advances past a failure.
type Flow struct {
	remote    remote.Service
	capture   *capture.Controller
	generator *generation.Coordinator
	payments  *payment.Coordinator
	ledger    orders.Store
	events    *supabase.RealtimeClient
	artifacts *supabase.StorageClient
	log       zerolog.Logger
	now       func() time.Time

	priceDownload int
	pricePrint    int

	mu             sync.Mutex
	state          State
	modes          []models.Mode
	styles         []models.Style
	selectedMode   *models.Mode
	selectedEffect *models.Effect
	session        *models.Session
	pendingPhoto   string
	captureHandle  *capture.Handle
	paymentIntent  *models.PaymentIntent
	paymentResult  *payment.Result
	paymentCancel  context.CancelFunc
	lastOrder      *models.Order
}

func New(svc remote.Service, capturer *capture.Controller, gen *generation.Coordinator, pay *payment.Coordinator, ledger orders.Store, log zerolog.Logger) *Flow {
	return &Flow{
		remote:        svc,
		capture:       capturer,
		generator:     gen,
		payments:      pay,
		ledger:        ledger,
		log:           log.With().Str("component", "flow").Logger(),
		now:           time.Now,
		priceDownload: 300,
		pricePrint:    1000,
		state:         StateHome,
	}
}

// WithEvents assigns the optional session event publisher.
func (f *Flow) WithEvents(events *supabase.RealtimeClient) *Flow {
	f.events = events
	return f
}

// WithArtifacts assigns the optional paid-artifact publisher.
func (f *Flow) WithArtifacts(artifacts *supabase.StorageClient) *Flow {
	f.artifacts = artifacts
	return f
}

// WithPrices overrides the default download/print prices (minor units).
func (f *Flow) WithPrices(download, print int) *Flow {
	if download > 0 {
		f.priceDownload = download
	}
	if print > 0 {
		f.pricePrint = print
	}
	return f
}

func (f *Flow) publish(sessionID, event string, payload map[string]interface{}) {
	if f.events == nil {
		return
	}
	if err := f.events.PublishSessionEvent(sessionID, event, payload); err != nil {
		f.log.Warn().Err(err).Str("event", event).Msg("failed to publish session event")
	}
}

func (f *Flow) transitionErr(event string) error {
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, event, f.state)
}

// State returns the current screen.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Session returns a copy of the current session, if any.
func (f *Flow) Session() *models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil
	}
	s := *f.session
	return &s
}

// LastOrder returns the order completed by the most recent settled payment.
func (f *Flow) LastOrder() *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastOrder == nil {
		return nil
	}
	o := *f.lastOrder
	return &o
}

// Start fetches the catalog and moves Home -> SelectingMode. A failed
// catalog fetch keeps the flow on Home with a retry surfaced to the caller.
func (f *Flow) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateHome {
		return f.transitionErr("start")
	}

	modes, err := f.remote.ListModes(ctx)
	if err != nil {
		return err
	}

	// Styles are an optional overlay; an empty list just hides the style
	// screen's extra choices.
	styles, err := f.remote.ListStyles(ctx)
	if err != nil {
		f.log.Warn().Err(err).Msg("failed to load styles, continuing without")
		styles = nil
	}

	f.modes = modes
	f.styles = styles
	f.state = StateSelectingMode
	return nil
}

// ChooseMode selects a mode and default-selects its first effect.
func (f *Flow) ChooseMode(modeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateSelectingMode {
		return f.transitionErr("modeChosen")
	}

	for i := range f.modes {
		if f.modes[i].ID == modeID {
			if len(f.modes[i].Effects) == 0 {
				return fmt.Errorf("mode %s has no effects", modeID)
			}
			f.selectedMode = &f.modes[i]
			f.selectedEffect = &f.modes[i].Effects[0]
			f.state = StateSelectingEffect
			return nil
		}
	}
	return fmt.Errorf("unknown mode %s", modeID)
}

// ChooseEffect changes the selected effect within the chosen mode.
func (f *Flow) ChooseEffect(effectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateSelectingEffect || f.selectedMode == nil {
		return f.transitionErr("effectSelected")
	}

	for i := range f.selectedMode.Effects {
		if f.selectedMode.Effects[i].ID == effectID {
			f.selectedEffect = &f.selectedMode.Effects[i]
			return nil
		}
	}
	return fmt.Errorf("effect %s does not belong to mode %s", effectID, f.selectedMode.ID)
}

// ConfirmEffect creates the remote session and enters Capturing, acquiring
// the capture device (or its fallback) on the way in.
func (f *Flow) ConfirmEffect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateSelectingEffect || f.selectedMode == nil || f.selectedEffect == nil {
		return f.transitionErr("effectConfirmed")
	}

	session, err := f.remote.CreateSession(ctx, f.selectedMode.ID, f.selectedEffect.ID)
	if err != nil {
		return err
	}

	handle, err := f.capture.Begin(ctx)
	if err != nil {
		return err
	}

	f.session = session
	f.captureHandle = handle
	f.pendingPhoto = ""
	f.state = StateCapturing
	f.log.Info().Str("session_id", session.ID).Bool("fallback", handle.Fallback()).Msg("session created, capturing")
	return nil
}

// Capture runs the countdown and samples one frame into the pending photo.
// The countdown runs without f.mu held so snapshots and resets stay
// responsive; if the handle changed underneath (retake or reset), the frame
// is dropped.
func (f *Flow) Capture(ctx context.Context) (string, error) {
	f.mu.Lock()
	if f.state != StateCapturing || f.captureHandle == nil {
		err := f.transitionErr("capture")
		f.mu.Unlock()
		return "", err
	}
	handle := f.captureHandle
	f.mu.Unlock()

	photo, err := f.capture.Trigger(ctx, handle)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateCapturing || f.captureHandle != handle {
		return "", f.transitionErr("capture")
	}
	f.pendingPhoto = photo
	return photo, nil
}

// Retake discards the pending photo and re-acquires the device without
// leaking the previous handle.
func (f *Flow) Retake(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateCapturing {
		return f.transitionErr("retake")
	}

	handle, err := f.capture.Retake(ctx, f.captureHandle)
	if err != nil {
		f.captureHandle = nil
		f.pendingPhoto = ""
		return err
	}
	f.captureHandle = handle
	f.pendingPhoto = ""
	return nil
}

// ConfirmPhoto persists the original photo remotely, releases the device and
// moves on to style selection. The original photo is set once per session.
func (f *Flow) ConfirmPhoto(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateCapturing || f.session == nil || f.captureHandle == nil || f.pendingPhoto == "" {
		return f.transitionErr("photoConfirmed")
	}

	if err := f.remote.SaveOriginalPhoto(ctx, f.session.ID, f.pendingPhoto); err != nil {
		return err
	}

	fallback := f.captureHandle.Fallback()
	f.capture.Release(f.captureHandle)
	f.captureHandle = nil

	f.session.OriginalPhoto = f.pendingPhoto
	f.pendingPhoto = ""
	f.state = StateSelectingStyle

	f.publish(f.session.ID, "capture_completed", supabase.CaptureCompletedPayload(f.session.ID, fallback))
	return nil
}

// Generate runs one generation for the chosen style and moves to Previewing.
// On failure the flow stays put: the failure is surfaced for a manual retry,
// never papered over by advancing with no generated photo.
func (f *Flow) Generate(ctx context.Context, styleID string) error {
	f.mu.Lock()
	if f.state != StateSelectingStyle || f.session == nil {
		err := f.transitionErr("generateRequested")
		f.mu.Unlock()
		return err
	}
	sessionID := f.session.ID
	original := f.session.OriginalPhoto
	f.mu.Unlock()

	session, err := f.generate(ctx, sessionID, original, styleID)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil || f.session.ID != sessionID {
		// The kiosk was reset while generation was running; drop the result.
		return fmt.Errorf("session %s is no longer active", sessionID)
	}
	f.session = session
	if f.state == StateSelectingStyle {
		f.state = StatePreviewing
	}
	return nil
}

// Regenerate replaces the generated photo using the stored original photo
// and style id. It never requires a re-capture and stays on Previewing.
func (f *Flow) Regenerate(ctx context.Context) error {
	f.mu.Lock()
	if f.state != StatePreviewing || f.session == nil {
		err := f.transitionErr("regenerateRequested")
		f.mu.Unlock()
		return err
	}
	sessionID := f.session.ID
	original := f.session.OriginalPhoto
	styleID := f.session.StyleID
	f.mu.Unlock()

	session, err := f.generate(ctx, sessionID, original, styleID)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil || f.session.ID != sessionID {
		return fmt.Errorf("session %s is no longer active", sessionID)
	}
	f.session = session
	return nil
}

// generate runs one generation attempt. It is called WITHOUT f.mu held: the
// remote call can take minutes, and the machine must keep answering
// snapshots and resets while it runs. Duplicate submissions are rejected by
// the coordinator's in-flight guard.
func (f *Flow) generate(ctx context.Context, sessionID, original, styleID string) (*models.Session, error) {
	if original == "" {
		return nil, fmt.Errorf("no original photo to generate from")
	}

	f.publish(sessionID, "generation_started", supabase.GenerationStartedPayload(sessionID, styleID))

	session, err := f.generator.Generate(ctx, sessionID, original, styleID)
	if err != nil {
		f.publish(sessionID, "generation_failed", supabase.GenerationFailedPayload(sessionID, err.Error()))
		return nil, err
	}

	// The remote may omit photo payloads it already holds; the original
	// photo must survive every regeneration byte for byte.
	if session.OriginalPhoto == "" {
		session.OriginalPhoto = original
	}
	if styleID != "" {
		session.StyleID = styleID
	}

	f.publish(sessionID, "generation_completed", supabase.GenerationCompletedPayload(sessionID))
	return session, nil
}

// ConfirmPreview moves Previewing -> PayingForDownload once a generated
// photo exists.
func (f *Flow) ConfirmPreview() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StatePreviewing || f.session == nil || f.session.GeneratedPhoto == "" {
		return f.transitionErr("confirmed")
	}

	f.paymentIntent = nil
	f.paymentResult = nil
	f.state = StatePayingForDownload
	return nil
}

func (f *Flow) amountFor(orderType models.OrderType) int {
	if f.selectedEffect != nil {
		switch orderType {
		case models.OrderDownload:
			if f.selectedEffect.PriceDownload > 0 {
				return f.selectedEffect.PriceDownload
			}
		case models.OrderPrint:
			if f.selectedEffect.PricePrint > 0 {
				return f.selectedEffect.PricePrint
			}
		}
	}
	if orderType == models.OrderPrint {
		return f.pricePrint
	}
	return f.priceDownload
}

// Pay creates one order and payable reference for the current session.
func (f *Flow) Pay(ctx context.Context, orderType models.OrderType) (*models.PaymentIntent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StatePayingForDownload || f.session == nil {
		return nil, f.transitionErr("pay")
	}
	if f.paymentIntent != nil && f.paymentResult == nil {
		return nil, ErrPaymentInProgress
	}

	amount := f.amountFor(orderType)
	intent, err := f.payments.Start(ctx, f.session.ID, orderType, amount)
	if err != nil {
		return nil, err
	}
	intent.Amount = amount

	f.paymentIntent = intent
	f.paymentResult = nil
	return intent, nil
}

// AwaitSettlement polls the started payment to a terminal outcome and, on
// settlement, persists the order locally, publishes the paid artifact and
// moves to Completed. The flow lock is not held while polling, so
// back-navigation can cancel an in-flight poll.
func (f *Flow) AwaitSettlement(ctx context.Context) (payment.Result, error) {
	f.mu.Lock()
	if f.state != StatePayingForDownload || f.paymentIntent == nil {
		f.mu.Unlock()
		return payment.Result{}, f.transitionErr("awaitSettlement")
	}
	pollCtx, cancel := context.WithCancel(ctx)
	f.paymentCancel = cancel
	orderID := f.paymentIntent.OrderID
	f.mu.Unlock()

	result, err := f.payments.PollUntilSettled(pollCtx, orderID)
	cancel()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.paymentCancel = nil

	if err != nil {
		return payment.Result{}, err
	}
	f.paymentResult = &result

	if result.Status != payment.StatusPaid {
		// Leave the screen where it is; the customer can retry or go back.
		f.paymentIntent = nil
		return result, nil
	}

	order := *result.Order
	if order.PaymentTime == 0 {
		order.PaymentTime = f.now().Unix()
	}

	if f.artifacts != nil && f.session != nil && f.session.GeneratedPhoto != "" {
		if url, uploadErr := f.publishArtifact(order); uploadErr != nil {
			f.log.Warn().Err(uploadErr).Str("order_id", order.ID).Msg("failed to publish artifact")
		} else {
			order.DownloadURL = url
		}
	}

	if saveErr := f.ledger.SaveOrder(ctx, order); saveErr != nil {
		// The customer has paid; losing the local ledger entry must not
		// block completion.
		f.log.Error().Err(saveErr).Str("order_id", order.ID).Msg("failed to persist completed order")
	}

	f.lastOrder = &order
	f.publish(order.SessionID, "payment_settled", supabase.PaymentSettledPayload(order.SessionID, order.ID, order.Amount))

	if f.state == StatePayingForDownload {
		f.state = StateCompleted
	}
	result.Order = &order
	f.paymentResult = &result
	return result, nil
}

// publishArtifact uploads the generated photo for download; caller holds f.mu.
func (f *Flow) publishArtifact(order models.Order) (string, error) {
	data, err := decodePhoto(f.session.GeneratedPhoto)
	if err != nil {
		return "", err
	}
	_, url, err := f.artifacts.UploadArtifact(f.session.ID, order.ID, data)
	if err != nil {
		return "", err
	}
	return url, nil
}

// PaymentStatus reports the latest settlement outcome for the UI to poll.
func (f *Flow) PaymentStatus() (intent *models.PaymentIntent, result *payment.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paymentIntent != nil {
		i := *f.paymentIntent
		intent = &i
	}
	if f.paymentResult != nil {
		r := *f.paymentResult
		result = &r
	}
	return intent, result
}

// CancelPayment cancels any in-flight settlement poll and returns to the
// preview screen.
func (f *Flow) CancelPayment() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StatePayingForDownload {
		return f.transitionErr("cancelPayment")
	}

	if f.paymentCancel != nil {
		f.paymentCancel()
	}
	f.paymentIntent = nil
	f.state = StatePreviewing
	return nil
}

// RefreshSession re-reads the session from the remote source of truth.
func (f *Flow) RefreshSession(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.session == nil {
		return fmt.Errorf("no active session")
	}

	session, err := f.remote.GetSession(ctx, f.session.ID)
	if err != nil {
		return err
	}
	if session.OriginalPhoto == "" {
		session.OriginalPhoto = f.session.OriginalPhoto
	}
	if session.GeneratedPhoto == "" {
		session.GeneratedPhoto = f.session.GeneratedPhoto
	}
	f.session = session
	return nil
}

// BackToHome resets the machine from any state: the in-flight poll is
// cancelled, the capture device is released, and every selection and the
// session are discarded. Re-entry always starts a fresh remote session.
func (f *Flow) BackToHome() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.paymentCancel != nil {
		f.paymentCancel()
		f.paymentCancel = nil
	}
	if f.captureHandle != nil {
		f.capture.Release(f.captureHandle)
		f.captureHandle = nil
	}

	f.selectedMode = nil
	f.selectedEffect = nil
	f.session = nil
	f.pendingPhoto = ""
	f.paymentIntent = nil
	f.paymentResult = nil
	f.state = StateHome
}

// Snapshot builds the UI-facing view of the machine.
func (f *Flow) Snapshot() models.FlowStateResponse {
	f.mu.Lock()
	defer f.mu.Unlock()

	resp := models.FlowStateResponse{
		State:  string(f.state),
		Modes:  f.modes,
		Styles: f.styles,
	}
	if f.selectedMode != nil {
		resp.SelectedMode = f.selectedMode.ID
	}
	if f.selectedEffect != nil {
		resp.SelectedEffect = f.selectedEffect.ID
	}
	if f.session != nil {
		resp.SessionID = f.session.ID
		resp.OriginalPhoto = f.session.OriginalPhoto
		resp.GeneratedPhoto = f.session.GeneratedPhoto
	}
	resp.PendingPhoto = f.pendingPhoto
	if f.captureHandle != nil {
		resp.CaptureFallback = f.captureHandle.Fallback()
	}
	return resp
}

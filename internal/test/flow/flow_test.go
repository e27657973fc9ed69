package flow_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"ai-photo-kiosk/internal/capture"
	"ai-photo-kiosk/internal/flow"
	"ai-photo-kiosk/internal/generation"
	"ai-photo-kiosk/internal/models"
	"ai-photo-kiosk/internal/orders"
	"ai-photo-kiosk/internal/payment"
	"ai-photo-kiosk/internal/test/testutil"
)

func newFlow(fake *testutil.FakeRemote) (*flow.Flow, *orders.Memory) {
	controller := capture.NewController(nil, zerolog.Nop()).
		WithCountdown(0, time.Millisecond)
	generator := generation.NewCoordinator(fake, zerolog.Nop())
	payments := payment.NewCoordinator(fake, zerolog.Nop()).
		WithTiming(time.Millisecond, time.Second)
	ledger := orders.NewMemory()

	return flow.New(fake, controller, generator, payments, ledger, zerolog.Nop()), ledger
}

// advanceToStyle walks a fresh flow up to the style screen with a confirmed
// original photo.
func advanceToStyle(t *testing.T, f *flow.Flow) string {
	t.Helper()
	ctx := context.Background()

	assert.NoError(t, f.Start(ctx))
	assert.NoError(t, f.ChooseMode("mode-portrait"))
	assert.NoError(t, f.ConfirmEffect(ctx))

	photo, err := f.Capture(ctx)
	assert.NoError(t, err)
	assert.NotEmpty(t, photo)

	assert.NoError(t, f.ConfirmPhoto(ctx))
	assert.Equal(t, flow.StateSelectingStyle, f.State())
	return photo
}

func TestFlow_HappyPath(t *testing.T) {
	fake := testutil.NewFakeRemote()
	fake.Settlements = []models.SettlementState{
		models.SettlementPending,
		models.SettlementSuccess,
	}
	f, ledger := newFlow(fake)
	ctx := context.Background()

	assert.Equal(t, flow.StateHome, f.State())

	assert.NoError(t, f.Start(ctx))
	assert.Equal(t, flow.StateSelectingMode, f.State())
	assert.Len(t, f.Snapshot().Modes, 2)

	assert.NoError(t, f.ChooseMode("mode-portrait"))
	assert.Equal(t, flow.StateSelectingEffect, f.State())
	// The first effect is selected by default.
	assert.Equal(t, "effect-classic", f.Snapshot().SelectedEffect)

	assert.NoError(t, f.ChooseEffect("effect-noir"))
	assert.Equal(t, "effect-noir", f.Snapshot().SelectedEffect)

	assert.NoError(t, f.ConfirmEffect(ctx))
	assert.Equal(t, flow.StateCapturing, f.State())
	session := f.Session()
	assert.NotNil(t, session)
	assert.Equal(t, "effect-noir", session.EffectID)

	photo, err := f.Capture(ctx)
	assert.NoError(t, err)
	assert.NotEmpty(t, photo)

	assert.NoError(t, f.ConfirmPhoto(ctx))
	assert.Equal(t, flow.StateSelectingStyle, f.State())
	assert.Equal(t, photo, fake.Session(session.ID).OriginalPhoto)

	assert.NoError(t, f.Generate(ctx, "style-vintage"))
	assert.Equal(t, flow.StatePreviewing, f.State())
	session = f.Session()
	assert.NotEmpty(t, session.GeneratedPhoto)
	assert.Equal(t, photo, session.OriginalPhoto)

	assert.NoError(t, f.ConfirmPreview())
	assert.Equal(t, flow.StatePayingForDownload, f.State())

	intent, err := f.Pay(ctx, models.OrderDownload)
	assert.NoError(t, err)
	assert.Equal(t, 300, intent.Amount)
	assert.NotEmpty(t, intent.PaymentRef)

	result, err := f.AwaitSettlement(ctx)
	assert.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, result.Status)
	assert.Equal(t, flow.StateCompleted, f.State())

	// The settled order landed in the local ledger.
	saved, err := ledger.GetOrder(ctx, intent.OrderID)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderPaid, saved.Status)
	assert.Equal(t, session.ID, saved.SessionID)

	last := f.LastOrder()
	assert.NotNil(t, last)
	assert.Equal(t, intent.OrderID, last.ID)

	f.BackToHome()
	assert.Equal(t, flow.StateHome, f.State())
	assert.Nil(t, f.Session())
}

func TestFlow_Start_CatalogFailureStaysHome(t *testing.T) {
	fake := testutil.NewFakeRemote()
	fake.Errors["list_modes"] = assert.AnError
	f, _ := newFlow(fake)

	err := f.Start(context.Background())

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, flow.StateHome, f.State())

	// The failure is retryable.
	delete(fake.Errors, "list_modes")
	assert.NoError(t, f.Start(context.Background()))
	assert.Equal(t, flow.StateSelectingMode, f.State())
}

func TestFlow_ChooseMode_RejectsModeWithoutEffects(t *testing.T) {
	fake := testutil.NewFakeRemote()
	f, _ := newFlow(fake)

	assert.NoError(t, f.Start(context.Background()))

	err := f.ChooseMode("mode-empty")

	assert.Error(t, err)
	assert.Equal(t, flow.StateSelectingMode, f.State())
}

func TestFlow_InvalidTransitions(t *testing.T) {
	fake := testutil.NewFakeRemote()
	f, _ := newFlow(fake)
	ctx := context.Background()

	_, err := f.Capture(ctx)
	assert.ErrorIs(t, err, flow.ErrInvalidTransition)

	assert.ErrorIs(t, f.ChooseMode("mode-portrait"), flow.ErrInvalidTransition)
	assert.ErrorIs(t, f.Generate(ctx, ""), flow.ErrInvalidTransition)
	assert.ErrorIs(t, f.ConfirmPreview(), flow.ErrInvalidTransition)

	_, err = f.Pay(ctx, models.OrderDownload)
	assert.ErrorIs(t, err, flow.ErrInvalidTransition)

	// Starting twice is also a transition error.
	assert.NoError(t, f.Start(ctx))
	assert.ErrorIs(t, f.Start(ctx), flow.ErrInvalidTransition)
}

func TestFlow_Retake_DiscardsPendingPhoto(t *testing.T) {
	fake := testutil.NewFakeRemote()
	f, _ := newFlow(fake)
	ctx := context.Background()

	assert.NoError(t, f.Start(ctx))
	assert.NoError(t, f.ChooseMode("mode-portrait"))
	assert.NoError(t, f.ConfirmEffect(ctx))

	_, err := f.Capture(ctx)
	assert.NoError(t, err)
	assert.NotEmpty(t, f.Snapshot().PendingPhoto)

	assert.NoError(t, f.Retake(ctx))
	assert.Empty(t, f.Snapshot().PendingPhoto)
	assert.Equal(t, flow.StateCapturing, f.State())

	// Confirming without a new capture is rejected.
	assert.ErrorIs(t, f.ConfirmPhoto(ctx), flow.ErrInvalidTransition)
}

func TestFlow_GenerationFailureStaysOnStyleScreen(t *testing.T) {
	fake := testutil.NewFakeRemote()
	fake.Errors["generate_photo"] = assert.AnError
	f, _ := newFlow(fake)
	ctx := context.Background()

	photo := advanceToStyle(t, f)

	err := f.Generate(ctx, "style-vintage")

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, flow.StateSelectingStyle, f.State())
	session := f.Session()
	assert.Empty(t, session.GeneratedPhoto)
	assert.Equal(t, photo, session.OriginalPhoto)

	// Retry succeeds once the remote side recovers.
	delete(fake.Errors, "generate_photo")
	assert.NoError(t, f.Generate(ctx, "style-vintage"))
	assert.Equal(t, flow.StatePreviewing, f.State())
}

func TestFlow_RegeneratePreservesOriginalPhoto(t *testing.T) {
	fake := testutil.NewFakeRemote()
	f, _ := newFlow(fake)
	ctx := context.Background()

	photo := advanceToStyle(t, f)
	assert.NoError(t, f.Generate(ctx, "style-vintage"))

	firstGenerated := f.Session().GeneratedPhoto

	// The remote omits the original photo payload in its response; the
	// flow must keep its own copy.
	fake.GenerateFn = func(_ context.Context, sessionID, _, styleID string) (*models.Session, error) {
		return &models.Session{
			ID:             sessionID,
			StyleID:        styleID,
			GeneratedPhoto: "regenerated",
			Status:         models.SessionPreviewing,
		}, nil
	}

	assert.NoError(t, f.Regenerate(ctx))
	assert.Equal(t, flow.StatePreviewing, f.State())

	session := f.Session()
	assert.Equal(t, "regenerated", session.GeneratedPhoto)
	assert.NotEqual(t, firstGenerated, session.GeneratedPhoto)
	assert.Equal(t, photo, session.OriginalPhoto)
	assert.Equal(t, "style-vintage", session.StyleID)
}

func advanceToPayment(t *testing.T, f *flow.Flow) {
	t.Helper()
	ctx := context.Background()
	advanceToStyle(t, f)
	assert.NoError(t, f.Generate(ctx, "style-vintage"))
	assert.NoError(t, f.ConfirmPreview())
}

func TestFlow_Pay_PrintUsesPrintPrice(t *testing.T) {
	fake := testutil.NewFakeRemote()
	f, _ := newFlow(fake)

	advanceToPayment(t, f)

	intent, err := f.Pay(context.Background(), models.OrderPrint)

	assert.NoError(t, err)
	assert.Equal(t, 1000, intent.Amount)
}

func TestFlow_CancelPaymentReturnsToPreview(t *testing.T) {
	fake := testutil.NewFakeRemote()
	f, _ := newFlow(fake)
	ctx := context.Background()

	advanceToPayment(t, f)

	_, err := f.Pay(ctx, models.OrderDownload)
	assert.NoError(t, err)

	// Settlement never arrives; the poll runs until cancelled.
	done := make(chan payment.Result, 1)
	go func() {
		result, err := f.AwaitSettlement(context.Background())
		assert.NoError(t, err)
		done <- result
	}()

	// Give the poll a moment to start before cancelling it.
	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, f.CancelPayment())

	select {
	case result := <-done:
		assert.Equal(t, payment.StatusCancelled, result.Status)
	case <-time.After(time.Second):
		t.Fatal("settlement poll did not stop after cancel")
	}

	assert.Equal(t, flow.StatePreviewing, f.State())

	// The customer can go back to payment and try again.
	assert.NoError(t, f.ConfirmPreview())
	_, err = f.Pay(ctx, models.OrderDownload)
	assert.NoError(t, err)
}

func TestFlow_PaymentTimeoutAllowsRetry(t *testing.T) {
	fake := testutil.NewFakeRemote()
	controller := capture.NewController(nil, zerolog.Nop()).
		WithCountdown(0, time.Millisecond)
	generator := generation.NewCoordinator(fake, zerolog.Nop())
	payments := payment.NewCoordinator(fake, zerolog.Nop()).
		WithTiming(time.Millisecond, 10*time.Millisecond)
	f := flow.New(fake, controller, generator, payments, orders.NewMemory(), zerolog.Nop())
	ctx := context.Background()

	advanceToPayment(t, f)

	_, err := f.Pay(ctx, models.OrderDownload)
	assert.NoError(t, err)

	result, err := f.AwaitSettlement(ctx)
	assert.NoError(t, err)
	assert.Equal(t, payment.StatusTimedOut, result.Status)
	assert.Equal(t, flow.StatePayingForDownload, f.State())

	// The timed-out attempt no longer blocks a fresh one.
	fake.Settlements = []models.SettlementState{models.SettlementSuccess}
	_, err = f.Pay(ctx, models.OrderDownload)
	assert.NoError(t, err)

	result, err = f.AwaitSettlement(ctx)
	assert.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, result.Status)
	assert.Equal(t, flow.StateCompleted, f.State())
}

func TestFlow_BackToHomeFromAnyState(t *testing.T) {
	fake := testutil.NewFakeRemote()
	f, _ := newFlow(fake)
	ctx := context.Background()

	advanceToPayment(t, f)
	firstSession := f.Session().ID

	f.BackToHome()
	assert.Equal(t, flow.StateHome, f.State())
	assert.Nil(t, f.Session())

	snapshot := f.Snapshot()
	assert.Empty(t, snapshot.SelectedMode)
	assert.Empty(t, snapshot.SelectedEffect)
	assert.Empty(t, snapshot.PendingPhoto)

	// Re-entry starts a fresh remote session.
	assert.NoError(t, f.Start(ctx))
	assert.NoError(t, f.ChooseMode("mode-portrait"))
	assert.NoError(t, f.ConfirmEffect(ctx))
	assert.NotEqual(t, firstSession, f.Session().ID)
}

func TestFlow_ResponsiveDuringGeneration(t *testing.T) {
	fake := testutil.NewFakeRemote()
	started := make(chan struct{})
	release := make(chan struct{})
	fake.GenerateFn = func(_ context.Context, sessionID, photo, styleID string) (*models.Session, error) {
		close(started)
		<-release
		return &models.Session{
			ID:             sessionID,
			OriginalPhoto:  photo,
			StyleID:        styleID,
			GeneratedPhoto: "generated",
			Status:         models.SessionPreviewing,
		}, nil
	}
	f, _ := newFlow(fake)

	advanceToStyle(t, f)

	genDone := make(chan error, 1)
	go func() { genDone <- f.Generate(context.Background(), "style-vintage") }()
	<-started

	// State queries keep answering while the slow remote call runs.
	stateDone := make(chan flow.State, 1)
	go func() { stateDone <- f.State() }()
	select {
	case state := <-stateDone:
		assert.Equal(t, flow.StateSelectingStyle, state)
	case <-time.After(time.Second):
		t.Fatal("state query blocked while generation in flight")
	}

	// A duplicate request fails fast instead of queueing behind the first.
	err := f.Generate(context.Background(), "style-vintage")
	assert.ErrorIs(t, err, generation.ErrAlreadyInFlight)

	// The kiosk can still be reset.
	homeDone := make(chan struct{})
	go func() { f.BackToHome(); close(homeDone) }()
	select {
	case <-homeDone:
	case <-time.After(time.Second):
		t.Fatal("reset blocked while generation in flight")
	}
	assert.Equal(t, flow.StateHome, f.State())

	// The stale result is dropped once the call finally returns.
	close(release)
	select {
	case err := <-genDone:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("generation did not finish")
	}
	assert.Equal(t, flow.StateHome, f.State())
	assert.Nil(t, f.Session())
}

type blockingDevice struct {
	sampling chan struct{}
	proceed  chan struct{}
}

func (d *blockingDevice) Open(_ context.Context) error { return nil }

func (d *blockingDevice) Frame(_ context.Context) ([]byte, error) {
	close(d.sampling)
	<-d.proceed
	return []byte("frame"), nil
}

func (d *blockingDevice) Close() error { return nil }

func TestFlow_ResponsiveDuringCapture(t *testing.T) {
	fake := testutil.NewFakeRemote()
	device := &blockingDevice{
		sampling: make(chan struct{}),
		proceed:  make(chan struct{}),
	}
	controller := capture.NewController(device, zerolog.Nop()).
		WithCountdown(0, time.Millisecond)
	generator := generation.NewCoordinator(fake, zerolog.Nop())
	payments := payment.NewCoordinator(fake, zerolog.Nop()).
		WithTiming(time.Millisecond, time.Second)
	f := flow.New(fake, controller, generator, payments, orders.NewMemory(), zerolog.Nop())
	ctx := context.Background()

	assert.NoError(t, f.Start(ctx))
	assert.NoError(t, f.ChooseMode("mode-portrait"))
	assert.NoError(t, f.ConfirmEffect(ctx))

	capDone := make(chan error, 1)
	go func() {
		_, err := f.Capture(context.Background())
		capDone <- err
	}()
	<-device.sampling

	// Snapshots keep answering while the capture is in progress.
	stateDone := make(chan flow.State, 1)
	go func() { stateDone <- f.State() }()
	select {
	case state := <-stateDone:
		assert.Equal(t, flow.StateCapturing, state)
	case <-time.After(time.Second):
		t.Fatal("state query blocked while capture in flight")
	}

	// The kiosk can still be reset mid-capture.
	homeDone := make(chan struct{})
	go func() { f.BackToHome(); close(homeDone) }()
	select {
	case <-homeDone:
	case <-time.After(time.Second):
		t.Fatal("reset blocked while capture in flight")
	}

	// The late frame is dropped, not committed into the reset machine.
	close(device.proceed)
	select {
	case err := <-capDone:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("capture did not finish")
	}
	assert.Equal(t, flow.StateHome, f.State())
	assert.Empty(t, f.Snapshot().PendingPhoto)
}

func TestFlow_PayTwiceWhilePollingIsRejected(t *testing.T) {
	fake := testutil.NewFakeRemote()
	f, _ := newFlow(fake)
	ctx := context.Background()

	advanceToPayment(t, f)

	_, err := f.Pay(ctx, models.OrderDownload)
	assert.NoError(t, err)

	_, err = f.Pay(ctx, models.OrderDownload)
	assert.ErrorIs(t, err, flow.ErrPaymentInProgress)
}

package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ai-photo-kiosk/internal/models"
	"ai-photo-kiosk/internal/remote"
)

const (
	// DefaultPollInterval is the fixed cadence at which settlement is queried.
	DefaultPollInterval = 2 * time.Second
	// DefaultMaxWait bounds one payment attempt; the original kiosk polled
	// forever, which left abandoned QR codes spinning until a staff reset.
	DefaultMaxWait = 5 * time.Minute
)

// Status is the terminal outcome of one settlement poll.
type Status string

const (
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusTimedOut  Status = "timed_out"
)

// Result carries the outcome and, when paid, the finalized order fetched
// from the remote side.
type Result struct {
	Status Status
	Order  *models.Order
}

// Coordinator drives one payment attempt for one order to a terminal
// outcome: it creates the order and payable reference, then polls settlement
// at a fixed interval until SUCCESS, FAILED, cancellation, or the max-wait
// bound. The sleep is injectable so tests control the clock.
type Coordinator struct {
	remote   remote.Service
	log      zerolog.Logger
	interval time.Duration
	maxWait  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

func NewCoordinator(svc remote.Service, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		remote:   svc,
		log:      log.With().Str("component", "payment").Logger(),
		interval: DefaultPollInterval,
		maxWait:  DefaultMaxWait,
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

// WithTiming overrides the poll cadence and maximum wait.
func (c *Coordinator) WithTiming(interval, maxWait time.Duration) *Coordinator {
	if interval > 0 {
		c.interval = interval
	}
	if maxWait > 0 {
		c.maxWait = maxWait
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Start creates exactly one order and one payable reference. The amount is
// forwarded unmodified; the remote side owns validation.
func (c *Coordinator) Start(ctx context.Context, sessionID string, orderType models.OrderType, amount int) (*models.PaymentIntent, error) {
	if !orderType.Valid() {
		return nil, fmt.Errorf("invalid order type %q", orderType)
	}

	intent, err := c.remote.CreatePayment(ctx, sessionID, orderType, amount)
	if err != nil {
		return nil, err
	}

	c.log.Info().
		Str("session_id", sessionID).
		Str("order_id", intent.OrderID).
		Int("amount", amount).
		Msg("payment intent created")
	return intent, nil
}

// PollUntilSettled queries settlement state every interval until a terminal
// outcome. Cancellation is cooperative: the context is checked before each
// query and each wait, and a cancelled poll is a Result, not an error. A
// transient query failure counts as PENDING and is retried on the same
// cadence; only an explicit FAILED result ends polling as a failure.
func (c *Coordinator) PollUntilSettled(ctx context.Context, orderID string) (Result, error) {
	deadline := c.now().Add(c.maxWait)

	for {
		if ctx.Err() != nil {
			c.log.Info().Str("order_id", orderID).Msg("settlement poll cancelled")
			return Result{Status: StatusCancelled}, nil
		}

		state, err := c.remote.QueryPayment(ctx, orderID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return Result{Status: StatusCancelled}, nil
			}
			// Transient: keep the cadence and ask again.
			c.log.Warn().Err(err).Str("order_id", orderID).Msg("settlement query failed, retrying")
		case state == models.SettlementSuccess:
			order, err := c.remote.GetOrder(ctx, orderID)
			if err != nil {
				return Result{}, fmt.Errorf("settled but failed to fetch order %s: %w", orderID, err)
			}
			c.log.Info().Str("order_id", orderID).Msg("payment settled")
			return Result{Status: StatusPaid, Order: order}, nil
		case state == models.SettlementFailed:
			c.log.Warn().Str("order_id", orderID).Msg("payment failed")
			return Result{Status: StatusFailed}, nil
		}

		if c.now().After(deadline) {
			c.log.Warn().Str("order_id", orderID).Dur("max_wait", c.maxWait).Msg("settlement poll timed out")
			return Result{Status: StatusTimedOut}, nil
		}

		if err := c.sleep(ctx, c.interval); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Result{Status: StatusCancelled}, nil
			}
			return Result{}, err
		}
	}
}

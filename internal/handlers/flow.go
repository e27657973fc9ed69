package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ai-photo-kiosk/internal/flow"
	"ai-photo-kiosk/internal/generation"
	"ai-photo-kiosk/internal/models"
	"ai-photo-kiosk/internal/remote"
)

// FlowHandler exposes the kiosk state machine over HTTP for the touchscreen
// front-end. Every endpoint is an event on the machine; the machine decides
// whether the event is legal in its current state.
type FlowHandler struct {
	flow *flow.Flow
	log  zerolog.Logger
}

func NewFlowHandler(f *flow.Flow, log zerolog.Logger) *FlowHandler {
	return &FlowHandler{
		flow: f,
		log:  log.With().Str("component", "flow_handler").Logger(),
	}
}

func (h *FlowHandler) respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, flow.ErrInvalidTransition):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "invalid transition", Message: err.Error()})
	case errors.Is(err, flow.ErrPaymentInProgress):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "payment in progress", Message: err.Error()})
	case errors.Is(err, generation.ErrAlreadyInFlight):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "generation in progress", Message: err.Error()})
	case errors.Is(err, remote.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found", Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "operation failed", Message: err.Error()})
	}
}

// GetState returns the full UI snapshot of the machine.
func (h *FlowHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.flow.Snapshot())
}

// Start loads the catalog and leaves the home screen.
func (h *FlowHandler) Start(c *gin.Context) {
	if err := h.flow.Start(c.Request.Context()); err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.flow.Snapshot())
}

func (h *FlowHandler) ChooseMode(c *gin.Context) {
	var req models.ChooseModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	if err := h.flow.ChooseMode(req.ModeID); err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.flow.Snapshot())
}

func (h *FlowHandler) ChooseEffect(c *gin.Context) {
	var req models.ChooseEffectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	if err := h.flow.ChooseEffect(req.EffectID); err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.flow.Snapshot())
}

// ConfirmEffect creates the remote session and opens the camera.
func (h *FlowHandler) ConfirmEffect(c *gin.Context) {
	if err := h.flow.ConfirmEffect(c.Request.Context()); err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.flow.Snapshot())
}

// Capture runs the countdown and returns the captured frame.
func (h *FlowHandler) Capture(c *gin.Context) {
	photo, err := h.flow.Capture(c.Request.Context())
	if err != nil {
		h.respondErr(c, err)
		return
	}

	snapshot := h.flow.Snapshot()
	c.JSON(http.StatusOK, models.CaptureResponse{
		Photo:    photo,
		Fallback: snapshot.CaptureFallback,
	})
}

func (h *FlowHandler) Retake(c *gin.Context) {
	if err := h.flow.Retake(c.Request.Context()); err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.flow.Snapshot())
}

func (h *FlowHandler) ConfirmPhoto(c *gin.Context) {
	if err := h.flow.ConfirmPhoto(c.Request.Context()); err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.flow.Snapshot())
}

// Generate runs one generation with the chosen style. The request blocks
// until the generation finishes; the remote call carries its own timeout.
func (h *FlowHandler) Generate(c *gin.Context) {
	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	if err := h.flow.Generate(c.Request.Context(), req.StyleID); err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.flow.Snapshot())
}

func (h *FlowHandler) Regenerate(c *gin.Context) {
	if err := h.flow.Regenerate(c.Request.Context()); err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.flow.Snapshot())
}

func (h *FlowHandler) ConfirmPreview(c *gin.Context) {
	if err := h.flow.ConfirmPreview(); err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.flow.Snapshot())
}

// StartPayment creates the order and payable reference, then polls settlement
// in the background. The UI follows up on GET /flow/payment.
func (h *FlowHandler) StartPayment(c *gin.Context) {
	var req models.StartPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	intent, err := h.flow.Pay(c.Request.Context(), models.OrderType(req.OrderType))
	if err != nil {
		h.respondErr(c, err)
		return
	}

	// The poll outlives this request; cancellation happens through the
	// machine, not the request context.
	go func() {
		if _, err := h.flow.AwaitSettlement(context.Background()); err != nil {
			h.log.Error().Err(err).Str("order_id", intent.OrderID).Msg("settlement poll ended with error")
		}
	}()

	c.JSON(http.StatusOK, models.PaymentIntentResponse{
		OrderID:    intent.OrderID,
		PaymentRef: intent.PaymentRef,
		Amount:     intent.Amount,
	})
}

// PaymentStatus reports the current payment outcome, "pending" while the
// poll is still running.
func (h *FlowHandler) PaymentStatus(c *gin.Context) {
	intent, result := h.flow.PaymentStatus()
	if intent == nil && result == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "no payment attempt"})
		return
	}

	resp := models.PaymentStatusResponse{Status: "pending"}
	if result != nil {
		resp.Status = string(result.Status)
		resp.Order = result.Order
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FlowHandler) CancelPayment(c *gin.Context) {
	if err := h.flow.CancelPayment(); err != nil {
		h.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.flow.Snapshot())
}

// Home resets the machine from any state.
func (h *FlowHandler) Home(c *gin.Context) {
	h.flow.BackToHome()
	c.JSON(http.StatusOK, h.flow.Snapshot())
}

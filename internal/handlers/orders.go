package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ai-photo-kiosk/internal/models"
	"ai-photo-kiosk/internal/orders"
)

// OrdersHandler serves the local order ledger to operators for
// reconciliation against the remote side.
type OrdersHandler struct {
	store orders.Store
	log   zerolog.Logger
}

func NewOrdersHandler(store orders.Store, log zerolog.Logger) *OrdersHandler {
	return &OrdersHandler{
		store: store,
		log:   log.With().Str("component", "orders_handler").Logger(),
	}
}

func (h *OrdersHandler) ListOrders(c *gin.Context) {
	list, err := h.store.ListOrders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list orders",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, models.OrderListResponse{Orders: list})
}

func (h *OrdersHandler) GetOrder(c *gin.Context) {
	orderID := c.Param("order_id")

	order, err := h.store.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "order not found",
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, order)
}

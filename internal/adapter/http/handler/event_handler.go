package handler

import (
	"driver-settlement-engine/internal/adapter/http/dto"
	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"
	"driver-settlement-engine/pkg/apperror"
	"driver-settlement-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// EventHandler receives lifecycle webhooks from the dispatch service.
type EventHandler struct {
	orderSvc ports.OrderService
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(orderSvc ports.OrderService) *EventHandler {
	return &EventHandler{orderSvc: orderSvc}
}

// OrderDelivered handles POST /api/v1/events/order-delivered.
// Settlement runs synchronously; the audit continues in the background, hence 202.
func (h *EventHandler) OrderDelivered(c *gin.Context) {
	var req dto.OrderDeliveredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	evt := domain.OrderDeliveredEvent{OrderID: req.OrderID, DriverID: req.DriverID}
	if req.DeliveredAt != nil {
		evt.DeliveredAt = *req.DeliveredAt
	}

	order, err := h.orderSvc.MarkDelivered(c.Request.Context(), evt)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.NewOrderResponse(order))
}

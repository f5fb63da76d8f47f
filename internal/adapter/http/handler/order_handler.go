package handler

import (
	"driver-settlement-engine/internal/adapter/http/dto"
	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"
	"driver-settlement-engine/pkg/apperror"
	"driver-settlement-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// OrderHandler handles the order lifecycle endpoints.
type OrderHandler struct {
	orderSvc     ports.OrderService
	reportingSvc ports.ReportingService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc ports.OrderService, reportingSvc ports.ReportingService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc, reportingSvc: reportingSvc}
}

// Create handles POST /api/v1/orders.
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	order, err := h.orderSvc.Create(c.Request.Context(), ports.CreateOrderRequest{
		ID:            req.ID,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		BaseFee:       dto.ParseAmount(req.BaseFee),
		Tip:           dto.ParseAmount(req.Tip),
		TotalAmount:   dto.ParseAmount(req.TotalAmount),
		BusinessID:    req.BusinessID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.NewOrderResponse(order))
}

// Get handles GET /api/v1/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.orderSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewOrderResponse(order))
}

// Transition handles POST /api/v1/orders/:id/transition.
func (h *OrderHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	order, err := h.orderSvc.Transition(c.Request.Context(), c.Param("id"), domain.OrderStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewOrderResponse(order))
}

// Assign handles POST /api/v1/orders/:id/assign.
func (h *OrderHandler) Assign(c *gin.Context) {
	var req dto.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	order, err := h.orderSvc.Assign(c.Request.Context(), c.Param("id"), req.DriverID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewOrderResponse(order))
}

// Settlement handles GET /api/v1/orders/:id/settlement.
func (h *OrderHandler) Settlement(c *gin.Context) {
	ctx := c.Request.Context()
	order, err := h.orderSvc.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	view, err := h.reportingSvc.GetOrderSettlement(ctx, order.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewOrderSettlementResponse(order, view))
}

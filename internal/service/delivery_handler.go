package service

import (
	"context"

	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"
	"driver-settlement-engine/pkg/apperror"

	"github.com/rs/zerolog"
)

// deliveryHandler settles a delivered order and then starts its audit.
type deliveryHandler struct {
	orders     ports.OrderRepository
	settlement ports.SettlementService
	reconciler ports.AuditReconciler
	log        zerolog.Logger
}

// NewDeliveryHandler creates the OrderDeliveredEvent consumer.
func NewDeliveryHandler(
	orders ports.OrderRepository,
	settlement ports.SettlementService,
	reconciler ports.AuditReconciler,
	log zerolog.Logger,
) ports.DeliveryHandler {
	return &deliveryHandler{orders: orders, settlement: settlement, reconciler: reconciler, log: log}
}

// HandleDelivered settles the stored order; amounts never come from the event payload.
// The audit starts only after a successful settle.
func (h *deliveryHandler) HandleDelivered(ctx context.Context, evt domain.OrderDeliveredEvent) (*domain.SettlementResult, error) {
	order, err := h.orders.GetByID(ctx, evt.OrderID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}

	result, err := h.settlement.Settle(ctx, order)
	if err != nil {
		return nil, err
	}

	if h.reconciler != nil {
		h.reconciler.ReconcileAsync(*order, result.SystemCalculation)
	}
	return result, nil
}

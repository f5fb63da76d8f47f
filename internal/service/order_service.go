package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"
	"driver-settlement-engine/pkg/apperror"

	"github.com/rs/zerolog"
)

// OrderServiceImpl implements ports.OrderService: the order lifecycle graph.
type OrderServiceImpl struct {
	repo     ports.OrderRepository
	gate     ports.DebtGate
	delivery ports.DeliveryHandler
	log      zerolog.Logger
	now      func() time.Time
}

// NewOrderService creates a new OrderServiceImpl.
func NewOrderService(
	repo ports.OrderRepository,
	gate ports.DebtGate,
	delivery ports.DeliveryHandler,
	log zerolog.Logger,
) *OrderServiceImpl {
	return &OrderServiceImpl{
		repo:     repo,
		gate:     gate,
		delivery: delivery,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new order in CREATED.
func (s *OrderServiceImpl) Create(ctx context.Context, req ports.CreateOrderRequest) (*domain.Order, error) {
	if strings.TrimSpace(req.ID) == "" {
		return nil, apperror.ErrInvalidOrder("order id is required")
	}
	if !req.PaymentMethod.IsValid() {
		return nil, apperror.ErrInvalidOrder(fmt.Sprintf("unknown payment method %q", req.PaymentMethod))
	}
	if req.Tip.IsNegative() || req.TotalAmount.IsNegative() || req.BaseFee.IsNegative() {
		return nil, apperror.ErrInvalidOrder("amounts must not be negative")
	}

	existing, err := s.repo.GetByID(ctx, req.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if existing != nil {
		return nil, apperror.ErrInvalidOrder(fmt.Sprintf("order %s already exists", req.ID))
	}

	now := s.now()
	order := &domain.Order{
		ID:            req.ID,
		PaymentMethod: req.PaymentMethod,
		Status:        domain.OrderStatusCreated,
		BaseFee:       domain.RoundMoney(req.BaseFee),
		Tip:           domain.RoundMoney(req.Tip),
		TotalAmount:   domain.RoundMoney(req.TotalAmount),
		BusinessID:    req.BusinessID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	s.log.Info().
		Str("order_id", order.ID).
		Str("payment_method", string(order.PaymentMethod)).
		Str("amount", order.TotalAmount.StringFixed(2)).
		Msg("order created")
	return order, nil
}

// Get returns an order or ORD_002.
func (s *OrderServiceImpl) Get(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	return order, nil
}

// Transition moves an order along one edge of the lifecycle graph.
// ASSIGNED is only reachable through Assign, which records the driver.
func (s *OrderServiceImpl) Transition(ctx context.Context, id string, target domain.OrderStatus) (*domain.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(target) {
		return nil, apperror.ErrInvalidTransition(string(order.Status), string(target))
	}
	if target == domain.OrderStatusAssigned {
		return nil, apperror.ErrInvalidOrder("orders are assigned through the assign operation")
	}

	now := s.now()
	var terminalAt *time.Time
	if target.IsTerminal() {
		terminalAt = &now
	}

	ok, err := s.repo.UpdateStatus(ctx, id, order.Status, target, terminalAt)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if !ok {
		return nil, apperror.ErrConcurrentModification()
	}

	from := order.Status
	order.Status = target
	order.UpdatedAt = now
	if terminalAt != nil {
		order.TerminalAt = terminalAt
	}

	s.log.Info().
		Str("order_id", id).
		Str("from", string(from)).
		Str("to", string(target)).
		Msg("order transitioned")

	if target == domain.OrderStatusDelivered {
		s.emitDelivered(ctx, order)
	}
	return order, nil
}

// Assign records the driver and moves SEARCHING_DRIVER to ASSIGNED.
// Cash orders go through the debt gate first.
func (s *OrderServiceImpl) Assign(ctx context.Context, id string, driverID string) (*domain.Order, error) {
	if strings.TrimSpace(driverID) == "" {
		return nil, apperror.Validation("driver_id is required")
	}
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(domain.OrderStatusAssigned) {
		return nil, apperror.ErrInvalidTransition(string(order.Status), string(domain.OrderStatusAssigned))
	}

	if order.PaymentMethod == domain.PaymentMethodCash {
		res, err := s.gate.Check(ctx, ports.AssignmentEligibilityQuery{
			DriverID:           driverID,
			OrderPaymentMethod: order.PaymentMethod,
		})
		if err != nil {
			return nil, err
		}
		if !res.Eligible {
			return nil, apperror.ErrDebtLimitExceeded()
		}
	}

	ok, err := s.repo.AssignDriver(ctx, id, driverID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if !ok {
		return nil, apperror.ErrConcurrentModification()
	}

	order.Status = domain.OrderStatusAssigned
	order.DriverID = &driverID
	order.UpdatedAt = s.now()

	s.log.Info().Str("order_id", id).Str("driver_id", driverID).Msg("order assigned")
	return order, nil
}

// MarkDelivered applies a delivered webhook. A duplicate for an order that is
// already DELIVERED re-emits the event; settlement idempotency absorbs it.
func (s *OrderServiceImpl) MarkDelivered(ctx context.Context, evt domain.OrderDeliveredEvent) (*domain.Order, error) {
	order, err := s.Get(ctx, evt.OrderID)
	if err != nil {
		return nil, err
	}
	if evt.DriverID != "" && order.HasDriver() && *order.DriverID != evt.DriverID {
		return nil, apperror.ErrInvalidOrder(fmt.Sprintf("order %s is assigned to another driver", order.ID))
	}

	if order.Status == domain.OrderStatusDelivered {
		s.log.Info().Str("order_id", order.ID).Msg("duplicate delivered event")
		s.emitDelivered(ctx, order)
		return order, nil
	}
	return s.Transition(ctx, evt.OrderID, domain.OrderStatusDelivered)
}

// emitDelivered hands the event to the delivery handler. Settlement is detached
// from the caller's cancellation once the order is DELIVERED. A failed settlement
// leaves the order DELIVERED and unsettled for the sweep to retry.
func (s *OrderServiceImpl) emitDelivered(ctx context.Context, order *domain.Order) {
	if s.delivery == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if _, err := s.delivery.HandleDelivered(ctx, domain.NewOrderDeliveredEvent(order)); err != nil {
		s.log.Error().Err(err).Str("order_id", order.ID).Msg("delivered order not settled")
	}
}

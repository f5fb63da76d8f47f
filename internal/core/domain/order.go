package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how the customer paid for an order.
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "CASH"
	PaymentMethodCard PaymentMethod = "CARD"
)

// IsValid reports whether m is a known payment method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard:
		return true
	}
	return false
}

// OrderStatus represents the lifecycle state of a delivery order.
type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "CREATED"
	OrderStatusSearchingDriver OrderStatus = "SEARCHING_DRIVER"
	OrderStatusAssigned        OrderStatus = "ASSIGNED"
	OrderStatusAccepted        OrderStatus = "ACCEPTED"
	OrderStatusStarted         OrderStatus = "STARTED"
	OrderStatusPickedUp        OrderStatus = "PICKED_UP"
	OrderStatusInTransit       OrderStatus = "IN_TRANSIT"
	OrderStatusArrived         OrderStatus = "ARRIVED"
	OrderStatusDelivered       OrderStatus = "DELIVERED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusFailed          OrderStatus = "FAILED"
)

// IsValid reports whether s is a known order status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusSearchingDriver, OrderStatusAssigned,
		OrderStatusAccepted, OrderStatusStarted, OrderStatusPickedUp,
		OrderStatusInTransit, OrderStatusArrived, OrderStatusDelivered,
		OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true if no further transition is defined from s.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo checks whether the lifecycle graph has an edge s -> target.
// ACCEPTED and STARTED are optional steps; CANCELLED and FAILED are reachable
// from every non-terminal state.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if s.IsTerminal() || !target.IsValid() {
		return false
	}
	if target == OrderStatusCancelled || target == OrderStatusFailed {
		return true
	}

	switch s {
	case OrderStatusCreated:
		return target == OrderStatusSearchingDriver
	case OrderStatusSearchingDriver:
		return target == OrderStatusAssigned
	case OrderStatusAssigned:
		return target == OrderStatusAccepted || target == OrderStatusStarted || target == OrderStatusPickedUp
	case OrderStatusAccepted:
		return target == OrderStatusStarted || target == OrderStatusPickedUp
	case OrderStatusStarted:
		return target == OrderStatusPickedUp || target == OrderStatusInTransit
	case OrderStatusPickedUp:
		return target == OrderStatusInTransit
	case OrderStatusInTransit:
		return target == OrderStatusArrived
	case OrderStatusArrived:
		return target == OrderStatusDelivered
	}
	return false
}

// Order is a delivery order. Amounts are MXN with two decimals.
type Order struct {
	ID            string          `json:"id"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Status        OrderStatus     `json:"status"`
	BaseFee       decimal.Decimal `json:"base_fee"`
	Tip           decimal.Decimal `json:"tip"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	DriverID      *string         `json:"driver_id,omitempty"`
	BusinessID    string          `json:"business_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	TerminalAt    *time.Time      `json:"terminal_at,omitempty"`
}

// HasDriver returns true once a driver has been assigned.
func (o *Order) HasDriver() bool {
	return o.DriverID != nil && *o.DriverID != ""
}

// OrderDeliveredEvent is emitted when an order enters DELIVERED.
type OrderDeliveredEvent struct {
	OrderID       string          `json:"order_id"`
	DriverID      string          `json:"driver_id"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Tip           decimal.Decimal `json:"tip"`
	DeliveredAt   time.Time       `json:"delivered_at"`
}

// NewOrderDeliveredEvent builds the event for a delivered order.
func NewOrderDeliveredEvent(o *Order) OrderDeliveredEvent {
	evt := OrderDeliveredEvent{
		OrderID:       o.ID,
		PaymentMethod: o.PaymentMethod,
		TotalAmount:   o.TotalAmount,
		Tip:           o.Tip,
		DeliveredAt:   o.UpdatedAt,
	}
	if o.DriverID != nil {
		evt.DriverID = *o.DriverID
	}
	if o.TerminalAt != nil {
		evt.DeliveredAt = *o.TerminalAt
	}
	return evt
}

package service

import (
	"context"
	"fmt"

	"driver-settlement-engine/internal/core/domain"

	"github.com/shopspring/decimal"
)

// CentsCalculator recomputes an order's settlement amount in integer centavos.
// It shares only the commission value with the settlement ledger.
type CentsCalculator struct {
	commissionCents int64
}

// NewCentsCalculator creates a calculator for the given fixed commission.
func NewCentsCalculator(commission decimal.Decimal) *CentsCalculator {
	return &CentsCalculator{commissionCents: toCents(commission)}
}

// Calculate returns the driver earning for CARD orders and the commission owed for CASH orders.
func (c *CentsCalculator) Calculate(ctx context.Context, order domain.Order) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	switch order.PaymentMethod {
	case domain.PaymentMethodCard:
		net := toCents(order.TotalAmount) - c.commissionCents
		if net < 0 {
			net = 0
		}
		return fromCents(net + toCents(order.Tip)), nil
	case domain.PaymentMethodCash:
		return fromCents(c.commissionCents), nil
	}
	return decimal.Zero, fmt.Errorf("cannot reconcile payment method %q", order.PaymentMethod)
}

// toCents rounds half away from zero to the nearest centavo.
func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

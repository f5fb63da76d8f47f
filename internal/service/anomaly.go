package service

import (
	"context"
	"fmt"

	"driver-settlement-engine/internal/core/domain"

	"github.com/shopspring/decimal"
)

// TipRatioDetector flags orders whose tip is large relative to the order total.
type TipRatioDetector struct {
	maxRatio decimal.Decimal
}

// NewTipRatioDetector creates a detector. A ratio of 1 flags tips above the total.
func NewTipRatioDetector(maxRatio decimal.Decimal) *TipRatioDetector {
	return &TipRatioDetector{maxRatio: maxRatio}
}

func (d *TipRatioDetector) Name() string { return "tip_ratio" }

// Inspect returns nil when the order has no tip.
func (d *TipRatioDetector) Inspect(_ context.Context, order domain.Order, _ decimal.Decimal) (*domain.AnomalySignal, error) {
	if !order.Tip.IsPositive() {
		return nil, nil
	}
	if !order.TotalAmount.IsPositive() {
		return &domain.AnomalySignal{
			Detector: d.Name(),
			Flagged:  true,
			Detail:   fmt.Sprintf("tip %s on a zero total", order.Tip.StringFixed(2)),
		}, nil
	}

	ratio := order.Tip.Div(order.TotalAmount)
	signal := &domain.AnomalySignal{
		Detector: d.Name(),
		Flagged:  ratio.GreaterThan(d.maxRatio),
		Detail:   fmt.Sprintf("tip/total ratio %s (max %s)", ratio.StringFixed(2), d.maxRatio.StringFixed(2)),
	}
	return signal, nil
}

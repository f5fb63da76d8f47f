package service

import (
	"context"

	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"
	"driver-settlement-engine/pkg/apperror"

	"github.com/rs/zerolog"
)

// sweepService retries settlement of DELIVERED orders that have no settlement key.
type sweepService struct {
	orders    ports.OrderRepository
	delivery  ports.DeliveryHandler
	batchSize int
	log       zerolog.Logger
}

// NewSweepService creates the reconciliation sweep.
func NewSweepService(orders ports.OrderRepository, delivery ports.DeliveryHandler, batchSize int, log zerolog.Logger) ports.SweepService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &sweepService{orders: orders, delivery: delivery, batchSize: batchSize, log: log}
}

// Run settles one batch. A failing order is counted and skipped; the next run retries it.
func (s *sweepService) Run(ctx context.Context) (*ports.SweepReport, error) {
	pending, err := s.orders.ListUnsettledDelivered(ctx, s.batchSize)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	report := &ports.SweepReport{Scanned: len(pending)}
	for _, o := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, err := s.delivery.HandleDelivered(ctx, domain.NewOrderDeliveredEvent(&o)); err != nil {
			report.Failed++
			s.log.Warn().Err(err).Str("order_id", o.ID).Msg("sweep: settlement retry failed")
			continue
		}
		report.Settled++
	}

	if report.Scanned > 0 {
		s.log.Info().
			Int("scanned", report.Scanned).
			Int("settled", report.Settled).
			Int("failed", report.Failed).
			Msg("sweep finished")
	}
	return report, nil
}

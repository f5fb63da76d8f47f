package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"
	"driver-settlement-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AuditReconcilerImpl implements ports.AuditReconciler.
// Reconciliation only observes: it never touches wallets or entries.
type AuditReconcilerImpl struct {
	repo      ports.AuditRepository
	calc      ports.Calculator
	detectors []ports.AnomalyDetector
	notifier  ports.AlertNotifier
	policy    domain.AuditPolicy
	metrics   ports.MetricsRecorder
	log       zerolog.Logger
	now       func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

// NewAuditReconciler creates a reconciler. notifier may be nil.
func NewAuditReconciler(
	repo ports.AuditRepository,
	calc ports.Calculator,
	detectors []ports.AnomalyDetector,
	notifier ports.AlertNotifier,
	policy domain.AuditPolicy,
	metrics ports.MetricsRecorder,
	log zerolog.Logger,
) *AuditReconcilerImpl {
	ctx, cancel := context.WithCancel(context.Background())
	return &AuditReconcilerImpl{
		repo:      repo,
		calc:      calc,
		detectors: detectors,
		notifier:  notifier,
		policy:    policy,
		metrics:   metricsOrNop(metrics),
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// ReconcileAsync audits the order on its own goroutine (fire-and-forget).
// After Shutdown has begun new audits are skipped.
func (s *AuditReconcilerImpl) ReconcileAsync(order domain.Order, systemCalculation decimal.Decimal) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.Warn().Str("order_id", order.ID).Msg("audit skipped, reconciler shutting down")
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if _, err := s.Reconcile(s.baseCtx, order, systemCalculation); err != nil {
			s.log.Error().Err(err).Str("order_id", order.ID).Msg("audit reconciliation not persisted")
		}
	}()
}

// Wait blocks until every pending async reconciliation has finished.
func (s *AuditReconcilerImpl) Wait() {
	s.wg.Wait()
}

// Shutdown cancels in-flight reconciliations and waits for them, up to ctx's deadline.
func (s *AuditReconcilerImpl) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

// Reconcile compares systemCalculation with an independent recomputation and
// stores the outcome. Calculator failure or timeout yields an unverified record
// with AlertAdmin set; it is never returned as an error.
func (s *AuditReconcilerImpl) Reconcile(ctx context.Context, order domain.Order, systemCalculation decimal.Decimal) (*domain.AuditRecord, error) {
	record := &domain.AuditRecord{
		ID:                uuid.New(),
		OrderID:           order.ID,
		SystemCalculation: systemCalculation,
		CreatedAt:         s.now(),
	}

	reconciled, err := s.calculate(ctx, order)
	if err != nil {
		reason := apperror.ErrAuditSubsystem(err).Error()
		record.ReconciledCalculation = systemCalculation
		record.Discrepancy = decimal.Zero
		record.Matched = false
		record.AlertAdmin = true
		record.Verified = false
		record.FailureReason = &reason
		s.log.Warn().Err(err).Str("order_id", order.ID).Msg("reconciliation failed, recording unverified audit")
	} else {
		discrepancy := systemCalculation.Sub(reconciled).Abs()
		record.ReconciledCalculation = reconciled
		record.Discrepancy = discrepancy
		record.Matched = discrepancy.LessThan(s.policy.MatchTolerance)
		record.AlertAdmin = discrepancy.GreaterThan(s.policy.AlertThreshold)
		record.Verified = true
	}

	for _, d := range s.detectors {
		signal, err := d.Inspect(ctx, order, systemCalculation)
		if err != nil {
			s.log.Warn().Err(err).Str("order_id", order.ID).Str("detector", d.Name()).Msg("anomaly detector failed")
			continue
		}
		if signal == nil {
			continue
		}
		record.Signals = append(record.Signals, *signal)
		if signal.Flagged {
			record.AlertAdmin = true
		}
	}

	inserted, err := s.repo.Create(ctx, record)
	if err != nil {
		return record, apperror.ErrAuditSubsystem(fmt.Errorf("persist audit record: %w", err))
	}
	if !inserted {
		s.log.Debug().Str("order_id", order.ID).Msg("order already audited")
		existing, err := s.repo.GetByOrderID(ctx, order.ID)
		if err != nil || existing == nil {
			return record, nil
		}
		return existing, nil
	}

	s.metrics.AuditRecorded(record)

	evt := s.log.Info()
	if record.AlertAdmin {
		evt = s.log.Warn()
	}
	evt.Str("order_id", order.ID).
		Str("system", systemCalculation.StringFixed(2)).
		Str("reconciled", record.ReconciledCalculation.StringFixed(2)).
		Str("discrepancy", record.Discrepancy.StringFixed(2)).
		Bool("matched", record.Matched).
		Bool("alert_admin", record.AlertAdmin).
		Msg("audit recorded")

	if record.AlertAdmin && s.notifier != nil {
		if err := s.notifier.Notify(ctx, buildAlert(record)); err != nil {
			s.log.Error().Err(err).Str("order_id", order.ID).Msg("audit alert not delivered")
		}
	}
	return record, nil
}

// calculate runs the calculator under the policy timeout. A calculator that
// ignores its context is abandoned when the deadline passes.
func (s *AuditReconcilerImpl) calculate(ctx context.Context, order domain.Order) (decimal.Decimal, error) {
	if s.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.policy.Timeout)
		defer cancel()
	}

	type outcome struct {
		value decimal.Decimal
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := s.calc.Calculate(ctx, order)
		ch <- outcome{value: v, err: err}
	}()

	select {
	case out := <-ch:
		return out.value, out.err
	case <-ctx.Done():
		return decimal.Zero, fmt.Errorf("reconciliation calculator: %w", ctx.Err())
	}
}

func buildAlert(record *domain.AuditRecord) domain.AuditAlert {
	var recommendation string
	switch {
	case !record.Verified:
		recommendation = fmt.Sprintf("Reconciliation could not run; verify the settlement of order %s manually", record.OrderID)
	case record.Discrepancy.GreaterThan(decimal.Zero) && !record.Matched:
		recommendation = fmt.Sprintf("Review settlement: system %s vs reconciled %s",
			record.SystemCalculation.StringFixed(2), record.ReconciledCalculation.StringFixed(2))
	default:
		recommendation = "Review flagged anomaly signals"
		for _, sig := range record.Signals {
			if sig.Flagged {
				recommendation = fmt.Sprintf("Review flagged anomaly (%s): %s", sig.Detector, sig.Detail)
				break
			}
		}
	}
	return domain.AuditAlert{
		OrderID:        record.OrderID,
		Discrepancy:    record.Discrepancy,
		Recommendation: recommendation,
		RaisedAt:       record.CreatedAt,
	}
}

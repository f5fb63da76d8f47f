package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"
	"driver-settlement-engine/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	walletRepo ports.WalletRepository
	entryRepo  ports.LedgerEntryRepository
	idempRepo  ports.IdempotencyRepository
	transactor ports.DBTransactor
	lookup     postingLookup
	rules      domain.SettlementRules
	metrics    ports.MetricsRecorder
	log        zerolog.Logger
	now        func() time.Time
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	walletRepo ports.WalletRepository,
	entryRepo ports.LedgerEntryRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	rules domain.SettlementRules,
	metrics ports.MetricsRecorder,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		walletRepo: walletRepo,
		entryRepo:  entryRepo,
		idempRepo:  idempRepo,
		transactor: transactor,
		lookup:     postingLookup{cache: idempCache, repo: idempRepo, log: log},
		rules:      rules,
		metrics:    metricsOrNop(metrics),
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Settle posts the ledger entries of a delivered order exactly once.
// Later calls for the same order return the stored result unchanged.
func (s *SettlementServiceImpl) Settle(ctx context.Context, order *domain.Order) (*domain.SettlementResult, error) {
	if order == nil {
		return nil, apperror.ErrInvalidOrder("order is required")
	}
	if order.Status != domain.OrderStatusDelivered {
		return nil, apperror.ErrOrderNotSettleable(fmt.Sprintf("status is %s", order.Status))
	}
	if !order.HasDriver() {
		return nil, apperror.ErrOrderNotSettleable("no driver assigned")
	}
	if !order.PaymentMethod.IsValid() {
		return nil, apperror.ErrInvalidOrder(fmt.Sprintf("unknown payment method %q", order.PaymentMethod))
	}

	start := time.Now()
	key := domain.BuildSettlementKey(order.ID)

	stored, err := s.lookup.find(ctx, key)
	if err != nil {
		s.metrics.SettlementFailed(order.PaymentMethod)
		return nil, err
	}
	if stored != nil {
		return s.replay(order, stored, start)
	}

	respJSON, replayed, err := s.post(ctx, order, key)
	if err != nil {
		s.metrics.SettlementFailed(order.PaymentMethod)
		s.log.Error().Err(err).
			Str("order_id", order.ID).
			Str("driver_id", *order.DriverID).
			Msg("settlement failed, order left unsettled")
		return nil, err
	}
	if replayed {
		return s.replay(order, respJSON, start)
	}

	s.lookup.remember(ctx, key, respJSON)

	result, err := decodePosting[domain.SettlementResult](respJSON)
	if err != nil {
		return nil, err
	}
	s.metrics.SettlementPosted(order.PaymentMethod, false, time.Since(start))

	s.log.Info().
		Str("order_id", order.ID).
		Str("driver_id", result.DriverID).
		Str("payment_method", string(order.PaymentMethod)).
		Str("amount", result.SystemCalculation.StringFixed(2)).
		Int("entries", len(result.Entries)).
		Msg("order settled")

	return result, nil
}

// post runs the settlement transaction. replayed is true when a concurrent
// settle of the same order committed first; the returned JSON is then theirs.
func (s *SettlementServiceImpl) post(ctx context.Context, order *domain.Order, key string) ([]byte, bool, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.ErrLedgerPosting(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetOrCreateForUpdate(ctx, dbTx, *order.DriverID, s.rules.CreditLimit)
	if err != nil {
		return nil, false, apperror.ErrLedgerPosting(fmt.Errorf("lock wallet: %w", err))
	}

	now := s.now()
	result := computeSettlement(*order, *wallet, s.rules, now)
	if result.Wallet.PendingDebts.IsNegative() {
		return nil, false, apperror.ErrLedgerPosting(apperror.ErrNegativeDebt())
	}
	result.Wallet.UpdatedAt = now

	respJSON, err := json.Marshal(result)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("marshal settlement: %w", err))
	}

	// Claim the key before appending entries; a concurrent settle of the
	// same order blocks here until the winner commits.
	orderID := order.ID
	inserted, err := s.idempRepo.Create(ctx, dbTx, &domain.IdempotencyLog{
		Key:          key,
		DriverID:     result.DriverID,
		OrderID:      &orderID,
		ResponseJSON: respJSON,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, false, apperror.ErrLedgerPosting(fmt.Errorf("save idempotency log: %w", err))
	}
	if !inserted {
		_ = dbTx.Rollback(ctx)
		winner, err := s.idempRepo.Get(ctx, key)
		if err != nil {
			return nil, false, apperror.ErrLedgerPosting(fmt.Errorf("load concurrent settlement: %w", err))
		}
		if winner == nil {
			return nil, false, apperror.ErrLedgerPosting(fmt.Errorf("settlement key %s reported taken but not found", key))
		}
		return winner.ResponseJSON, true, nil
	}

	for i := range result.Entries {
		if err := s.entryRepo.Create(ctx, dbTx, &result.Entries[i]); err != nil {
			return nil, false, apperror.ErrLedgerPosting(fmt.Errorf("append %s entry: %w", result.Entries[i].Kind, err))
		}
	}
	if err := s.walletRepo.UpdateTotals(ctx, dbTx, &result.Wallet); err != nil {
		return nil, false, apperror.ErrLedgerPosting(fmt.Errorf("update wallet totals: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, false, apperror.ErrLedgerPosting(fmt.Errorf("commit tx: %w", err))
	}
	return respJSON, false, nil
}

func (s *SettlementServiceImpl) replay(order *domain.Order, data []byte, start time.Time) (*domain.SettlementResult, error) {
	result, err := decodePosting[domain.SettlementResult](data)
	if err != nil {
		return nil, err
	}
	s.metrics.SettlementPosted(order.PaymentMethod, true, time.Since(start))
	s.log.Info().Str("order_id", order.ID).Msg("settlement replayed")
	return result, nil
}

// computeSettlement applies the commission, auto-liquidation and payment-method
// rules to a locked wallet snapshot. It returns the entries to append and the
// wallet as it will be after they are applied.
func computeSettlement(order domain.Order, wallet domain.DriverWallet, rules domain.SettlementRules, now time.Time) domain.SettlementResult {
	orderID := order.ID
	ref := domain.BuildSettlementKey(order.ID)
	commission := domain.RoundMoney(rules.FixedCommission)

	result := domain.SettlementResult{
		OrderID:       order.ID,
		DriverID:      wallet.DriverID,
		PaymentMethod: order.PaymentMethod,
		Commission:    commission,
		Earning:       decimal.Zero,
		Liquidated:    decimal.Zero,
		DebtAdded:     decimal.Zero,
		SettledAt:     now,

		CreditedToBalance: decimal.Zero,
	}

	switch order.PaymentMethod {
	case domain.PaymentMethodCard:
		earning := decimal.Max(order.TotalAmount.Sub(commission), decimal.Zero).Add(order.Tip)
		earning = domain.RoundMoney(earning)
		credit := earning

		if rules.AutoLiquidateDebts && wallet.PendingDebts.IsPositive() {
			liquidated := decimal.Min(wallet.PendingDebts, earning)
			if liquidated.IsPositive() {
				result.Entries = append(result.Entries,
					domain.NewEntry(wallet.DriverID, &orderID, domain.EntryKindDebtPayment, liquidated.Neg(), ref, now))
				result.Liquidated = liquidated
				credit = earning.Sub(liquidated)
			}
		}

		result.Entries = append(result.Entries,
			domain.NewEntry(wallet.DriverID, &orderID, domain.EntryKindCardOrderTransfer, credit, ref, now))
		result.Earning = earning
		result.CreditedToBalance = credit
		result.SystemCalculation = earning

	case domain.PaymentMethodCash:
		result.Entries = append(result.Entries,
			domain.NewEntry(wallet.DriverID, &orderID, domain.EntryKindCashOrderAdeudo, commission, ref, now))
		result.DebtAdded = commission
		result.SystemCalculation = commission
	}

	for _, e := range result.Entries {
		wallet.Apply(e)
	}
	result.Wallet = wallet
	return result
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"
	"driver-settlement-engine/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// signRule constrains the sign of a manually posted amount.
type signRule int

const (
	signAny signRule = iota
	signPositive
	signNegative
)

var manualKindSigns = map[domain.EntryKind]signRule{
	domain.EntryKindWithdrawal:       signNegative,
	domain.EntryKindPenalty:          signNegative,
	domain.EntryKindDebtPayment:      signNegative,
	domain.EntryKindBonus:            signPositive,
	domain.EntryKindDistanceBonus:    signPositive,
	domain.EntryKindTimeBonus:        signPositive,
	domain.EntryKindTipCardTransfer:  signPositive,
	domain.EntryKindBenefitsTransfer: signPositive,
	domain.EntryKindMarketCommission: signPositive,
	domain.EntryKindAdjustment:       signAny,
}

// LedgerServiceImpl implements ports.LedgerService for postings not driven by an order.
type LedgerServiceImpl struct {
	walletRepo  ports.WalletRepository
	entryRepo   ports.LedgerEntryRepository
	idempRepo   ports.IdempotencyRepository
	transactor  ports.DBTransactor
	lookup      postingLookup
	creditLimit decimal.Decimal
	log         zerolog.Logger
	now         func() time.Time
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	entryRepo ports.LedgerEntryRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	creditLimit decimal.Decimal,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo:  walletRepo,
		entryRepo:   entryRepo,
		idempRepo:   idempRepo,
		transactor:  transactor,
		lookup:      postingLookup{cache: idempCache, repo: idempRepo, log: log},
		creditLimit: creditLimit,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Post appends one manual entry, idempotent on (driver, reference).
func (s *LedgerServiceImpl) Post(ctx context.Context, req ports.ManualEntryRequest) (*ports.ManualEntryResult, error) {
	if err := validateManualEntry(req); err != nil {
		return nil, err
	}

	key := domain.BuildManualEntryKey(req.DriverID, req.Reference)
	stored, err := s.lookup.find(ctx, key)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		return decodePosting[ports.ManualEntryResult](stored)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrLedgerPosting(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetOrCreateForUpdate(ctx, dbTx, req.DriverID, s.creditLimit)
	if errors.Is(err, ports.ErrWalletLockTimeout) {
		return nil, apperror.ErrLockTimeout(err)
	}
	if err != nil {
		return nil, apperror.ErrLedgerPosting(fmt.Errorf("lock wallet: %w", err))
	}

	now := s.now()
	entry := domain.NewEntry(req.DriverID, nil, req.Kind, req.Amount, req.Reference, now)
	entry.Note = req.Note

	wallet.Apply(entry)
	if wallet.Balance.IsNegative() && entry.Affects == domain.TargetBalance && entry.Amount.IsNegative() {
		return nil, apperror.ErrInsufficientBalance()
	}
	if wallet.PendingDebts.IsNegative() {
		return nil, apperror.ErrNegativeDebt()
	}
	wallet.UpdatedAt = now

	respJSON, err := json.Marshal(ports.ManualEntryResult{Entry: entry, Wallet: *wallet})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal manual entry: %w", err))
	}

	inserted, err := s.idempRepo.Create(ctx, dbTx, &domain.IdempotencyLog{
		Key:          key,
		DriverID:     req.DriverID,
		ResponseJSON: respJSON,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, apperror.ErrLedgerPosting(fmt.Errorf("save idempotency log: %w", err))
	}
	if !inserted {
		_ = dbTx.Rollback(ctx)
		winner, err := s.idempRepo.Get(ctx, key)
		if err != nil || winner == nil {
			return nil, apperror.ErrLedgerPosting(fmt.Errorf("load concurrent posting %s: %v", key, err))
		}
		return decodePosting[ports.ManualEntryResult](winner.ResponseJSON)
	}

	if err := s.entryRepo.Create(ctx, dbTx, &entry); err != nil {
		return nil, apperror.ErrLedgerPosting(fmt.Errorf("append %s entry: %w", entry.Kind, err))
	}
	if err := s.walletRepo.UpdateTotals(ctx, dbTx, wallet); err != nil {
		return nil, apperror.ErrLedgerPosting(fmt.Errorf("update wallet totals: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrLedgerPosting(fmt.Errorf("commit tx: %w", err))
	}
	s.lookup.remember(ctx, key, respJSON)

	s.log.Info().
		Str("driver_id", req.DriverID).
		Str("kind", string(entry.Kind)).
		Str("amount", entry.Amount.StringFixed(2)).
		Str("reference", req.Reference).
		Msg("manual entry posted")

	return decodePosting[ports.ManualEntryResult](respJSON)
}

func validateManualEntry(req ports.ManualEntryRequest) error {
	if strings.TrimSpace(req.DriverID) == "" {
		return apperror.Validation("driver_id is required")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return apperror.Validation("reference is required")
	}
	if strings.Contains(req.Reference, ":") || strings.EqualFold(req.Reference, "SETTLEMENT") {
		return apperror.Validation("reference must not contain ':' or be SETTLEMENT")
	}
	rule, ok := manualKindSigns[req.Kind]
	if !ok {
		return apperror.ErrEntryKindNotAllowed(string(req.Kind))
	}

	amount := domain.RoundMoney(req.Amount)
	switch {
	case amount.IsZero():
		return apperror.ErrInvalidAmount()
	case rule == signPositive && amount.IsNegative():
		return apperror.ErrInvalidAmount()
	case rule == signNegative && amount.IsPositive():
		return apperror.ErrInvalidAmount()
	}
	return nil
}

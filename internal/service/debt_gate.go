package service

import (
	"context"
	"fmt"
	"time"

	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"
	"driver-settlement-engine/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ReasonDebtLimitExceeded is reported when a driver may not take cash orders.
const ReasonDebtLimitExceeded = "DEBT_LIMIT_EXCEEDED"

// debtGate implements ports.DebtGate. It only reads wallets.
type debtGate struct {
	walletRepo  ports.WalletRepository
	creditLimit decimal.Decimal
	log         zerolog.Logger
}

// NewDebtGate creates a debt gate. creditLimit applies to drivers with no wallet yet.
func NewDebtGate(walletRepo ports.WalletRepository, creditLimit decimal.Decimal, log zerolog.Logger) ports.DebtGate {
	return &debtGate{walletRepo: walletRepo, creditLimit: creditLimit, log: log}
}

// Check answers whether the driver may be offered an order paid with q.OrderPaymentMethod.
func (g *debtGate) Check(ctx context.Context, q ports.AssignmentEligibilityQuery) (*ports.EligibilityResult, error) {
	if q.DriverID == "" {
		return nil, apperror.Validation("driver_id is required")
	}
	if !q.OrderPaymentMethod.IsValid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown payment method %q", q.OrderPaymentMethod))
	}

	wallet, err := g.walletRepo.GetByDriverID(ctx, q.DriverID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if wallet == nil {
		wallet = domain.NewDriverWallet(q.DriverID, g.creditLimit, time.Now().UTC())
	}

	res := &ports.EligibilityResult{
		DriverID: q.DriverID,
		Eligible: true,
		Wallet:   *wallet,
	}
	if q.OrderPaymentMethod == domain.PaymentMethodCash && !domain.IsCashEligible(*wallet) {
		res.Eligible = false
		res.Reason = ReasonDebtLimitExceeded
		g.log.Debug().
			Str("driver_id", q.DriverID).
			Str("pending_debts", wallet.PendingDebts.StringFixed(2)).
			Str("credit_limit", wallet.CreditLimit.StringFixed(2)).
			Msg("driver restricted to card orders")
	}
	return res, nil
}

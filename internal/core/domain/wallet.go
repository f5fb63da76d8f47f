package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCreditLimit is the debt ceiling for cash orders when none is configured.
var DefaultCreditLimit = decimal.RequireFromString("300.00")

// DriverWallet is the materialized view of a driver's ledger.
// Balance and PendingDebts only change as a side effect of posting entries.
type DriverWallet struct {
	DriverID     string          `json:"driver_id"`
	Balance      decimal.Decimal `json:"balance"`
	PendingDebts decimal.Decimal `json:"pending_debts"`
	CreditLimit  decimal.Decimal `json:"credit_limit"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewDriverWallet returns an empty wallet with the given credit limit.
func NewDriverWallet(driverID string, creditLimit decimal.Decimal, at time.Time) *DriverWallet {
	return &DriverWallet{
		DriverID:     driverID,
		Balance:      decimal.Zero,
		PendingDebts: decimal.Zero,
		CreditLimit:  creditLimit,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

// Apply adds the entry amount to the figure it targets.
func (w *DriverWallet) Apply(e WalletLedgerEntry) {
	if e.PostingStatus != PostingStatusCompleted {
		return
	}
	switch e.Affects {
	case TargetBalance:
		w.Balance = w.Balance.Add(e.Amount)
	case TargetPendingDebt:
		w.PendingDebts = w.PendingDebts.Add(e.Amount)
	}
}

// IsCashEligible is the debt gate: a driver may take cash orders while
// outstanding debt stays strictly below the credit limit.
func IsCashEligible(w DriverWallet) bool {
	return w.PendingDebts.LessThan(w.CreditLimit)
}

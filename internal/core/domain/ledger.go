package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind is the business meaning of a wallet ledger entry.
type EntryKind string

const (
	EntryKindCardOrderTransfer EntryKind = "CARD_ORDER_TRANSFER"
	EntryKindTipCardTransfer   EntryKind = "TIP_CARD_TRANSFER"
	EntryKindCashOrderAdeudo   EntryKind = "CASH_ORDER_ADEUDO"
	EntryKindDebtPayment       EntryKind = "DEBT_PAYMENT"
	EntryKindWithdrawal        EntryKind = "WITHDRAWAL"
	EntryKindBenefitsTransfer  EntryKind = "BENEFITS_TRANSFER"
	EntryKindAdjustment        EntryKind = "ADJUSTMENT"
	EntryKindPenalty           EntryKind = "PENALTY"
	EntryKindBonus             EntryKind = "BONUS"
	EntryKindMarketCommission  EntryKind = "MARKET_COMMISSION"
	EntryKindDistanceBonus     EntryKind = "DISTANCE_BONUS"
	EntryKindTimeBonus         EntryKind = "TIME_BONUS"
)

// IsValid reports whether k is a known entry kind.
func (k EntryKind) IsValid() bool {
	switch k {
	case EntryKindCardOrderTransfer, EntryKindTipCardTransfer, EntryKindCashOrderAdeudo,
		EntryKindDebtPayment, EntryKindWithdrawal, EntryKindBenefitsTransfer,
		EntryKindAdjustment, EntryKindPenalty, EntryKindBonus,
		EntryKindMarketCommission, EntryKindDistanceBonus, EntryKindTimeBonus:
		return true
	}
	return false
}

// Target returns the wallet figure an entry of kind k moves.
func (k EntryKind) Target() BalanceTarget {
	switch k {
	case EntryKindCashOrderAdeudo, EntryKindDebtPayment, EntryKindMarketCommission:
		return TargetPendingDebt
	case EntryKindCardOrderTransfer, EntryKindTipCardTransfer, EntryKindWithdrawal,
		EntryKindBenefitsTransfer, EntryKindAdjustment, EntryKindPenalty,
		EntryKindBonus, EntryKindDistanceBonus, EntryKindTimeBonus:
		return TargetBalance
	}
	return ""
}

// IsOrderSettlement is true for kinds posted only by order settlement.
func (k EntryKind) IsOrderSettlement() bool {
	return k == EntryKindCardOrderTransfer || k == EntryKindCashOrderAdeudo
}

// BalanceTarget names the wallet figure affected by an entry.
type BalanceTarget string

const (
	TargetBalance     BalanceTarget = "BALANCE"
	TargetPendingDebt BalanceTarget = "PENDING_DEBT"
)

// PostingStatus is the outcome of posting an entry.
type PostingStatus string

const (
	PostingStatusCompleted PostingStatus = "COMPLETED"
	PostingStatusFailed    PostingStatus = "FAILED"
)

// WalletLedgerEntry is an immutable, signed, append-only wallet movement.
type WalletLedgerEntry struct {
	ID            uuid.UUID       `json:"id"`
	DriverID      string          `json:"driver_id"`
	OrderID       *string         `json:"order_id,omitempty"`
	Kind          EntryKind       `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Affects       BalanceTarget   `json:"affects"`
	PostingStatus PostingStatus   `json:"posting_status"`
	Reference     string          `json:"reference"`
	Note          *string         `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewEntry builds a COMPLETED entry whose target follows from kind.
func NewEntry(driverID string, orderID *string, kind EntryKind, amount decimal.Decimal, reference string, at time.Time) WalletLedgerEntry {
	return WalletLedgerEntry{
		ID:            uuid.New(),
		DriverID:      driverID,
		OrderID:       orderID,
		Kind:          kind,
		Amount:        RoundMoney(amount),
		Affects:       kind.Target(),
		PostingStatus: PostingStatusCompleted,
		Reference:     reference,
		CreatedAt:     at,
	}
}

// RoundMoney rounds to centavos.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

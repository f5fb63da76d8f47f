package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementRules are the business parameters applied to every delivered order.
type SettlementRules struct {
	FixedCommission    decimal.Decimal
	CreditLimit        decimal.Decimal
	AutoLiquidateDebts bool
}

// DefaultSettlementRules returns the platform defaults (15.00 commission,
// 300.00 credit limit, auto-liquidation on).
func DefaultSettlementRules() SettlementRules {
	return SettlementRules{
		FixedCommission:    decimal.RequireFromString("15.00"),
		CreditLimit:        DefaultCreditLimit,
		AutoLiquidateDebts: true,
	}
}

// SettlementResult is the financial consequence of one delivered order.
// A replayed settlement returns the stored result unchanged.
type SettlementResult struct {
	OrderID           string              `json:"order_id"`
	DriverID          string              `json:"driver_id"`
	PaymentMethod     PaymentMethod       `json:"payment_method"`
	Commission        decimal.Decimal     `json:"commission"`
	Earning           decimal.Decimal     `json:"earning"`
	Liquidated        decimal.Decimal     `json:"liquidated"`
	CreditedToBalance decimal.Decimal     `json:"credited_to_balance"`
	DebtAdded         decimal.Decimal     `json:"debt_added"`
	SystemCalculation decimal.Decimal     `json:"system_calculation"`
	Entries           []WalletLedgerEntry `json:"entries"`
	Wallet            DriverWallet        `json:"wallet"`
	SettledAt         time.Time           `json:"settled_at"`
}

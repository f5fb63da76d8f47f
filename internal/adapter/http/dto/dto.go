package dto

import (
	"time"

	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"
)

// CreateOrderRequest is the request body for order creation.
// Amounts are decimal strings in MXN with at most two decimals.
type CreateOrderRequest struct {
	ID            string `json:"id" binding:"required,max=64,safe_id"`
	PaymentMethod string `json:"payment_method" binding:"required,payment_method"`
	BaseFee       string `json:"base_fee" binding:"omitempty,money"`
	Tip           string `json:"tip" binding:"omitempty,money"`
	TotalAmount   string `json:"total_amount" binding:"required,money"`
	BusinessID    string `json:"business_id" binding:"omitempty,max=64,safe_id"`
}

// TransitionRequest moves an order to the next lifecycle state.
type TransitionRequest struct {
	Status string `json:"status" binding:"required,order_status"`
}

// AssignRequest assigns a driver to an order that is searching for one.
type AssignRequest struct {
	DriverID string `json:"driver_id" binding:"required,max=64,safe_id"`
}

// OrderDeliveredRequest is the webhook body sent by the dispatch service.
// Only the order id is authoritative; amounts are read from the stored order.
type OrderDeliveredRequest struct {
	OrderID     string     `json:"order_id" binding:"required,max=64,safe_id"`
	DriverID    string     `json:"driver_id" binding:"omitempty,max=64,safe_id"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// ManualEntryRequest is the request body for a manual wallet posting.
type ManualEntryRequest struct {
	Kind      string  `json:"kind" binding:"required,entry_kind"`
	Amount    string  `json:"amount" binding:"required,signed_money"`
	Reference string  `json:"reference" binding:"required,max=100,safe_id"`
	Note      *string `json:"note,omitempty" binding:"omitempty,max=500"`
}

// OrderResponse is the response body for an order.
type OrderResponse struct {
	ID            string  `json:"id"`
	PaymentMethod string  `json:"payment_method"`
	Status        string  `json:"status"`
	BaseFee       string  `json:"base_fee"`
	Tip           string  `json:"tip"`
	TotalAmount   string  `json:"total_amount"`
	DriverID      *string `json:"driver_id,omitempty"`
	BusinessID    string  `json:"business_id,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
	TerminalAt    *string `json:"terminal_at,omitempty"`
}

// WalletResponse is the response body for a driver wallet.
type WalletResponse struct {
	DriverID     string `json:"driver_id"`
	Balance      string `json:"balance"`
	PendingDebts string `json:"pending_debts"`
	CreditLimit  string `json:"credit_limit"`
	CashEligible bool   `json:"cash_eligible"`
	Currency     string `json:"currency"`
}

// EntryResponse is the response body for a ledger entry.
type EntryResponse struct {
	ID            string  `json:"id"`
	DriverID      string  `json:"driver_id"`
	OrderID       *string `json:"order_id,omitempty"`
	Kind          string  `json:"kind"`
	Amount        string  `json:"amount"`
	Affects       string  `json:"affects"`
	PostingStatus string  `json:"posting_status"`
	Reference     string  `json:"reference"`
	Note          *string `json:"note,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// OrderSettlementResponse lists the ledger entries an order posted.
type OrderSettlementResponse struct {
	OrderID string          `json:"order_id"`
	Status  string          `json:"status"`
	Settled bool            `json:"settled"`
	Entries []EntryResponse `json:"entries"`
}

// ManualEntryResponse is returned after a manual posting (or its replay).
type ManualEntryResponse struct {
	Entry  EntryResponse  `json:"entry"`
	Wallet WalletResponse `json:"wallet"`
}

// EligibilityResponse is the debt gate's answer.
type EligibilityResponse struct {
	DriverID      string         `json:"driver_id"`
	PaymentMethod string         `json:"payment_method"`
	Eligible      bool           `json:"eligible"`
	Reason        string         `json:"reason,omitempty"`
	Wallet        WalletResponse `json:"wallet"`
}

// StatsResponse holds aggregated ledger figures for a driver.
type StatsResponse struct {
	Period           string `json:"period"`
	TotalEntries     int64  `json:"total_entries"`
	CardOrders       int64  `json:"card_orders"`
	CashOrders       int64  `json:"cash_orders"`
	CardEarnings     string `json:"card_earnings"`
	CashCommissions  string `json:"cash_commissions"`
	DebtPayments     string `json:"debt_payments"`
	Bonuses          string `json:"bonuses"`
	Withdrawals      string `json:"withdrawals"`
	PenaltiesApplied string `json:"penalties_applied"`
}

// AuditRecordResponse is the response body for an audit record.
type AuditRecordResponse struct {
	ID                    string                 `json:"id"`
	OrderID               string                 `json:"order_id"`
	SystemCalculation     string                 `json:"system_calculation"`
	ReconciledCalculation string                 `json:"reconciled_calculation"`
	Discrepancy           string                 `json:"discrepancy"`
	Matched               bool                   `json:"matched"`
	AlertAdmin            bool                   `json:"alert_admin"`
	Verified              bool                   `json:"verified"`
	FailureReason         *string                `json:"failure_reason,omitempty"`
	Signals               []domain.AnomalySignal `json:"signals,omitempty"`
	CreatedAt             string                 `json:"created_at"`
}

const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// NewOrderResponse converts a domain order.
func NewOrderResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:            o.ID,
		PaymentMethod: string(o.PaymentMethod),
		Status:        string(o.Status),
		BaseFee:       o.BaseFee.StringFixed(2),
		Tip:           o.Tip.StringFixed(2),
		TotalAmount:   o.TotalAmount.StringFixed(2),
		DriverID:      o.DriverID,
		BusinessID:    o.BusinessID,
		CreatedAt:     formatTime(o.CreatedAt),
		UpdatedAt:     formatTime(o.UpdatedAt),
	}
	if o.TerminalAt != nil {
		s := formatTime(*o.TerminalAt)
		resp.TerminalAt = &s
	}
	return resp
}

// NewWalletResponse converts a wallet snapshot.
func NewWalletResponse(w domain.DriverWallet, currency string) WalletResponse {
	return WalletResponse{
		DriverID:     w.DriverID,
		Balance:      w.Balance.StringFixed(2),
		PendingDebts: w.PendingDebts.StringFixed(2),
		CreditLimit:  w.CreditLimit.StringFixed(2),
		CashEligible: domain.IsCashEligible(w),
		Currency:     currency,
	}
}

// NewEntryResponse converts a ledger entry.
func NewEntryResponse(e domain.WalletLedgerEntry) EntryResponse {
	return EntryResponse{
		ID:            e.ID.String(),
		DriverID:      e.DriverID,
		OrderID:       e.OrderID,
		Kind:          string(e.Kind),
		Amount:        e.Amount.StringFixed(2),
		Affects:       string(e.Affects),
		PostingStatus: string(e.PostingStatus),
		Reference:     e.Reference,
		Note:          e.Note,
		CreatedAt:     formatTime(e.CreatedAt),
	}
}

// NewOrderSettlementResponse converts the ledger view of an order.
func NewOrderSettlementResponse(o *domain.Order, s *ports.OrderSettlement) OrderSettlementResponse {
	entries := make([]EntryResponse, 0, len(s.Entries))
	for _, e := range s.Entries {
		entries = append(entries, NewEntryResponse(e))
	}
	return OrderSettlementResponse{
		OrderID: o.ID,
		Status:  string(o.Status),
		Settled: s.Settled,
		Entries: entries,
	}
}

// NewStatsResponse converts ledger statistics.
func NewStatsResponse(period string, s *ports.EntryStats) StatsResponse {
	return StatsResponse{
		Period:           period,
		TotalEntries:     s.TotalEntries,
		CardOrders:       s.CardOrders,
		CashOrders:       s.CashOrders,
		CardEarnings:     s.CardEarnings.StringFixed(2),
		CashCommissions:  s.CashCommissions.StringFixed(2),
		DebtPayments:     s.DebtPayments.StringFixed(2),
		Bonuses:          s.Bonuses.StringFixed(2),
		Withdrawals:      s.Withdrawals.StringFixed(2),
		PenaltiesApplied: s.PenaltiesApplied.StringFixed(2),
	}
}

// NewAuditRecordResponse converts an audit record.
func NewAuditRecordResponse(r domain.AuditRecord) AuditRecordResponse {
	return AuditRecordResponse{
		ID:                    r.ID.String(),
		OrderID:               r.OrderID,
		SystemCalculation:     r.SystemCalculation.StringFixed(2),
		ReconciledCalculation: r.ReconciledCalculation.StringFixed(2),
		Discrepancy:           r.Discrepancy.StringFixed(2),
		Matched:               r.Matched,
		AlertAdmin:            r.AlertAdmin,
		Verified:              r.Verified,
		FailureReason:         r.FailureReason,
		Signals:               r.Signals,
		CreatedAt:             formatTime(r.CreatedAt),
	}
}

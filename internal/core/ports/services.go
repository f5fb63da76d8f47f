package ports

import (
	"context"
	"time"

	"driver-settlement-engine/internal/core/domain"

	"github.com/shopspring/decimal"
)

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method string, path string, timestamp int64, nonce string, body string) string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, source string, nonce string, ttl time.Duration) (bool, error)
}

// RateLimitDecision is the outcome of counting one request.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (RateLimitDecision, error)
}

// --- Service Ports (Business Logic) ---

// OrderService is the order state machine.
type OrderService interface {
	Create(ctx context.Context, req CreateOrderRequest) (*domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
	Transition(ctx context.Context, id string, target domain.OrderStatus) (*domain.Order, error)
	Assign(ctx context.Context, id string, driverID string) (*domain.Order, error)
	// MarkDelivered is the webhook entry point; duplicates re-emit the delivered event.
	MarkDelivered(ctx context.Context, evt domain.OrderDeliveredEvent) (*domain.Order, error)
}

// CreateOrderRequest holds validated input for order creation.
type CreateOrderRequest struct {
	ID            string
	PaymentMethod domain.PaymentMethod
	BaseFee       decimal.Decimal
	Tip           decimal.Decimal
	TotalAmount   decimal.Decimal
	BusinessID    string
}

// DeliveryHandler reacts to an order entering DELIVERED.
type DeliveryHandler interface {
	HandleDelivered(ctx context.Context, evt domain.OrderDeliveredEvent) (*domain.SettlementResult, error)
}

// DebtGate answers cash-order eligibility queries. It never mutates state.
type DebtGate interface {
	Check(ctx context.Context, q AssignmentEligibilityQuery) (*EligibilityResult, error)
}

// AssignmentEligibilityQuery is asked by dispatch before offering an order.
type AssignmentEligibilityQuery struct {
	DriverID           string
	OrderPaymentMethod domain.PaymentMethod
}

// EligibilityResult is the gate's answer plus the wallet snapshot it read.
type EligibilityResult struct {
	DriverID string              `json:"driver_id"`
	Eligible bool                `json:"eligible"`
	Reason   string              `json:"reason,omitempty"`
	Wallet   domain.DriverWallet `json:"wallet"`
}

// SettlementService posts the financial consequence of a delivered order.
type SettlementService interface {
	Settle(ctx context.Context, order *domain.Order) (*domain.SettlementResult, error)
}

// Calculator independently recomputes the settlement amount of an order.
type Calculator interface {
	Calculate(ctx context.Context, order domain.Order) (decimal.Decimal, error)
}

// AnomalyDetector produces an advisory signal about a settled order.
// A nil signal means nothing to report.
type AnomalyDetector interface {
	Name() string
	Inspect(ctx context.Context, order domain.Order, systemCalculation decimal.Decimal) (*domain.AnomalySignal, error)
}

// AuditReconciler compares the system's settlement amount with an independent calculation.
type AuditReconciler interface {
	Reconcile(ctx context.Context, order domain.Order, systemCalculation decimal.Decimal) (*domain.AuditRecord, error)
	// ReconcileAsync runs Reconcile in the background and returns immediately.
	ReconcileAsync(order domain.Order, systemCalculation decimal.Decimal)
}

// AlertNotifier delivers audit alerts to operators.
type AlertNotifier interface {
	Notify(ctx context.Context, alert domain.AuditAlert) error
}

// LedgerService posts entries that are not driven by an order.
type LedgerService interface {
	Post(ctx context.Context, req ManualEntryRequest) (*ManualEntryResult, error)
}

// ManualEntryRequest holds validated input for a manual posting.
type ManualEntryRequest struct {
	DriverID  string
	Kind      domain.EntryKind
	Amount    decimal.Decimal // signed
	Reference string
	Note      *string
}

// ManualEntryResult is the stored outcome of a manual posting.
type ManualEntryResult struct {
	Entry  domain.WalletLedgerEntry `json:"entry"`
	Wallet domain.DriverWallet      `json:"wallet"`
}

// ReportingService is the read side for wallets, entries and audits.
type ReportingService interface {
	GetWallet(ctx context.Context, driverID string) (*domain.DriverWallet, error)
	ListEntries(ctx context.Context, params EntryListParams) ([]domain.WalletLedgerEntry, int64, error)
	GetStats(ctx context.Context, driverID string, period string) (*EntryStats, error)
	VerifyWallet(ctx context.Context, driverID string) (*WalletVerification, error)
	ListAuditRecords(ctx context.Context, params AuditListParams) ([]domain.AuditRecord, int64, error)
	GetOrderSettlement(ctx context.Context, orderID string) (*OrderSettlement, error)
}

// OrderSettlement is the ledger view of a single order.
type OrderSettlement struct {
	OrderID string
	Settled bool
	Entries []domain.WalletLedgerEntry
}

// WalletVerification compares stored wallet figures with the ledger sums.
type WalletVerification struct {
	DriverID             string          `json:"driver_id"`
	StoredBalance        decimal.Decimal `json:"stored_balance"`
	LedgerBalance        decimal.Decimal `json:"ledger_balance"`
	StoredPendingDebts   decimal.Decimal `json:"stored_pending_debts"`
	LedgerPendingDebts   decimal.Decimal `json:"ledger_pending_debts"`
	Consistent           bool            `json:"consistent"`
	PendingDebtsNegative bool            `json:"pending_debts_negative"`
}

// SweepService retries settlement of delivered orders left unsettled.
type SweepService interface {
	Run(ctx context.Context) (*SweepReport, error)
}

// SweepReport summarises one sweep pass.
type SweepReport struct {
	Scanned int `json:"scanned"`
	Settled int `json:"settled"`
	Failed  int `json:"failed"`
}

// MetricsRecorder receives settlement and audit outcomes.
type MetricsRecorder interface {
	SettlementPosted(method domain.PaymentMethod, replay bool, elapsed time.Duration)
	SettlementFailed(method domain.PaymentMethod)
	AuditRecorded(record *domain.AuditRecord)
	AlertDelivered(ok bool)
}

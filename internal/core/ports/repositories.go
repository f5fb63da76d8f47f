package ports

import (
	"context"
	"errors"
	"time"

	"driver-settlement-engine/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrWalletLockTimeout is wrapped by WalletRepository when the wallet row
// lock could not be acquired within the transaction's lock timeout.
var ErrWalletLockTimeout = errors.New("wallet row lock timed out")

// OrderRepository defines persistence operations for orders.
// Status writes are compare-and-set: they report false when the stored
// status no longer matches the expected one.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, from domain.OrderStatus, to domain.OrderStatus, terminalAt *time.Time) (bool, error)
	AssignDriver(ctx context.Context, id string, driverID string) (bool, error)
	// ListUnsettledDelivered returns DELIVERED orders with no settlement key, oldest first.
	ListUnsettledDelivered(ctx context.Context, limit int) ([]domain.Order, error)
}

// WalletRepository defines persistence operations for driver wallets.
// Methods accepting pgx.Tx run inside the posting transaction and hold the row lock.
type WalletRepository interface {
	GetByDriverID(ctx context.Context, driverID string) (*domain.DriverWallet, error)
	// GetOrCreateForUpdate inserts an empty wallet if none exists, then locks it.
	GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, driverID string, creditLimit decimal.Decimal) (*domain.DriverWallet, error)
	UpdateTotals(ctx context.Context, tx pgx.Tx, wallet *domain.DriverWallet) error
}

// LedgerEntryRepository is append-only: entries are created and read, never updated.
type LedgerEntryRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.WalletLedgerEntry) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.WalletLedgerEntry, error)
	List(ctx context.Context, params EntryListParams) ([]domain.WalletLedgerEntry, int64, error)
	// SumByTarget recomputes the wallet figures from COMPLETED entries.
	SumByTarget(ctx context.Context, driverID string) (*WalletTotals, error)
	GetStats(ctx context.Context, driverID string, since *time.Time) (*EntryStats, error)
}

// EntryListParams holds filter + pagination for listing ledger entries.
type EntryListParams struct {
	DriverID string
	Kind     *domain.EntryKind
	Affects  *domain.BalanceTarget
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// WalletTotals holds the wallet figures derived from the ledger.
type WalletTotals struct {
	Balance      decimal.Decimal
	PendingDebts decimal.Decimal
}

// EntryStats holds aggregated ledger figures for a driver.
type EntryStats struct {
	TotalEntries     int64
	CardOrders       int64
	CashOrders       int64
	CardEarnings     decimal.Decimal // Sum of CARD_ORDER_TRANSFER
	CashCommissions  decimal.Decimal // Sum of CASH_ORDER_ADEUDO
	DebtPayments     decimal.Decimal // Sum of DEBT_PAYMENT (negative)
	Bonuses          decimal.Decimal // BONUS, DISTANCE_BONUS, TIME_BONUS
	Withdrawals      decimal.Decimal
	PenaltiesApplied decimal.Decimal
}

// IdempotencyRepository persists posting results keyed by dedupe key.
type IdempotencyRepository interface {
	// Create reports false when the key already exists; the caller lost the race.
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) (bool, error)
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository persists audit records, at most one per order.
type AuditRepository interface {
	// Create reports false when a record already exists for the order.
	Create(ctx context.Context, record *domain.AuditRecord) (bool, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.AuditRecord, error)
	List(ctx context.Context, params AuditListParams) ([]domain.AuditRecord, int64, error)
}

// AuditListParams holds filter + pagination for listing audit records.
type AuditListParams struct {
	AlertsOnly bool
	Page       int
	PageSize   int
}

// AlertDeliveryRepository records alert webhook delivery attempts.
type AlertDeliveryRepository interface {
	Create(ctx context.Context, log *domain.AlertDeliveryLog) error
	Update(ctx context.Context, log *domain.AlertDeliveryLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

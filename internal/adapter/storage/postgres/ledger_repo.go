package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const entryColumns = `id, driver_id, order_id, kind, amount, affects, posting_status, reference, note, created_at`

// LedgerRepo implements ports.LedgerEntryRepository. Entries are never updated or deleted.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Create appends an entry within a database transaction.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.WalletLedgerEntry) error {
	query := `INSERT INTO wallet_ledger_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.DriverID, e.OrderID, e.Kind, e.Amount, e.Affects,
		e.PostingStatus, e.Reference, e.Note, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ListByOrder returns the entries an order produced, in posting order.
func (r *LedgerRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.WalletLedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM wallet_ledger_entries WHERE order_id = $1 ORDER BY created_at ASC, seq ASC`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// List fetches a driver's entries with filtering and pagination.
func (r *LedgerRepo) List(ctx context.Context, params ports.EntryListParams) ([]domain.WalletLedgerEntry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("driver_id = $%d", argIdx))
	args = append(args, params.DriverID)
	argIdx++

	if params.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, *params.Kind)
		argIdx++
	}
	if params.Affects != nil {
		conditions = append(conditions, fmt.Sprintf("affects = $%d", argIdx))
		args = append(args, *params.Affects)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM wallet_ledger_entries %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM wallet_ledger_entries %s
		ORDER BY created_at DESC, seq DESC LIMIT $%d OFFSET $%d`, entryColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	entries, err := collectEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// SumByTarget recomputes balance and pending debts from COMPLETED entries.
func (r *LedgerRepo) SumByTarget(ctx context.Context, driverID string) (*ports.WalletTotals, error) {
	query := `SELECT
		COALESCE(SUM(amount) FILTER (WHERE affects = 'BALANCE'), 0) AS balance,
		COALESCE(SUM(amount) FILTER (WHERE affects = 'PENDING_DEBT'), 0) AS pending_debts
		FROM wallet_ledger_entries WHERE driver_id = $1 AND posting_status = 'COMPLETED'`

	totals := &ports.WalletTotals{}
	if err := r.pool.QueryRow(ctx, query, driverID).Scan(&totals.Balance, &totals.PendingDebts); err != nil {
		return nil, fmt.Errorf("sum ledger entries: %w", err)
	}
	return totals, nil
}

// GetStats aggregates a driver's COMPLETED entries, optionally since a point in time.
func (r *LedgerRepo) GetStats(ctx context.Context, driverID string, since *time.Time) (*ports.EntryStats, error) {
	args := []any{driverID}
	condition := "driver_id = $1 AND posting_status = 'COMPLETED'"
	if since != nil {
		condition += " AND created_at >= $2"
		args = append(args, *since)
	}

	query := fmt.Sprintf(`SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE kind = 'CARD_ORDER_TRANSFER') AS card_orders,
		COUNT(*) FILTER (WHERE kind = 'CASH_ORDER_ADEUDO') AS cash_orders,
		COALESCE(SUM(amount) FILTER (WHERE kind = 'CARD_ORDER_TRANSFER'), 0) AS card_earnings,
		COALESCE(SUM(amount) FILTER (WHERE kind = 'CASH_ORDER_ADEUDO'), 0) AS cash_commissions,
		COALESCE(SUM(amount) FILTER (WHERE kind = 'DEBT_PAYMENT'), 0) AS debt_payments,
		COALESCE(SUM(amount) FILTER (WHERE kind IN ('BONUS', 'DISTANCE_BONUS', 'TIME_BONUS')), 0) AS bonuses,
		COALESCE(SUM(amount) FILTER (WHERE kind = 'WITHDRAWAL'), 0) AS withdrawals,
		COALESCE(SUM(amount) FILTER (WHERE kind = 'PENALTY'), 0) AS penalties
		FROM wallet_ledger_entries WHERE %s`, condition)

	s := &ports.EntryStats{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&s.TotalEntries, &s.CardOrders, &s.CashOrders,
		&s.CardEarnings, &s.CashCommissions, &s.DebtPayments,
		&s.Bonuses, &s.Withdrawals, &s.PenaltiesApplied,
	)
	if err != nil {
		return nil, fmt.Errorf("get ledger stats: %w", err)
	}
	return s, nil
}

func collectEntries(rows pgx.Rows) ([]domain.WalletLedgerEntry, error) {
	var entries []domain.WalletLedgerEntry
	for rows.Next() {
		e := domain.WalletLedgerEntry{}
		err := rows.Scan(
			&e.ID, &e.DriverID, &e.OrderID, &e.Kind, &e.Amount, &e.Affects,
			&e.PostingStatus, &e.Reference, &e.Note, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, nil
}

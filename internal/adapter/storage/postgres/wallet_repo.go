package postgres

import (
	"context"
	"errors"
	"fmt"

	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// GetByDriverID fetches a wallet snapshot (non-locking read).
func (r *WalletRepo) GetByDriverID(ctx context.Context, driverID string) (*domain.DriverWallet, error) {
	query := `SELECT driver_id, balance, pending_debts, credit_limit, created_at, updated_at
		FROM driver_wallets WHERE driver_id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, driverID))
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

// GetOrCreateForUpdate creates the wallet if missing and locks it with FOR UPDATE.
// This MUST be called within a transaction.
func (r *WalletRepo) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, driverID string, creditLimit decimal.Decimal) (*domain.DriverWallet, error) {
	insert := `INSERT INTO driver_wallets (driver_id, balance, pending_debts, credit_limit)
		VALUES ($1, 0, 0, $2) ON CONFLICT (driver_id) DO NOTHING`
	if _, err := tx.Exec(ctx, insert, driverID, creditLimit); err != nil {
		return nil, lockError("ensure wallet", driverID, err)
	}

	query := `SELECT driver_id, balance, pending_debts, credit_limit, created_at, updated_at
		FROM driver_wallets WHERE driver_id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, driverID))
	if err != nil {
		return nil, lockError("get wallet for update", driverID, err)
	}
	if w == nil {
		return nil, fmt.Errorf("wallet not found after ensure: %s", driverID)
	}
	return w, nil
}

// pgLockNotAvailable is SQLSTATE 55P03, raised when lock_timeout expires.
const pgLockNotAvailable = "55P03"

func lockError(op, driverID string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return fmt.Errorf("%s %s: %w", op, driverID, ports.ErrWalletLockTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// UpdateTotals writes the balance and pending debts within a transaction.
func (r *WalletRepo) UpdateTotals(ctx context.Context, tx pgx.Tx, w *domain.DriverWallet) error {
	query := `UPDATE driver_wallets SET balance = $1, pending_debts = $2, updated_at = NOW() WHERE driver_id = $3`

	tag, err := tx.Exec(ctx, query, w.Balance, w.PendingDebts, w.DriverID)
	if err != nil {
		return fmt.Errorf("update wallet totals: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", w.DriverID)
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.DriverWallet, error) {
	w := &domain.DriverWallet{}
	err := row.Scan(&w.DriverID, &w.Balance, &w.PendingDebts, &w.CreditLimit, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}

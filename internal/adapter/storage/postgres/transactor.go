package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor. Every transaction it opens
// bounds how long a statement may wait on a row lock, so a stuck wallet
// row surfaces as ports.ErrWalletLockTimeout instead of a hung request.
type Transactor struct {
	pool        Pool
	lockTimeout time.Duration
}

// TransactorOption customises a Transactor.
type TransactorOption func(*Transactor)

// WithLockTimeout sets the per-transaction lock_timeout. Zero keeps the
// server default.
func WithLockTimeout(d time.Duration) TransactorOption {
	return func(t *Transactor) { t.lockTimeout = d }
}

func NewTransactor(pool Pool, opts ...TransactorOption) *Transactor {
	t := &Transactor{pool: pool}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Begin starts a transaction and applies the configured lock timeout to it.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	if t.lockTimeout <= 0 {
		return tx, nil
	}

	// SET does not accept bind parameters.
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", t.lockTimeout.Milliseconds())
	if _, err := tx.Exec(ctx, stmt); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("set lock timeout: %w", err)
	}
	return tx, nil
}

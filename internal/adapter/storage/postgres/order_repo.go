package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"driver-settlement-engine/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, payment_method, status, base_fee, tip, total_amount,
		driver_id, business_id, created_at, updated_at, terminal_at`

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// Create inserts a new order.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	query := `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		o.ID, o.PaymentMethod, o.Status, o.BaseFee, o.Tip, o.TotalAmount,
		o.DriverID, o.BusinessID, o.CreatedAt, o.UpdatedAt, o.TerminalAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID fetches an order by ID.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, id))
}

// UpdateStatus moves an order from one status to another.
// Returns false when the order is no longer in status from.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, terminalAt *time.Time) (bool, error) {
	query := `UPDATE orders SET status = $1, terminal_at = COALESCE($2, terminal_at), updated_at = NOW()
		WHERE id = $3 AND status = $4`

	tag, err := r.pool.Exec(ctx, query, to, terminalAt, id, from)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AssignDriver sets the driver and moves the order to ASSIGNED.
// Returns false when the order is no longer SEARCHING_DRIVER.
func (r *OrderRepo) AssignDriver(ctx context.Context, id string, driverID string) (bool, error) {
	query := `UPDATE orders SET driver_id = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`

	tag, err := r.pool.Exec(ctx, query, driverID, domain.OrderStatusAssigned, id, domain.OrderStatusSearchingDriver)
	if err != nil {
		return false, fmt.Errorf("assign driver: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListUnsettledDelivered returns delivered orders that have no settlement idempotency log.
func (r *OrderRepo) ListUnsettledDelivered(ctx context.Context, limit int) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o
		WHERE o.status = $1 AND o.driver_id IS NOT NULL
		AND NOT EXISTS (SELECT 1 FROM idempotency_logs il WHERE il.key = o.id || ':SETTLEMENT')
		ORDER BY o.terminal_at ASC NULLS FIRST
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, domain.OrderStatusDelivered, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsettled orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID, &o.PaymentMethod, &o.Status, &o.BaseFee, &o.Tip, &o.TotalAmount,
		&o.DriverID, &o.BusinessID, &o.CreatedAt, &o.UpdatedAt, &o.TerminalAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}

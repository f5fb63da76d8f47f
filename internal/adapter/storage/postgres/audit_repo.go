package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const auditColumns = `id, order_id, system_calculation, reconciled_calculation, discrepancy,
		matched, alert_admin, verified, failure_reason, signals, created_at`

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Create stores an audit record. A second record for the same order is ignored.
func (r *AuditRepo) Create(ctx context.Context, rec *domain.AuditRecord) (bool, error) {
	signals, err := json.Marshal(nonNilSignals(rec.Signals))
	if err != nil {
		return false, fmt.Errorf("marshal audit signals: %w", err)
	}

	query := `INSERT INTO audit_records (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (order_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		rec.ID, rec.OrderID, rec.SystemCalculation, rec.ReconciledCalculation, rec.Discrepancy,
		rec.Matched, rec.AlertAdmin, rec.Verified, rec.FailureReason, signals, rec.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert audit record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByOrderID fetches the audit record of an order.
func (r *AuditRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_records WHERE order_id = $1`

	rec, err := scanAudit(r.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get audit record: %w", err)
	}
	return rec, nil
}

// List fetches audit records, newest first.
func (r *AuditRepo) List(ctx context.Context, params ports.AuditListParams) ([]domain.AuditRecord, int64, error) {
	where := ""
	if params.AlertsOnly {
		where = "WHERE alert_admin"
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_records "+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit records: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	query := fmt.Sprintf(`SELECT %s FROM audit_records %s ORDER BY created_at DESC LIMIT $1 OFFSET $2`, auditColumns, where)

	rows, err := r.pool.Query(ctx, query, params.PageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		rec, err := scanAudit(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit rows: %w", err)
	}
	return records, total, nil
}

func scanAudit(row pgx.Row) (*domain.AuditRecord, error) {
	rec := &domain.AuditRecord{}
	var signals []byte
	err := row.Scan(
		&rec.ID, &rec.OrderID, &rec.SystemCalculation, &rec.ReconciledCalculation, &rec.Discrepancy,
		&rec.Matched, &rec.AlertAdmin, &rec.Verified, &rec.FailureReason, &signals, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(signals) > 0 {
		if err := json.Unmarshal(signals, &rec.Signals); err != nil {
			return nil, fmt.Errorf("decode audit signals: %w", err)
		}
	}
	return rec, nil
}

func nonNilSignals(s []domain.AnomalySignal) []domain.AnomalySignal {
	if s == nil {
		return []domain.AnomalySignal{}
	}
	return s
}

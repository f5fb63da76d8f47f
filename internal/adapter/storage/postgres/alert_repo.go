package postgres

import (
	"context"
	"fmt"
	"time"

	"driver-settlement-engine/internal/core/domain"
)

// AlertDeliveryRepo implements ports.AlertDeliveryRepository.
type AlertDeliveryRepo struct {
	pool Pool
}

// NewAlertDeliveryRepo creates a new AlertDeliveryRepo.
func NewAlertDeliveryRepo(pool Pool) *AlertDeliveryRepo {
	return &AlertDeliveryRepo{pool: pool}
}

// Create inserts a delivery log before the first attempt.
func (r *AlertDeliveryRepo) Create(ctx context.Context, log *domain.AlertDeliveryLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO alert_delivery_logs
		(id, order_id, webhook_url, payload, http_status, attempt, status, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		log.ID, log.OrderID, log.WebhookURL, log.Payload, log.HTTPStatus,
		log.Attempt, log.Status, log.LastError, log.CreatedAt, log.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert delivery log: %w", err)
	}
	return nil
}

// Update records the outcome of the latest attempt.
func (r *AlertDeliveryRepo) Update(ctx context.Context, log *domain.AlertDeliveryLog) error {
	log.UpdatedAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`UPDATE alert_delivery_logs
		SET http_status = $1, attempt = $2, status = $3, last_error = $4, updated_at = $5
		WHERE id = $6`,
		log.HTTPStatus, log.Attempt, log.Status, log.LastError, log.UpdatedAt, log.ID,
	)
	if err != nil {
		return fmt.Errorf("update alert delivery log: %w", err)
	}
	return nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertDeliveryStatus represents the delivery state of an operator alert.
type AlertDeliveryStatus string

const (
	AlertDeliveryPending   AlertDeliveryStatus = "PENDING"
	AlertDeliveryDelivered AlertDeliveryStatus = "DELIVERED"
	AlertDeliveryFailed    AlertDeliveryStatus = "FAILED"
)

// AlertDeliveryLog records the delivery attempts of one audit alert.
type AlertDeliveryLog struct {
	ID         uuid.UUID           `json:"id"`
	OrderID    string              `json:"order_id"`
	WebhookURL string              `json:"webhook_url"`
	Payload    string              `json:"payload"` // JSON string
	HTTPStatus *int                `json:"http_status"`
	Attempt    int                 `json:"attempt"`
	Status     AlertDeliveryStatus `json:"status"`
	LastError  *string             `json:"last_error"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

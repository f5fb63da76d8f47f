package domain

import (
	"time"
)

// IdempotencyLog stores the result of a posting so retries can replay it.
type IdempotencyLog struct {
	Key          string    `json:"key"` // "<order_id>:SETTLEMENT" or "<driver_id>:<reference>"
	DriverID     string    `json:"driver_id"`
	OrderID      *string   `json:"order_id,omitempty"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// BuildSettlementKey is the dedupe key guarding an order's settlement.
func BuildSettlementKey(orderID string) string {
	return orderID + ":SETTLEMENT"
}

// BuildManualEntryKey is the dedupe key for a manual posting.
func BuildManualEntryKey(driverID, reference string) string {
	return driverID + ":" + reference
}

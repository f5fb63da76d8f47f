package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuditPolicy holds the reconciliation tolerances.
type AuditPolicy struct {
	MatchTolerance decimal.Decimal // matched when discrepancy < tolerance
	AlertThreshold decimal.Decimal // alert when discrepancy > threshold
	Timeout        time.Duration
}

// DefaultAuditPolicy returns one centavo tolerance and a five peso alert threshold.
func DefaultAuditPolicy() AuditPolicy {
	return AuditPolicy{
		MatchTolerance: decimal.RequireFromString("0.01"),
		AlertThreshold: decimal.RequireFromString("5.00"),
		Timeout:        10 * time.Second,
	}
}

// AnomalySignal is an advisory finding from an anomaly detector.
type AnomalySignal struct {
	Detector string `json:"detector"`
	Flagged  bool   `json:"flagged"`
	Detail   string `json:"detail"`
}

// AuditRecord is the observational result of reconciling one order's settlement.
// Created once per order; never mutated.
type AuditRecord struct {
	ID                    uuid.UUID       `json:"id"`
	OrderID               string          `json:"order_id"`
	SystemCalculation     decimal.Decimal `json:"system_calculation"`
	ReconciledCalculation decimal.Decimal `json:"reconciled_calculation"`
	Discrepancy           decimal.Decimal `json:"discrepancy"`
	Matched               bool            `json:"matched"`
	AlertAdmin            bool            `json:"alert_admin"`
	Verified              bool            `json:"verified"` // false when the reconciliation itself failed
	FailureReason         *string         `json:"failure_reason,omitempty"`
	Signals               []AnomalySignal `json:"signals,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

// AuditAlert is sent to operators when a record needs attention.
type AuditAlert struct {
	OrderID        string          `json:"order_id"`
	Discrepancy    decimal.Decimal `json:"discrepancy"`
	Recommendation string          `json:"recommendation"`
	RaisedAt       time.Time       `json:"raised_at"`
}

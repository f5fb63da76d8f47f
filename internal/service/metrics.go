package service

import (
	"time"

	"driver-settlement-engine/internal/core/domain"
	"driver-settlement-engine/internal/core/ports"
)

type nopMetrics struct{}

func (nopMetrics) SettlementPosted(domain.PaymentMethod, bool, time.Duration) {}
func (nopMetrics) SettlementFailed(domain.PaymentMethod)                      {}
func (nopMetrics) AuditRecorded(*domain.AuditRecord)                          {}
func (nopMetrics) AlertDelivered(bool)                                        {}

func metricsOrNop(m ports.MetricsRecorder) ports.MetricsRecorder {
	if m == nil {
		return nopMetrics{}
	}
	return m
}

package postgres

import (
	"context"
	"time"
)

const healthProbeTimeout = 2 * time.Second

// HealthCheck reports whether the ledger store answers queries.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

// Ping runs a trivial query against the ledger tables' database, bounded
// so a saturated pool cannot stall /health.
func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	var one int
	return h.pool.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (h *HealthCheck) Name() string {
	return "ledger_store"
}

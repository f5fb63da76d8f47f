package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const healthProbeTimeout = time.Second

// HealthCheck probes the cache. A failure marks /health degraded but
// postings keep working against PostgreSQL.
type HealthCheck struct {
	client *goredis.Client
}

func NewHealthCheck(client *goredis.Client) *HealthCheck {
	return &HealthCheck{client: client}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()
	return h.client.Ping(ctx).Err()
}

func (h *HealthCheck) Name() string {
	return "redis"
}

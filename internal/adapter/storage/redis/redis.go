package redis

import (
	"context"
	"fmt"

	"driver-settlement-engine/config"
	"driver-settlement-engine/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewClient connects to the cache that backs idempotency replay, webhook
// nonces and rate limits. Short per-command deadlines keep a slow Redis
// from holding up postings; every caller treats a miss or error as
// "fall through to PostgreSQL".
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   logger.ServiceName,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
		MaxRetries:   1,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr(), err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Dur("op_timeout", cfg.OpTimeout).
		Msg("redis cache ready")

	return client, nil
}

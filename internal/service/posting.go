package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"driver-settlement-engine/internal/core/ports"
	"driver-settlement-engine/pkg/apperror"

	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// postingLookup finds a stored posting result: redis first, then idempotency_logs.
type postingLookup struct {
	cache ports.IdempotencyCache
	repo  ports.IdempotencyRepository
	log   zerolog.Logger
}

// find returns the stored JSON for key, or nil if the posting never happened.
func (l postingLookup) find(ctx context.Context, key string) ([]byte, error) {
	// Layer 1: Redis
	cached, err := l.cache.Get(ctx, key)
	if err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		return cached, nil
	}

	// Layer 2: DB
	stored, err := l.repo.Get(ctx, key)
	if err != nil {
		return nil, apperror.ErrLedgerPosting(fmt.Errorf("db idempotency check: %w", err))
	}
	if stored == nil {
		return nil, nil
	}
	l.remember(ctx, key, stored.ResponseJSON)
	return stored.ResponseJSON, nil
}

// remember caches a committed result. Best-effort.
func (l postingLookup) remember(ctx context.Context, key string, data []byte) {
	if err := l.cache.Set(ctx, key, data, idempotencyTTL); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("failed to cache posting result in redis")
	}
}

func decodePosting[T any](data []byte) (*T, error) {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal stored posting: %w", err))
	}
	return out, nil
}

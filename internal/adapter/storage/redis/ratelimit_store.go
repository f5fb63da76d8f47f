package redis

import (
	"context"
	"fmt"
	"time"

	"driver-settlement-engine/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "dse:ratelimit:"

// RateLimitStore keeps fixed-window request counters in Redis.
type RateLimitStore struct {
	client *goredis.Client
	now    func() time.Time
}

func NewRateLimitStore(client *goredis.Client) *RateLimitStore {
	return &RateLimitStore{client: client, now: time.Now}
}

// Allow counts one request against key in the current window. INCR and
// EXPIRE share a MULTI so a counter never outlives its window.
func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (ports.RateLimitDecision, error) {
	if window < time.Second {
		window = time.Second
	}
	windowStart := s.now().Truncate(window)
	bucket := fmt.Sprintf("%s%s:%d", rateLimitPrefix, key, windowStart.Unix())

	var count *goredis.IntCmd
	if _, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		count = pipe.Incr(ctx, bucket)
		pipe.Expire(ctx, bucket, window+time.Second)
		return nil
	}); err != nil {
		return ports.RateLimitDecision{}, fmt.Errorf("count request %s: %w", key, err)
	}

	used := count.Val()
	return ports.RateLimitDecision{
		Allowed:   used <= limit,
		Limit:     limit,
		Remaining: max(limit-used, 0),
		ResetAt:   windowStart.Add(window),
	}, nil
}

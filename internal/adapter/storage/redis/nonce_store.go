package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	noncePrefix    = "dse:nonce:"
	maxNonceLength = 128
)

// ErrInvalidNonce is returned for an empty or oversized nonce, which is
// never stored.
var ErrInvalidNonce = errors.New("invalid nonce")

// NonceStore remembers delivery-event nonces per dispatch source for the
// signature replay window.
type NonceStore struct {
	client *goredis.Client
}

func NewNonceStore(client *goredis.Client) *NonceStore {
	return &NonceStore{client: client}
}

// CheckAndSet claims nonce for source until ttl elapses. It reports false
// when the nonce was already claimed inside the window.
func (s *NonceStore) CheckAndSet(ctx context.Context, source string, nonce string, ttl time.Duration) (bool, error) {
	if nonce == "" || len(nonce) > maxNonceLength {
		return false, ErrInvalidNonce
	}

	claimed, err := s.client.SetNX(ctx, noncePrefix+source+":"+nonce, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim nonce: %w", err)
	}
	return claimed, nil
}

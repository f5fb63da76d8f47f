package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"driver-settlement-engine/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	s := miniredis.RunT(t)
	host, port := splitAddr(t, s)

	cfg := config.RedisConfig{Host: host, Port: port, DialTimeout: time.Second, OpTimeout: 200 * time.Millisecond}
	client, err := NewClient(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()).Err())
	assert.Equal(t, 200*time.Millisecond, client.Options().ReadTimeout)
	assert.Equal(t, "driver-settlement-engine", client.Options().ClientName)
}

func TestNewClient_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	host, port := splitAddr(t, s)
	s.Close()

	_, err := NewClient(context.Background(), config.RedisConfig{Host: host, Port: port}, zerolog.Nop())
	assert.Error(t, err)
}

func splitAddr(t *testing.T, s *miniredis.Miniredis) (string, int) {
	t.Helper()
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)
	return s.Host(), port
}

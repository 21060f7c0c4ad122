package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contact-intake-go/config"
	"contact-intake-go/internal/ratelimit"
)

func TestNewRateLimitStore_Memory(t *testing.T) {
	cfg := &config.Config{RateLimit: config.RateLimitConfig{Backend: "memory", MaxEntries: 10}}

	store, closeFn, err := newRateLimitStore(cfg)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &ratelimit.MemoryStore{}, store)
}

func TestNewRateLimitStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		RateLimit: config.RateLimitConfig{Backend: "redis"},
		Redis:     config.RedisConfig{Addr: mr.Addr()},
	}

	store, closeFn, err := newRateLimitStore(cfg)
	require.NoError(t, err)
	defer closeFn()
	require.IsType(t, &ratelimit.RedisStore{}, store)

	res, err := store.Hit(context.Background(), "k", ratelimit.DefaultShortWindow, time.Now())
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.Remaining)
}

func TestNewRateLimitStore_Unknown(t *testing.T) {
	_, _, err := newRateLimitStore(&config.Config{RateLimit: config.RateLimitConfig{Backend: "memcached"}})
	assert.Error(t, err)
}

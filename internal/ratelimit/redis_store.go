package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrContended is returned when a key kept changing under optimistic locking
var ErrContended = errors.New("ratelimit: too much contention on key")

// RedisStore shares fixed-window counters between instances through Redis.
// Each key holds the hit count and expires with its window; updates use
// WATCH/MULTI so a denied request never increments the counter.
type RedisStore struct {
	rdb        *redis.Client
	prefix     string
	maxRetries int
}

// RedisStoreOption configures a RedisStore
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix sets the namespace of every counter key
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

// NewRedisStore creates a store backed by rdb
func NewRedisStore(rdb *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		rdb:        rdb,
		prefix:     "ratelimit",
		maxRetries: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hit implements Store
func (s *RedisStore) Hit(ctx context.Context, key string, w Window, now time.Time) (Result, error) {
	k := s.prefix + ":" + key

	var res Result
	txf := func(tx *redis.Tx) error {
		count, err := tx.Get(ctx, k).Int()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		var reset time.Time
		if err == nil {
			ttl, err := tx.PTTL(ctx, k).Result()
			if err != nil {
				return err
			}
			// a key without expiry is treated as a fresh window
			if ttl > 0 {
				reset = now.Add(ttl)
			}
		}

		newCount, _, r := decide(count, reset, w, now)
		res = r
		if !r.Allowed {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if newCount == 1 {
				pipe.Set(ctx, k, 1, w.Length)
			} else {
				pipe.Incr(ctx, k)
			}
			return nil
		})
		return err
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, k)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return Result{}, err
	}
	return Result{}, ErrContended
}

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// record is the counter of one key inside one window
type record struct {
	count     int
	resetTime time.Time
}

// MemoryStore keeps counters in bounded, expiring LRU caches, one per window
// length. Entries expire with their window and the least recently used key is
// evicted once maxEntries is reached.
type MemoryStore struct {
	mu         sync.Mutex
	maxEntries int
	caches     map[time.Duration]*expirable.LRU[string, *record]
}

// NewMemoryStore creates a store holding at most maxEntries keys per window
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		maxEntries: maxEntries,
		caches:     make(map[time.Duration]*expirable.LRU[string, *record]),
	}
}

// Hit implements Store
func (s *MemoryStore) Hit(_ context.Context, key string, w Window, now time.Time) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache := s.cacheFor(w.Length)

	var count int
	var reset time.Time
	rec, ok := cache.Get(key)
	if ok {
		count, reset = rec.count, rec.resetTime
	}

	newCount, newReset, res := decide(count, reset, w, now)
	if !ok || !newReset.Equal(reset) {
		cache.Add(key, &record{count: newCount, resetTime: newReset})
	} else {
		rec.count = newCount
	}
	return res, nil
}

// Len returns the number of tracked keys across all windows
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.caches {
		n += c.Len()
	}
	return n
}

func (s *MemoryStore) cacheFor(length time.Duration) *expirable.LRU[string, *record] {
	cache, ok := s.caches[length]
	if !ok {
		cache = expirable.NewLRU[string, *record](s.maxEntries, nil, length)
		s.caches[length] = cache
	}
	return cache
}

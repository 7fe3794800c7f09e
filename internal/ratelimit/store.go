package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store tracks fixed-window request counts per key. Incr must be safe for
// concurrent callers: increments on the same key may never be lost.
type Store interface {
	// Incr adds one request to the key's current window, creating or
	// resetting the bucket when the window has elapsed. It returns the
	// count within the window and the window's reset time.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

type bucket struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is the process-local fixed-window store. Buckets are created
// lazily and removed by a background sweep, bounding memory growth even
// for keys that never return. Counts are per process instance; a
// multi-instance deployment needs the Redis store to preserve a global
// ceiling.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewMemoryStore builds a store and starts its sweep loop.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}
	go s.sweepLoop(sweepInterval)
	return s
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{count: 1, resetAt: now.Add(window)}
		s.buckets[key] = b
		return 1, b.resetAt, nil
	}

	b.count++
	return b.count, b.resetAt, nil
}

// Len returns the number of live buckets. Exposed for tests and metrics.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// Stop halts the sweep loop.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(time.Now())
		case <-s.stopCh:
			return
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, b := range s.buckets {
		if !now.Before(b.resetAt) {
			delete(s.buckets, key)
		}
	}
}

// Package limiter throttles submission traffic at the validating edge. The
// producing side carries its own persisted gate, but the server never
// assumes a well-behaved client ran it.
package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Policy defines per-key limits.
type Policy struct {
	RPM   int // sustained requests per minute
	Burst int // instantaneous burst capacity
}

// Store abstracts the bucket storage so single-node deployments stay in
// memory and multi-node ones share state through Redis.
type Store interface {
	// Allow consumes cost tokens from the key's bucket. Returns false when
	// the key is over its limit.
	Allow(ctx context.Context, key string, policy Policy, cost int) (bool, error)
}

// Throttle is the fail-closed convenience wrapper.
func Throttle(ctx context.Context, store Store, key string, policy Policy) error {
	if store == nil {
		return fmt.Errorf("rate limiter: no store configured")
	}
	allowed, err := store.Allow(ctx, key, policy, 1)
	if err != nil {
		return fmt.Errorf("rate limiter check failed: %w", err)
	}
	if !allowed {
		return fmt.Errorf("rate limit exceeded for %s", key)
	}
	return nil
}

// MemoryStore keeps per-key token buckets in process.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*rate.Limiter)}
}

func (s *MemoryStore) Allow(_ context.Context, key string, policy Policy, cost int) (bool, error) {
	s.mu.Lock()
	lim, ok := s.buckets[key]
	if !ok {
		perSec := rate.Limit(float64(policy.RPM) / 60.0)
		if perSec <= 0 {
			perSec = rate.Limit(1)
		}
		lim = rate.NewLimiter(perSec, max(policy.Burst, 1))
		s.buckets[key] = lim
	}
	s.mu.Unlock()

	return lim.AllowN(time.Now(), cost), nil
}

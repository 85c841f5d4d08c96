package baseline

import (
	"context"
	"sync"
)

// MemoryStore implements Store in memory.
// Thread-safe via RWMutex.
type MemoryStore struct {
	mu        sync.RWMutex
	baselines map[string]*Baseline
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{baselines: make(map[string]*Baseline)}
}

func (s *MemoryStore) Get(ctx context.Context, deviceID string) (*Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.baselines[deviceID]; ok {
		// return copy to avoid race on mutation outside lock
		val := *b
		val.Flags = append(val.Flags[:0:0], b.Flags...)
		val.Transactions = append(val.Transactions[:0:0], b.Transactions...)
		return &val, nil
	}
	return nil, nil
}

func (s *MemoryStore) Put(ctx context.Context, b *Baseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	val := *b
	s.baselines[b.DeviceID] = &val
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.baselines, deviceID)
	return nil
}

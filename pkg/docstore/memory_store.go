package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store for tests and single-node deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	docs    map[string][]byte
	flagged map[string]bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string][]byte),
		flagged: make(map[string]bool),
	}
}

func (s *MemoryStore) Get(_ context.Context, ownerID string) (map[string]any, error) {
	s.mu.RLock()
	blob, ok := s.docs[ownerID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var doc map[string]any
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *MemoryStore) Put(_ context.Context, ownerID string, doc map[string]any, flagged bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing map[string]any
	if blob, ok := s.docs[ownerID]; ok {
		if err := json.Unmarshal(blob, &existing); err != nil {
			return err
		}
	}
	blob, err := json.Marshal(merge(existing, doc))
	if err != nil {
		return err
	}
	s.docs[ownerID] = blob
	if flagged {
		s.flagged[ownerID] = true
	}
	return nil
}

func (s *MemoryStore) QueryFlagged(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owners := make([]string, 0, len(s.flagged))
	for id := range s.flagged {
		owners = append(owners, id)
	}
	sort.Strings(owners)
	if limit > 0 && len(owners) > limit {
		owners = owners[:limit]
	}
	return owners, nil
}

func (s *MemoryStore) ClearFlags(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flagged, ownerID)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, ownerID)
	delete(s.flagged, ownerID)
	return nil
}

// Package memory is an in-process audit store used as a test sink.
package memory

import (
	"context"
	"sync"

	audit "pgfnsync/pkg/platform/audit"
)

// InMemoryStore keeps events in append order, indexed by deal.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
	byDeal map[string][]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byDeal: make(map[string][]int)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDeal[event.DealID] = append(s.byDeal[event.DealID], len(s.events))
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByDeal(_ context.Context, dealID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.byDeal[dealID]
	out := make([]audit.Event, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.events[i])
	}
	return out, nil
}

package insights

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store implementation for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byDate map[string]*Insight
}

// NewMemoryStore creates an empty in-memory insight store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byDate: make(map[string]*Insight)}
}

func (s *MemoryStore) Get(ctx context.Context, date string) (*Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ins, ok := s.byDate[date]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ins
	return &cp, nil
}

func (s *MemoryStore) Put(ctx context.Context, ins *Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ins
	s.byDate[ins.Date] = &cp
	return nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]*Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Insight, 0, len(s.byDate))
	for _, ins := range s.byDate {
		cp := *ins
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

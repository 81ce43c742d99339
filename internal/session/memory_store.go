package session

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store implementation for development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*Session
	order []string
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Session)}
}

func (s *MemoryStore) Create(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := copySession(sess)
	s.byID[sess.ID] = cp
	s.order = append(s.order, sess.ID)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[sess.ID]; !ok {
		return ErrNotFound
	}
	s.byID[sess.ID] = copySession(sess)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySession(sess), nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Session
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, copySession(s.byID[s.order[i]]))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func copySession(s *Session) *Session {
	cp := *s
	if s.Errors != nil {
		cp.Errors = append([]string(nil), s.Errors...)
	}
	return &cp
}

package transaction

import (
	"context"
	"sync"
	"time"

	"github.com/mbd888/fraudsight/internal/money"
)

// MemoryStore is an in-memory Store implementation for development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*Transaction
	order []string // ingestion order
	notes map[string][]*Note
}

// NewMemoryStore creates an empty in-memory transaction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[string]*Transaction),
		notes: make(map[string][]*Note),
	}
}

func (s *MemoryStore) Create(ctx context.Context, t *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[t.ID]; ok {
		return ErrDuplicate
	}
	s.byID[t.ID] = copyTransaction(t)
	s.order = append(s.order, t.ID)
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTransaction(t), nil
}

func (s *MemoryStore) List(ctx context.Context, opts ListOptions) ([]*Transaction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*Transaction
	// Newest ingested first.
	for i := len(s.order) - 1; i >= 0; i-- {
		t := s.byID[s.order[i]]
		if !matchesOptions(t, opts) {
			continue
		}
		matches = append(matches, copyTransaction(t))
	}

	total := len(matches)
	if opts.Offset > 0 {
		if opts.Offset >= total {
			return nil, total, nil
		}
		matches = matches[opts.Offset:]
	}
	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches, total, nil
}

func matchesOptions(t *Transaction, opts ListOptions) bool {
	if opts.Type != "" && t.Type != opts.Type {
		return false
	}
	if opts.Status != "" && t.Status != opts.Status {
		return false
	}
	if opts.FraudOnly != nil && t.IsFraud != *opts.FraudOnly {
		return false
	}
	if opts.Party != "" && t.PartyFrom != opts.Party && t.PartyTo != opts.Party {
		return false
	}
	if opts.Institution != "" && t.InstitutionFrom != opts.Institution && t.InstitutionTo != opts.Institution {
		return false
	}
	if opts.MinAmount != "" && money.Cmp(t.Amount, opts.MinAmount) < 0 {
		return false
	}
	if opts.MaxAmount != "" && money.Cmp(t.Amount, opts.MaxAmount) > 0 {
		return false
	}
	if opts.IngestedAfter != nil && t.IngestedAt.Before(*opts.IngestedAfter) {
		return false
	}
	if opts.IngestedBefore != nil && !t.IngestedAt.Before(*opts.IngestedBefore) {
		return false
	}
	return true
}

func (s *MemoryStore) ListByParty(ctx context.Context, party string) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Transaction
	for _, id := range s.order {
		t := s.byID[id]
		if t.PartyFrom == party || t.PartyTo == party {
			out = append(out, copyTransaction(t))
		}
	}
	return out, nil
}

func (s *MemoryStore) ListByInstitution(ctx context.Context, code string) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Transaction
	for _, id := range s.order {
		t := s.byID[id]
		if t.InstitutionFrom == code || t.InstitutionTo == code {
			out = append(out, copyTransaction(t))
		}
	}
	return out, nil
}

func (s *MemoryStore) OutgoingSince(ctx context.Context, party string, since time.Time) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Transaction
	for _, id := range s.order {
		t := s.byID[id]
		if t.PartyFrom == party && !t.IngestedAt.Before(since) {
			out = append(out, copyTransaction(t))
		}
	}
	return out, nil
}

func (s *MemoryStore) IncomingSince(ctx context.Context, party string, since time.Time) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Transaction
	for _, id := range s.order {
		t := s.byID[id]
		if t.PartyTo == party && !t.IngestedAt.Before(since) {
			out = append(out, copyTransaction(t))
		}
	}
	return out, nil
}

func (s *MemoryStore) SetExplanation(ctx context.Context, id string, priority Priority, riskFactors []string, explanation string, recommendations []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	t.Priority = priority
	t.RiskFactors = append([]string(nil), riskFactors...)
	t.Explanation = explanation
	t.Recommendations = append([]string(nil), recommendations...)
	t.ExplainedAt = &at
	return nil
}

func (s *MemoryStore) AddNote(ctx context.Context, n *Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[n.TransactionID]; !ok {
		return ErrNotFound
	}
	cp := *n
	s.notes[n.TransactionID] = append(s.notes[n.TransactionID], &cp)
	return nil
}

func (s *MemoryStore) ListNotes(ctx context.Context, transactionID string) ([]*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.notes[transactionID]
	// Newest first; notes are appended in creation order.
	out := make([]*Note, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		cp := *stored[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

// copyTransaction deep-copies a record so callers cannot mutate store state
// through the returned maps and slices.
func copyTransaction(t *Transaction) *Transaction {
	cp := *t
	if t.FeatureImportance != nil {
		cp.FeatureImportance = make(map[string]float64, len(t.FeatureImportance))
		for k, v := range t.FeatureImportance {
			cp.FeatureImportance[k] = v
		}
	}
	if t.RiskFactors != nil {
		cp.RiskFactors = append([]string(nil), t.RiskFactors...)
	}
	if t.Recommendations != nil {
		cp.Recommendations = append([]string(nil), t.Recommendations...)
	}
	cp.OccurredAt = copyTime(t.OccurredAt)
	cp.ScoredAt = copyTime(t.ScoredAt)
	cp.ExplainedAt = copyTime(t.ExplainedAt)
	cp.Hour = copyInt(t.Hour)
	cp.DayOfWeek = copyInt(t.DayOfWeek)
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

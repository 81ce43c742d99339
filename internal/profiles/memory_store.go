package profiles

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store implementation for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	clients map[string]*Client
	banks   map[string]*Bank
}

// NewMemoryStore creates an empty in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients: make(map[string]*Client),
		banks:   make(map[string]*Bank),
	}
}

func (s *MemoryStore) GetClient(ctx context.Context, partyID string) (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[partyID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyClient(c), nil
}

func (s *MemoryStore) PutClient(ctx context.Context, c *Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.PartyID] = copyClient(c)
	return nil
}

func (s *MemoryStore) ListClients(ctx context.Context, opts ClientListOptions) ([]*Client, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*Client
	for _, c := range s.clients {
		if opts.RiskLevel != "" && c.RiskLevel != opts.RiskLevel {
			continue
		}
		if opts.MinFraudRate > 0 && c.FraudRate < opts.MinFraudRate {
			continue
		}
		matches = append(matches, copyClient(c))
	}
	// Riskiest first, ID as tiebreak for a stable order.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].FraudRate != matches[j].FraudRate {
			return matches[i].FraudRate > matches[j].FraudRate
		}
		return matches[i].PartyID < matches[j].PartyID
	})

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

func (s *MemoryStore) GetBank(ctx context.Context, code string) (*Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.banks[code]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBank(b), nil
}

func (s *MemoryStore) PutBank(ctx context.Context, b *Bank) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banks[b.Code] = copyBank(b)
	return nil
}

func (s *MemoryStore) ListBanks(ctx context.Context) ([]*Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Bank, 0, len(s.banks))
	for _, b := range s.banks {
		out = append(out, copyBank(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// copyClient deep-copies a profile so callers cannot mutate store state.
func copyClient(c *Client) *Client {
	cp := *c
	cp.State = ClientState{
		TypeCounts:     copyMap(c.State.TypeCounts),
		HourCounts:     copyMap(c.State.HourCounts),
		DayCounts:      copyMap(c.State.DayCounts),
		Institutions:   copyMap(c.State.Institutions),
		Counterparties: copyMap(c.State.Counterparties),
	}
	if c.BehavioralPatterns != nil {
		cp.BehavioralPatterns = append([]string(nil), c.BehavioralPatterns...)
	}
	return &cp
}

func copyBank(b *Bank) *Bank {
	cp := *b
	cp.State = BankState{Clients: copyMap(b.State.Clients)}
	return &cp
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

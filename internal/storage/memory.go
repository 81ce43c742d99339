package storage

import (
	"context"
	"sync"

	"github.com/mbd888/fraudsight/internal/profiles"
	"github.com/mbd888/fraudsight/internal/session"
	"github.com/mbd888/fraudsight/internal/transaction"
)

// Memory is the in-memory composite for development and tests.
type Memory struct {
	mu       sync.Mutex // serializes CommitRow
	txns     *transaction.MemoryStore
	profiles *profiles.MemoryStore
	sessions *session.MemoryStore
}

// NewMemory creates an empty in-memory composite.
func NewMemory() *Memory {
	return &Memory{
		txns:     transaction.NewMemoryStore(),
		profiles: profiles.NewMemoryStore(),
		sessions: session.NewMemoryStore(),
	}
}

func (m *Memory) Transactions() transaction.Store { return m.txns }
func (m *Memory) Profiles() profiles.Store        { return m.profiles }
func (m *Memory) Sessions() session.Store         { return m.sessions }

func (m *Memory) CommitRow(ctx context.Context, t *transaction.Transaction, clients []*profiles.Client, banks []*profiles.Bank) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Create is the only step that can fail; profile puts cannot, so the
	// commit is all-or-nothing under the lock.
	if err := m.txns.Create(ctx, t); err != nil {
		return err
	}
	for _, c := range clients {
		if err := m.profiles.PutClient(ctx, c); err != nil {
			return err
		}
	}
	for _, b := range banks {
		if err := m.profiles.PutBank(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
func (m *Memory) Close() error                   { return nil }

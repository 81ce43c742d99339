package profiles

import (
	"context"
	"fmt"
	"time"

	"github.com/mbd888/fraudsight/internal/logging"
	"github.com/mbd888/fraudsight/internal/syncutil"
	"github.com/mbd888/fraudsight/internal/transaction"
)

// Service coordinates profile staging and recomputation. Rebuilds and
// assessments are read-modify-write cycles, so a per-key lock serializes
// concurrent writers touching the same profile.
type Service struct {
	store Store
	txns  transaction.Store
	locks syncutil.ShardedMutex
}

// NewService creates a profile service over the given stores.
func NewService(store Store, txns transaction.Store) *Service {
	return &Service{store: store, txns: txns}
}

// Stage loads (or creates) every profile a transaction touches and folds
// the transaction in. The returned profiles are not yet persisted; the
// caller commits them together with the transaction.
func (s *Service) Stage(ctx context.Context, t *transaction.Transaction) ([]*Client, []*Bank, error) {
	now := t.IngestedAt

	var clients []*Client
	for _, party := range uniqueStrings(t.PartyFrom, t.PartyTo) {
		c, err := s.store.GetClient(ctx, party)
		if err == ErrNotFound {
			c = NewClient(party, now)
		} else if err != nil {
			return nil, nil, fmt.Errorf("load client profile %s: %w", party, err)
		}
		c.Apply(t)
		clients = append(clients, c)
	}

	var banks []*Bank
	for _, code := range uniqueStrings(t.InstitutionFrom, t.InstitutionTo) {
		b, err := s.store.GetBank(ctx, code)
		if err == ErrNotFound {
			b = NewBank(code, now)
		} else if err != nil {
			return nil, nil, fmt.Errorf("load bank profile %s: %w", code, err)
		}
		b.Apply(t)
		banks = append(banks, b)
	}

	return clients, banks, nil
}

// RecomputeClient rebuilds a client profile from the full transaction
// history and persists it. Assessment fields survive the rebuild.
func (s *Service) RecomputeClient(ctx context.Context, partyID string) (*Client, error) {
	unlock := s.locks.Lock("client:" + partyID)
	defer unlock()

	history, err := s.txns.ListByParty(ctx, partyID)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", partyID, err)
	}

	now := time.Now().UTC()
	fresh := NewClient(partyID, now)
	for _, t := range history {
		fresh.Apply(t)
	}

	if prev, err := s.store.GetClient(ctx, partyID); err == nil {
		fresh.CreatedAt = prev.CreatedAt
		fresh.Assessment = prev.Assessment
		fresh.AssessmentRiskLevel = prev.AssessmentRiskLevel
		fresh.BehavioralPatterns = prev.BehavioralPatterns
		fresh.AssessedAt = prev.AssessedAt
	} else if err != ErrNotFound {
		return nil, fmt.Errorf("load client profile %s: %w", partyID, err)
	}

	if err := s.store.PutClient(ctx, fresh); err != nil {
		return nil, fmt.Errorf("store client profile %s: %w", partyID, err)
	}
	return fresh, nil
}

// RecomputeBank rebuilds a bank profile from the full transaction history
// and persists it.
func (s *Service) RecomputeBank(ctx context.Context, code string) (*Bank, error) {
	unlock := s.locks.Lock("bank:" + code)
	defer unlock()

	history, err := s.txns.ListByInstitution(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", code, err)
	}

	now := time.Now().UTC()
	fresh := NewBank(code, now)
	for _, t := range history {
		fresh.Apply(t)
	}

	if prev, err := s.store.GetBank(ctx, code); err == nil {
		fresh.CreatedAt = prev.CreatedAt
	} else if err != ErrNotFound {
		return nil, fmt.Errorf("load bank profile %s: %w", code, err)
	}

	if err := s.store.PutBank(ctx, fresh); err != nil {
		return nil, fmt.Errorf("store bank profile %s: %w", code, err)
	}
	return fresh, nil
}

// RefreshAll recomputes every known client and bank profile. Returns the
// number of profiles rebuilt; individual failures are logged and skipped so
// one bad profile does not abort the sweep.
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	start := time.Now()
	refreshed := 0

	clients, _, err := s.store.ListClients(ctx, ClientListOptions{})
	if err != nil {
		return 0, fmt.Errorf("list client profiles: %w", err)
	}
	for _, c := range clients {
		if ctx.Err() != nil {
			return refreshed, ctx.Err()
		}
		if _, err := s.RecomputeClient(ctx, c.PartyID); err != nil {
			logging.L(ctx).Error("client profile refresh failed", "party", c.PartyID, "error", err)
			continue
		}
		refreshed++
	}

	banks, err := s.store.ListBanks(ctx)
	if err != nil {
		return refreshed, fmt.Errorf("list bank profiles: %w", err)
	}
	for _, b := range banks {
		if ctx.Err() != nil {
			return refreshed, ctx.Err()
		}
		if _, err := s.RecomputeBank(ctx, b.Code); err != nil {
			logging.L(ctx).Error("bank profile refresh failed", "bank", b.Code, "error", err)
			continue
		}
		refreshed++
	}

	refreshDuration.Observe(time.Since(start).Seconds())
	logging.L(ctx).Info("profile refresh complete", "refreshed", refreshed, "duration", time.Since(start))
	return refreshed, nil
}

// Assess applies a reasoner assessment to a stored client profile.
func (s *Service) Assess(ctx context.Context, partyID, riskLevel, assessment string, patterns []string) (*Client, error) {
	unlock := s.locks.Lock("client:" + partyID)
	defer unlock()

	c, err := s.store.GetClient(ctx, partyID)
	if err != nil {
		return nil, err
	}
	c.SetAssessment(riskLevel, assessment, patterns, time.Now().UTC())
	if err := s.store.PutClient(ctx, c); err != nil {
		return nil, fmt.Errorf("store client profile %s: %w", partyID, err)
	}
	return c, nil
}

func uniqueStrings(a, b string) []string {
	if a == b {
		return []string{a}
	}
	return []string{a, b}
}

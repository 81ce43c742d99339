// Package insights builds the daily fraud digest and the per-client
// velocity snapshot used by the analytics endpoints.
package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbd888/fraudsight/internal/idgen"
	"github.com/mbd888/fraudsight/internal/logging"
	"github.com/mbd888/fraudsight/internal/money"
	"github.com/mbd888/fraudsight/internal/profiles"
	"github.com/mbd888/fraudsight/internal/transaction"
)

var ErrNotFound = errors.New("insight not found")

// Insight is the digest for one calendar day of ingested traffic.
type Insight struct {
	ID                string    `json:"id"`
	Date              string    `json:"date"` // YYYY-MM-DD, unique
	TotalTransactions int       `json:"totalTransactions"`
	FraudCount        int       `json:"fraudCount"`
	HighPriorityCount int       `json:"highPriorityCount"`
	FraudAmount       string    `json:"fraudAmount"`
	TopRiskClients    []string  `json:"topRiskClients"`
	Summary           string    `json:"summary"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Store persists daily insights.
type Store interface {
	Get(ctx context.Context, date string) (*Insight, error)
	Put(ctx context.Context, ins *Insight) error
	// List returns insights newest day first.
	List(ctx context.Context, limit int) ([]*Insight, error)
}

// Generator builds insights from committed data.
type Generator struct {
	txns     transaction.Store
	profiles profiles.Store
	store    Store
}

// NewGenerator creates an insight generator.
func NewGenerator(txns transaction.Store, prof profiles.Store, store Store) *Generator {
	return &Generator{txns: txns, profiles: prof, store: store}
}

// Store exposes the backing insight store for read endpoints.
func (g *Generator) Store() Store {
	return g.store
}

// Generate builds and stores the insight for the day containing at
// (UTC). Generation is idempotent: an existing insight for the day is
// returned untouched.
func (g *Generator) Generate(ctx context.Context, at time.Time) (*Insight, error) {
	day := at.UTC().Truncate(24 * time.Hour)
	date := day.Format("2006-01-02")

	if existing, err := g.store.Get(ctx, date); err == nil {
		logging.L(ctx).Debug("daily insight already exists", "date", date)
		return existing, nil
	} else if err != ErrNotFound {
		return nil, fmt.Errorf("check existing insight: %w", err)
	}

	dayEnd := day.Add(24 * time.Hour)
	rows, _, err := g.txns.List(ctx, transaction.ListOptions{
		IngestedAfter:  &day,
		IngestedBefore: &dayEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("list day transactions: %w", err)
	}

	ins := &Insight{
		ID:          idgen.WithPrefix("ins_"),
		Date:        date,
		FraudAmount: "0.00",
		CreatedAt:   time.Now().UTC(),
	}
	ins.TotalTransactions = len(rows)
	for _, t := range rows {
		if !t.IsFraud {
			continue
		}
		ins.FraudCount++
		ins.FraudAmount = money.Add(ins.FraudAmount, t.Amount)
		if t.Priority == transaction.PriorityHigh || t.Priority == transaction.PriorityUrgent {
			ins.HighPriorityCount++
		}
	}

	risky, _, err := g.profiles.ListClients(ctx, profiles.ClientListOptions{
		MinFraudRate: 5,
		Limit:        5,
	})
	if err != nil {
		logging.L(ctx).Warn("top risk clients unavailable", "error", err)
	} else {
		for _, c := range risky {
			ins.TopRiskClients = append(ins.TopRiskClients, c.PartyID)
		}
	}

	ins.Summary = fmt.Sprintf("Automated digest: %d transactions processed, %d frauds detected (%s MRU), %d high priority.",
		ins.TotalTransactions, ins.FraudCount, ins.FraudAmount, ins.HighPriorityCount)

	if err := g.store.Put(ctx, ins); err != nil {
		return nil, fmt.Errorf("store insight: %w", err)
	}
	logging.L(ctx).Info("daily insight generated", "date", date, "frauds", ins.FraudCount)
	return ins, nil
}

// Velocity is a short-window activity snapshot for one party.
type Velocity struct {
	PartyID         string  `json:"partyId"`
	WindowHours     int     `json:"windowHours"`
	Transactions    int     `json:"transactions"`
	TotalAmount     string  `json:"totalAmount"`
	FraudCount      int     `json:"fraudCount"`
	PerHour         float64 `json:"perHour"`
	AmountPerHour   float64 `json:"amountPerHour"`
}

// ComputeVelocity measures the party's outgoing activity over the last
// window hours.
func (g *Generator) ComputeVelocity(ctx context.Context, partyID string, windowHours int) (*Velocity, error) {
	if windowHours <= 0 {
		windowHours = 24
	}
	since := time.Now().UTC().Add(-time.Duration(windowHours) * time.Hour)

	rows, err := g.txns.OutgoingSince(ctx, partyID, since)
	if err != nil {
		return nil, fmt.Errorf("load recent activity: %w", err)
	}

	v := &Velocity{
		PartyID:     partyID,
		WindowHours: windowHours,
		TotalAmount: "0.00",
	}
	for _, t := range rows {
		v.Transactions++
		v.TotalAmount = money.Add(v.TotalAmount, t.Amount)
		if t.IsFraud {
			v.FraudCount++
		}
	}
	v.PerHour = float64(v.Transactions) / float64(windowHours)
	v.AmountPerHour = money.Float(v.TotalAmount) / float64(windowHours)
	return v, nil
}

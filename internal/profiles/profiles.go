// Package profiles maintains behavioral aggregates per client and per bank.
//
// Profiles converge with the committed transaction set two ways: Apply folds
// one new transaction into the aggregate in O(1) using persisted counting
// state, and Recompute rebuilds the same values from the full transaction
// history. Both paths must agree; Recompute is the repair path when an
// incremental update was lost.
package profiles

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("profile not found")

// RiskLevel is the surveillance classification of a client profile.
type RiskLevel string

const (
	RiskNormal  RiskLevel = "NORMAL"
	RiskWatch   RiskLevel = "WATCH"
	RiskSuspect RiskLevel = "SUSPECT"
)

// Fraud-rate thresholds (percent) for the classification bands.
const (
	suspectRateThreshold = 15
	watchRateThreshold   = 5
)

// ClassifyRisk maps a fraud rate percentage to a risk level.
func ClassifyRisk(fraudRate float64) RiskLevel {
	switch {
	case fraudRate > suspectRateThreshold:
		return RiskSuspect
	case fraudRate > watchRateThreshold:
		return RiskWatch
	default:
		return RiskNormal
	}
}

// ClientListOptions filters client profile listings.
type ClientListOptions struct {
	RiskLevel    RiskLevel
	MinFraudRate float64
	Limit        int
	Offset       int
}

// Store persists client and bank profiles. Put is an upsert of the whole
// row including the aggregation state.
type Store interface {
	GetClient(ctx context.Context, partyID string) (*Client, error)
	PutClient(ctx context.Context, c *Client) error
	ListClients(ctx context.Context, opts ClientListOptions) ([]*Client, int, error)

	GetBank(ctx context.Context, code string) (*Bank, error)
	PutBank(ctx context.Context, b *Bank) error
	ListBanks(ctx context.Context) ([]*Bank, error)
}

// SetAssessment records a reasoner assessment on a client profile.
func (c *Client) SetAssessment(riskLevel, assessment string, patterns []string, at time.Time) {
	c.AssessmentRiskLevel = riskLevel
	c.Assessment = assessment
	c.BehavioralPatterns = patterns
	c.AssessedAt = &at
	c.UpdatedAt = at
}

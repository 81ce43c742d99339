// Package analysis produces human-readable fraud explanations.
//
// A Reasoner is the pluggable explanation backend. The dispatcher wraps the
// configured backend with a deterministic heuristic fallback so explanation
// generation can never fail a row: worst case the caller gets the heuristic
// result.
package analysis

import (
	"time"

	"github.com/mbd888/fraudsight/internal/transaction"
)

// Explanation sources.
const (
	SourceModel     = "model"
	SourceHeuristic = "heuristic"
)

// Explanation is the reviewer-facing rationale for a flagged transaction.
type Explanation struct {
	Priority        transaction.Priority `json:"priority"`
	RiskFactors     []string             `json:"riskFactors"`
	Explanation     string               `json:"explanation"`
	Recommendations []string             `json:"recommendations"`
	Confidence      float64              `json:"confidence"`
	Summary         string               `json:"summary"`
	Source          string               `json:"source"` // "model" or "heuristic"
	Model           string               `json:"model,omitempty"`
	AnalyzedAt      time.Time            `json:"analyzedAt"`
}

// Assessment risk levels for client profiles.
const (
	AssessmentLow      = "LOW"
	AssessmentMedium   = "MEDIUM"
	AssessmentHigh     = "HIGH"
	AssessmentCritical = "CRITICAL"
)

// Assessment is the reviewer-facing evaluation of a client profile.
type Assessment struct {
	RiskLevel          string    `json:"riskLevel"`
	BehavioralPatterns []string  `json:"behavioralPatterns"`
	Assessment         string    `json:"assessment"`
	Recommendations    []string  `json:"recommendations"`
	Confidence         float64   `json:"confidence"`
	Summary            string    `json:"summary"`
	Source             string    `json:"source"`
	Model              string    `json:"model,omitempty"`
	AnalyzedAt         time.Time `json:"analyzedAt"`
}

// ClientSummary carries the profile stats a reasoner needs, decoupled from
// the profiles package.
type ClientSummary struct {
	PartyID      string
	Transactions int
	TotalAmount  string
	FraudCount   int
	FraudRate    float64 // percentage, 0..100
	LastActivity *time.Time
}

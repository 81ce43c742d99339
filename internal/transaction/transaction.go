// Package transaction defines the core transaction record and its stores.
//
// A transaction enters the system as a raw CSV row, is validated into a
// candidate, scored for fraud risk, optionally explained, and then committed.
// Once committed the core fields are immutable; only the verdict and
// explanation blocks are filled in after creation, exactly once each.
package transaction

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("transaction not found")
	ErrDuplicate = errors.New("transaction already exists")
)

// Type is the transaction type code as it appears in the source feed.
type Type string

const (
	TypeTransfer    Type = "TRF" // interbank transfer
	TypeWithdrawal  Type = "RT"  // cash withdrawal
	TypeRecharge    Type = "RCD" // account recharge
	TypeBillPayment Type = "PF"  // bill payment
)

// ValidTypes maps every accepted type code.
var ValidTypes = map[Type]bool{
	TypeTransfer:    true,
	TypeWithdrawal:  true,
	TypeRecharge:    true,
	TypeBillPayment: true,
}

// Status is the settlement status code from the source feed.
type Status string

const (
	StatusOK      Status = "OK"  // settled
	StatusFailed  Status = "KO"  // processing failure
	StatusPending Status = "ATT" // pending / in flight
)

// ValidStatuses maps every accepted status code.
var ValidStatuses = map[Status]bool{
	StatusOK:      true,
	StatusFailed:  true,
	StatusPending: true,
}

// Priority is the explanation urgency classification, independent of the
// raw fraud verdict.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Transaction is one committed (or about-to-commit) transaction record.
type Transaction struct {
	// Core fields, immutable after commit.
	ID              string     `json:"id"` // natural key from the source feed
	OccurredAtRaw   string     `json:"occurredAtRaw,omitempty"`
	OccurredAt      *time.Time `json:"occurredAt,omitempty"` // best-effort parse of OccurredAtRaw
	Millis          int64      `json:"millis"`
	Type            Type       `json:"type"`
	Amount          string     `json:"amount"` // fixed-point MRU, see internal/money
	PartyFrom       string     `json:"partyFrom"`
	PartyTo         string     `json:"partyTo"`
	InstitutionFrom string     `json:"institutionFrom"`
	InstitutionTo   string     `json:"institutionTo"`
	Status          Status     `json:"status"`

	// Verdict, filled once by the scoring engine.
	IsFraud           bool               `json:"isFraud"`
	RiskScore         float64            `json:"riskScore"`
	Confidence        float64            `json:"confidence"`
	FeatureImportance map[string]float64 `json:"featureImportance,omitempty"`
	ScoringError      string             `json:"scoringError,omitempty"`
	ScoredAt          *time.Time         `json:"scoredAt,omitempty"`

	// Explanation, filled once for flagged records.
	Priority        Priority   `json:"priority,omitempty"`
	RiskFactors     []string   `json:"riskFactors,omitempty"`
	Explanation     string     `json:"explanation,omitempty"`
	Recommendations []string   `json:"recommendations,omitempty"`
	ExplainedAt     *time.Time `json:"explainedAt,omitempty"`

	// Ingestion metadata.
	IngestedAt time.Time `json:"ingestedAt"`
	IngestedBy string    `json:"ingestedBy,omitempty"`
	Hour       *int      `json:"hour,omitempty"`
	DayOfWeek  *int      `json:"dayOfWeek,omitempty"` // 0 = Monday .. 6 = Sunday
	Date       string    `json:"date,omitempty"`      // YYYY-MM-DD
}

// SelfTransfer reports whether the initiating and receiving party are the same.
func (t *Transaction) SelfTransfer() bool {
	return t.PartyFrom == t.PartyTo
}

// CrossInstitution reports whether the two institutions differ.
func (t *Transaction) CrossInstitution() bool {
	return t.InstitutionFrom != t.InstitutionTo
}

// deriveTimeFields fills Hour, DayOfWeek, and Date from OccurredAt.
// Left unset when no timestamp parsed.
func (t *Transaction) deriveTimeFields() {
	if t.OccurredAt == nil {
		return
	}
	h := t.OccurredAt.Hour()
	d := mondayIndexed(t.OccurredAt.Weekday())
	t.Hour = &h
	t.DayOfWeek = &d
	t.Date = t.OccurredAt.Format("2006-01-02")
}

// mondayIndexed converts Go's Sunday-first weekday to the Monday=0 convention
// used by the feature schema and profile temporal stats.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// Note is an investigator annotation attached to a committed transaction.
// Notes are append-only; there is no edit or delete path.
type Note struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transactionId"`
	Note          string    `json:"note"`
	CreatedBy     string    `json:"createdBy,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ListOptions filters transaction listings.
type ListOptions struct {
	Type           Type
	Status         Status
	FraudOnly      *bool // nil = both
	Party          string
	Institution    string
	MinAmount      string
	MaxAmount      string
	IngestedAfter  *time.Time
	IngestedBefore *time.Time
	Limit          int
	Offset         int
}

// Store persists transaction records.
//
// Create is normally invoked through the storage composite so the record
// lands atomically with the profile updates it implies.
type Store interface {
	Create(ctx context.Context, t *Transaction) error
	Exists(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (*Transaction, error)
	// List returns matching transactions (newest ingested first) and the
	// total match count before limit/offset.
	List(ctx context.Context, opts ListOptions) ([]*Transaction, int, error)
	// ListByParty returns every transaction where the party is initiator
	// or receiver, oldest ingested first. Used for profile recompute.
	ListByParty(ctx context.Context, party string) ([]*Transaction, error)
	// ListByInstitution returns every transaction referencing the
	// institution, oldest ingested first.
	ListByInstitution(ctx context.Context, code string) ([]*Transaction, error)
	// OutgoingSince returns transactions initiated by party ingested at or
	// after since, used for initiator history features.
	OutgoingSince(ctx context.Context, party string, since time.Time) ([]*Transaction, error)
	// IncomingSince returns transactions received by party ingested at or
	// after since, used for counterparty history features.
	IncomingSince(ctx context.Context, party string, since time.Time) ([]*Transaction, error)
	// SetExplanation fills the explanation block for an already-committed
	// record that was flagged without one (on-demand re-analysis).
	SetExplanation(ctx context.Context, id string, priority Priority, riskFactors []string, explanation string, recommendations []string, at time.Time) error
	// AddNote attaches an investigator note to a committed transaction.
	// Returns ErrNotFound when the transaction does not exist.
	AddNote(ctx context.Context, n *Note) error
	// ListNotes returns the notes for a transaction, newest first.
	ListNotes(ctx context.Context, transactionID string) ([]*Note, error)
	Count(ctx context.Context) (int, error)
}

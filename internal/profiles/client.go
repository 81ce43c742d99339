package profiles

import (
	"time"

	"github.com/mbd888/fraudsight/internal/money"
	"github.com/mbd888/fraudsight/internal/transaction"
)

// ClientState is the persisted counting state behind a client profile's
// derived fields. Keeping it on the row is what makes Apply O(1) while
// letting Recompute reproduce identical values.
type ClientState struct {
	TypeCounts     map[string]int  `json:"typeCounts"`
	HourCounts     map[int]int     `json:"hourCounts"`
	DayCounts      map[int]int     `json:"dayCounts"`
	Institutions   map[string]bool `json:"institutions"`
	Counterparties map[string]bool `json:"counterparties"`
}

func newClientState() ClientState {
	return ClientState{
		TypeCounts:     map[string]int{},
		HourCounts:     map[int]int{},
		DayCounts:      map[int]int{},
		Institutions:   map[string]bool{},
		Counterparties: map[string]bool{},
	}
}

// Client is the behavioral aggregate for one party.
type Client struct {
	PartyID string `json:"partyId"`

	// Directional volume. A self transfer counts on both sides.
	TotalSent      int    `json:"totalSent"`
	TotalReceived  int    `json:"totalReceived"`
	AmountSent     string `json:"amountSent"`
	AmountReceived string `json:"amountReceived"`

	// Aggregates over distinct transactions involving the party.
	TxnCount    int    `json:"txnCount"`
	TotalAmount string `json:"totalAmount"`
	AvgAmount   string `json:"avgAmount"`
	MinAmount   string `json:"minAmount"`
	MaxAmount   string `json:"maxAmount"`

	MostCommonType       transaction.Type `json:"mostCommonType,omitempty"`
	UniqueInstitutions   int              `json:"uniqueInstitutions"`
	UniqueCounterparties int              `json:"uniqueCounterparties"`
	SelfTransfers        int              `json:"selfTransfers"`
	FailedSent           int              `json:"failedSent"`

	FraudCount int       `json:"fraudCount"`
	FraudRate  float64   `json:"fraudRate"` // percent of distinct transactions
	RiskLevel  RiskLevel `json:"riskLevel"`

	// Temporal behavior, from transactions that carried a timestamp.
	MostActiveHour *int `json:"mostActiveHour,omitempty"`
	MostActiveDay  *int `json:"mostActiveDay,omitempty"` // 0 = Monday
	WeekendCount   int  `json:"weekendCount"`
	NightCount     int  `json:"nightCount"`

	// Latest reasoner assessment, if any.
	Assessment          string     `json:"assessment,omitempty"`
	AssessmentRiskLevel string     `json:"assessmentRiskLevel,omitempty"`
	BehavioralPatterns  []string   `json:"behavioralPatterns,omitempty"`
	AssessedAt          *time.Time `json:"assessedAt,omitempty"`

	FirstActivity *time.Time `json:"firstActivity,omitempty"`
	LastActivity  *time.Time `json:"lastActivity,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	State ClientState `json:"-"`
}

// NewClient creates an empty profile for a party.
func NewClient(partyID string, now time.Time) *Client {
	return &Client{
		PartyID:        partyID,
		AmountSent:     "0.00",
		AmountReceived: "0.00",
		TotalAmount:    "0.00",
		AvgAmount:      "0.00",
		MinAmount:      "0.00",
		MaxAmount:      "0.00",
		RiskLevel:      RiskNormal,
		CreatedAt:      now,
		UpdatedAt:      now,
		State:          newClientState(),
	}
}

// Apply folds one transaction into the profile. The caller guarantees each
// committed transaction is applied exactly once (the ingest duplicate guard
// enforces this); Recompute is the repair path if an update was lost.
func (c *Client) Apply(t *transaction.Transaction) {
	sent := t.PartyFrom == c.PartyID
	received := t.PartyTo == c.PartyID
	if !sent && !received {
		return
	}

	if sent {
		c.TotalSent++
		c.AmountSent = money.Add(c.AmountSent, t.Amount)
		if t.Status == transaction.StatusFailed {
			c.FailedSent++
		}
		c.State.Counterparties[t.PartyTo] = true
	}
	if received {
		c.TotalReceived++
		c.AmountReceived = money.Add(c.AmountReceived, t.Amount)
		if !sent {
			c.State.Counterparties[t.PartyFrom] = true
		}
	}

	// Distinct-transaction aggregates count a self transfer once.
	c.TxnCount++
	c.TotalAmount = money.Add(c.TotalAmount, t.Amount)
	if c.TxnCount == 1 {
		c.MinAmount = t.Amount
		c.MaxAmount = t.Amount
	} else {
		if money.Cmp(t.Amount, c.MinAmount) < 0 {
			c.MinAmount = t.Amount
		}
		if money.Cmp(t.Amount, c.MaxAmount) > 0 {
			c.MaxAmount = t.Amount
		}
	}

	c.State.TypeCounts[string(t.Type)]++
	c.State.Institutions[t.InstitutionFrom] = true
	c.State.Institutions[t.InstitutionTo] = true

	if t.SelfTransfer() {
		c.SelfTransfers++
	}
	if t.IsFraud {
		c.FraudCount++
	}

	if t.Hour != nil {
		c.State.HourCounts[*t.Hour]++
		if *t.Hour >= 22 || *t.Hour < 6 {
			c.NightCount++
		}
	}
	if t.DayOfWeek != nil {
		c.State.DayCounts[*t.DayOfWeek]++
		if *t.DayOfWeek >= 5 {
			c.WeekendCount++
		}
	}

	at := t.IngestedAt
	if c.FirstActivity == nil || at.Before(*c.FirstActivity) {
		first := at
		c.FirstActivity = &first
	}
	if c.LastActivity == nil || at.After(*c.LastActivity) {
		last := at
		c.LastActivity = &last
	}

	c.finalize()
	c.UpdatedAt = at
}

// finalize recomputes every derived field from the counting state.
func (c *Client) finalize() {
	c.UniqueInstitutions = len(c.State.Institutions)
	c.UniqueCounterparties = len(c.State.Counterparties)

	if c.TxnCount > 0 {
		c.AvgAmount = money.FromFloat(money.Float(c.TotalAmount) / float64(c.TxnCount))
		c.FraudRate = float64(c.FraudCount) / float64(c.TxnCount) * 100
	} else {
		c.AvgAmount = "0.00"
		c.FraudRate = 0
	}
	c.RiskLevel = ClassifyRisk(c.FraudRate)

	c.MostCommonType = transaction.Type(argmaxString(c.State.TypeCounts))
	c.MostActiveHour = argmaxInt(c.State.HourCounts)
	c.MostActiveDay = argmaxInt(c.State.DayCounts)
}

// argmaxString returns the key with the highest count, smallest key on
// ties so the result is deterministic. Empty map yields "".
func argmaxString(counts map[string]int) string {
	var (
		best     string
		bestN    int
		haveBest bool
	)
	for k, n := range counts {
		if !haveBest || n > bestN || (n == bestN && k < best) {
			best, bestN, haveBest = k, n, true
		}
	}
	return best
}

// argmaxInt returns the key with the highest count, smallest key on ties.
// Empty map yields nil.
func argmaxInt(counts map[int]int) *int {
	var (
		best     int
		bestN    int
		haveBest bool
	)
	for k, n := range counts {
		if !haveBest || n > bestN || (n == bestN && k < best) {
			best, bestN, haveBest = k, n, true
		}
	}
	if !haveBest {
		return nil
	}
	return &best
}

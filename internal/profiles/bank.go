package profiles

import (
	"time"

	"github.com/mbd888/fraudsight/internal/money"
	"github.com/mbd888/fraudsight/internal/transaction"
)

// BankState is the persisted counting state behind a bank profile.
type BankState struct {
	Clients map[string]bool `json:"clients"`
}

// Bank is the traffic aggregate for one institution.
type Bank struct {
	Code string `json:"code"`

	TxnCount    int    `json:"txnCount"`
	TotalAmount string `json:"totalAmount"`

	UniqueClients int `json:"uniqueClients"`

	FraudCount        int `json:"fraudCount"`
	HighPriorityCount int `json:"highPriorityCount"` // flagged with HIGH or URGENT priority

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	State BankState `json:"-"`
}

// NewBank creates an empty profile for an institution.
func NewBank(code string, now time.Time) *Bank {
	return &Bank{
		Code:        code,
		TotalAmount: "0.00",
		CreatedAt:   now,
		UpdatedAt:   now,
		State:       BankState{Clients: map[string]bool{}},
	}
}

// Apply folds one transaction into the profile. A transaction touching the
// same bank on both sides counts once.
func (b *Bank) Apply(t *transaction.Transaction) {
	initiating := t.InstitutionFrom == b.Code
	receiving := t.InstitutionTo == b.Code
	if !initiating && !receiving {
		return
	}

	b.TxnCount++
	b.TotalAmount = money.Add(b.TotalAmount, t.Amount)

	if initiating {
		b.State.Clients[t.PartyFrom] = true
	}
	if receiving {
		b.State.Clients[t.PartyTo] = true
	}
	b.UniqueClients = len(b.State.Clients)

	if t.IsFraud {
		b.FraudCount++
		if t.Priority == transaction.PriorityHigh || t.Priority == transaction.PriorityUrgent {
			b.HighPriorityCount++
		}
	}

	b.UpdatedAt = t.IngestedAt
}

package analysis

import (
	"fmt"
	"strings"

	"github.com/mbd888/fraudsight/internal/money"
	"github.com/mbd888/fraudsight/internal/transaction"
)

// Amount tiers used by the context builder and the heuristic reasoner,
// in whole MRU.
const (
	veryLargeAmount = 50000
	largeAmount     = 20000
)

// offHours reports whether hour falls outside normal banking activity.
func offHours(hour int) bool {
	return hour < 6 || hour > 22
}

// BuildTransactionContext summarizes the notable traits of a transaction as
// a short annotation block fed to the reasoner alongside the raw fields.
func BuildTransactionContext(t *transaction.Transaction) string {
	var parts []string

	amount := money.Float(t.Amount)
	if amount > veryLargeAmount {
		parts = append(parts, "VERY LARGE AMOUNT: well above the routine transfer range")
	} else if amount > largeAmount {
		parts = append(parts, "LARGE AMOUNT: above the routine transfer range")
	}

	if t.Hour != nil && offHours(*t.Hour) {
		parts = append(parts, fmt.Sprintf("OFF-HOURS: initiated at %02d:00, outside normal banking hours", *t.Hour))
	}

	if t.SelfTransfer() {
		parts = append(parts, "SELF-TRANSACTION: initiator and beneficiary are the same party")
	}

	if t.CrossInstitution() {
		parts = append(parts, "CROSS-INSTITUTION: funds move between different banks")
	}

	if t.Status == transaction.StatusFailed {
		parts = append(parts, "FAILED: the settlement did not complete")
	}

	if len(parts) == 0 {
		return "No notable traits."
	}
	return strings.Join(parts, "\n")
}

// BuildClientContext summarizes a client profile for the reasoner.
func BuildClientContext(c *ClientSummary) string {
	parts := []string{
		fmt.Sprintf("Total transactions: %d", c.Transactions),
		fmt.Sprintf("Total amount: %s MRU", c.TotalAmount),
		fmt.Sprintf("Flagged transactions: %d (%.2f%%)", c.FraudCount, c.FraudRate),
	}
	if c.LastActivity != nil {
		parts = append(parts, "Last activity: "+c.LastActivity.Format("2006-01-02 15:04"))
	}
	return strings.Join(parts, "\n")
}

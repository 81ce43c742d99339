package profiles

import (
	"testing"
	"time"

	"github.com/mbd888/fraudsight/internal/transaction"
)

func txnAt(id, from, to, amount string, at time.Time) *transaction.Transaction {
	return &transaction.Transaction{
		ID:              id,
		Type:            transaction.TypeTransfer,
		Amount:          amount,
		PartyFrom:       from,
		PartyTo:         to,
		InstitutionFrom: "B01",
		InstitutionTo:   "B02",
		Status:          transaction.StatusOK,
		IngestedAt:      at,
	}
}

func TestClientApply_DirectionalCounts(t *testing.T) {
	now := time.Now()
	c := NewClient("C1", now)

	c.Apply(txnAt("t1", "C1", "C2", "100.00", now))
	c.Apply(txnAt("t2", "C3", "C1", "50.00", now.Add(time.Minute)))

	if c.TotalSent != 1 || c.TotalReceived != 1 {
		t.Errorf("Expected 1 sent / 1 received, got %d/%d", c.TotalSent, c.TotalReceived)
	}
	if c.AmountSent != "100.00" || c.AmountReceived != "50.00" {
		t.Errorf("Unexpected directional amounts: %s / %s", c.AmountSent, c.AmountReceived)
	}
	if c.TxnCount != 2 {
		t.Errorf("Expected 2 distinct transactions, got %d", c.TxnCount)
	}
	if c.TotalAmount != "150.00" {
		t.Errorf("Expected total 150.00, got %s", c.TotalAmount)
	}
	if c.AvgAmount != "75.00" {
		t.Errorf("Expected avg 75.00, got %s", c.AvgAmount)
	}
	if c.MinAmount != "50.00" || c.MaxAmount != "100.00" {
		t.Errorf("Unexpected min/max: %s / %s", c.MinAmount, c.MaxAmount)
	}
	if c.UniqueCounterparties != 2 {
		t.Errorf("Expected 2 counterparties, got %d", c.UniqueCounterparties)
	}
}

func TestClientApply_SelfTransferCountsOnceDistinct(t *testing.T) {
	now := time.Now()
	c := NewClient("C1", now)

	c.Apply(txnAt("t1", "C1", "C1", "200.00", now))

	if c.TotalSent != 1 || c.TotalReceived != 1 {
		t.Errorf("Self transfer must count on both sides, got %d/%d", c.TotalSent, c.TotalReceived)
	}
	if c.TxnCount != 1 {
		t.Errorf("Self transfer must count once in distinct aggregates, got %d", c.TxnCount)
	}
	if c.TotalAmount != "200.00" {
		t.Errorf("Expected total 200.00, got %s", c.TotalAmount)
	}
	if c.SelfTransfers != 1 {
		t.Errorf("Expected 1 self transfer, got %d", c.SelfTransfers)
	}
}

func TestClientApply_FraudRateAndRisk(t *testing.T) {
	now := time.Now()
	c := NewClient("C1", now)

	for i := 0; i < 10; i++ {
		txn := txnAt(string(rune('a'+i)), "C1", "C2", "10.00", now)
		if i < 2 {
			txn.IsFraud = true
		}
		c.Apply(txn)
	}

	if c.FraudCount != 2 {
		t.Errorf("Expected 2 frauds, got %d", c.FraudCount)
	}
	if c.FraudRate != 20 {
		t.Errorf("Expected 20%% fraud rate, got %v", c.FraudRate)
	}
	if c.RiskLevel != RiskSuspect {
		t.Errorf("Expected SUSPECT at 20%%, got %s", c.RiskLevel)
	}
}

func TestClassifyRisk(t *testing.T) {
	cases := []struct {
		rate float64
		want RiskLevel
	}{
		{0, RiskNormal},
		{5, RiskNormal},
		{5.1, RiskWatch},
		{15, RiskWatch},
		{15.1, RiskSuspect},
	}
	for _, tc := range cases {
		if got := ClassifyRisk(tc.rate); got != tc.want {
			t.Errorf("ClassifyRisk(%v) = %s, want %s", tc.rate, got, tc.want)
		}
	}
}

func TestClientApply_TemporalStats(t *testing.T) {
	now := time.Now()
	c := NewClient("C1", now)

	mk := func(id string, hour, dow int) *transaction.Transaction {
		txn := txnAt(id, "C1", "C2", "10.00", now)
		txn.Hour = &hour
		txn.DayOfWeek = &dow
		return txn
	}

	c.Apply(mk("t1", 14, 2))
	c.Apply(mk("t2", 14, 5)) // Saturday
	c.Apply(mk("t3", 23, 6)) // Sunday night

	if c.MostActiveHour == nil || *c.MostActiveHour != 14 {
		t.Errorf("Expected most active hour 14, got %v", c.MostActiveHour)
	}
	if c.WeekendCount != 2 {
		t.Errorf("Expected 2 weekend transactions, got %d", c.WeekendCount)
	}
	if c.NightCount != 1 {
		t.Errorf("Expected 1 night transaction, got %d", c.NightCount)
	}
}

func TestClientApply_MostCommonType(t *testing.T) {
	now := time.Now()
	c := NewClient("C1", now)

	for i, typ := range []transaction.Type{transaction.TypeTransfer, transaction.TypeWithdrawal, transaction.TypeWithdrawal} {
		txn := txnAt(string(rune('a'+i)), "C1", "C2", "10.00", now)
		txn.Type = typ
		c.Apply(txn)
	}

	if c.MostCommonType != transaction.TypeWithdrawal {
		t.Errorf("Expected RT most common, got %s", c.MostCommonType)
	}
}

func TestClientApply_ActivityWindow(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewClient("C1", base)

	c.Apply(txnAt("t2", "C1", "C2", "10.00", base.Add(48*time.Hour)))
	c.Apply(txnAt("t1", "C1", "C2", "10.00", base))

	if c.FirstActivity == nil || !c.FirstActivity.Equal(base) {
		t.Errorf("Expected first activity %v, got %v", base, c.FirstActivity)
	}
	if c.LastActivity == nil || !c.LastActivity.Equal(base.Add(48*time.Hour)) {
		t.Errorf("Expected last activity at +48h, got %v", c.LastActivity)
	}
}

func TestClientApply_IgnoresUnrelated(t *testing.T) {
	c := NewClient("C1", time.Now())
	c.Apply(txnAt("t1", "C8", "C9", "10.00", time.Now()))
	if c.TxnCount != 0 {
		t.Error("Unrelated transaction must not change the profile")
	}
}

func TestBankApply(t *testing.T) {
	now := time.Now()
	b := NewBank("B01", now)

	t1 := txnAt("t1", "C1", "C2", "100.00", now)
	t1.IsFraud = true
	t1.Priority = transaction.PriorityHigh
	b.Apply(t1)

	// Same bank on both sides counts once.
	t2 := txnAt("t2", "C3", "C4", "50.00", now)
	t2.InstitutionTo = "B01"
	b.Apply(t2)

	// Unrelated bank ignored.
	t3 := txnAt("t3", "C5", "C6", "10.00", now)
	t3.InstitutionFrom = "B09"
	t3.InstitutionTo = "B09"
	b.Apply(t3)

	if b.TxnCount != 2 {
		t.Errorf("Expected 2 transactions, got %d", b.TxnCount)
	}
	if b.TotalAmount != "150.00" {
		t.Errorf("Expected total 150.00, got %s", b.TotalAmount)
	}
	if b.UniqueClients != 3 { // C1 (initiating side), C3 and C4 (both sides of t2)
		t.Errorf("Expected 3 unique clients, got %d", b.UniqueClients)
	}
	if b.FraudCount != 1 || b.HighPriorityCount != 1 {
		t.Errorf("Expected 1 fraud / 1 high priority, got %d/%d", b.FraudCount, b.HighPriorityCount)
	}
}

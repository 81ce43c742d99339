package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mbd888/fraudsight/internal/transaction"
)

func flagged(amount string) *transaction.Transaction {
	return &transaction.Transaction{
		ID:              "TRX-1",
		Type:            transaction.TypeTransfer,
		Amount:          amount,
		PartyFrom:       "C1",
		PartyTo:         "C2",
		InstitutionFrom: "B01",
		InstitutionTo:   "B02",
		Status:          transaction.StatusOK,
		IsFraud:         true,
	}
}

func TestHeuristic_AmountTiers(t *testing.T) {
	h := NewHeuristicReasoner()
	ctx := context.Background()

	cases := []struct {
		amount string
		want   transaction.Priority
	}{
		{"60000.00", transaction.PriorityHigh},
		{"25000.00", transaction.PriorityMedium},
		{"1500.00", transaction.PriorityLow},
	}
	for _, tc := range cases {
		expl, err := h.ExplainTransaction(ctx, flagged(tc.amount), "")
		if err != nil {
			t.Fatalf("ExplainTransaction failed: %v", err)
		}
		if expl.Priority != tc.want {
			t.Errorf("Amount %s: expected %s, got %s", tc.amount, tc.want, expl.Priority)
		}
		if expl.Source != SourceHeuristic {
			t.Errorf("Expected heuristic source, got %s", expl.Source)
		}
	}
}

func TestHeuristic_FailedStatusEscalates(t *testing.T) {
	h := NewHeuristicReasoner()
	txn := flagged("100.00")
	txn.Status = transaction.StatusFailed

	expl, err := h.ExplainTransaction(context.Background(), txn, "")
	if err != nil {
		t.Fatalf("ExplainTransaction failed: %v", err)
	}
	if expl.Priority != transaction.PriorityHigh {
		t.Errorf("Failed settlement must escalate to HIGH, got %s", expl.Priority)
	}
	if !contains(expl.RiskFactors, "failed_settlement") {
		t.Errorf("Expected failed_settlement factor, got %v", expl.RiskFactors)
	}
}

func TestHeuristic_ContextualFactors(t *testing.T) {
	h := NewHeuristicReasoner()
	txn := flagged("100.00")
	txn.PartyTo = txn.PartyFrom
	hour := 3
	txn.Hour = &hour

	expl, _ := h.ExplainTransaction(context.Background(), txn, "")
	if !contains(expl.RiskFactors, "self_transfer") {
		t.Errorf("Expected self_transfer factor, got %v", expl.RiskFactors)
	}
	if !contains(expl.RiskFactors, "off_hours") {
		t.Errorf("Expected off_hours factor, got %v", expl.RiskFactors)
	}
}

func TestHeuristic_ClientAssessmentLevels(t *testing.T) {
	h := NewHeuristicReasoner()
	ctx := context.Background()

	cases := []struct {
		rate float64
		want string
	}{
		{20, AssessmentCritical},
		{12, AssessmentHigh},
		{7, AssessmentMedium},
		{1, AssessmentLow},
	}
	for _, tc := range cases {
		a, err := h.AssessClient(ctx, &ClientSummary{PartyID: "C1", FraudRate: tc.rate}, "")
		if err != nil {
			t.Fatalf("AssessClient failed: %v", err)
		}
		if a.RiskLevel != tc.want {
			t.Errorf("Rate %.0f: expected %s, got %s", tc.rate, tc.want, a.RiskLevel)
		}
	}
}

type failingReasoner struct{}

func (f *failingReasoner) ExplainTransaction(ctx context.Context, t *transaction.Transaction, _ string) (*Explanation, error) {
	return nil, errors.New("api quota exceeded")
}

func (f *failingReasoner) AssessClient(ctx context.Context, c *ClientSummary, _ string) (*Assessment, error) {
	return nil, errors.New("api quota exceeded")
}

func (f *failingReasoner) Name() string { return "failing" }

func TestDispatcher_FallsBackOnFailure(t *testing.T) {
	d := NewDispatcher(&failingReasoner{}, 0)

	expl := d.ExplainTransaction(context.Background(), flagged("60000.00"))
	if expl == nil {
		t.Fatal("Dispatcher must always produce an explanation")
	}
	if expl.Source != SourceHeuristic {
		t.Errorf("Expected heuristic fallback, got %s", expl.Source)
	}
	if expl.Priority != transaction.PriorityHigh {
		t.Errorf("Expected HIGH priority, got %s", expl.Priority)
	}

	a := d.AssessClient(context.Background(), &ClientSummary{PartyID: "C1", FraudRate: 20})
	if a == nil || a.Source != SourceHeuristic {
		t.Error("Expected heuristic assessment fallback")
	}
}

type cannedReasoner struct {
	expl *Explanation
}

func (c *cannedReasoner) ExplainTransaction(ctx context.Context, t *transaction.Transaction, _ string) (*Explanation, error) {
	return c.expl, nil
}

func (c *cannedReasoner) AssessClient(ctx context.Context, s *ClientSummary, _ string) (*Assessment, error) {
	return &Assessment{RiskLevel: AssessmentLow, Source: SourceModel}, nil
}

func (c *cannedReasoner) Name() string { return "canned" }

func TestDispatcher_TruncatesLongExplanations(t *testing.T) {
	long := strings.Repeat("x", 500)
	d := NewDispatcher(&cannedReasoner{expl: &Explanation{
		Priority:    transaction.PriorityHigh,
		Explanation: long,
		Source:      SourceModel,
		AnalyzedAt:  time.Now(),
	}}, 100)

	expl := d.ExplainTransaction(context.Background(), flagged("60000.00"))
	if len(expl.Explanation) != 100 {
		t.Errorf("Expected truncation to 100 chars, got %d", len(expl.Explanation))
	}
}

type countingReasoner struct {
	calls int
}

func (c *countingReasoner) ExplainTransaction(ctx context.Context, t *transaction.Transaction, _ string) (*Explanation, error) {
	c.calls++
	return nil, errors.New("api quota exceeded")
}

func (c *countingReasoner) AssessClient(ctx context.Context, s *ClientSummary, _ string) (*Assessment, error) {
	c.calls++
	return nil, errors.New("api quota exceeded")
}

func (c *countingReasoner) Name() string { return "counting" }

func TestDispatcher_BreakerSidelinesFailingBackend(t *testing.T) {
	backend := &countingReasoner{}
	d := NewDispatcher(backend, 0)

	for i := 0; i < breakerThreshold+3; i++ {
		expl := d.ExplainTransaction(context.Background(), flagged("60000.00"))
		if expl.Source != SourceHeuristic {
			t.Fatalf("Call %d: expected heuristic fallback, got %s", i, expl.Source)
		}
	}

	// The breaker trips after breakerThreshold consecutive failures, so
	// later calls skip the backend entirely.
	if backend.calls != breakerThreshold {
		t.Errorf("Expected %d backend calls before the circuit opened, got %d",
			breakerThreshold, backend.calls)
	}
}

func TestDispatcher_NoPrimaryUsesHeuristic(t *testing.T) {
	d := NewDispatcher(nil, 0)
	if d.ModelBacked() {
		t.Error("Expected no model backend")
	}
	expl := d.ExplainTransaction(context.Background(), flagged("100.00"))
	if expl.Source != SourceHeuristic {
		t.Errorf("Expected heuristic source, got %s", expl.Source)
	}
}

func TestBuildTransactionContext(t *testing.T) {
	txn := flagged("60000.00")
	txn.PartyTo = txn.PartyFrom
	txn.Status = transaction.StatusFailed
	hour := 23
	txn.Hour = &hour

	got := BuildTransactionContext(txn)
	for _, want := range []string{"VERY LARGE AMOUNT", "OFF-HOURS", "SELF-TRANSACTION", "FAILED"} {
		if !strings.Contains(got, want) {
			t.Errorf("Context missing %q: %s", want, got)
		}
	}

	quiet := flagged("100.00")
	quiet.InstitutionTo = quiet.InstitutionFrom
	if got := BuildTransactionContext(quiet); got != "No notable traits." {
		t.Errorf("Expected empty context marker, got %q", got)
	}
}

func TestCleanModelJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  {\"a\":1}  ", "{\"a\":1}"},
	}
	for _, tc := range cases {
		if got := cleanModelJSON(tc.in); got != tc.want {
			t.Errorf("cleanModelJSON(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePriority(t *testing.T) {
	if got := normalizePriority("urgent"); got != transaction.PriorityUrgent {
		t.Errorf("Expected URGENT, got %s", got)
	}
	if got := normalizePriority("whatever"); got != transaction.PriorityMedium {
		t.Errorf("Unknown values must default to MEDIUM, got %s", got)
	}
}

func contains(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}

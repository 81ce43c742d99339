package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/mbd888/fraudsight/internal/money"
	"github.com/mbd888/fraudsight/internal/transaction"
)

// HeuristicReasoner is the deterministic fallback backend. It needs no
// external service and never fails.
type HeuristicReasoner struct{}

// NewHeuristicReasoner creates the fallback reasoner.
func NewHeuristicReasoner() *HeuristicReasoner {
	return &HeuristicReasoner{}
}

func (h *HeuristicReasoner) Name() string { return SourceHeuristic }

func (h *HeuristicReasoner) ExplainTransaction(ctx context.Context, t *transaction.Transaction, _ string) (*Explanation, error) {
	amount := money.Float(t.Amount)

	var (
		priority    transaction.Priority
		riskFactors []string
		explanation string
	)
	switch {
	case amount > veryLargeAmount:
		priority = transaction.PriorityHigh
		riskFactors = []string{"very_large_amount", "suspicious_transaction"}
		explanation = fmt.Sprintf("Transaction of %s MRU detected. The amount is far above routine levels and requires immediate review.", t.Amount)
	case amount > largeAmount:
		priority = transaction.PriorityMedium
		riskFactors = []string{"large_amount"}
		explanation = fmt.Sprintf("Transaction of %s MRU. The amount is above routine levels and should be monitored.", t.Amount)
	default:
		priority = transaction.PriorityLow
		riskFactors = []string{}
		explanation = fmt.Sprintf("Transaction of %s MRU within normal parameters.", t.Amount)
	}

	if t.SelfTransfer() {
		riskFactors = append(riskFactors, "self_transfer")
	}
	if t.Hour != nil && offHours(*t.Hour) {
		riskFactors = append(riskFactors, "off_hours")
	}
	if t.Status == transaction.StatusFailed {
		riskFactors = append(riskFactors, "failed_settlement")
		priority = transaction.PriorityHigh
	}

	return &Explanation{
		Priority:        priority,
		RiskFactors:     riskFactors,
		Explanation:     explanation,
		Recommendations: []string{"Continuous monitoring", "Manual verification if needed"},
		Confidence:      0.75,
		Summary:         fmt.Sprintf("Transaction classified %s risk", priority),
		Source:          SourceHeuristic,
		AnalyzedAt:      time.Now().UTC(),
	}, nil
}

func (h *HeuristicReasoner) AssessClient(ctx context.Context, c *ClientSummary, _ string) (*Assessment, error) {
	var (
		level           string
		patterns        []string
		assessment      string
		recommendations []string
	)
	switch {
	case c.FraudRate > 15:
		level = AssessmentCritical
		patterns = []string{"critical_fraud_rate", "highly_suspicious_behavior"}
		assessment = fmt.Sprintf("Client with a fraud rate of %.1f%%. Critical profile.", c.FraudRate)
		recommendations = []string{"Temporary block", "Full investigation"}
	case c.FraudRate > 10:
		level = AssessmentHigh
		patterns = []string{"high_fraud_rate", "suspicious_behavior"}
		assessment = fmt.Sprintf("Client with a fraud rate of %.1f%%. High-risk profile.", c.FraudRate)
		recommendations = []string{"Reinforced monitoring", "Amount limits"}
	case c.FraudRate > 5:
		level = AssessmentMedium
		patterns = []string{"moderate_fraud_rate"}
		assessment = fmt.Sprintf("Client with a fraud rate of %.1f%%. Monitoring recommended.", c.FraudRate)
		recommendations = []string{"Regular monitoring"}
	default:
		level = AssessmentLow
		patterns = []string{"normal_behavior"}
		assessment = fmt.Sprintf("Client with a fraud rate of %.1f%%. Normal profile.", c.FraudRate)
		recommendations = []string{}
	}

	return &Assessment{
		RiskLevel:          level,
		BehavioralPatterns: patterns,
		Assessment:         assessment,
		Recommendations:    recommendations,
		Confidence:         0.75,
		Summary:            fmt.Sprintf("Client classified %s risk", level),
		Source:             SourceHeuristic,
		AnalyzedAt:         time.Now().UTC(),
	}, nil
}

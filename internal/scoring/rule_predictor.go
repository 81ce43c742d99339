package scoring

import (
	"context"

	"github.com/mbd888/fraudsight/internal/features"
	"github.com/mbd888/fraudsight/internal/money"
	"github.com/mbd888/fraudsight/internal/transaction"
)

// RuleModelVersion identifies the rule predictor build.
const RuleModelVersion = "rules-1.0.0"

// Rule predictor confidence levels. The rules are deliberately blunt, so
// flagged rows get a strong score and clean rows a weak one.
const (
	ruleFraudScore = 0.8
	ruleCleanScore = 0.1
)

// ruleImportance is the published importance table for the reference model.
// The rule predictor reports the same weights so downstream consumers see a
// stable attribution regardless of which predictor produced the verdict.
var ruleImportance = map[string]float64{
	features.FieldTypeEncoded:        0.225605,
	features.FieldStatusEncoded:      0.137922,
	features.FieldAmount:             0.132801,
	features.FieldFailedCount:        0.114793,
	features.FieldBenefUniqueSenders: 0.098045,
	features.FieldTransactionCount:   0.065678,
	features.FieldAmountDeviation:    0.052858,
	features.FieldInitUniqueBanks:    0.049341,
	features.FieldInitUniqueBenefs:   0.046755,
	features.FieldHour:               0.022550,
	features.FieldBenefUniqueBanks:   0.016475,
	features.FieldMonth:              0.014439,
	features.FieldDayOfWeek:          0.007877,
	features.FieldMillis:             0.007699,
	features.FieldSelfTransaction:    0.007163,
}

// Importance returns a copy of the published feature importance table.
func Importance() map[string]float64 {
	out := make(map[string]float64, len(ruleImportance))
	for k, v := range ruleImportance {
		out[k] = v
	}
	return out
}

// RulePredictor is the deterministic fallback model. It flags a transaction
// when the amount exceeds the configured threshold, the type is a cash
// withdrawal, or the settlement failed.
type RulePredictor struct {
	amountThreshold float64
}

// NewRulePredictor creates a rule predictor. threshold is a fixed-point
// amount string (see internal/money); unparseable input falls back to the
// default 50000.
func NewRulePredictor(threshold string) *RulePredictor {
	limit := 50000.0
	if v, ok := money.Parse(threshold); ok {
		limit = money.Float(money.Format(v))
	}
	return &RulePredictor{amountThreshold: limit}
}

func (r *RulePredictor) Predict(ctx context.Context, v *features.Vector) (*Verdict, error) {
	fraud := v.Amount > r.amountThreshold ||
		v.TypeEncoded == features.EncodeType(transaction.TypeWithdrawal) ||
		v.StatusEncoded == features.EncodeStatus(transaction.StatusFailed)

	score := ruleCleanScore
	if fraud {
		score = ruleFraudScore
	}

	return &Verdict{
		IsFraud:           fraud,
		RiskScore:         score,
		Confidence:        score,
		FeatureImportance: Importance(),
		ModelVersion:      RuleModelVersion,
	}, nil
}

func (r *RulePredictor) Status() Status {
	return Status{
		Loaded:        true,
		ModelVersion:  RuleModelVersion,
		SchemaVersion: features.SchemaVersion,
		FeatureNames:  features.Names,
	}
}

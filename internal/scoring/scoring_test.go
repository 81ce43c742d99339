package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/mbd888/fraudsight/internal/features"
)

func TestRulePredictor_FlagsLargeAmount(t *testing.T) {
	p := NewRulePredictor("50000")
	v := &features.Vector{Amount: 60000}

	verdict, err := p.Predict(context.Background(), v)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if !verdict.IsFraud {
		t.Error("Expected fraud for amount above threshold")
	}
	if verdict.RiskScore != 0.8 || verdict.Confidence != 0.8 {
		t.Errorf("Expected 0.8 score for fraud, got %v/%v", verdict.RiskScore, verdict.Confidence)
	}
}

func TestRulePredictor_FlagsWithdrawalAndFailed(t *testing.T) {
	p := NewRulePredictor("50000")

	withdrawal := &features.Vector{Amount: 100, TypeEncoded: 1}
	verdict, _ := p.Predict(context.Background(), withdrawal)
	if !verdict.IsFraud {
		t.Error("Expected fraud for cash withdrawal")
	}

	failed := &features.Vector{Amount: 100, StatusEncoded: 1}
	verdict, _ = p.Predict(context.Background(), failed)
	if !verdict.IsFraud {
		t.Error("Expected fraud for failed settlement")
	}
}

func TestRulePredictor_CleanTransaction(t *testing.T) {
	p := NewRulePredictor("50000")
	v := &features.Vector{Amount: 1500}

	verdict, err := p.Predict(context.Background(), v)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if verdict.IsFraud {
		t.Error("Expected legitimate verdict")
	}
	if verdict.RiskScore != 0.1 {
		t.Errorf("Expected 0.1 score, got %v", verdict.RiskScore)
	}
	if verdict.ModelVersion != RuleModelVersion {
		t.Errorf("Expected model version %s, got %s", RuleModelVersion, verdict.ModelVersion)
	}
}

func TestRulePredictor_ThresholdBoundary(t *testing.T) {
	p := NewRulePredictor("50000")

	// Exactly at the threshold is not flagged; strictly above is.
	at := &features.Vector{Amount: 50000}
	verdict, _ := p.Predict(context.Background(), at)
	if verdict.IsFraud {
		t.Error("Amount equal to threshold must not be flagged")
	}

	above := &features.Vector{Amount: 50000.01}
	verdict, _ = p.Predict(context.Background(), above)
	if !verdict.IsFraud {
		t.Error("Amount above threshold must be flagged")
	}
}

func TestRulePredictor_ImportanceTable(t *testing.T) {
	p := NewRulePredictor("50000")
	verdict, _ := p.Predict(context.Background(), &features.Vector{})

	if len(verdict.FeatureImportance) != 15 {
		t.Fatalf("Expected 15 importance entries, got %d", len(verdict.FeatureImportance))
	}
	if verdict.FeatureImportance[features.FieldTypeEncoded] != 0.225605 {
		t.Errorf("Unexpected importance for type: %v", verdict.FeatureImportance[features.FieldTypeEncoded])
	}
	if verdict.FeatureImportance[features.FieldSelfTransaction] != 0.007163 {
		t.Errorf("Unexpected importance for self transaction: %v", verdict.FeatureImportance[features.FieldSelfTransaction])
	}
}

type failingPredictor struct{}

func (f *failingPredictor) Predict(ctx context.Context, v *features.Vector) (*Verdict, error) {
	return nil, errors.New("model crashed")
}

func (f *failingPredictor) Status() Status {
	return Status{Loaded: false, ModelVersion: "broken-0.0.1"}
}

func TestEngine_DegradesOnPredictorFailure(t *testing.T) {
	engine := NewEngine(&failingPredictor{})

	verdict := engine.Score(context.Background(), &features.Vector{Amount: 99999})
	if verdict == nil {
		t.Fatal("Score must always return a verdict")
	}
	if verdict.IsFraud {
		t.Error("Degraded verdict must default to legitimate")
	}
	if verdict.RiskScore != 0 || verdict.Confidence != 0 {
		t.Error("Degraded verdict must carry zero scores")
	}
	if verdict.Error == "" {
		t.Error("Degraded verdict must be marked with the failure")
	}
}

func TestEngine_PassesThroughVerdict(t *testing.T) {
	engine := NewEngine(NewRulePredictor("50000"))

	verdict := engine.Score(context.Background(), &features.Vector{Amount: 60000})
	if !verdict.IsFraud {
		t.Error("Expected fraud verdict passed through")
	}
	if verdict.Error != "" {
		t.Errorf("Expected no error marker, got %q", verdict.Error)
	}
}

func TestStatus_ReportsSchema(t *testing.T) {
	s := NewRulePredictor("50000").Status()
	if !s.Loaded {
		t.Error("Rule predictor must always report loaded")
	}
	if s.SchemaVersion != features.SchemaVersion {
		t.Errorf("Expected schema %s, got %s", features.SchemaVersion, s.SchemaVersion)
	}
	if len(s.FeatureNames) != 15 {
		t.Errorf("Expected 15 feature names, got %d", len(s.FeatureNames))
	}
}

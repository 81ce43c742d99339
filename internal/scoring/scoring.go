// Package scoring turns feature vectors into fraud verdicts.
//
// Predictors are pluggable. The engine wraps whichever predictor is
// configured and guarantees scoring never aborts a row: a predictor
// failure degrades to a marked legitimate verdict.
package scoring

import (
	"context"

	"github.com/mbd888/fraudsight/internal/features"
)

// Verdict is the scoring outcome for one transaction.
type Verdict struct {
	IsFraud           bool               `json:"isFraud"`
	RiskScore         float64            `json:"riskScore"`  // probability of fraud, 0..1
	Confidence        float64            `json:"confidence"` // confidence in the decision, 0..1
	FeatureImportance map[string]float64 `json:"featureImportance,omitempty"`
	ModelVersion      string             `json:"modelVersion"`
	Error             string             `json:"error,omitempty"` // set when the verdict is a degraded default
}

// Status describes the active predictor, exposed for diagnostics.
type Status struct {
	Loaded       bool     `json:"loaded"`
	ModelVersion string   `json:"modelVersion"`
	SchemaVersion string  `json:"schemaVersion"`
	FeatureNames []string `json:"featureNames"`
}

// Predictor scores a single feature vector.
type Predictor interface {
	Predict(ctx context.Context, v *features.Vector) (*Verdict, error)
	Status() Status
}

// Engine wraps a predictor with the never-abort guarantee.
type Engine struct {
	predictor Predictor
}

// NewEngine creates a scoring engine over the given predictor.
func NewEngine(p Predictor) *Engine {
	return &Engine{predictor: p}
}

// Score evaluates v. It never returns an error: when the predictor fails,
// the verdict is a safe legitimate default carrying the failure message so
// the record is visibly degraded rather than silently clean.
func (e *Engine) Score(ctx context.Context, v *features.Vector) *Verdict {
	verdict, err := e.predictor.Predict(ctx, v)
	if err != nil {
		scoringErrors.Inc()
		return &Verdict{
			IsFraud:      false,
			RiskScore:    0,
			Confidence:   0,
			ModelVersion: e.predictor.Status().ModelVersion,
			Error:        err.Error(),
		}
	}
	if verdict.IsFraud {
		fraudsDetected.Inc()
	}
	return verdict
}

// Status reports the active predictor's status.
func (e *Engine) Status() Status {
	return e.predictor.Status()
}

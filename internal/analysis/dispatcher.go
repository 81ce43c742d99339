package analysis

import (
	"context"
	"time"

	"github.com/mbd888/fraudsight/internal/circuitbreaker"
	"github.com/mbd888/fraudsight/internal/logging"
	"github.com/mbd888/fraudsight/internal/transaction"
)

const (
	breakerThreshold = 5
	breakerCooldown  = 60 * time.Second
)

// Dispatcher routes explanation requests to the configured backend and
// falls back to the heuristic reasoner on any failure. Its methods never
// return an error. A circuit breaker sidelines a repeatedly failing model
// backend so a misbehaving API does not slow every row of an ingest run.
type Dispatcher struct {
	primary  Reasoner // nil when no model backend is configured
	fallback *HeuristicReasoner
	breaker  *circuitbreaker.Breaker
	maxChars int
}

// Reasoner is an explanation backend.
type Reasoner interface {
	ExplainTransaction(ctx context.Context, t *transaction.Transaction, txnContext string) (*Explanation, error)
	AssessClient(ctx context.Context, c *ClientSummary, clientContext string) (*Assessment, error)
	Name() string
}

// NewDispatcher creates a dispatcher. primary may be nil, in which case
// every request is served heuristically. maxChars caps the persisted
// explanation length; zero means unlimited.
func NewDispatcher(primary Reasoner, maxChars int) *Dispatcher {
	return &Dispatcher{
		primary:  primary,
		fallback: NewHeuristicReasoner(),
		breaker:  circuitbreaker.New(breakerThreshold, breakerCooldown),
		maxChars: maxChars,
	}
}

// ModelBacked reports whether a model backend is configured.
func (d *Dispatcher) ModelBacked() bool {
	return d.primary != nil
}

// Backend returns the name of the active primary backend.
func (d *Dispatcher) Backend() string {
	if d.primary == nil {
		return d.fallback.Name()
	}
	return d.primary.Name()
}

// ExplainTransaction produces an explanation for a flagged transaction.
func (d *Dispatcher) ExplainTransaction(ctx context.Context, t *transaction.Transaction) *Explanation {
	txnContext := BuildTransactionContext(t)

	if d.primary != nil && d.breaker.Allow(d.primary.Name()) {
		expl, err := d.primary.ExplainTransaction(ctx, t, txnContext)
		if err == nil {
			d.breaker.RecordSuccess(d.primary.Name())
			explanationsGenerated.WithLabelValues(SourceModel).Inc()
			return d.truncate(expl)
		}
		d.breaker.RecordFailure(d.primary.Name())
		explanationFallbacks.Inc()
		logging.L(ctx).Warn("model explanation failed, using heuristic",
			"transaction_id", t.ID, "backend", d.primary.Name(), "error", err)
	}

	expl, _ := d.fallback.ExplainTransaction(ctx, t, txnContext)
	explanationsGenerated.WithLabelValues(SourceHeuristic).Inc()
	return d.truncate(expl)
}

// AssessClient produces a risk assessment for a client profile.
func (d *Dispatcher) AssessClient(ctx context.Context, c *ClientSummary) *Assessment {
	clientContext := BuildClientContext(c)

	if d.primary != nil && d.breaker.Allow(d.primary.Name()) {
		a, err := d.primary.AssessClient(ctx, c, clientContext)
		if err == nil {
			d.breaker.RecordSuccess(d.primary.Name())
			explanationsGenerated.WithLabelValues(SourceModel).Inc()
			return a
		}
		d.breaker.RecordFailure(d.primary.Name())
		explanationFallbacks.Inc()
		logging.L(ctx).Warn("model assessment failed, using heuristic",
			"party", c.PartyID, "backend", d.primary.Name(), "error", err)
	}

	a, _ := d.fallback.AssessClient(ctx, c, clientContext)
	explanationsGenerated.WithLabelValues(SourceHeuristic).Inc()
	return a
}

func (d *Dispatcher) truncate(e *Explanation) *Explanation {
	if d.maxChars > 0 && len(e.Explanation) > d.maxChars {
		e.Explanation = e.Explanation[:d.maxChars]
	}
	return e
}

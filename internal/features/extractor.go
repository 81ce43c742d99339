package features

import (
	"context"
	"math"
	"time"

	"github.com/mbd888/fraudsight/internal/logging"
	"github.com/mbd888/fraudsight/internal/money"
	"github.com/mbd888/fraudsight/internal/transaction"
)

// DefaultWindow is how far back history queries reach.
const DefaultWindow = 30 * 24 * time.Hour

// History supplies the recent transactions behind the derived features.
// *transaction.MemoryStore and *transaction.PostgresStore both satisfy it.
type History interface {
	OutgoingSince(ctx context.Context, party string, since time.Time) ([]*transaction.Transaction, error)
	IncomingSince(ctx context.Context, party string, since time.Time) ([]*transaction.Transaction, error)
}

// Extractor builds feature vectors from committed history.
type Extractor struct {
	history History
	window  time.Duration
}

// NewExtractor creates an extractor over the given history with the
// default 30-day window.
func NewExtractor(h History) *Extractor {
	return &Extractor{history: h, window: DefaultWindow}
}

// Extract derives the full vector for txn. History lookups that fail leave
// the derived features at zero rather than failing the row; the direct
// row-level features are always present.
func (e *Extractor) Extract(ctx context.Context, txn *transaction.Transaction, now time.Time) *Vector {
	v := &Vector{
		TypeEncoded:   EncodeType(txn.Type),
		StatusEncoded: EncodeStatus(txn.Status),
		Amount:        money.Float(txn.Amount),
		Hour:          DefaultHour,
		DayOfWeek:     DefaultDayOfWeek,
		Month:         DefaultMonth,
		Millis:        float64(txn.Millis),
	}
	if txn.SelfTransfer() {
		v.SelfTransaction = 1
	}
	if txn.OccurredAt != nil {
		v.Hour = float64(txn.OccurredAt.Hour())
		v.Month = float64(int(txn.OccurredAt.Month()))
	}
	if txn.DayOfWeek != nil {
		v.DayOfWeek = float64(*txn.DayOfWeek)
	}

	since := now.Add(-e.window)

	outgoing, err := e.history.OutgoingSince(ctx, txn.PartyFrom, since)
	if err != nil {
		logging.L(ctx).Warn("initiator history unavailable, derived features zeroed",
			"party", txn.PartyFrom, "error", err)
	} else {
		e.fillInitiatorFeatures(v, outgoing)
	}

	incoming, err := e.history.IncomingSince(ctx, txn.PartyTo, since)
	if err != nil {
		logging.L(ctx).Warn("counterparty history unavailable, derived features zeroed",
			"party", txn.PartyTo, "error", err)
	} else {
		e.fillCounterpartyFeatures(v, incoming)
	}

	return v
}

func (e *Extractor) fillInitiatorFeatures(v *Vector, outgoing []*transaction.Transaction) {
	v.TransactionCount = float64(len(outgoing))

	var (
		failed   int
		banks    = map[string]bool{}
		benefs   = map[string]bool{}
		amounts  = make([]float64, 0, len(outgoing))
	)
	for _, t := range outgoing {
		if t.Status == transaction.StatusFailed {
			failed++
		}
		banks[t.InstitutionFrom] = true
		benefs[t.PartyTo] = true
		amounts = append(amounts, money.Float(t.Amount))
	}

	v.FailedCount = float64(failed)
	v.InitUniqueBanks = float64(len(banks))
	v.InitUniqueBenefs = float64(len(benefs))
	v.AmountDeviation = sampleStdDev(amounts)
}

func (e *Extractor) fillCounterpartyFeatures(v *Vector, incoming []*transaction.Transaction) {
	senders := map[string]bool{}
	banks := map[string]bool{}
	for _, t := range incoming {
		senders[t.PartyFrom] = true
		banks[t.InstitutionTo] = true
	}
	v.BenefUniqueSenders = float64(len(senders))
	v.BenefUniqueBanks = float64(len(banks))
}

// sampleStdDev returns the sample standard deviation (n-1 denominator),
// zero when fewer than two values exist.
func sampleStdDev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(n)

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

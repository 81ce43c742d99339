// Package features derives the model input vector from a transaction and
// the initiator's and counterparty's recent history.
//
// The vector layout is a versioned contract shared with the scoring models;
// field order and names must not change within a schema version.
package features

import (
	"github.com/mbd888/fraudsight/internal/transaction"
)

// SchemaVersion identifies the vector layout below.
const SchemaVersion = "v1"

// Field names, in contract order.
const (
	FieldTypeEncoded         = "TRX_TYPE_ENCODED"
	FieldStatusEncoded       = "ETAT_ENCODED"
	FieldAmount              = "MONTANT"
	FieldFailedCount         = "FAILED_TRANSACTION_COUNT"
	FieldBenefUniqueSenders  = "CLIENT_B_UNIQUE_INITIATORS"
	FieldTransactionCount    = "TRANSACTION_COUNT"
	FieldAmountDeviation     = "MONTANT_DEVIATION"
	FieldInitUniqueBanks     = "CLIENT_I_UNIQUE_BANKS"
	FieldInitUniqueBenefs    = "CLIENT_I_UNIQUE_BENEFICIARIES"
	FieldHour                = "HOUR"
	FieldBenefUniqueBanks    = "CLIENT_B_UNIQUE_BANKS"
	FieldMonth               = "MONTH"
	FieldDayOfWeek           = "DAY_OF_WEEK"
	FieldMillis              = "mls"
	FieldSelfTransaction     = "SELF_TRANSACTION"
)

// Names lists the vector fields in their contract order.
var Names = []string{
	FieldTypeEncoded,
	FieldStatusEncoded,
	FieldAmount,
	FieldFailedCount,
	FieldBenefUniqueSenders,
	FieldTransactionCount,
	FieldAmountDeviation,
	FieldInitUniqueBanks,
	FieldInitUniqueBenefs,
	FieldHour,
	FieldBenefUniqueBanks,
	FieldMonth,
	FieldDayOfWeek,
	FieldMillis,
	FieldSelfTransaction,
}

// Defaults used when the source row carried no parseable timestamp.
const (
	DefaultHour      = 12
	DefaultDayOfWeek = 0
	DefaultMonth     = 1
)

// Type and status encodings. Stable small integers, never reordered.
var (
	typeCodes = map[transaction.Type]float64{
		transaction.TypeTransfer:    0,
		transaction.TypeWithdrawal:  1,
		transaction.TypeRecharge:    2,
		transaction.TypeBillPayment: 3,
	}
	statusCodes = map[transaction.Status]float64{
		transaction.StatusOK:      0,
		transaction.StatusFailed:  1,
		transaction.StatusPending: 2,
	}
)

// EncodeType returns the numeric code for a transaction type.
func EncodeType(t transaction.Type) float64 { return typeCodes[t] }

// EncodeStatus returns the numeric code for a settlement status.
func EncodeStatus(s transaction.Status) float64 { return statusCodes[s] }

// Vector is one extracted feature vector.
type Vector struct {
	TypeEncoded          float64
	StatusEncoded        float64
	Amount               float64
	FailedCount          float64
	BenefUniqueSenders   float64
	TransactionCount     float64
	AmountDeviation      float64
	InitUniqueBanks      float64
	InitUniqueBenefs     float64
	Hour                 float64
	BenefUniqueBanks     float64
	Month                float64
	DayOfWeek            float64
	Millis               float64
	SelfTransaction      float64
}

// Values returns the vector in contract order, aligned with Names.
func (v *Vector) Values() []float64 {
	return []float64{
		v.TypeEncoded,
		v.StatusEncoded,
		v.Amount,
		v.FailedCount,
		v.BenefUniqueSenders,
		v.TransactionCount,
		v.AmountDeviation,
		v.InitUniqueBanks,
		v.InitUniqueBenefs,
		v.Hour,
		v.BenefUniqueBanks,
		v.Month,
		v.DayOfWeek,
		v.Millis,
		v.SelfTransaction,
	}
}

// Map returns the vector keyed by field name.
func (v *Vector) Map() map[string]float64 {
	m := make(map[string]float64, len(Names))
	vals := v.Values()
	for i, name := range Names {
		m[name] = vals[i]
	}
	return m
}

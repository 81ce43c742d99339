package transaction

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mbd888/fraudsight/internal/money"
)

// Source feed column names. These are the upstream export's headers and are
// part of the ingestion contract, so they keep their original spelling.
const (
	ColID              = "TRX"
	ColMillis          = "mls"
	ColType            = "TRX_TYPE"
	ColAmount          = "MONTANT"
	ColPartyFrom       = "CLIENT_I"
	ColPartyTo         = "CLIENT_B"
	ColInstitutionFrom = "BANK_I"
	ColInstitutionTo   = "BANK_B"
	ColStatus          = "ETAT"
	ColTime            = "TRX_TIME" // optional
)

// RequiredColumns lists every header an ingestion source must carry.
var RequiredColumns = []string{
	ColID, ColMillis, ColType, ColAmount,
	ColPartyFrom, ColPartyTo, ColInstitutionFrom, ColInstitutionTo,
	ColStatus,
}

// ValidationError reports a single row that cannot become a transaction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// MissingColumns returns the required columns absent from header, in
// contract order. An empty result means the header is acceptable.
func MissingColumns(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, col := range RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

// timestampLayouts are tried in order when parsing TRX_TIME. The feed's
// primary format is month/day/year with a 24h clock; the rest cover exports
// that went through a spreadsheet or an ISO-emitting tool.
var timestampLayouts = []string{
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// ParseTimestamp parses a raw feed timestamp. Returns nil when the value is
// empty or matches no known layout; an unparseable timestamp never fails a
// row on its own.
func ParseTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts
		}
	}
	return nil
}

// ParseRow validates one source row and builds the transaction candidate.
// The row maps column name to raw cell value. Returns a *ValidationError
// when a mandatory field is missing or malformed.
func ParseRow(row map[string]string, ingestedBy string, now time.Time) (*Transaction, error) {
	get := func(col string) string { return strings.TrimSpace(row[col]) }

	id := get(ColID)
	if id == "" {
		return nil, &ValidationError{Field: ColID, Reason: "missing transaction reference"}
	}

	rawAmount := get(ColAmount)
	if rawAmount == "" {
		return nil, &ValidationError{Field: ColAmount, Reason: "missing amount"}
	}
	amount, ok := money.Parse(rawAmount)
	if !ok {
		return nil, &ValidationError{Field: ColAmount, Reason: fmt.Sprintf("unparseable amount %q", rawAmount)}
	}
	if amount.Sign() < 0 {
		return nil, &ValidationError{Field: ColAmount, Reason: "negative amount"}
	}

	typ := Type(get(ColType))
	if typ == "" {
		return nil, &ValidationError{Field: ColType, Reason: "missing transaction type"}
	}
	if !ValidTypes[typ] {
		return nil, &ValidationError{Field: ColType, Reason: fmt.Sprintf("unknown transaction type %q", typ)}
	}

	status := Status(get(ColStatus))
	if status == "" {
		return nil, &ValidationError{Field: ColStatus, Reason: "missing status"}
	}
	if !ValidStatuses[status] {
		return nil, &ValidationError{Field: ColStatus, Reason: fmt.Sprintf("unknown status %q", status)}
	}

	partyFrom := get(ColPartyFrom)
	if partyFrom == "" {
		return nil, &ValidationError{Field: ColPartyFrom, Reason: "missing initiating party"}
	}
	partyTo := get(ColPartyTo)
	if partyTo == "" {
		return nil, &ValidationError{Field: ColPartyTo, Reason: "missing receiving party"}
	}
	instFrom := get(ColInstitutionFrom)
	if instFrom == "" {
		return nil, &ValidationError{Field: ColInstitutionFrom, Reason: "missing initiating institution"}
	}
	instTo := get(ColInstitutionTo)
	if instTo == "" {
		return nil, &ValidationError{Field: ColInstitutionTo, Reason: "missing receiving institution"}
	}

	// mls is carried through to the feature vector as-is. An empty cell is
	// zero; a non-numeric cell fails the row.
	var millis int64
	if raw := get(ColMillis); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &ValidationError{Field: ColMillis, Reason: fmt.Sprintf("non-numeric value %q", raw)}
		}
		millis = int64(v)
	}

	t := &Transaction{
		ID:              id,
		OccurredAtRaw:   get(ColTime),
		Millis:          millis,
		Type:            typ,
		Amount:          money.Format(amount),
		PartyFrom:       partyFrom,
		PartyTo:         partyTo,
		InstitutionFrom: instFrom,
		InstitutionTo:   instTo,
		Status:          status,
		IngestedAt:      now,
		IngestedBy:      ingestedBy,
	}
	t.OccurredAt = ParseTimestamp(t.OccurredAtRaw)
	t.deriveTimeFields()
	return t, nil
}

package transaction

import (
	"errors"
	"testing"
	"time"
)

func validRow() map[string]string {
	return map[string]string{
		ColID:              "TRX-001",
		ColMillis:          "150",
		ColType:            "TRF",
		ColAmount:          "1500.50",
		ColPartyFrom:       "C100",
		ColPartyTo:         "C200",
		ColInstitutionFrom: "B01",
		ColInstitutionTo:   "B02",
		ColStatus:          "OK",
		ColTime:            "3/15/2024 14:30",
	}
}

func TestParseRow_Valid(t *testing.T) {
	now := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
	txn, err := ParseRow(validRow(), "analyst1", now)
	if err != nil {
		t.Fatalf("ParseRow failed: %v", err)
	}

	if txn.ID != "TRX-001" {
		t.Errorf("Expected ID TRX-001, got %s", txn.ID)
	}
	if txn.Amount != "1500.50" {
		t.Errorf("Expected amount 1500.50, got %s", txn.Amount)
	}
	if txn.Type != TypeTransfer {
		t.Errorf("Expected type TRF, got %s", txn.Type)
	}
	if txn.Millis != 150 {
		t.Errorf("Expected millis 150, got %d", txn.Millis)
	}
	if txn.IngestedBy != "analyst1" {
		t.Errorf("Expected ingestedBy analyst1, got %s", txn.IngestedBy)
	}

	// 3/15/2024 was a Friday; Monday-indexed weekday is 4.
	if txn.Hour == nil || *txn.Hour != 14 {
		t.Errorf("Expected hour 14, got %v", txn.Hour)
	}
	if txn.DayOfWeek == nil || *txn.DayOfWeek != 4 {
		t.Errorf("Expected day of week 4, got %v", txn.DayOfWeek)
	}
	if txn.Date != "2024-03-15" {
		t.Errorf("Expected date 2024-03-15, got %s", txn.Date)
	}
}

func TestParseRow_MissingMandatoryFields(t *testing.T) {
	for _, col := range []string{ColID, ColAmount, ColType, ColStatus, ColPartyFrom, ColPartyTo, ColInstitutionFrom, ColInstitutionTo} {
		row := validRow()
		row[col] = ""

		_, err := ParseRow(row, "", time.Now())
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Expected ValidationError for missing %s, got %v", col, err)
		}
		if verr.Field != col {
			t.Errorf("Expected error on field %s, got %s", col, verr.Field)
		}
	}
}

func TestParseRow_BadValues(t *testing.T) {
	cases := []struct {
		name  string
		col   string
		value string
	}{
		{"unparseable amount", ColAmount, "abc"},
		{"negative amount", ColAmount, "-100"},
		{"unknown type", ColType, "XYZ"},
		{"unknown status", ColStatus, "MAYBE"},
		{"non-numeric millis", ColMillis, "fast"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := validRow()
			row[tc.col] = tc.value

			_, err := ParseRow(row, "", time.Now())
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tc.col {
				t.Errorf("Expected error on field %s, got %s", tc.col, verr.Field)
			}
		})
	}
}

func TestParseRow_TimestampOptional(t *testing.T) {
	row := validRow()
	row[ColTime] = ""

	txn, err := ParseRow(row, "", time.Now())
	if err != nil {
		t.Fatalf("ParseRow failed: %v", err)
	}
	if txn.OccurredAt != nil {
		t.Error("Expected nil OccurredAt for empty timestamp")
	}
	if txn.Hour != nil || txn.DayOfWeek != nil || txn.Date != "" {
		t.Error("Expected no derived time fields without a timestamp")
	}
}

func TestParseRow_UnparseableTimestampKeepsRow(t *testing.T) {
	row := validRow()
	row[ColTime] = "not-a-date"

	txn, err := ParseRow(row, "", time.Now())
	if err != nil {
		t.Fatalf("A bad timestamp must not fail the row: %v", err)
	}
	if txn.OccurredAt != nil {
		t.Error("Expected nil OccurredAt for unparseable timestamp")
	}
	if txn.OccurredAtRaw != "not-a-date" {
		t.Errorf("Raw timestamp should be preserved, got %q", txn.OccurredAtRaw)
	}
}

func TestParseRow_EmptyMillisIsZero(t *testing.T) {
	row := validRow()
	row[ColMillis] = ""

	txn, err := ParseRow(row, "", time.Now())
	if err != nil {
		t.Fatalf("ParseRow failed: %v", err)
	}
	if txn.Millis != 0 {
		t.Errorf("Expected millis 0, got %d", txn.Millis)
	}
}

func TestParseTimestamp_Layouts(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{"3/15/2024 14:30", time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)},
		{"12/1/2024 09:05", time.Date(2024, 12, 1, 9, 5, 0, 0, time.UTC)},
		{"2024-03-15 14:30:00", time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)},
		{"2024-03-15", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		got := ParseTimestamp(tc.raw)
		if got == nil {
			t.Errorf("ParseTimestamp(%q) returned nil", tc.raw)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}

	if got := ParseTimestamp("garbage"); got != nil {
		t.Errorf("Expected nil for garbage input, got %v", got)
	}
}

func TestMissingColumns(t *testing.T) {
	full := []string{"TRX", "mls", "TRX_TYPE", "MONTANT", "CLIENT_I", "CLIENT_B", "BANK_I", "BANK_B", "ETAT", "TRX_TIME"}
	if missing := MissingColumns(full); len(missing) != 0 {
		t.Errorf("Expected no missing columns, got %v", missing)
	}

	partial := []string{"TRX", "TRX_TYPE", "MONTANT"}
	missing := MissingColumns(partial)
	if len(missing) != 6 {
		t.Fatalf("Expected 6 missing columns, got %v", missing)
	}
	if missing[0] != "mls" {
		t.Errorf("Expected mls reported first, got %s", missing[0])
	}
}

func TestSelfTransfer(t *testing.T) {
	row := validRow()
	row[ColPartyTo] = row[ColPartyFrom]

	txn, err := ParseRow(row, "", time.Now())
	if err != nil {
		t.Fatalf("ParseRow failed: %v", err)
	}
	if !txn.SelfTransfer() {
		t.Error("Expected self transfer")
	}
}

package extraction

import (
	"testing"

	"github.com/loanlens/loanlens/internal/model"
)

func kinds(ws []model.ConsistencyWarning) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Kind
	}
	return out
}

func TestCheckConsistencyAddressConflict(t *testing.T) {
	records := []BorrowerRecord{{
		FullName: "John Smith",
		Address:  model.Address{Street: "42 Maple St", Zip: "62704"},
		Sources: []SourceRef{
			{PageNumber: 1, Snippet: "a"},
			{PageNumber: 3, Snippet: "b"},
		},
	}}

	all := CheckConsistency(records)
	if len(all) != 1 || all[0].Kind != model.WarningAddressConflict {
		t.Fatalf("warnings = %v, want one address conflict", kinds(all))
	}
	if len(records[0].Warnings) != 1 {
		t.Errorf("warning not attached to record: %v", records[0].Warnings)
	}
	if all[0].Borrower != "John Smith" || all[0].Field != "address" {
		t.Errorf("warning = %+v", all[0])
	}
}

func TestCheckConsistencyNoConflictForSingleSource(t *testing.T) {
	records := []BorrowerRecord{{
		FullName: "John Smith",
		Address:  model.Address{Street: "42 Maple St"},
		Sources:  []SourceRef{{PageNumber: 1, Snippet: "a"}},
	}}
	if all := CheckConsistency(records); len(all) != 0 {
		t.Fatalf("warnings = %v, want none", kinds(all))
	}
}

func TestCheckConsistencyIncomeDrop(t *testing.T) {
	records := []BorrowerRecord{{
		FullName: "Wei Chen",
		IncomeHistory: []IncomeEntry{
			{AmountCents: 10000000, Year: 2022, Period: model.PeriodAnnual},
			{AmountCents: 4000000, Year: 2023, Period: model.PeriodAnnual},
		},
	}}

	all := CheckConsistency(records)
	if len(all) != 1 || all[0].Kind != model.WarningIncomeDrop {
		t.Fatalf("warnings = %v, want one income drop", kinds(all))
	}
	if all[0].Details["year_from"] != "2022" || all[0].Details["year_to"] != "2023" {
		t.Errorf("Details = %v", all[0].Details)
	}
}

func TestCheckConsistencyIncomeSpike(t *testing.T) {
	records := []BorrowerRecord{{
		FullName: "Wei Chen",
		IncomeHistory: []IncomeEntry{
			{AmountCents: 2000000, Year: 2022, Period: model.PeriodAnnual},
			{AmountCents: 7000000, Year: 2023, Period: model.PeriodAnnual},
		},
	}}

	all := CheckConsistency(records)
	if len(all) != 1 || all[0].Kind != model.WarningIncomeSpike {
		t.Fatalf("warnings = %v, want one income spike", kinds(all))
	}
}

func TestCheckConsistencyAnnualizesPeriods(t *testing.T) {
	// 5,000/month in 2023 annualizes to the 60,000 reported for 2022, so the
	// cadence change alone is not a swing.
	records := []BorrowerRecord{{
		FullName: "Maria Gonzalez",
		IncomeHistory: []IncomeEntry{
			{AmountCents: 6000000, Year: 2022, Period: model.PeriodAnnual},
			{AmountCents: 500000, Year: 2023, Period: model.PeriodMonthly},
		},
	}}
	if all := CheckConsistency(records); len(all) != 0 {
		t.Fatalf("warnings = %v, want none", kinds(all))
	}
}

func TestCheckConsistencyCrossDocumentSSNMismatch(t *testing.T) {
	records := []BorrowerRecord{
		{FullName: "John Smith", SSN: "123-45-6789"},
		{FullName: "JOHN  SMITH", SSN: "123-45-1111"},
	}

	all := CheckConsistency(records)
	if len(all) != 2 {
		t.Fatalf("warnings = %v, want one per record", kinds(all))
	}
	for _, w := range all {
		if w.Kind != model.WarningCrossDocMismatch || w.Field != "ssn" {
			t.Errorf("warning = %+v", w)
		}
	}
	if len(records[0].Warnings) != 1 || len(records[1].Warnings) != 1 {
		t.Errorf("warnings not attached to both records: %d/%d", len(records[0].Warnings), len(records[1].Warnings))
	}
	if records[0].Warnings[0].Details["ssn_last4"] != "6789" {
		t.Errorf("Details = %v", records[0].Warnings[0].Details)
	}
}

func TestCheckConsistencyNoMismatchWithoutBothSSNs(t *testing.T) {
	records := []BorrowerRecord{
		{FullName: "John Smith", SSN: "123-45-6789"},
		{FullName: "John Smith"},
	}
	if all := CheckConsistency(records); len(all) != 0 {
		t.Fatalf("warnings = %v, want none", kinds(all))
	}
}

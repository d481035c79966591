package extraction

import (
	"strings"
	"testing"
	"time"

	"github.com/loanlens/loanlens/internal/model"
)

func TestValidateSSN(t *testing.T) {
	tests := []struct {
		in       string
		ok       bool
		normWant string
	}{
		{"123-45-6789", true, "123-45-6789"},
		{"123 45 6789", true, "123-45-6789"},
		{"123456789", true, "123-45-6789"},
		{" 123-45-6789 ", true, "123-45-6789"},
		{"000-12-3456", false, ""},
		{"666-12-3456", false, ""},
		{"912-34-5678", false, ""},
		{"111-11-1111", false, ""},
		{"12345", false, ""},
		{"12a-45-6789", false, ""},
		{"", false, ""},
	}
	for _, tt := range tests {
		got := ValidateSSN(tt.in)
		if got.OK != tt.ok {
			t.Errorf("ValidateSSN(%q).OK = %v, want %v (%s)", tt.in, got.OK, tt.ok, got.Reason)
			continue
		}
		if got.OK && got.Normalized != tt.normWant {
			t.Errorf("ValidateSSN(%q) normalized = %q, want %q", tt.in, got.Normalized, tt.normWant)
		}
	}
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		in       string
		ok       bool
		normWant string
	}{
		{"(217) 555-0188", true, "(217) 555-0188"},
		{"217.555.0188", true, "(217) 555-0188"},
		{"2175550188", true, "(217) 555-0188"},
		{"1-217-555-0188", true, "(217) 555-0188"},
		{"+1 217 555 0188", true, "(217) 555-0188"},
		{"555-0188", false, ""},
		{"2175550188999", false, ""},
		{"", false, ""},
	}
	for _, tt := range tests {
		got := ValidatePhone(tt.in)
		if got.OK != tt.ok {
			t.Errorf("ValidatePhone(%q).OK = %v, want %v", tt.in, got.OK, tt.ok)
			continue
		}
		if got.OK && got.Normalized != tt.normWant {
			t.Errorf("ValidatePhone(%q) normalized = %q, want %q", tt.in, got.Normalized, tt.normWant)
		}
	}
}

func TestValidateZip(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"62704", true},
		{"62704-1234", true},
		{" 62704 ", true},
		{"627O4", false},
		{"627041234", false},
		{"62704-12", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidateZip(tt.in); got.OK != tt.ok {
			t.Errorf("ValidateZip(%q).OK = %v, want %v", tt.in, got.OK, tt.ok)
		}
	}
}

func TestValidateYear(t *testing.T) {
	now := time.Now().Year()
	tests := []struct {
		in int
		ok bool
	}{
		{1950, true},
		{1949, false},
		{now, true},
		{now + 1, true},
		{now + 2, false},
		{0, false},
	}
	for _, tt := range tests {
		if got := ValidateYear(tt.in); got.OK != tt.ok {
			t.Errorf("ValidateYear(%d).OK = %v, want %v", tt.in, got.OK, tt.ok)
		}
	}
}

func TestZipBase(t *testing.T) {
	if got := zipBase("62704-1234"); got != "62704" {
		t.Errorf("zipBase = %q, want 62704", got)
	}
	if got := zipBase(" 62704 "); got != "62704" {
		t.Errorf("zipBase = %q, want 62704", got)
	}
}

func TestValidateRecordsNormalizesInPlace(t *testing.T) {
	records := []BorrowerRecord{{
		FullName:      "John Smith",
		SSN:           "123 45 6789",
		Phone:         "217.555.0188",
		Address:       model.Address{Zip: " 62704 "},
		IncomeHistory: []IncomeEntry{{AmountCents: 8540000, Year: 2024}},
	}}

	errs := ValidateRecords(records)
	if len(errs) != 0 {
		t.Fatalf("errs = %v, want none", errs)
	}
	if records[0].SSN != "123-45-6789" {
		t.Errorf("SSN = %q, want normalized", records[0].SSN)
	}
	if records[0].Phone != "(217) 555-0188" {
		t.Errorf("Phone = %q, want normalized", records[0].Phone)
	}
	if records[0].Address.Zip != "62704" {
		t.Errorf("Zip = %q, want normalized", records[0].Address.Zip)
	}
}

func TestValidateRecordsReportsButKeepsInvalidValues(t *testing.T) {
	records := []BorrowerRecord{{
		FullName:      "John Smith",
		SSN:           "666-12-3456",
		IncomeHistory: []IncomeEntry{{AmountCents: 100, Year: 1900}},
	}}

	errs := ValidateRecords(records)
	if len(errs) != 2 {
		t.Fatalf("errs = %v, want 2", errs)
	}
	for _, e := range errs {
		if !strings.HasPrefix(e, "John Smith: ") {
			t.Errorf("error %q missing borrower label", e)
		}
	}
	if records[0].SSN != "666-12-3456" {
		t.Errorf("invalid SSN was mutated to %q", records[0].SSN)
	}
}

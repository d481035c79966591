package extraction

import "testing"

func TestClassifyComplexity(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		pageCount     int
		wantLevel     ComplexityLevel
		wantBorrowers int
	}{
		{
			name:          "plain W-2 is standard",
			text:          "Form W-2 Wage and Tax Statement\nEmployee: John Smith\nWages: 85,400.00",
			pageCount:     2,
			wantLevel:     ComplexityStandard,
			wantBorrowers: 1,
		},
		{
			name:          "co-borrower token",
			text:          "Borrower: Maria Gonzalez\nCo-Borrower: Diego Gonzalez",
			pageCount:     1,
			wantLevel:     ComplexityComplex,
			wantBorrowers: 2,
		},
		{
			name:          "multiple distinct tokens stack",
			text:          "Co-borrower income combined with spouse assets",
			pageCount:     1,
			wantLevel:     ComplexityComplex,
			wantBorrowers: 3,
		},
		{
			name:          "long document",
			text:          "a single borrower but many pages",
			pageCount:     11,
			wantLevel:     ComplexityComplex,
			wantBorrowers: 1,
		},
		{
			name:          "ten pages still standard",
			text:          "a single borrower",
			pageCount:     10,
			wantLevel:     ComplexityStandard,
			wantBorrowers: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyComplexity(tt.text, tt.pageCount)
			if got.Level != tt.wantLevel {
				t.Errorf("Level = %v, want %v", got.Level, tt.wantLevel)
			}
			if got.EstimatedBorrowers != tt.wantBorrowers {
				t.Errorf("EstimatedBorrowers = %d, want %d", got.EstimatedBorrowers, tt.wantBorrowers)
			}
		})
	}
}

func TestClassifyComplexityScanQuality(t *testing.T) {
	got := ClassifyComplexity("Wages: [illegible]\nEmployer: ???? Industries", 1)
	if !got.HasPoorQuality {
		t.Error("HasPoorQuality = false, want true")
	}
	if got.Level != ComplexityComplex {
		t.Errorf("Level = %v, want COMPLEX", got.Level)
	}
}

func TestClassifyComplexityHandwritten(t *testing.T) {
	got := ClassifyComplexity("I certify the above is correct.\nSigned: John Smith", 1)
	if !got.HasHandwritten {
		t.Error("HasHandwritten = false, want true")
	}
	if got.Level != ComplexityComplex {
		t.Errorf("Level = %v, want COMPLEX", got.Level)
	}
}

package extraction

import "strings"

// ComplexityLevel drives model selection: STANDARD documents go to the
// flash-class model, COMPLEX ones to the pro-class model.
type ComplexityLevel string

const (
	ComplexityStandard ComplexityLevel = "STANDARD"
	ComplexityComplex  ComplexityLevel = "COMPLEX"
)

// ComplexityAssessment is the classifier verdict for one document body.
type ComplexityAssessment struct {
	Level              ComplexityLevel
	EstimatedBorrowers int
	HasHandwritten     bool
	HasPoorQuality     bool
}

// multiBorrowerTokens signal more than one borrower on the document.
var multiBorrowerTokens = []string{
	"co-borrower",
	"joint applicant",
	"spouse",
	"borrower 2",
	"second borrower",
}

// poorScanMarkers are artifacts OCR leaves behind on bad scans. "???" covers
// any run of three or more question marks.
var poorScanMarkers = []string{
	"[illegible]",
	"[unclear]",
	"???",
}

var handwrittenMarkers = []string{
	"[handwritten]",
	"signature:",
	"signed:",
}

// ClassifyComplexity is a pure function over the text body and inferred page
// count. Any single signal promotes the document to COMPLEX.
func ClassifyComplexity(text string, pageCount int) ComplexityAssessment {
	lower := strings.ToLower(text)

	distinctTokens := 0
	for _, tok := range multiBorrowerTokens {
		if strings.Contains(lower, tok) {
			distinctTokens++
		}
	}
	poorQuality := containsAny(lower, poorScanMarkers)
	handwritten := containsAny(lower, handwrittenMarkers)

	level := ComplexityStandard
	if distinctTokens > 0 || pageCount > 10 || poorQuality || handwritten {
		level = ComplexityComplex
	}

	return ComplexityAssessment{
		Level:              level,
		EstimatedBorrowers: distinctTokens + 1,
		HasHandwritten:     handwritten,
		HasPoorQuality:     poorQuality,
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

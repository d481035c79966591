package extraction

import "strings"

// NeedsReviewThreshold is the confidence below which a record is flagged for
// human review.
const NeedsReviewThreshold = 0.70

// ScoreRecord computes the deterministic confidence for a borrower record
// and whether it needs review. Pure function of the record.
//
// Base 0.50; +0.10 per present required field (name, address), capped 0.20;
// +0.05 per non-empty list (incomes, accounts, loans), capped 0.15; +0.10
// when backed by two or more sources; +0.15 when every present field passes
// format validation. Clamped to [0, 1].
func ScoreRecord(r BorrowerRecord) (score float64, needsReview bool) {
	score = 0.50

	required := 0.0
	if strings.TrimSpace(r.FullName) != "" {
		required += 0.10
	}
	if !r.Address.Empty() {
		required += 0.10
	}
	if required > 0.20 {
		required = 0.20
	}
	score += required

	optional := 0.0
	if len(r.IncomeHistory) > 0 {
		optional += 0.05
	}
	if len(r.AccountNumbers) > 0 {
		optional += 0.05
	}
	if len(r.LoanNumbers) > 0 {
		optional += 0.05
	}
	if optional > 0.15 {
		optional = 0.15
	}
	score += optional

	if len(r.Sources) >= 2 {
		score += 0.10
	}
	if formatsValid(r) {
		score += 0.15
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, score < NeedsReviewThreshold
}

// formatsValid reports whether every present validatable field passes.
// Absent fields pass vacuously.
func formatsValid(r BorrowerRecord) bool {
	if r.SSN != "" && !ValidateSSN(r.SSN).OK {
		return false
	}
	if r.Phone != "" && !ValidatePhone(r.Phone).OK {
		return false
	}
	if r.Address.Zip != "" && !ValidateZip(r.Address.Zip).OK {
		return false
	}
	for _, inc := range r.IncomeHistory {
		if !ValidateYear(inc.Year).OK {
			return false
		}
	}
	return true
}

// ScoreRecords applies ScoreRecord to every record in place.
func ScoreRecords(records []BorrowerRecord) {
	for i := range records {
		records[i].Confidence, records[i].NeedsReview = ScoreRecord(records[i])
	}
}

package extraction

import (
	"fmt"
	"sort"

	"github.com/loanlens/loanlens/internal/model"
)

// CheckConsistency runs after deduplication. It appends warnings to each
// record and returns the full batch; it never mutates the underlying data.
func CheckConsistency(records []BorrowerRecord) []model.ConsistencyWarning {
	var all []model.ConsistencyWarning
	for i := range records {
		r := &records[i]
		var ws []model.ConsistencyWarning
		ws = append(ws, addressConflict(r)...)
		ws = append(ws, incomeSwings(r)...)
		r.Warnings = append(r.Warnings, ws...)
		all = append(all, ws...)
	}

	cross := crossDocumentMismatches(records)
	all = append(all, cross...)
	return all
}

// addressConflict flags records that merged multiple sources yet carry a
// single address: the address may be one partial view among several.
func addressConflict(r *BorrowerRecord) []model.ConsistencyWarning {
	if len(r.Sources) <= 1 || r.Address.Empty() {
		return nil
	}
	return []model.ConsistencyWarning{{
		Kind:     model.WarningAddressConflict,
		Borrower: r.FullName,
		Field:    "address",
		Message:  fmt.Sprintf("address was merged from %d sources and may reflect only one of them", len(r.Sources)),
		Details: map[string]string{
			"source_count": fmt.Sprintf("%d", len(r.Sources)),
		},
	}}
}

// periodMultipliers annualize income amounts so figures reported at
// different cadences compare on one scale.
var periodMultipliers = map[string]int64{
	model.PeriodAnnual:   1,
	model.PeriodMonthly:  12,
	model.PeriodWeekly:   52,
	model.PeriodBiweekly: 26,
}

func annualizeCents(e IncomeEntry) int64 {
	mult, ok := periodMultipliers[e.Period]
	if !ok {
		mult = 1
	}
	return e.AmountCents * mult
}

// incomeSwings flags year-over-year drops below 50% and spikes above 300%
// between successive reported years.
func incomeSwings(r *BorrowerRecord) []model.ConsistencyWarning {
	byYear := make(map[int]int64)
	for _, e := range r.IncomeHistory {
		byYear[e.Year] += annualizeCents(e)
	}
	if len(byYear) < 2 {
		return nil
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	var warnings []model.ConsistencyWarning
	for i := 1; i < len(years); i++ {
		prevYear, year := years[i-1], years[i]
		prev, curr := byYear[prevYear], byYear[year]
		if prev <= 0 {
			continue
		}
		ratio := float64(curr) / float64(prev)

		details := map[string]string{
			"year_from":   fmt.Sprintf("%d", prevYear),
			"year_to":     fmt.Sprintf("%d", year),
			"amount_from": fmt.Sprintf("%.2f", float64(prev)/100),
			"amount_to":   fmt.Sprintf("%.2f", float64(curr)/100),
			"ratio":       fmt.Sprintf("%.2f", ratio),
		}
		switch {
		case ratio < 0.5:
			warnings = append(warnings, model.ConsistencyWarning{
				Kind:     model.WarningIncomeDrop,
				Borrower: r.FullName,
				Field:    "income_history",
				Message: fmt.Sprintf("annualized income fell from %.2f (%d) to %.2f (%d)",
					float64(prev)/100, prevYear, float64(curr)/100, year),
				Details: details,
			})
		case ratio > 3.0:
			warnings = append(warnings, model.ConsistencyWarning{
				Kind:     model.WarningIncomeSpike,
				Borrower: r.FullName,
				Field:    "income_history",
				Message: fmt.Sprintf("annualized income jumped from %.2f (%d) to %.2f (%d)",
					float64(prev)/100, prevYear, float64(curr)/100, year),
				Details: details,
			})
		}
	}
	return warnings
}

// crossDocumentMismatches flags pairs of records that share a normalized name
// but disagree on SSN last-4: likely two different people, or a transcription
// error upstream. The warning lands on both records.
func crossDocumentMismatches(records []BorrowerRecord) []model.ConsistencyWarning {
	var all []model.ConsistencyWarning
	for i := range records {
		for j := i + 1; j < len(records); j++ {
			a, b := &records[i], &records[j]
			na, nb := normalizeName(a.FullName), normalizeName(b.FullName)
			if na == "" || na != nb {
				continue
			}
			la, lb := ssnLast4(a.SSN), ssnLast4(b.SSN)
			if la == "" || lb == "" || la == lb {
				continue
			}
			msg := fmt.Sprintf("records named %q carry different SSNs (…%s vs …%s)", a.FullName, la, lb)
			wa := model.ConsistencyWarning{
				Kind:     model.WarningCrossDocMismatch,
				Borrower: a.FullName,
				Field:    "ssn",
				Message:  msg,
				Details:  map[string]string{"ssn_last4": la, "other_ssn_last4": lb},
			}
			wb := model.ConsistencyWarning{
				Kind:     model.WarningCrossDocMismatch,
				Borrower: b.FullName,
				Field:    "ssn",
				Message:  msg,
				Details:  map[string]string{"ssn_last4": lb, "other_ssn_last4": la},
			}
			a.Warnings = append(a.Warnings, wa)
			b.Warnings = append(b.Warnings, wb)
			all = append(all, wa, wb)
		}
	}
	return all
}

package extraction

import "sort"

// Deduplicate merges borrower records that refer to the same person. Records
// from different chunks of one document routinely overlap; matching is
// transitive, so any chain of pairwise matches collapses into one record.
// The result set is independent of input order, and deduplicating an already
// deduplicated set changes nothing.
func Deduplicate(records []BorrowerRecord) []BorrowerRecord {
	// Merging enriches records (unioned children, filled-in SSN/ZIP), which
	// can make a merged record newly match one it did not match before, so a
	// single pass can under-merge. Repeat until the set stabilizes.
	for {
		merged := dedupeOnce(records)
		if len(merged) == len(records) {
			return merged
		}
		records = merged
	}
}

func dedupeOnce(records []BorrowerRecord) []BorrowerRecord {
	if len(records) <= 1 {
		return records
	}

	parent := make([]int, len(records))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			if sameBorrower(&records[i], &records[j]) {
				ri, rj := find(i), find(j)
				if ri != rj {
					parent[rj] = ri
				}
			}
		}
	}

	clusters := make(map[int][]int)
	for i := range records {
		root := find(i)
		clusters[root] = append(clusters[root], i)
	}

	roots := make([]int, 0, len(clusters))
	for root := range clusters {
		roots = append(roots, root)
	}
	sort.Slice(roots, func(a, b int) bool {
		return clusters[roots[a]][0] < clusters[roots[b]][0]
	})

	merged := make([]BorrowerRecord, 0, len(roots))
	for _, root := range roots {
		merged = append(merged, mergeCluster(records, clusters[root]))
	}
	return merged
}

// sameBorrower applies the match predicates in priority order:
//
//  1. equal normalized SSNs
//  2. any shared account or loan number
//  3. name similarity ≥ 0.90 and identical ZIP (ignoring +4)
//  4. name similarity ≥ 0.95
//  5. name similarity ≥ 0.80 and matching SSN last-4
func sameBorrower(a, b *BorrowerRecord) bool {
	if sa, sb := ssnDigits(a.SSN), ssnDigits(b.SSN); sa != "" && sa == sb {
		return true
	}
	if sharesAccountNumber(a, b) {
		return true
	}

	na, nb := normalizeName(a.FullName), normalizeName(b.FullName)
	if na == "" || nb == "" {
		return false
	}
	sim := similarityRatio(na, nb)

	if sim >= 0.90 && a.Address.Zip != "" && b.Address.Zip != "" &&
		zipBase(a.Address.Zip) == zipBase(b.Address.Zip) {
		return true
	}
	if sim >= 0.95 {
		return true
	}
	if sim >= 0.80 {
		if la := ssnLast4(a.SSN); la != "" && la == ssnLast4(b.SSN) {
			return true
		}
	}
	return false
}

func sharesAccountNumber(a, b *BorrowerRecord) bool {
	seen := make(map[string]struct{}, len(a.AccountNumbers)+len(a.LoanNumbers))
	for _, n := range a.AccountNumbers {
		if n != "" {
			seen[n] = struct{}{}
		}
	}
	for _, n := range a.LoanNumbers {
		if n != "" {
			seen[n] = struct{}{}
		}
	}
	for _, n := range b.AccountNumbers {
		if _, ok := seen[n]; ok {
			return true
		}
	}
	for _, n := range b.LoanNumbers {
		if _, ok := seen[n]; ok {
			return true
		}
	}
	return false
}

// mergeCluster folds a matched cluster into one record. The highest-
// confidence record is the base (ties break toward earliest input); children
// are unioned, de-duplicated, and canonically sorted so the merged children
// do not depend on input order. Confidence is the cluster maximum.
func mergeCluster(records []BorrowerRecord, idxs []int) BorrowerRecord {
	base := idxs[0]
	for _, i := range idxs[1:] {
		if records[i].Confidence > records[base].Confidence {
			base = i
		}
	}

	merged := records[base]
	merged.IncomeHistory = append([]IncomeEntry(nil), merged.IncomeHistory...)
	merged.AccountNumbers = append([]string(nil), merged.AccountNumbers...)
	merged.LoanNumbers = append([]string(nil), merged.LoanNumbers...)
	merged.Sources = append([]SourceRef(nil), merged.Sources...)

	maxConf := records[base].Confidence
	for _, i := range idxs {
		if i == base {
			continue
		}
		r := records[i]
		if r.Confidence > maxConf {
			maxConf = r.Confidence
		}
		merged.IncomeHistory = append(merged.IncomeHistory, r.IncomeHistory...)
		merged.AccountNumbers = append(merged.AccountNumbers, r.AccountNumbers...)
		merged.LoanNumbers = append(merged.LoanNumbers, r.LoanNumbers...)
		merged.Sources = append(merged.Sources, r.Sources...)
		if merged.SSN == "" {
			merged.SSN = r.SSN
		}
		if merged.Phone == "" {
			merged.Phone = r.Phone
		}
		if merged.Address.Empty() && !r.Address.Empty() {
			merged.Address = r.Address
		}
	}

	merged.Confidence = maxConf
	merged.IncomeHistory = dedupeIncomes(merged.IncomeHistory)
	merged.AccountNumbers = dedupeStrings(merged.AccountNumbers)
	merged.LoanNumbers = dedupeStrings(merged.LoanNumbers)
	merged.Sources = dedupeSources(merged.Sources)
	return merged
}

type incomeKey struct {
	year        int
	amountCents int64
	sourceType  string
	employer    string
}

func dedupeIncomes(entries []IncomeEntry) []IncomeEntry {
	seen := make(map[incomeKey]struct{}, len(entries))
	out := entries[:0]
	for _, e := range entries {
		k := incomeKey{e.Year, e.AmountCents, e.SourceType, e.Employer}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		if out[i].AmountCents != out[j].AmountCents {
			return out[i].AmountCents < out[j].AmountCents
		}
		if out[i].SourceType != out[j].SourceType {
			return out[i].SourceType < out[j].SourceType
		}
		return out[i].Employer < out[j].Employer
	})
	return out
}

func dedupeStrings(vals []string) []string {
	seen := make(map[string]struct{}, len(vals))
	out := vals[:0]
	for _, v := range vals {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

type sourceKey struct {
	page      int
	section   string
	snippet   string
	charStart int64
	charEnd   int64
}

func dedupeSources(refs []SourceRef) []SourceRef {
	seen := make(map[sourceKey]struct{}, len(refs))
	out := refs[:0]
	for _, s := range refs {
		k := sourceKey{page: s.PageNumber, section: s.Section, snippet: s.Snippet, charStart: -1, charEnd: -1}
		if s.CharStart != nil {
			k.charStart = *s.CharStart
		}
		if s.CharEnd != nil {
			k.charEnd = *s.CharEnd
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PageNumber != out[j].PageNumber {
			return out[i].PageNumber < out[j].PageNumber
		}
		si, sj := int64(-1), int64(-1)
		if out[i].CharStart != nil {
			si = *out[i].CharStart
		}
		if out[j].CharStart != nil {
			sj = *out[j].CharStart
		}
		if si != sj {
			return si < sj
		}
		return out[i].Snippet < out[j].Snippet
	})
	return out
}

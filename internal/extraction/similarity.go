package extraction

import "strings"

// levenshtein computes edit distance with a single-row DP table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr := make([]int, len(rb)+1)
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(min(curr[j-1]+1, prev[j]+1), prev[j-1]+cost)
		}
		prev = curr
	}
	return prev[len(rb)]
}

// similarityRatio is a normalized edit-distance ratio in [0, 1] over
// lowercased, trimmed strings. Identical inputs score 1.
func similarityRatio(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	dist := levenshtein(a, b)
	maxLen := max(len([]rune(a)), len([]rune(b)))
	return 1.0 - float64(dist)/float64(maxLen)
}

// normalizeName lowercases and collapses internal whitespace so "JOHN  Smith"
// and "john smith" compare equal.
func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// nameSimilarity compares two names after normalization.
func nameSimilarity(a, b string) float64 {
	return similarityRatio(normalizeName(a), normalizeName(b))
}

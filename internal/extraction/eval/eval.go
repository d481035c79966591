// Package eval compares the extraction strategies against ground-truth loan
// document fixtures: borrower precision/recall, name similarity, and income
// accuracy per strategy.
package eval

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/loanlens/loanlens/internal/extraction"
)

// GroundTruth is the expected extraction output for one fixture.
type GroundTruth struct {
	Name      string             `json:"name"`
	Borrowers []ExpectedBorrower `json:"borrowers"`
}

// ExpectedBorrower is one expected borrower row.
type ExpectedBorrower struct {
	FullName       string           `json:"full_name"`
	SSNLast4       string           `json:"ssn_last4,omitempty"`
	Incomes        []ExpectedIncome `json:"incomes,omitempty"`
	AccountNumbers []string         `json:"account_numbers,omitempty"`
}

// ExpectedIncome is one expected income figure, in cents.
type ExpectedIncome struct {
	AmountCents int64  `json:"amount_cents"`
	Year        int    `json:"year"`
	Period      string `json:"period"`
}

// Result holds metrics from running one strategy on one fixture.
type Result struct {
	Strategy       string
	Fixture        string
	Borrowers      CountMetrics
	NameSimilarity float64
	IncomeAccuracy float64
	OverallScore   float64
	Duration       time.Duration
	TokensUsed     int
	Error          string // non-empty if the strategy failed
}

// CountMetrics measures borrower detection performance.
type CountMetrics struct {
	Expected  int
	Extracted int
	Matched   int
	Precision float64
	Recall    float64
	F1        float64
}

type borrowerPair struct {
	extracted *extraction.BorrowerRecord
	truth     ExpectedBorrower
}

// StrategyFunc is the signature evaluated strategies expose.
type StrategyFunc func(ctx context.Context, in extraction.Input) (*extraction.Result, error)

// nameMatchThreshold is the minimum similarity for an extracted borrower to
// count as the same person as a ground-truth borrower.
const nameMatchThreshold = 0.8

// ComputeMetrics compares extracted borrowers against ground truth.
func ComputeMetrics(strategy, fixture string, extracted []extraction.BorrowerRecord, truth *GroundTruth, duration time.Duration, tokens int) *Result {
	result := &Result{
		Strategy:   strategy,
		Fixture:    fixture,
		Duration:   duration,
		TokensUsed: tokens,
	}

	matched := matchBorrowers(extracted, truth.Borrowers)

	result.Borrowers = CountMetrics{
		Expected:  len(truth.Borrowers),
		Extracted: len(extracted),
		Matched:   len(matched),
	}
	if len(extracted) > 0 {
		result.Borrowers.Precision = float64(len(matched)) / float64(len(extracted))
	}
	if len(truth.Borrowers) > 0 {
		result.Borrowers.Recall = float64(len(matched)) / float64(len(truth.Borrowers))
	}
	p, r := result.Borrowers.Precision, result.Borrowers.Recall
	if p+r > 0 {
		result.Borrowers.F1 = 2 * p * r / (p + r)
	}

	if len(matched) > 0 {
		var nameSum, incomeSum float64
		for _, pair := range matched {
			nameSum += nameSimilarity(pair.extracted.FullName, pair.truth.FullName)
			incomeSum += incomeAccuracy(pair.extracted.IncomeHistory, pair.truth.Incomes)
		}
		result.NameSimilarity = nameSum / float64(len(matched))
		result.IncomeAccuracy = incomeSum / float64(len(matched))
	}

	result.OverallScore = 0.5*result.Borrowers.F1 +
		0.2*result.NameSimilarity +
		0.3*result.IncomeAccuracy
	return result
}

// matchBorrowers pairs extracted borrowers to ground truth greedily by name
// similarity; each truth row matches at most once.
func matchBorrowers(extracted []extraction.BorrowerRecord, truth []ExpectedBorrower) []borrowerPair {
	truthUsed := make([]bool, len(truth))
	var matched []borrowerPair

	for i := range extracted {
		bestIdx := -1
		bestScore := nameMatchThreshold
		for j, tr := range truth {
			if truthUsed[j] {
				continue
			}
			score := nameSimilarity(extracted[i].FullName, tr.FullName)
			if score >= bestScore {
				bestScore = score
				bestIdx = j
			}
		}
		if bestIdx >= 0 {
			truthUsed[bestIdx] = true
			matched = append(matched, borrowerPair{extracted: &extracted[i], truth: truth[bestIdx]})
		}
	}
	return matched
}

// incomeAccuracy is the fraction of expected income figures for which an
// extracted entry matches year and amount (within 1% or one dollar).
func incomeAccuracy(extracted []extraction.IncomeEntry, expected []ExpectedIncome) float64 {
	if len(expected) == 0 {
		return 1.0
	}
	used := make([]bool, len(extracted))
	hit := 0
	for _, want := range expected {
		for i, got := range extracted {
			if used[i] || got.Year != want.Year {
				continue
			}
			if amountMatch(got.AmountCents, want.AmountCents) {
				used[i] = true
				hit++
				break
			}
		}
	}
	return float64(hit) / float64(len(expected))
}

// amountMatch tolerates one dollar or 1% of the expected amount.
func amountMatch(a, b int64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if diff <= 100 {
		return true
	}
	return b != 0 && float64(diff)/math.Abs(float64(b)) < 0.01
}

// nameSimilarity is normalized Levenshtein similarity over lowercased names.
func nameSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1.0
	}
	lenA := utf8.RuneCountInString(a)
	lenB := utf8.RuneCountInString(b)
	if lenA == 0 && lenB == 0 {
		return 1.0
	}
	maxLen := lenA
	if lenB > maxLen {
		maxLen = lenB
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

func levenshtein(a, b string) int {
	runesA := []rune(a)
	runesB := []rune(b)
	la, lb := len(runesA), len(runesB)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr := make([]int, lb+1)
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if runesA[i-1] == runesB[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev = curr
	}
	return prev[lb]
}

// Run executes every strategy against every fixture.
func Run(ctx context.Context, strategies map[string]StrategyFunc, fixtures []*Fixture) []*Result {
	var results []*Result
	for _, fixture := range fixtures {
		for name, strategy := range strategies {
			start := time.Now()
			out, err := strategy(ctx, extraction.Input{
				DocumentID: "eval-" + fixture.Name,
				Filename:   fixture.Name + ".txt",
				RawText:    fixture.Text,
				PageCount:  fixture.PageCount,
			})
			elapsed := time.Since(start)

			if err != nil {
				results = append(results, &Result{
					Strategy: name,
					Fixture:  fixture.Name,
					Duration: elapsed,
					Error:    err.Error(),
				})
				continue
			}
			results = append(results, ComputeMetrics(name, fixture.Name, out.Borrowers, fixture.GroundTruth, elapsed, out.TokensUsed))
		}
	}
	return results
}

// PrintSummary writes a comparison table plus per-strategy averages.
func PrintSummary(w io.Writer, results []*Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Strategy\tFixture\tF1\tName~\tIncome%\tScore\tTime\tTokens\tMatch\tError")
	fmt.Fprintln(tw, "--------\t-------\t--\t-----\t-------\t-----\t----\t------\t-----\t-----")
	for _, r := range results {
		errStr := ""
		if r.Error != "" {
			errStr = truncate(r.Error, 30)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%.0f%%\t%.2f\t%s\t%d\t%d/%d\t%s\n",
			r.Strategy,
			r.Fixture,
			r.Borrowers.F1,
			r.NameSimilarity,
			r.IncomeAccuracy*100,
			r.OverallScore,
			r.Duration.Round(time.Millisecond),
			r.TokensUsed,
			r.Borrowers.Matched, r.Borrowers.Expected,
			errStr,
		)
	}
	tw.Flush()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Strategy Averages ===")

	scores := make(map[string][]float64)
	f1s := make(map[string][]float64)
	for _, r := range results {
		if r.Error == "" {
			scores[r.Strategy] = append(scores[r.Strategy], r.OverallScore)
			f1s[r.Strategy] = append(f1s[r.Strategy], r.Borrowers.F1)
		}
	}

	tw2 := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw2, "Strategy\tAvg Score\tAvg F1\tFixtures")
	fmt.Fprintln(tw2, "--------\t---------\t------\t--------")
	for strategy, vals := range scores {
		fmt.Fprintf(tw2, "%s\t%.3f\t%.3f\t%d\n", strategy, avg(vals), avg(f1s[strategy]), len(vals))
	}
	tw2.Flush()
}

func avg(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

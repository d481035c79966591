package extraction

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// maxSnippetChars caps persisted provenance snippets.
const maxSnippetChars = 500

const extractionSystemInstruction = `You are a loan-document analyst. Extract every borrower mentioned in the document chunk, with their income history, account numbers, loan numbers, and contact details. Report only what the document states; never infer or invent values. Amounts are dollars. For every extracted field include a source entry quoting the exact text it came from.`

// buildChunkPrompt renders the per-chunk extraction prompt. withSpans asks
// the model to quote a verbatim extraction_text per source, which the
// offset translator later locates in the raw text.
func buildChunkPrompt(filename string, chunk Chunk, assessment ComplexityAssessment, withSpans bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Document: %s (chunk %d of %d)\n", filename, chunk.Index+1, chunk.Total)
	if assessment.EstimatedBorrowers > 1 {
		fmt.Fprintf(&sb, "This document likely mentions %d or more borrowers (co-borrower or joint applicant language present); extract each one separately.\n", assessment.EstimatedBorrowers)
	}
	if assessment.HasPoorQuality {
		sb.WriteString("The scan quality is poor; skip values you cannot read confidently.\n")
	}
	if withSpans {
		sb.WriteString("For every source entry, extraction_text must be copied verbatim from the chunk, character for character.\n")
	}
	sb.WriteString("\n--- DOCUMENT CHUNK ---\n")
	sb.WriteString(chunk.Text)
	sb.WriteString("\n--- END CHUNK ---\n")
	return sb.String()
}

// borrowerSchema is the Gemini responseSchema for one extraction call.
func borrowerSchema(withSpans bool) map[string]any {
	sourceProps := map[string]any{
		"section": map[string]any{"type": "string"},
		"snippet": map[string]any{"type": "string"},
	}
	sourceRequired := []string{"snippet"}
	if withSpans {
		sourceProps["extraction_text"] = map[string]any{"type": "string"}
		sourceRequired = append(sourceRequired, "extraction_text")
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"borrowers": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"full_name": map[string]any{"type": "string"},
						"ssn":       map[string]any{"type": "string"},
						"phone":     map[string]any{"type": "string"},
						"address": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"street": map[string]any{"type": "string"},
								"city":   map[string]any{"type": "string"},
								"state":  map[string]any{"type": "string"},
								"zip":    map[string]any{"type": "string"},
							},
						},
						"income_history": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"amount":      map[string]any{"type": "number"},
									"period":      map[string]any{"type": "string", "enum": []string{"annual", "monthly", "weekly", "biweekly"}},
									"year":        map[string]any{"type": "integer"},
									"source_type": map[string]any{"type": "string", "enum": []string{"employment", "self-employment", "other"}},
									"employer":    map[string]any{"type": "string"},
								},
								"required": []string{"amount", "period", "year", "source_type"},
							},
						},
						"account_numbers": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"loan_numbers":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"sources": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type":       "object",
								"properties": sourceProps,
								"required":   sourceRequired,
							},
						},
					},
					"required": []string{"full_name"},
				},
			},
		},
		"required": []string{"borrowers"},
	}
}

// Wire shapes the model emits under borrowerSchema.

type llmAddress struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

type llmIncome struct {
	Amount     float64 `json:"amount"`
	Period     string  `json:"period"`
	Year       int     `json:"year"`
	SourceType string  `json:"source_type"`
	Employer   string  `json:"employer"`
}

type llmSource struct {
	Section        string `json:"section"`
	Snippet        string `json:"snippet"`
	ExtractionText string `json:"extraction_text"`
}

type llmBorrower struct {
	FullName       string      `json:"full_name"`
	SSN            string      `json:"ssn"`
	Phone          string      `json:"phone"`
	Address        llmAddress  `json:"address"`
	IncomeHistory  []llmIncome `json:"income_history"`
	AccountNumbers []string    `json:"account_numbers"`
	LoanNumbers    []string    `json:"loan_numbers"`
	Sources        []llmSource `json:"sources"`
}

type llmResponse struct {
	Borrowers []llmBorrower `json:"borrowers"`
}

// parseBorrowers decodes one model response. Nameless borrowers and
// non-positive or out-of-range incomes are dropped with a note; a malformed
// body is a fatal error because retrying the same prompt will not fix it.
func parseBorrowers(text string) ([]llmBorrower, []string, error) {
	var resp llmResponse
	if err := json.Unmarshal([]byte(extractJSON(text)), &resp); err != nil {
		return nil, nil, &ExtractionError{Code: ErrCodeBadResponse, Message: "parse extraction response", Cause: err}
	}

	var notes []string
	out := resp.Borrowers[:0]
	for _, b := range resp.Borrowers {
		if strings.TrimSpace(b.FullName) == "" {
			notes = append(notes, "dropped borrower with empty name")
			continue
		}
		kept := b.IncomeHistory[:0]
		for _, inc := range b.IncomeHistory {
			if inc.Amount <= 0 {
				notes = append(notes, fmt.Sprintf("%s: dropped income with non-positive amount %.2f", b.FullName, inc.Amount))
				continue
			}
			if inc.Year < 1900 || inc.Year > 2100 {
				notes = append(notes, fmt.Sprintf("%s: dropped income with out-of-range year %d", b.FullName, inc.Year))
				continue
			}
			kept = append(kept, inc)
		}
		b.IncomeHistory = kept
		out = append(out, b)
	}
	return out, notes, nil
}

// toRecord converts a wire borrower to the canonical record. page attributes
// every source; langextract refines it per-source afterwards.
func (b llmBorrower) toRecord(page int) BorrowerRecord {
	rec := BorrowerRecord{
		FullName: DisplayName(b.FullName),
		SSN:      strings.TrimSpace(b.SSN),
		Phone:    strings.TrimSpace(b.Phone),
	}
	rec.Address.Street = strings.TrimSpace(b.Address.Street)
	rec.Address.City = strings.TrimSpace(b.Address.City)
	rec.Address.State = strings.TrimSpace(b.Address.State)
	rec.Address.Zip = strings.TrimSpace(b.Address.Zip)

	for _, inc := range b.IncomeHistory {
		rec.IncomeHistory = append(rec.IncomeHistory, IncomeEntry{
			AmountCents: int64(math.Round(inc.Amount * 100)),
			Period:      strings.ToLower(strings.TrimSpace(inc.Period)),
			Year:        inc.Year,
			SourceType:  strings.ToLower(strings.TrimSpace(inc.SourceType)),
			Employer:    strings.TrimSpace(inc.Employer),
		})
	}
	for _, n := range b.AccountNumbers {
		if n = strings.TrimSpace(n); n != "" {
			rec.AccountNumbers = append(rec.AccountNumbers, n)
		}
	}
	for _, n := range b.LoanNumbers {
		if n = strings.TrimSpace(n); n != "" {
			rec.LoanNumbers = append(rec.LoanNumbers, n)
		}
	}
	for _, s := range b.Sources {
		snippet := s.Snippet
		if snippet == "" {
			snippet = s.ExtractionText
		}
		snippet = truncateSnippet(snippet, maxSnippetChars)
		rec.Sources = append(rec.Sources, SourceRef{
			PageNumber: page,
			Section:    strings.TrimSpace(s.Section),
			Snippet:    snippet,
		})
	}
	return rec
}

// truncateSnippet caps s at max bytes without splitting a UTF-8 sequence.
func truncateSnippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

package extraction

import (
	"context"
	"strings"
	"testing"

	"github.com/loanlens/loanlens/internal/model"
)

func TestLangExtractPopulatesOffsets(t *testing.T) {
	raw := "Employee: JOHN SMITH\nWages: 85,400.00\nAccount: 4455667788"
	body := `{
		"borrowers": [{
			"full_name": "JOHN SMITH",
			"sources": [
				{"snippet": "employee name", "extraction_text": "Employee: JOHN SMITH"},
				{"snippet": "made up", "extraction_text": "text that is not in the document"}
			]
		}]
	}`
	llm := &fakeLLM{respond: singleBorrowerResponse(body)}
	s := NewLangExtractStrategy(llm)

	result, err := s.Extract(context.Background(), Input{
		DocumentID: "doc-1",
		Filename:   "w2.pdf",
		RawText:    raw,
		PageCount:  1,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result.MethodUsed != model.MethodLangExtract {
		t.Errorf("MethodUsed = %v, want langextract", result.MethodUsed)
	}
	if len(result.Borrowers) != 1 {
		t.Fatalf("Borrowers = %+v", result.Borrowers)
	}

	srcs := result.Borrowers[0].Sources
	if len(srcs) != 2 {
		t.Fatalf("Sources = %+v", srcs)
	}

	located := srcs[0]
	if located.CharStart == nil || located.CharEnd == nil {
		t.Fatal("located span has nil offsets")
	}
	if raw[*located.CharStart:*located.CharEnd] != "Employee: JOHN SMITH" {
		t.Errorf("offsets [%d, %d) select %q", *located.CharStart, *located.CharEnd, raw[*located.CharStart:*located.CharEnd])
	}

	missing := srcs[1]
	if missing.CharStart != nil || missing.CharEnd != nil {
		t.Error("unlocatable span should keep nil offsets")
	}
	if missing.Snippet == "" {
		t.Error("unlocatable span should keep its source reference")
	}
}

func TestLangExtractRequestsSpans(t *testing.T) {
	llm := &fakeLLM{respond: singleBorrowerResponse(`{"borrowers": []}`)}
	_, err := NewLangExtractStrategy(llm).Extract(context.Background(), Input{RawText: "body", PageCount: 1})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(llm.reqs[0].Prompt, "extraction_text must be copied verbatim") {
		t.Error("prompt does not request verbatim spans")
	}
}

func TestLangExtractTranslatesMarkdownOffsets(t *testing.T) {
	raw := "Name: John Smith\nIncome: 85,400"
	md := "# Name: John Smith\nIncome: 85,400"
	body := `{
		"borrowers": [{
			"full_name": "John Smith",
			"sources": [{"snippet": "name", "extraction_text": "John Smith"}]
		}]
	}`
	llm := &fakeLLM{respond: singleBorrowerResponse(body)}

	result, err := NewLangExtractStrategy(llm).Extract(context.Background(), Input{
		RawText:      raw,
		MarkdownText: md,
		PageCount:    1,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	// The model is prompted with the markdown form.
	if !strings.Contains(llm.reqs[0].Prompt, "# Name: John Smith") {
		t.Error("prompt built from raw text, want markdown")
	}

	src := result.Borrowers[0].Sources[0]
	if src.CharStart == nil || src.CharEnd == nil {
		t.Fatal("span has nil offsets")
	}
	if raw[*src.CharStart:*src.CharEnd] != "John Smith" {
		t.Errorf("raw offsets [%d, %d) select %q, want John Smith", *src.CharStart, *src.CharEnd, raw[*src.CharStart:*src.CharEnd])
	}
}

func TestLangExtractFallsBackToSnippetSpan(t *testing.T) {
	raw := "Employee: JOHN SMITH"
	body := `{
		"borrowers": [{
			"full_name": "JOHN SMITH",
			"sources": [{"snippet": "JOHN SMITH"}]
		}]
	}`
	llm := &fakeLLM{respond: singleBorrowerResponse(body)}

	result, err := NewLangExtractStrategy(llm).Extract(context.Background(), Input{RawText: raw, PageCount: 1})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	src := result.Borrowers[0].Sources[0]
	if src.CharStart == nil || *src.CharStart != 10 {
		t.Errorf("CharStart = %v, want snippet located at 10", src.CharStart)
	}
}

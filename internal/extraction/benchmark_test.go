package extraction

import (
	"fmt"
	"strings"
	"testing"
)

func benchmarkText(paragraphs int) string {
	var sb strings.Builder
	for i := 0; i < paragraphs; i++ {
		fmt.Fprintf(&sb, "Borrower statement paragraph %d with wages, account numbers, and employer details repeated for padding.\n\n", i)
	}
	return sb.String()
}

func BenchmarkChunkerSplit(b *testing.B) {
	text := benchmarkText(2000)
	c := NewChunker(DefaultChunkMaxChars, DefaultChunkOverlap)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Split(text)
	}
}

func BenchmarkClassifyComplexity(b *testing.B) {
	text := benchmarkText(500) + "Co-borrower: Diego Gonzalez\n"
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ClassifyComplexity(text, 12)
	}
}

func BenchmarkDeduplicate(b *testing.B) {
	var records []BorrowerRecord
	for i := 0; i < 50; i++ {
		records = append(records, BorrowerRecord{
			FullName:       fmt.Sprintf("Borrower %d", i%10),
			SSN:            fmt.Sprintf("123-45-%04d", 1000+i%10),
			AccountNumbers: []string{fmt.Sprintf("acct-%d", i%10)},
			Sources:        []SourceRef{{PageNumber: i%5 + 1, Snippet: "snippet"}},
		})
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		in := append([]BorrowerRecord(nil), records...)
		Deduplicate(in)
	}
}

func BenchmarkNameSimilarity(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		nameSimilarity("Jonathan Q. Smith-Wesson", "Jonathon Q Smith Wesson")
	}
}

func BenchmarkOffsetTranslatorLocate(b *testing.B) {
	raw := benchmarkText(200)
	md := "# Statement\n\n" + raw
	tr := NewOffsetTranslator(raw, md)
	span := "Borrower statement paragraph 150"
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr.Locate(span, len(md)/2)
	}
}

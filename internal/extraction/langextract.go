package extraction

import (
	"context"

	"github.com/loanlens/loanlens/internal/model"
)

// LangExtractStrategy is the character-offset strategy: every source quotes a
// verbatim span, which is located in the raw text so provenance is auditable
// down to the byte range.
type LangExtractStrategy struct {
	llm StructuredExtractor
}

// NewLangExtractStrategy builds the character-offset strategy.
func NewLangExtractStrategy(llm StructuredExtractor) *LangExtractStrategy {
	return &LangExtractStrategy{llm: llm}
}

func (s *LangExtractStrategy) Method() model.ExtractionMethod { return model.MethodLangExtract }

// Extract runs the shared chunk engine with span quoting enabled, then feeds
// every quoted span through the offset translator. Spans that cannot be
// placed (or fail fuzzy verification) keep nil offsets; the reference itself
// stays.
func (s *LangExtractStrategy) Extract(ctx context.Context, in Input) (*Result, error) {
	outs, tokens, notes, err := runChunks(ctx, s.llm, in, true)
	if err != nil {
		return nil, err
	}

	translator := NewOffsetTranslator(in.RawText, in.MarkdownText)
	text := in.text()

	var records []BorrowerRecord
	for _, out := range outs {
		hint := out.chunk.StartChar
		chunkPage := inferPage(out.chunk.StartChar+len(out.chunk.Text)/2, len(text), in.PageCount)
		for _, b := range out.borrowers {
			rec := b.toRecord(chunkPage)
			for i, src := range b.Sources {
				if i >= len(rec.Sources) {
					break
				}
				span := src.ExtractionText
				if span == "" {
					span = src.Snippet
				}
				cs, ce := translator.Locate(span, hint)
				rec.Sources[i].CharStart = cs
				rec.Sources[i].CharEnd = ce
				if cs != nil {
					rec.Sources[i].PageNumber = inferPage(int(*cs), len(in.RawText), in.PageCount)
				}
			}
			records = append(records, rec)
		}
	}

	return finishResult(records, len(outs), tokens, notes, model.MethodLangExtract), nil
}

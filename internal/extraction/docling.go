package extraction

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/loanlens/loanlens/internal/model"
)

// StructuredExtractor is the slice of the LLM client the strategies need.
// *GeminiClient satisfies it; tests substitute fakes.
type StructuredExtractor interface {
	ExtractStructured(ctx context.Context, req StructuredRequest) (*StructuredResponse, error)
}

// Strategy is one of the two extraction approaches behind the router.
type Strategy interface {
	Method() model.ExtractionMethod
	Extract(ctx context.Context, in Input) (*Result, error)
}

// DoclingStrategy is the page-level strategy: cheap, no character offsets,
// provenance by page number only.
type DoclingStrategy struct {
	llm StructuredExtractor
}

// NewDoclingStrategy builds the page-level strategy.
func NewDoclingStrategy(llm StructuredExtractor) *DoclingStrategy {
	return &DoclingStrategy{llm: llm}
}

func (s *DoclingStrategy) Method() model.ExtractionMethod { return model.MethodDocling }

// Extract runs classify → chunk → per-chunk LLM → merge, with source pages
// inferred from each chunk's position in the document.
func (s *DoclingStrategy) Extract(ctx context.Context, in Input) (*Result, error) {
	outs, tokens, notes, err := runChunks(ctx, s.llm, in, false)
	if err != nil {
		return nil, err
	}

	text := in.text()
	var records []BorrowerRecord
	for _, out := range outs {
		page := inferPage(out.chunk.StartChar+len(out.chunk.Text)/2, len(text), in.PageCount)
		for _, b := range out.borrowers {
			records = append(records, b.toRecord(page))
		}
	}

	return finishResult(records, len(outs), tokens, notes, model.MethodDocling), nil
}

// chunkOutput pairs a chunk with the borrowers the model found in it.
type chunkOutput struct {
	chunk     Chunk
	borrowers []llmBorrower
	usage     TokenUsage
}

// runChunks is the shared chunk engine: complexity-classify, pick the model
// tier, chunk the body, and fan the chunks out to the LLM under the
// configured concurrency bound. Any chunk failure fails the run; there is no
// cross-chunk recovery, the router owns retry and fallback.
func runChunks(ctx context.Context, llm StructuredExtractor, in Input, withSpans bool) ([]chunkOutput, int, []string, error) {
	cfg := in.Config.withDefaults()
	text := in.text()

	assessment := ClassifyComplexity(text, in.PageCount)
	modelName := cfg.FlashModel
	if assessment.Level == ComplexityComplex {
		modelName = cfg.ProModel
	}

	chunks := NewChunker(cfg.ChunkMaxChars, cfg.ChunkOverlap).Split(text)
	var notes []string
	if len(chunks) > cfg.MaxChunks {
		notes = append(notes, "document truncated to chunk budget")
		chunks = chunks[:cfg.MaxChunks]
	}

	log.WithFields(log.Fields{
		"document_id": in.DocumentID,
		"chunks":      len(chunks),
		"complexity":  assessment.Level,
		"model":       modelName,
	}).Debug("extraction fan-out")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outs := make([]chunkOutput, len(chunks))
	chunkNotes := make([][]string, len(chunks))
	errs := make([]error, len(chunks))

	sem := make(chan struct{}, cfg.ChunkConcurrency)
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk Chunk) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}

			resp, err := llm.ExtractStructured(ctx, StructuredRequest{
				Model:             modelName,
				SystemInstruction: extractionSystemInstruction,
				Prompt:            buildChunkPrompt(in.Filename, chunk, assessment, withSpans),
				Schema:            borrowerSchema(withSpans),
				Temperature:       1.0,
				MaxOutputTokens:   cfg.MaxOutputTokens,
			})
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			borrowers, parseNotes, err := parseBorrowers(resp.Text)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			outs[i] = chunkOutput{chunk: chunk, borrowers: borrowers, usage: resp.Usage}
			chunkNotes[i] = parseNotes
		}(i, chunk)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, 0, nil, err
		}
	}

	tokens := 0
	for i := range outs {
		tokens += outs[i].usage.TotalTokens
		notes = append(notes, chunkNotes[i]...)
	}
	return outs, tokens, notes, nil
}

// finishResult runs the shared pipeline tail, in order: deduplicate, then
// validate, score, and consistency-check the merged records.
func finishResult(records []BorrowerRecord, chunksProcessed, tokens int, notes []string, method model.ExtractionMethod) *Result {
	records = Deduplicate(records)
	validationErrs := ValidateRecords(records)
	ScoreRecords(records)
	warnings := CheckConsistency(records)

	return &Result{
		Borrowers:        records,
		ChunksProcessed:  chunksProcessed,
		TokensUsed:       tokens,
		ValidationErrors: append(notes, validationErrs...),
		Warnings:         warnings,
		MethodUsed:       method,
	}
}

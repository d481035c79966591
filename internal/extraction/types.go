// Package extraction implements the document extraction pipeline core:
// chunking, complexity classification, the two LLM extraction strategies
// and their router, deduplication, validation, confidence scoring,
// consistency checking, and raw/markdown offset translation.
package extraction

import "github.com/loanlens/loanlens/internal/model"

// Config controls a single extraction run. The router passes the same value
// to every attempt; strategies must not mutate it.
type Config struct {
	// MaxChunks caps how many chunks are sent to the LLM per document.
	MaxChunks int
	// ChunkMaxChars / ChunkOverlap parameterize the chunker.
	ChunkMaxChars int
	ChunkOverlap  int
	// ChunkConcurrency bounds parallel per-chunk LLM calls. 1 = serial.
	ChunkConcurrency int
	// FlashModel serves STANDARD documents, ProModel serves COMPLEX ones.
	FlashModel string
	ProModel   string
	// MaxOutputTokens is the per-call response budget.
	MaxOutputTokens int
}

const (
	defaultMaxChunks        = 20
	defaultChunkConcurrency = 3
	defaultMaxOutputTokens  = 16384
	defaultFlashModel       = "gemini-2.5-flash"
	defaultProModel         = "gemini-2.5-pro"
)

func (c Config) withDefaults() Config {
	if c.MaxChunks <= 0 {
		c.MaxChunks = defaultMaxChunks
	}
	if c.ChunkMaxChars <= 0 {
		c.ChunkMaxChars = DefaultChunkMaxChars
	}
	if c.ChunkOverlap <= 0 || c.ChunkOverlap >= c.ChunkMaxChars {
		c.ChunkOverlap = DefaultChunkOverlap
	}
	if c.ChunkConcurrency <= 0 {
		c.ChunkConcurrency = defaultChunkConcurrency
	}
	if c.FlashModel == "" {
		c.FlashModel = defaultFlashModel
	}
	if c.ProModel == "" {
		c.ProModel = defaultProModel
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = defaultMaxOutputTokens
	}
	return c
}

// Input is the text body handed to a strategy by the router.
type Input struct {
	DocumentID string
	Filename   string
	// RawText is the authoritative text; persisted offsets refer to it.
	RawText string
	// MarkdownText is the OCR-normalized form when one was produced.
	// Empty puts the offset translator in pass-through mode.
	MarkdownText string
	PageCount    int
	// Config is fixed for the whole run; every retry attempt sees the same
	// value.
	Config Config
}

// text returns the body a strategy should prompt with: the normalized
// markdown when available, otherwise the raw text.
func (in Input) text() string {
	if in.MarkdownText != "" {
		return in.MarkdownText
	}
	return in.RawText
}

// IncomeEntry is one extracted income figure, in cents.
type IncomeEntry struct {
	AmountCents int64
	Period      string
	Year        int
	SourceType  string
	Employer    string
}

// SourceRef is per-field provenance before persistence. CharStart/CharEnd
// are byte offsets into Input.RawText; both set or both nil.
type SourceRef struct {
	PageNumber int
	Section    string
	Snippet    string
	CharStart  *int64
	CharEnd    *int64
}

// BorrowerRecord is the canonical extracted-borrower shape produced by either
// strategy. The raw SSN lives only in this transient form; HashSSN converts
// it before anything is persisted.
type BorrowerRecord struct {
	FullName       string
	SSN            string
	Phone          string
	Address        model.Address
	IncomeHistory  []IncomeEntry
	AccountNumbers []string
	LoanNumbers    []string
	Sources        []SourceRef
	Confidence     float64
	NeedsReview    bool
	Warnings       []model.ConsistencyWarning
}

// Result is the outcome of one extraction run.
type Result struct {
	Borrowers        []BorrowerRecord
	ChunksProcessed  int
	TokensUsed       int
	ValidationErrors []string
	Warnings         []model.ConsistencyWarning
	MethodUsed       model.ExtractionMethod
}

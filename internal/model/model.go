// Package model defines the persistent domain types of the loan-document
// pipeline: documents and the borrowers extracted from them.
package model

import "time"

// DocumentStatus tracks a document through the extraction pipeline.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Terminal reports whether the status is final. Terminal documents are never
// reprocessed; duplicate task deliveries become no-ops.
func (s DocumentStatus) Terminal() bool {
	return s == DocumentStatusCompleted || s == DocumentStatusFailed
}

// ExtractionMethod selects the extraction strategy for a document.
type ExtractionMethod string

const (
	MethodDocling     ExtractionMethod = "docling"
	MethodLangExtract ExtractionMethod = "langextract"
	MethodAuto        ExtractionMethod = "auto"
)

// ParseExtractionMethod validates a client-supplied method string. Empty
// input selects the default (docling).
func ParseExtractionMethod(s string) (ExtractionMethod, bool) {
	switch ExtractionMethod(s) {
	case "":
		return MethodDocling, true
	case MethodDocling, MethodLangExtract, MethodAuto:
		return ExtractionMethod(s), true
	}
	return "", false
}

// OCRMode controls whether document bytes are routed through OCR.
type OCRMode string

const (
	OCRModeAuto  OCRMode = "auto"
	OCRModeForce OCRMode = "force"
	OCRModeSkip  OCRMode = "skip"
)

// ParseOCRMode validates a client-supplied OCR mode. Empty input selects the
// default (auto).
func ParseOCRMode(s string) (OCRMode, bool) {
	switch OCRMode(s) {
	case "":
		return OCRModeAuto, true
	case OCRModeAuto, OCRModeForce, OCRModeSkip:
		return OCRMode(s), true
	}
	return "", false
}

// OCRMethod records how text was actually produced for a document.
type OCRMethod string

const (
	OCRMethodNone           OCRMethod = "none"
	OCRMethodGPU            OCRMethod = "gpu"
	OCRMethodParserFallback OCRMethod = "parser_fallback"
)

// Document is an uploaded loan document and its processing state.
type Document struct {
	ID            string         `firestore:"id" json:"id"`
	Filename      string         `firestore:"filename" json:"filename"`
	FileHash      string         `firestore:"file_hash" json:"file_hash"`
	FileSizeBytes int64          `firestore:"file_size_bytes" json:"file_size_bytes"`
	FileType      string         `firestore:"file_type" json:"file_type"`
	BlobURI       string         `firestore:"blob_uri" json:"blob_uri,omitempty"`
	Status        DocumentStatus `firestore:"status" json:"status"`
	// PageCount is 0 until parsing has inferred it.
	PageCount    int    `firestore:"page_count" json:"page_count,omitempty"`
	ErrorMessage string `firestore:"error_message" json:"error_message,omitempty"`
	// ExtractionMethod is the method recorded at upload and overwritten with
	// the method actually used once processing completes. Empty means a
	// legacy row from before method tracking.
	ExtractionMethod ExtractionMethod `firestore:"extraction_method" json:"extraction_method,omitempty"`
	// OCRProcessed is nil for legacy rows, otherwise whether any OCR ran.
	OCRProcessed *bool     `firestore:"ocr_processed" json:"ocr_processed,omitempty"`
	CreatedAt    time.Time `firestore:"created_at" json:"created_at"`
}

// Borrower is a person extracted from a document, with all owned children
// embedded so that one write is the transactional unit and one read loads
// the full aggregate.
type Borrower struct {
	ID         string `firestore:"id" json:"id"`
	DocumentID string `firestore:"document_id" json:"document_id"`
	FullName   string `firestore:"full_name" json:"full_name"`
	// FullNameLower supports case-insensitive prefix queries in Firestore.
	FullNameLower string `firestore:"full_name_lower" json:"-"`
	// SSNHash is the SHA-256 of the normalized SSN digits, or empty. The raw
	// SSN is never persisted.
	SSNHash string `firestore:"ssn_hash" json:"ssn_hash,omitempty"`
	Phone   string `firestore:"phone" json:"phone,omitempty"`
	// Address is a serialized Address value, or empty.
	Address         string  `firestore:"address" json:"address,omitempty"`
	ConfidenceScore float64 `firestore:"confidence_score" json:"confidence_score"`
	NeedsReview     bool    `firestore:"needs_review" json:"needs_review"`

	IncomeRecords    []IncomeRecord       `firestore:"income_records" json:"income_records"`
	AccountNumbers   []AccountNumber      `firestore:"account_numbers" json:"account_numbers"`
	SourceReferences []SourceReference    `firestore:"source_references" json:"source_references"`
	Warnings         []ConsistencyWarning `firestore:"warnings" json:"warnings,omitempty"`

	// AccountNumbersFlat duplicates the account number strings for
	// array-contains queries; derived, never set by callers.
	AccountNumbersFlat []string  `firestore:"account_numbers_flat" json:"-"`
	CreatedAt          time.Time `firestore:"created_at" json:"created_at"`
}

// Flatten derives the query-only fields from the canonical ones.
func (b *Borrower) Flatten() {
	b.FullNameLower = lowerASCII(b.FullName)
	b.AccountNumbersFlat = b.AccountNumbersFlat[:0]
	for _, a := range b.AccountNumbers {
		b.AccountNumbersFlat = append(b.AccountNumbersFlat, a.Number)
	}
}

func lowerASCII(s string) string {
	buf := []byte(s)
	for i, c := range buf {
		if c >= 'A' && c <= 'Z' {
			buf[i] = c + 'a' - 'A'
		}
	}
	return string(buf)
}

// IncomePeriod values accepted on IncomeRecord.Period.
const (
	PeriodAnnual   = "annual"
	PeriodMonthly  = "monthly"
	PeriodWeekly   = "weekly"
	PeriodBiweekly = "biweekly"
)

// IncomeRecord is one reported income figure for a borrower.
type IncomeRecord struct {
	// AmountCents is the fixed-point amount in cents; always > 0.
	AmountCents int64  `firestore:"amount_cents" json:"amount_cents"`
	Period      string `firestore:"period" json:"period"`
	Year        int    `firestore:"year" json:"year"`
	// SourceType is one of "employment", "self-employment", "other".
	SourceType string `firestore:"source_type" json:"source_type"`
	Employer   string `firestore:"employer" json:"employer,omitempty"`
}

// AccountType values accepted on AccountNumber.AccountType.
const (
	AccountTypeBank = "bank"
	AccountTypeLoan = "loan"
)

// AccountNumber is a bank or loan account attributed to a borrower.
type AccountNumber struct {
	Number      string `firestore:"number" json:"number"`
	AccountType string `firestore:"account_type" json:"account_type"`
}

// SourceReference records where in a document a borrower field came from.
// CharStart/CharEnd are byte offsets into the document's raw text, inclusive
// start and exclusive end; both are set or both are nil.
type SourceReference struct {
	DocumentID string `firestore:"document_id" json:"document_id"`
	PageNumber int    `firestore:"page_number" json:"page_number"`
	Section    string `firestore:"section" json:"section,omitempty"`
	// Snippet is capped at 500 characters.
	Snippet   string `firestore:"snippet" json:"snippet"`
	CharStart *int64 `firestore:"char_start" json:"char_start,omitempty"`
	CharEnd   *int64 `firestore:"char_end" json:"char_end,omitempty"`
}

// Warning kinds emitted by the consistency checker.
const (
	WarningAddressConflict  = "ADDRESS_CONFLICT"
	WarningIncomeDrop       = "INCOME_DROP"
	WarningIncomeSpike      = "INCOME_SPIKE"
	WarningCrossDocMismatch = "CROSS_DOC_MISMATCH"
)

// ConsistencyWarning flags an anomaly on a borrower. Warnings never block
// persistence; they exist for human review.
type ConsistencyWarning struct {
	Kind     string            `firestore:"kind" json:"kind"`
	Borrower string            `firestore:"borrower" json:"borrower"`
	Field    string            `firestore:"field" json:"field"`
	Message  string            `firestore:"message" json:"message"`
	Details  map[string]string `firestore:"details" json:"details,omitempty"`
}

// Address is the structured form serialized into Borrower.Address.
type Address struct {
	Street string `json:"street,omitempty"`
	City   string `json:"city,omitempty"`
	State  string `json:"state,omitempty"`
	Zip    string `json:"zip,omitempty"`
}

// Empty reports whether no component of the address is set.
func (a Address) Empty() bool {
	return a.Street == "" && a.City == "" && a.State == "" && a.Zip == ""
}

// Package service orchestrates the document pipeline: upload, task
// processing, and the HTTP surface over both.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/loanlens/loanlens/internal/blob"
	"github.com/loanlens/loanlens/internal/extraction"
	"github.com/loanlens/loanlens/internal/model"
	"github.com/loanlens/loanlens/internal/ocr"
	"github.com/loanlens/loanlens/internal/queue"
	"github.com/loanlens/loanlens/internal/search"
	"github.com/loanlens/loanlens/internal/store"
)

var (
	// ErrDuplicateDocument is returned on upload of content already stored.
	ErrDuplicateDocument = errors.New("document with identical content already exists")
	// ErrRetryable marks a processing failure the task queue should
	// redeliver. The document stays PROCESSING.
	ErrRetryable = errors.New("transient processing failure")
)

const blobTimeout = 30 * time.Second

// TextRouter resolves document bytes to text. *ocr.Router satisfies it.
type TextRouter interface {
	Route(ctx context.Context, data []byte, filename string, mode model.OCRMode) (*ocr.RouteResult, error)
}

// Extractor runs an extraction method over a text body. *extraction.Router
// satisfies it.
type Extractor interface {
	Extract(ctx context.Context, in extraction.Input, method model.ExtractionMethod) (*extraction.Result, error)
}

// DocumentService owns the upload and processing flows.
type DocumentService struct {
	store      store.Store
	blobs      blob.Store
	tasks      queue.TaskQueue
	sync       bool
	ocr        TextRouter
	extractor  Extractor
	index      search.BorrowerIndex
	extractCfg extraction.Config
}

// NewDocumentService wires the orchestrator. A nil tasks selects synchronous
// inline processing through a queue.SyncQueue; index may be nil (search
// indexing disabled).
func NewDocumentService(st store.Store, blobs blob.Store, tasks queue.TaskQueue, textRouter TextRouter, extractor Extractor, index search.BorrowerIndex, extractCfg extraction.Config) *DocumentService {
	s := &DocumentService{
		store:      st,
		blobs:      blobs,
		tasks:      tasks,
		ocr:        textRouter,
		extractor:  extractor,
		index:      index,
		extractCfg: extractCfg,
	}
	if tasks == nil {
		s.sync = true
		s.tasks = &queue.SyncQueue{Handler: func(ctx context.Context, task queue.ProcessTask) error {
			// The inline run is the only attempt, so transient failures
			// are final.
			return s.Process(ctx, task, true)
		}}
	}
	return s
}

// UploadRequest carries one validated upload.
type UploadRequest struct {
	Filename    string
	Data        []byte
	ContentType string
	Method      model.ExtractionMethod
	OCR         model.OCRMode
}

// Upload stores the document and either enqueues processing or, with no
// queue configured, runs it inline. The Document row is committed before any
// step that can fail, so failures leave a visible FAILED record.
func (s *DocumentService) Upload(ctx context.Context, req UploadRequest) (*model.Document, error) {
	sum := sha256.Sum256(req.Data)
	hash := hex.EncodeToString(sum[:])

	doc := &model.Document{
		Filename:         req.Filename,
		FileHash:         hash,
		FileSizeBytes:    int64(len(req.Data)),
		FileType:         req.ContentType,
		Status:           model.DocumentStatusPending,
		ExtractionMethod: req.Method,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		if errors.Is(err, store.ErrDuplicateHash) {
			return nil, ErrDuplicateDocument
		}
		return nil, fmt.Errorf("create document: %w", err)
	}

	blobCtx, cancel := context.WithTimeout(ctx, blobTimeout)
	defer cancel()
	uri, err := s.blobs.Put(blobCtx, doc.ID, req.ContentType, req.Data)
	if err != nil {
		s.failDocument(ctx, doc, fmt.Sprintf("storage upload failed: %v", err))
		return nil, fmt.Errorf("storage upload failed: %w", err)
	}
	doc.BlobURI = uri
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		s.failDocument(ctx, doc, fmt.Sprintf("record blob uri: %v", err))
		return nil, fmt.Errorf("update document: %w", err)
	}

	task := queue.ProcessTask{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Method:     string(req.Method),
		OCR:        string(req.OCR),
	}

	if err := s.tasks.Enqueue(ctx, task); err != nil {
		if !s.sync {
			s.failDocument(ctx, doc, fmt.Sprintf("failed to queue: %v", err))
			return nil, fmt.Errorf("failed to queue: %w", err)
		}
		// Inline processing records its own terminal state; the caller gets
		// the document either way.
		log.WithFields(log.Fields{"document_id": doc.ID, "error": err.Error()}).
			Warn("inline processing failed")
	}
	if s.sync {
		return s.store.GetDocument(ctx, doc.ID)
	}
	return doc, nil
}

// Process runs the pipeline for one task delivery. finalAttempt reports
// whether the queue's retry budget is exhausted: when false, a transient
// extraction failure leaves the document PROCESSING and returns ErrRetryable
// so the handler answers with a retry-inducing status.
//
// Terminal documents are a no-op, which makes duplicate deliveries safe.
func (s *DocumentService) Process(ctx context.Context, task queue.ProcessTask, finalAttempt bool) error {
	doc, err := s.store.GetDocument(ctx, task.DocumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted while the task was in flight; nothing to do.
			log.WithField("document_id", task.DocumentID).Warn("task for missing document")
			return nil
		}
		return fmt.Errorf("%w: fetch document: %v", ErrRetryable, err)
	}
	if doc.Status.Terminal() {
		log.WithFields(log.Fields{"document_id": doc.ID, "status": doc.Status}).
			Info("document already terminal, skipping")
		return nil
	}

	doc.Status = model.DocumentStatusProcessing
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("%w: mark processing: %v", ErrRetryable, err)
	}

	blobCtx, cancel := context.WithTimeout(ctx, blobTimeout)
	data, err := s.blobs.Get(blobCtx, doc.ID)
	cancel()
	if err != nil {
		s.failDocument(ctx, doc, fmt.Sprintf("storage fetch failed: %v", err))
		return nil
	}

	mode, ok := model.ParseOCRMode(task.OCR)
	if !ok {
		mode = model.OCRModeAuto
	}
	route, err := s.ocr.Route(ctx, data, doc.Filename, mode)
	if err != nil {
		s.failDocument(ctx, doc, fmt.Sprintf("document parsing failed: %v", err))
		return nil
	}

	ocrProcessed := route.Method != model.OCRMethodNone
	doc.OCRProcessed = &ocrProcessed
	if route.PageCount > doc.PageCount {
		doc.PageCount = route.PageCount
	}

	method, ok := model.ParseExtractionMethod(task.Method)
	if !ok {
		method = model.MethodDocling
	}
	result, err := s.extractor.Extract(ctx, extraction.Input{
		DocumentID:   doc.ID,
		Filename:     doc.Filename,
		RawText:      route.RawText,
		MarkdownText: route.MarkdownText,
		PageCount:    route.PageCount,
		Config:       s.extractCfg,
	}, method)
	if err != nil {
		if extraction.IsRetryable(err) && !finalAttempt {
			// Keep PROCESSING and let the queue redeliver; the OCR outcome
			// is recorded so the status endpoint stays honest.
			if uerr := s.store.UpdateDocument(ctx, doc); uerr != nil {
				log.WithField("document_id", doc.ID).WithError(uerr).Warn("failed to record ocr state")
			}
			return fmt.Errorf("%w: %v", ErrRetryable, err)
		}
		s.failDocument(ctx, doc, fmt.Sprintf("extraction failed: %v", err))
		return nil
	}

	persisted, failures := s.persistBorrowers(ctx, doc.ID, result.Borrowers)

	doc.Status = model.DocumentStatusCompleted
	doc.ExtractionMethod = result.MethodUsed
	doc.ErrorMessage = ""
	if len(failures) > 0 {
		doc.ErrorMessage = partialSuccessMessage(persisted, len(result.Borrowers), failures)
	}
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("%w: mark completed: %v", ErrRetryable, err)
	}

	log.WithFields(log.Fields{
		"document_id": doc.ID,
		"method":      result.MethodUsed,
		"borrowers":   persisted,
		"chunks":      result.ChunksProcessed,
		"tokens":      result.TokensUsed,
	}).Info("document processed")
	return nil
}

// persistBorrowers writes each extracted borrower, collecting failures
// instead of aborting. Indexing is best-effort.
func (s *DocumentService) persistBorrowers(ctx context.Context, documentID string, records []extraction.BorrowerRecord) (int, []string) {
	persisted := 0
	var failures []string
	for _, rec := range records {
		b := toBorrower(documentID, rec)
		if err := s.store.CreateBorrower(ctx, b); err != nil {
			log.WithFields(log.Fields{"document_id": documentID, "error": err.Error()}).
				Warn("failed to persist borrower")
			failures = append(failures, rec.FullName)
			continue
		}
		persisted++
		if s.index != nil {
			if err := s.index.IndexBorrower(ctx, b); err != nil {
				log.WithFields(log.Fields{"borrower_id": b.ID, "error": err.Error()}).
					Warn("failed to index borrower")
			}
		}
	}
	return persisted, failures
}

// Delete removes the document, its borrowers, its blob, and its index
// entries. Blob and index cleanup are best-effort.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	borrowers, err := s.store.ListBorrowersByDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}

	blobCtx, cancel := context.WithTimeout(ctx, blobTimeout)
	defer cancel()
	if err := s.blobs.Delete(blobCtx, id); err != nil {
		log.WithFields(log.Fields{"document_id": id, "error": err.Error()}).
			Warn("failed to delete blob")
	}
	if s.index != nil && len(borrowers) > 0 {
		ids := make([]string, 0, len(borrowers))
		for _, b := range borrowers {
			ids = append(ids, b.ID)
		}
		if err := s.index.DeleteBorrowers(ctx, ids); err != nil {
			log.WithFields(log.Fields{"document_id": id, "error": err.Error()}).
				Warn("failed to deindex borrowers")
		}
	}
	return nil
}

func (s *DocumentService) failDocument(ctx context.Context, doc *model.Document, msg string) {
	doc.Status = model.DocumentStatusFailed
	doc.ErrorMessage = msg
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		log.WithFields(log.Fields{"document_id": doc.ID, "error": err.Error()}).
			Error("failed to mark document failed")
	}
}

// partialSuccessMessage lists at most five failed names.
func partialSuccessMessage(persisted, total int, failures []string) string {
	shown := failures
	if len(shown) > 5 {
		shown = shown[:5]
	}
	msg := fmt.Sprintf("partial success: %d/%d persisted; failures: %s",
		persisted, total, strings.Join(shown, ", "))
	if len(failures) > 5 {
		msg += fmt.Sprintf(" (+%d more)", len(failures)-5)
	}
	return msg
}

// toBorrower converts the transient extraction shape to the persistent one.
// This is the only place the raw SSN crosses into the persistence path, and
// it crosses as a hash.
func toBorrower(documentID string, rec extraction.BorrowerRecord) *model.Borrower {
	b := &model.Borrower{
		DocumentID:      documentID,
		FullName:        rec.FullName,
		SSNHash:         extraction.HashSSN(rec.SSN),
		Phone:           rec.Phone,
		ConfidenceScore: rec.Confidence,
		NeedsReview:     rec.NeedsReview,
		Warnings:        rec.Warnings,
		CreatedAt:       time.Now().UTC(),
	}
	if !rec.Address.Empty() {
		if raw, err := json.Marshal(rec.Address); err == nil {
			b.Address = string(raw)
		}
	}
	for _, e := range rec.IncomeHistory {
		b.IncomeRecords = append(b.IncomeRecords, model.IncomeRecord{
			AmountCents: e.AmountCents,
			Period:      e.Period,
			Year:        e.Year,
			SourceType:  e.SourceType,
			Employer:    e.Employer,
		})
	}
	for _, n := range rec.AccountNumbers {
		b.AccountNumbers = append(b.AccountNumbers, model.AccountNumber{Number: n, AccountType: model.AccountTypeBank})
	}
	for _, n := range rec.LoanNumbers {
		b.AccountNumbers = append(b.AccountNumbers, model.AccountNumber{Number: n, AccountType: model.AccountTypeLoan})
	}
	for _, src := range rec.Sources {
		b.SourceReferences = append(b.SourceReferences, model.SourceReference{
			DocumentID: documentID,
			PageNumber: src.PageNumber,
			Section:    src.Section,
			Snippet:    src.Snippet,
			CharStart:  src.CharStart,
			CharEnd:    src.CharEnd,
		})
	}
	return b
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanlens/loanlens/internal/blob"
	"github.com/loanlens/loanlens/internal/extraction"
	"github.com/loanlens/loanlens/internal/model"
	"github.com/loanlens/loanlens/internal/ocr"
	"github.com/loanlens/loanlens/internal/queue"
	"github.com/loanlens/loanlens/internal/store"
)

type fakeTextRouter struct {
	result *ocr.RouteResult
	err    error
}

func (f *fakeTextRouter) Route(ctx context.Context, data []byte, filename string, mode model.OCRMode) (*ocr.RouteResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &ocr.RouteResult{RawText: string(data), PageCount: 1, Method: model.OCRMethodNone}, nil
}

type fakeExtractor struct {
	result *extraction.Result
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(ctx context.Context, in extraction.Input, method model.ExtractionMethod) (*extraction.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &extraction.Result{
		Borrowers: []extraction.BorrowerRecord{
			{FullName: "John Smith", SSN: "123-45-6789", Confidence: 0.9},
		},
		ChunksProcessed: 1,
		MethodUsed:      method,
	}, nil
}

type captureQueue struct {
	tasks []queue.ProcessTask
	err   error
}

func (q *captureQueue) Enqueue(ctx context.Context, task queue.ProcessTask) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func newTestService(tasks queue.TaskQueue, extractor Extractor) (*DocumentService, store.Store) {
	st := store.NewMemoryStore()
	if extractor == nil {
		extractor = &fakeExtractor{}
	}
	svc := NewDocumentService(st, blob.NewMemoryStore(), tasks, &fakeTextRouter{}, extractor, nil, extraction.Config{})
	return svc, st
}

func uploadReq(data string) UploadRequest {
	return UploadRequest{
		Filename:    "loan.txt",
		Data:        []byte(data),
		ContentType: "text/plain",
		Method:      model.MethodDocling,
		OCR:         model.OCRModeAuto,
	}
}

func TestUploadInlineCompletes(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(nil, nil)

	doc, err := svc.Upload(ctx, uploadReq("Borrower: John Smith, SSN 123-45-6789"))
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusCompleted, doc.Status)
	assert.Equal(t, model.MethodDocling, doc.ExtractionMethod)
	require.NotNil(t, doc.OCRProcessed)
	assert.False(t, *doc.OCRProcessed)

	borrowers, err := st.ListBorrowersByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, borrowers, 1)
	assert.Equal(t, "John Smith", borrowers[0].FullName)
	// The raw SSN must never be persisted, only its hash.
	assert.Len(t, borrowers[0].SSNHash, 64)
	assert.NotContains(t, borrowers[0].SSNHash, "123456789")
}

func TestUploadDuplicateHash(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(nil, nil)

	_, err := svc.Upload(ctx, uploadReq("same bytes"))
	require.NoError(t, err)

	_, err = svc.Upload(ctx, uploadReq("same bytes"))
	assert.ErrorIs(t, err, ErrDuplicateDocument)
}

func TestUploadEnqueuesWhenQueueConfigured(t *testing.T) {
	ctx := context.Background()
	q := &captureQueue{}
	svc, _ := newTestService(q, nil)

	doc, err := svc.Upload(ctx, uploadReq("queued content"))
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusPending, doc.Status)

	require.Len(t, q.tasks, 1)
	assert.Equal(t, doc.ID, q.tasks[0].DocumentID)
	assert.Equal(t, "docling", q.tasks[0].Method)
	assert.Equal(t, "auto", q.tasks[0].OCR)
}

func TestUploadEnqueueFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	q := &captureQueue{err: errors.New("queue down")}
	svc, st := newTestService(q, nil)

	_, err := svc.Upload(ctx, uploadReq("content"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to queue")

	docs, err := st.ListDocuments(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, model.DocumentStatusFailed, docs[0].Status)
	assert.Contains(t, docs[0].ErrorMessage, "failed to queue")
}

type flakyUpdateStore struct {
	store.Store
	failures int
}

func (f *flakyUpdateStore) UpdateDocument(ctx context.Context, d *model.Document) error {
	if f.failures > 0 {
		f.failures--
		return fmt.Errorf("firestore unavailable")
	}
	return f.Store.UpdateDocument(ctx, d)
}

func TestUploadUpdateFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	// The first UpdateDocument (recording the blob URI) fails; the document
	// must still end up FAILED rather than stuck PENDING.
	st := &flakyUpdateStore{Store: store.NewMemoryStore(), failures: 1}
	svc := NewDocumentService(st, blob.NewMemoryStore(), &captureQueue{}, &fakeTextRouter{}, &fakeExtractor{}, nil, extraction.Config{})

	_, err := svc.Upload(ctx, uploadReq("content"))
	require.Error(t, err)

	docs, err := st.ListDocuments(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, model.DocumentStatusFailed, docs[0].Status)
	assert.Contains(t, docs[0].ErrorMessage, "record blob uri")
}

func TestProcessIdempotentOnTerminal(t *testing.T) {
	ctx := context.Background()
	ex := &fakeExtractor{}
	svc, st := newTestService(nil, ex)

	doc, err := svc.Upload(ctx, uploadReq("content"))
	require.NoError(t, err)
	require.Equal(t, model.DocumentStatusCompleted, doc.Status)
	callsAfterUpload := ex.calls

	err = svc.Process(ctx, queue.ProcessTask{DocumentID: doc.ID, Method: "docling", OCR: "auto"}, true)
	require.NoError(t, err)
	assert.Equal(t, callsAfterUpload, ex.calls, "terminal document must not be reprocessed")

	borrowers, err := st.ListBorrowersByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, borrowers, 1, "duplicate delivery must not duplicate borrowers")
}

func TestProcessMissingDocumentIsNoOp(t *testing.T) {
	svc, _ := newTestService(nil, nil)
	err := svc.Process(context.Background(), queue.ProcessTask{DocumentID: "gone"}, false)
	assert.NoError(t, err)
}

func transientErr() error {
	return &extraction.ExtractionError{
		Code:      extraction.ErrCodeLLMTransient,
		Message:   "rate limit",
		Retryable: true,
	}
}

func TestProcessTransientNotFinalReturnsRetryable(t *testing.T) {
	ctx := context.Background()
	q := &captureQueue{}
	svc, st := newTestService(q, &fakeExtractor{err: transientErr()})

	doc, err := svc.Upload(ctx, uploadReq("content"))
	require.NoError(t, err)

	err = svc.Process(ctx, queue.ProcessTask{DocumentID: doc.ID, Method: "langextract", OCR: "auto"}, false)
	assert.ErrorIs(t, err, ErrRetryable)

	got, err := st.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusProcessing, got.Status, "document stays PROCESSING pending redelivery")
}

func TestProcessTransientFinalAttemptFails(t *testing.T) {
	ctx := context.Background()
	q := &captureQueue{}
	svc, st := newTestService(q, &fakeExtractor{err: transientErr()})

	doc, err := svc.Upload(ctx, uploadReq("content"))
	require.NoError(t, err)

	err = svc.Process(ctx, queue.ProcessTask{DocumentID: doc.ID, Method: "langextract", OCR: "auto"}, true)
	require.NoError(t, err, "permanent outcome is recorded on the document, not returned")

	got, err := st.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "extraction failed")
}

func TestProcessFatalFailsImmediately(t *testing.T) {
	ctx := context.Background()
	q := &captureQueue{}
	fatal := &extraction.ExtractionError{Code: extraction.ErrCodeLLMFatal, Message: "schema rejected"}
	svc, st := newTestService(q, &fakeExtractor{err: fatal})

	doc, err := svc.Upload(ctx, uploadReq("content"))
	require.NoError(t, err)

	err = svc.Process(ctx, queue.ProcessTask{DocumentID: doc.ID, Method: "docling", OCR: "auto"}, false)
	require.NoError(t, err)

	got, err := st.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusFailed, got.Status)
}

func TestPartialSuccessMessage(t *testing.T) {
	msg := partialSuccessMessage(2, 4, []string{"A", "B"})
	assert.Equal(t, "partial success: 2/4 persisted; failures: A, B", msg)

	many := []string{"A", "B", "C", "D", "E", "F", "G"}
	msg = partialSuccessMessage(0, 7, many)
	assert.Contains(t, msg, "failures: A, B, C, D, E")
	assert.Contains(t, msg, "(+2 more)")
	assert.False(t, strings.Contains(msg, "F,"), "list is capped at five names")
}

func TestToBorrowerMapsChildren(t *testing.T) {
	start, end := int64(10), int64(42)
	rec := extraction.BorrowerRecord{
		FullName: "Jane Doe",
		SSN:      "987-65-4321",
		Phone:    "(555) 123-4567",
		Address:  model.Address{Street: "1 Main St", City: "Springfield", State: "IL", Zip: "62704"},
		IncomeHistory: []extraction.IncomeEntry{
			{AmountCents: 7500000, Period: "annual", Year: 2024, SourceType: "employment", Employer: "Acme"},
		},
		AccountNumbers: []string{"11112222"},
		LoanNumbers:    []string{"L-9000"},
		Sources: []extraction.SourceRef{
			{PageNumber: 2, Snippet: "Jane Doe earns", CharStart: &start, CharEnd: &end},
		},
		Confidence: 0.85,
	}

	b := toBorrower("doc-1", rec)
	assert.Equal(t, "doc-1", b.DocumentID)
	assert.Equal(t, extraction.HashSSN("987-65-4321"), b.SSNHash)
	assert.Contains(t, b.Address, "Springfield")
	require.Len(t, b.AccountNumbers, 2)
	assert.Equal(t, model.AccountTypeBank, b.AccountNumbers[0].AccountType)
	assert.Equal(t, model.AccountTypeLoan, b.AccountNumbers[1].AccountType)
	require.Len(t, b.SourceReferences, 1)
	assert.Equal(t, "doc-1", b.SourceReferences[0].DocumentID)
	assert.Equal(t, &start, b.SourceReferences[0].CharStart)
}

type failingBorrowerStore struct {
	store.Store
	failNames map[string]bool
}

func (f *failingBorrowerStore) CreateBorrower(ctx context.Context, b *model.Borrower) error {
	if f.failNames[b.FullName] {
		return fmt.Errorf("write rejected")
	}
	return f.Store.CreateBorrower(ctx, b)
}

func TestProcessPartialPersistence(t *testing.T) {
	ctx := context.Background()
	st := &failingBorrowerStore{Store: store.NewMemoryStore(), failNames: map[string]bool{"Bad Row": true}}
	ex := &fakeExtractor{result: &extraction.Result{
		Borrowers: []extraction.BorrowerRecord{
			{FullName: "Good Row", Confidence: 0.9},
			{FullName: "Bad Row", Confidence: 0.9},
		},
		MethodUsed: model.MethodDocling,
	}}
	svc := NewDocumentService(st, blob.NewMemoryStore(), nil, &fakeTextRouter{}, ex, nil, extraction.Config{})

	doc, err := svc.Upload(ctx, uploadReq("content"))
	require.NoError(t, err)

	assert.Equal(t, model.DocumentStatusCompleted, doc.Status)
	assert.Contains(t, doc.ErrorMessage, "partial success: 1/2 persisted")
	assert.Contains(t, doc.ErrorMessage, "Bad Row")
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(nil, nil)

	doc, err := svc.Upload(ctx, uploadReq("Borrower: John Smith"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, doc.ID))

	_, err = st.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	borrowers, err := st.ListBorrowersByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, borrowers)
}

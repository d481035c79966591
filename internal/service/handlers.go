package service

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/loanlens/loanlens/internal/auth"
	"github.com/loanlens/loanlens/internal/docparse"
	"github.com/loanlens/loanlens/internal/model"
	"github.com/loanlens/loanlens/internal/queue"
	"github.com/loanlens/loanlens/internal/search"
	"github.com/loanlens/loanlens/internal/store"
)

// maxRetryCount is the number of redeliveries the task handler tolerates
// before treating an attempt as final (5 deliveries total).
const maxRetryCount = 4

// Handler is the HTTP surface over the document service.
type Handler struct {
	svc            *DocumentService
	store          store.Store
	index          search.BorrowerIndex
	taskAuth       *auth.TaskAuth
	maxUploadBytes int64
}

// NewHandler builds the HTTP handler set. index and taskAuth may be nil.
func NewHandler(svc *DocumentService, st store.Store, index search.BorrowerIndex, taskAuth *auth.TaskAuth, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 25 << 20
	}
	return &Handler{
		svc:            svc,
		store:          st,
		index:          index,
		taskAuth:       taskAuth,
		maxUploadBytes: maxUploadBytes,
	}
}

// Register installs all routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/documents", h.uploadDocument)
	mux.HandleFunc("POST /api/documents/{$}", h.uploadDocument)
	mux.HandleFunc("GET /api/documents", h.listDocuments)
	mux.HandleFunc("GET /api/documents/{$}", h.listDocuments)
	mux.HandleFunc("GET /api/documents/{id}", h.getDocument)
	mux.HandleFunc("GET /api/documents/{id}/status", h.getDocumentStatus)
	mux.HandleFunc("GET /api/documents/{id}/borrowers", h.listDocumentBorrowers)
	mux.HandleFunc("DELETE /api/documents/{id}", h.deleteDocument)

	mux.HandleFunc("GET /api/borrowers", h.listBorrowers)
	mux.HandleFunc("GET /api/borrowers/{$}", h.listBorrowers)
	mux.HandleFunc("GET /api/borrowers/search", h.searchBorrowers)
	mux.HandleFunc("GET /api/borrowers/{id}", h.getBorrower)
	mux.HandleFunc("GET /api/borrowers/{id}/sources", h.getBorrowerSources)

	taskHandler := http.Handler(http.HandlerFunc(h.processTask))
	if h.taskAuth != nil {
		taskHandler = h.taskAuth.Middleware(taskHandler)
	}
	mux.Handle("POST /api/tasks/process-document", taskHandler)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (h *Handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	method, ok := model.ParseExtractionMethod(r.URL.Query().Get("method"))
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid extraction method")
		return
	}
	ocrMode, ok := model.ParseOCRMode(r.URL.Query().Get("ocr"))
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "invalid ocr mode")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds upload size limit")
			return
		}
		writeError(w, http.StatusUnprocessableEntity, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds upload size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "uploaded file is empty")
		return
	}

	contentType := docparse.DetectMIME(data, header.Filename)
	if !docparse.Supported(contentType) {
		writeError(w, http.StatusUnprocessableEntity, "unsupported file type "+contentType)
		return
	}

	doc, err := h.svc.Upload(r.Context(), UploadRequest{
		Filename:    header.Filename,
		Data:        data,
		ContentType: contentType,
		Method:      method,
		OCR:         ocrMode,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateDocument) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		log.WithField("error", err.Error()).Error("upload failed")
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) getDocumentStatus(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                doc.ID,
		"status":            doc.Status,
		"error_message":     doc.ErrorMessage,
		"extraction_method": doc.ExtractionMethod,
		"ocr_processed":     doc.OCRProcessed,
		"page_count":        doc.PageCount,
	})
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	docs, err := h.store.ListDocuments(r.Context(), limit, offset)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *Handler) listDocumentBorrowers(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.store.GetDocument(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	borrowers, err := h.store.ListBorrowersByDocument(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"borrowers": borrowers})
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getBorrower(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.GetBorrower(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) getBorrowerSources(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.GetBorrower(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": b.SourceReferences})
}

func (h *Handler) listBorrowers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	borrowers, err := h.store.ListBorrowers(r.Context(), limit, offset)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"borrowers": borrowers})
}

func (h *Handler) searchBorrowers(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	accountNumber := r.URL.Query().Get("account_number")
	limit, offset := pageParams(r)

	// Free-text name search goes through Algolia when it is configured; the
	// repository scan is the fallback and serves exact account lookups.
	if h.index != nil && name != "" && accountNumber == "" {
		borrowers, err := h.searchViaIndex(r, name, limit)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]any{"borrowers": borrowers})
			return
		}
		log.WithField("error", err.Error()).Warn("index search failed, falling back to store")
	}

	borrowers, err := h.store.SearchBorrowers(r.Context(), name, accountNumber, limit, offset)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"borrowers": borrowers})
}

// searchViaIndex resolves Algolia hits back to full borrower rows.
func (h *Handler) searchViaIndex(r *http.Request, query string, limit int) ([]*model.Borrower, error) {
	hits, err := h.index.Search(r.Context(), query, limit)
	if err != nil {
		return nil, err
	}
	borrowers := make([]*model.Borrower, 0, len(hits))
	for _, hit := range hits {
		b, err := h.store.GetBorrower(r.Context(), hit.BorrowerID)
		if err != nil {
			// Index lag after a delete; skip the stale hit.
			continue
		}
		borrowers = append(borrowers, b)
	}
	return borrowers, nil
}

// processTask is the queue push endpoint. Permanent outcomes answer 2xx so
// the queue stops; retry-eligible transients answer 503 so it redelivers.
func (h *Handler) processTask(w http.ResponseWriter, r *http.Request) {
	var task queue.ProcessTask
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil || task.DocumentID == "" {
		writeError(w, http.StatusBadRequest, "invalid task payload")
		return
	}

	retryCount := 0
	if v := r.Header.Get("X-Retry-Count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			retryCount = n
		}
	}
	finalAttempt := retryCount >= maxRetryCount

	err := h.svc.Process(r.Context(), task, finalAttempt)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case errors.Is(err, ErrRetryable):
		log.WithFields(log.Fields{
			"document_id": task.DocumentID,
			"retry_count": retryCount,
			"error":       err.Error(),
		}).Warn("transient processing failure, requesting redelivery")
		writeError(w, http.StatusServiceUnavailable, "transient failure, retry")
	default:
		log.WithFields(log.Fields{"document_id": task.DocumentID, "error": err.Error()}).
			Error("task processing failed")
		writeError(w, http.StatusInternalServerError, "processing failed")
	}
}

func pageParams(r *http.Request) (limit, offset int) {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithField("error", err.Error()).Error("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	log.WithField("error", err.Error()).Error("store operation failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

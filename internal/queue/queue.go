// Package queue enqueues document-processing work. Production uses Cloud
// Tasks with an HTTP push target; local development runs the same work inline
// through SyncQueue.
package queue

import "context"

// ProcessTask is the payload delivered to the task handler.
type ProcessTask struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	// Method is the requested extraction method ("docling", "langextract",
	// "auto").
	Method string `json:"method"`
	// OCR is the requested OCR mode ("auto", "force", "skip").
	OCR string `json:"ocr"`
}

// TaskQueue hands a processing task off for delivery.
type TaskQueue interface {
	Enqueue(ctx context.Context, task ProcessTask) error
}

// SyncQueue runs the task inline through the given handler instead of
// enqueueing it. Used when no Cloud Tasks queue is configured.
type SyncQueue struct {
	Handler func(ctx context.Context, task ProcessTask) error
}

func (q *SyncQueue) Enqueue(ctx context.Context, task ProcessTask) error {
	return q.Handler(ctx, task)
}

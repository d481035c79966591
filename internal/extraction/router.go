package extraction

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/loanlens/loanlens/internal/model"
)

// Router dispatches an extraction run to one of the two strategies and
// applies the retry and fallback policy:
//
//	docling      one attempt, no fallback
//	langextract  three attempts on transient errors, no fallback
//	auto         langextract with retries, then one docling fallback
type Router struct {
	docling     Strategy
	langextract Strategy
	retry       RetryConfig
}

// NewRouter wires the two strategies under the default transient-retry
// budget.
func NewRouter(docling, langextract Strategy) *Router {
	return NewRouterWithRetry(docling, langextract, DefaultLLMRetryConfig)
}

// NewRouterWithRetry overrides the transient-retry budget.
func NewRouterWithRetry(docling, langextract Strategy, retry RetryConfig) *Router {
	return &Router{
		docling:     docling,
		langextract: langextract,
		retry:       retry,
	}
}

// Extract runs the method's policy. The returned Result records the method
// actually used, which in auto mode may differ from the one tried first.
func (r *Router) Extract(ctx context.Context, in Input, method model.ExtractionMethod) (*Result, error) {
	switch method {
	case model.MethodDocling:
		return r.docling.Extract(ctx, in)

	case model.MethodLangExtract:
		return WithRetry(ctx, r.retry, func(ctx context.Context) (*Result, error) {
			return r.langextract.Extract(ctx, in)
		})

	case model.MethodAuto:
		result, err := WithRetry(ctx, r.retry, func(ctx context.Context) (*Result, error) {
			return r.langextract.Extract(ctx, in)
		})
		if err == nil {
			return result, nil
		}
		// Exhausted transients, fatal errors, and truncation all take the
		// one-shot docling fallback. Truncation is called out because the
		// fallback's page-level chunking is what resolves it.
		reason := "langextract failed, falling back to docling"
		if IsTruncation(err) {
			reason = "langextract output truncated, falling back to docling"
		}
		log.WithFields(log.Fields{
			"document_id": in.DocumentID,
			"error":       err.Error(),
		}).Warn(reason)
		return r.docling.Extract(ctx, in)

	default:
		return nil, &ExtractionError{
			Code:    ErrCodeBadResponse,
			Message: "unknown extraction method " + string(method),
		}
	}
}

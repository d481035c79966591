package ocr

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/loanlens/loanlens/internal/docparse"
	"github.com/loanlens/loanlens/internal/model"
)

// ScannedDetector decides whether parsed bytes need OCR. Pluggable so the
// heuristic can evolve without touching the router.
type ScannedDetector func(parsed *docparse.Result) bool

// DefaultScannedDetector trusts the parser's text-density verdict.
func DefaultScannedDetector(parsed *docparse.Result) bool {
	return parsed.Scanned
}

// RouteResult is the text a document resolved to, however it was produced.
type RouteResult struct {
	// RawText is the authoritative text body; persisted offsets refer to it.
	RawText string
	// MarkdownText is the normalized form the GPU service returns alongside
	// the raw text. Empty on the parser paths.
	MarkdownText string
	PageCount    int
	Method       model.OCRMethod
}

// Router decides OCR routing per document: skip, force, or detect. GPU calls
// run behind a circuit breaker; on breaker-open, GPU error, or timeout the
// router falls back to the in-process parser with no error surfaced.
type Router struct {
	client   *Client
	breaker  *gobreaker.CircuitBreaker
	detector ScannedDetector
}

// NewRouter builds a router. A nil client disables the GPU path; every OCR
// request then takes the parser fallback. Three consecutive failures open the
// breaker for cooldown; a single half-open probe closes it again.
func NewRouter(client *Client, cooldown time.Duration, detector ScannedDetector) *Router {
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	if detector == nil {
		detector = DefaultScannedDetector
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gpu-ocr",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
				Info("ocr breaker state change")
		},
	})
	return &Router{client: client, breaker: breaker, detector: detector}
}

// Route parses and, per mode, OCRs document bytes.
func (r *Router) Route(ctx context.Context, data []byte, filename string, mode model.OCRMode) (*RouteResult, error) {
	parsed, err := docparse.Parse(data, filename)
	if err != nil {
		return nil, err
	}

	switch mode {
	case model.OCRModeSkip:
		return &RouteResult{
			RawText:   parsed.Text,
			PageCount: parsed.PageCount,
			Method:    model.OCRMethodNone,
		}, nil
	case model.OCRModeForce:
		return r.recognize(ctx, data, filename, parsed), nil
	default: // auto
		if r.detector(parsed) {
			return r.recognize(ctx, data, filename, parsed), nil
		}
		return &RouteResult{
			RawText:   parsed.Text,
			PageCount: parsed.PageCount,
			Method:    model.OCRMethodNone,
		}, nil
	}
}

// recognize runs the GPU call under the breaker and degrades to the parser
// result on any failure. Parser OCR of a true scan yields sparse text, but a
// degraded extraction beats a failed document.
func (r *Router) recognize(ctx context.Context, data []byte, filename string, parsed *docparse.Result) *RouteResult {
	if r.client == nil {
		return fallbackResult(parsed)
	}

	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.Recognize(ctx, data, filename)
	})
	if err != nil {
		log.WithFields(log.Fields{"filename": filename, "error": err.Error()}).
			Warn("gpu ocr failed, using parser fallback")
		return fallbackResult(parsed)
	}

	resp := out.(*Response)
	raw := resp.RawText
	if raw == "" {
		raw = resp.Markdown
	}
	pageCount := resp.PageCount
	if parsed.PageCount > pageCount {
		pageCount = parsed.PageCount
	}
	return &RouteResult{
		RawText:      raw,
		MarkdownText: resp.Markdown,
		PageCount:    pageCount,
		Method:       model.OCRMethodGPU,
	}
}

func fallbackResult(parsed *docparse.Result) *RouteResult {
	return &RouteResult{
		RawText:   parsed.Text,
		PageCount: parsed.PageCount,
		Method:    model.OCRMethodParserFallback,
	}
}

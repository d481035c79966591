package extraction

import (
	"context"
	"testing"

	"github.com/loanlens/loanlens/internal/model"
)

// stubStrategy fails with errs[i] on call i and succeeds once errs run out.
type stubStrategy struct {
	method model.ExtractionMethod
	errs   []error
	calls  int
}

func (s *stubStrategy) Method() model.ExtractionMethod { return s.method }

func (s *stubStrategy) Extract(ctx context.Context, in Input) (*Result, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return &Result{MethodUsed: s.method}, nil
}

func transientErr() error {
	return &ExtractionError{Code: ErrCodeLLMTransient, Message: "rate limited", Retryable: true}
}

func fatalErr() error {
	return &ExtractionError{Code: ErrCodeLLMFatal, Message: "bad request"}
}

func truncationErr() error {
	return &ExtractionError{Code: ErrCodeLLMTruncation, Message: "response truncated by output token budget"}
}

func newTestRouter(docling, langextract Strategy) *Router {
	return &Router{docling: docling, langextract: langextract, retry: fastRetry}
}

func TestRouterDoclingSingleAttempt(t *testing.T) {
	d := &stubStrategy{method: model.MethodDocling, errs: []error{transientErr()}}
	l := &stubStrategy{method: model.MethodLangExtract}
	r := newTestRouter(d, l)

	_, err := r.Extract(context.Background(), Input{}, model.MethodDocling)
	if err == nil {
		t.Fatal("expected error")
	}
	if d.calls != 1 {
		t.Errorf("docling calls = %d, want 1 (no retry)", d.calls)
	}
	if l.calls != 0 {
		t.Errorf("langextract calls = %d, want 0", l.calls)
	}
}

func TestRouterLangExtractRetriesTransients(t *testing.T) {
	d := &stubStrategy{method: model.MethodDocling}
	l := &stubStrategy{method: model.MethodLangExtract, errs: []error{transientErr(), transientErr()}}
	r := newTestRouter(d, l)

	result, err := r.Extract(context.Background(), Input{}, model.MethodLangExtract)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if l.calls != 3 {
		t.Errorf("langextract calls = %d, want 3", l.calls)
	}
	if d.calls != 0 {
		t.Errorf("docling calls = %d, want 0 (explicit method never falls back)", d.calls)
	}
	if result.MethodUsed != model.MethodLangExtract {
		t.Errorf("MethodUsed = %v", result.MethodUsed)
	}
}

func TestRouterLangExtractExhaustedReturnsError(t *testing.T) {
	d := &stubStrategy{method: model.MethodDocling}
	l := &stubStrategy{method: model.MethodLangExtract, errs: []error{transientErr(), transientErr(), transientErr()}}
	r := newTestRouter(d, l)

	_, err := r.Extract(context.Background(), Input{}, model.MethodLangExtract)
	if err == nil {
		t.Fatal("expected error after retry budget")
	}
	if l.calls != 3 {
		t.Errorf("langextract calls = %d, want 3", l.calls)
	}
	if d.calls != 0 {
		t.Errorf("docling calls = %d, want 0", d.calls)
	}
}

func TestRouterLangExtractFatalStopsImmediately(t *testing.T) {
	d := &stubStrategy{method: model.MethodDocling}
	l := &stubStrategy{method: model.MethodLangExtract, errs: []error{fatalErr()}}
	r := newTestRouter(d, l)

	_, err := r.Extract(context.Background(), Input{}, model.MethodLangExtract)
	if err == nil {
		t.Fatal("expected error")
	}
	if l.calls != 1 {
		t.Errorf("langextract calls = %d, want 1", l.calls)
	}
}

func TestRouterAutoFallsBackToDocling(t *testing.T) {
	d := &stubStrategy{method: model.MethodDocling}
	l := &stubStrategy{method: model.MethodLangExtract, errs: []error{transientErr(), transientErr(), transientErr()}}
	r := newTestRouter(d, l)

	result, err := r.Extract(context.Background(), Input{}, model.MethodAuto)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if l.calls != 3 {
		t.Errorf("langextract calls = %d, want 3", l.calls)
	}
	if d.calls != 1 {
		t.Errorf("docling calls = %d, want 1", d.calls)
	}
	if result.MethodUsed != model.MethodDocling {
		t.Errorf("MethodUsed = %v, want docling after fallback", result.MethodUsed)
	}
}

func TestRouterAutoFatalTakesFallbackWithoutRetries(t *testing.T) {
	d := &stubStrategy{method: model.MethodDocling}
	l := &stubStrategy{method: model.MethodLangExtract, errs: []error{fatalErr()}}
	r := newTestRouter(d, l)

	result, err := r.Extract(context.Background(), Input{}, model.MethodAuto)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if l.calls != 1 {
		t.Errorf("langextract calls = %d, want 1", l.calls)
	}
	if result.MethodUsed != model.MethodDocling {
		t.Errorf("MethodUsed = %v, want docling", result.MethodUsed)
	}
}

func TestRouterAutoTruncationFallsBackWithoutRetries(t *testing.T) {
	d := &stubStrategy{method: model.MethodDocling}
	l := &stubStrategy{method: model.MethodLangExtract, errs: []error{truncationErr()}}
	r := newTestRouter(d, l)

	result, err := r.Extract(context.Background(), Input{}, model.MethodAuto)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if l.calls != 1 {
		t.Errorf("langextract calls = %d, want 1 (truncation is never retried)", l.calls)
	}
	if result.MethodUsed != model.MethodDocling {
		t.Errorf("MethodUsed = %v, want docling", result.MethodUsed)
	}
}

func TestRouterAutoPrefersLangExtract(t *testing.T) {
	d := &stubStrategy{method: model.MethodDocling}
	l := &stubStrategy{method: model.MethodLangExtract}
	r := newTestRouter(d, l)

	result, err := r.Extract(context.Background(), Input{}, model.MethodAuto)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if result.MethodUsed != model.MethodLangExtract {
		t.Errorf("MethodUsed = %v, want langextract", result.MethodUsed)
	}
	if d.calls != 0 {
		t.Errorf("docling calls = %d, want 0", d.calls)
	}
}

func TestRouterUnknownMethod(t *testing.T) {
	r := newTestRouter(&stubStrategy{}, &stubStrategy{})
	_, err := r.Extract(context.Background(), Input{}, model.ExtractionMethod("guess"))
	if err == nil {
		t.Fatal("expected error for unknown method")
	}
}

package extraction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/loanlens/loanlens/internal/model"
)

// ErrorCode categorizes extraction failures for retry and fallback routing.
type ErrorCode string

const (
	ErrCodeLLMTransient  ErrorCode = "LLM_TRANSIENT"
	ErrCodeLLMFatal      ErrorCode = "LLM_FATAL"
	ErrCodeLLMTruncation ErrorCode = "LLM_TRUNCATION"
	ErrCodeOCRTransient  ErrorCode = "OCR_TRANSIENT"
	ErrCodeOCRFatal      ErrorCode = "OCR_FATAL"
	ErrCodeParseFailed   ErrorCode = "PARSE_FAILED"
	ErrCodeBadResponse   ErrorCode = "BAD_RESPONSE"
)

// ExtractionError is a structured pipeline failure. Retryable errors may be
// re-attempted with backoff; fatal errors abort immediately. SuggestedFallback
// names a strategy worth trying instead, when one exists.
type ExtractionError struct {
	Code              ErrorCode
	Message           string
	Method            model.ExtractionMethod
	Retryable         bool
	SuggestedFallback model.ExtractionMethod
	Cause             error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether err is a retryable ExtractionError. Unknown
// error types are not retryable.
func IsRetryable(err error) bool {
	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return extErr.Retryable
	}
	return false
}

// IsTruncation reports whether err is an LLM output-truncation failure, which
// signals the caller to shrink chunk size rather than retry.
func IsTruncation(err error) bool {
	var extErr *ExtractionError
	return errors.As(err, &extErr) && extErr.Code == ErrCodeLLMTruncation
}

// transientMarkers are the substrings that mark a remote failure as worth
// retrying. Matching is case-insensitive.
var transientMarkers = []string{
	"rate limit",
	"timeout",
	"deadline exceeded",
	"resource exhausted",
	"unavailable",
	"503",
	"429",
}

// IsTransientMessage classifies an error message as transient. Empty messages
// are fatal.
func IsTransientMessage(msg string) bool {
	if msg == "" {
		return false
	}
	lower := strings.ToLower(msg)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ClassifyLLMError converts an opaque error from the LLM layer into a
// structured ExtractionError. Already-structured errors pass through
// untouched so classification never double-wraps.
func ClassifyLLMError(err error, method model.ExtractionMethod) *ExtractionError {
	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return extErr
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if IsTransientMessage(msg) {
		return &ExtractionError{
			Code:      ErrCodeLLMTransient,
			Message:   "llm call failed",
			Method:    method,
			Retryable: true,
			Cause:     err,
		}
	}
	return &ExtractionError{
		Code:      ErrCodeLLMFatal,
		Message:   "llm call failed",
		Method:    method,
		Retryable: false,
		Cause:     err,
	}
}
